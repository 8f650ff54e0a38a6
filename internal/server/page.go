package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/a-h/templ"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

type pageData struct {
	Title     string
	Version   string
	SessionID string
}

// editorScript drives the page: it keeps a websocket open to the session,
// reloads the preview frame on every new frame key and forwards the frame's
// messages to the server together with their origin. The floating toolbar
// follows the session's editor state and sends inline edits back as
// commands.
const editorScript = `<script>
(function () {
  var root = document.getElementById("storefront");
  var cfg = JSON.parse(root.dataset.config);
  var source = document.getElementById("source");
  var frame = document.getElementById("preview");
  var status = document.getElementById("status");
  var sessionId = cfg.sessionId;
  var ws = null;
  var toolbar = document.getElementById("toolbar");
  var toolbarText = document.getElementById("toolbar-text");
  var toolbarClasses = document.getElementById("toolbar-classes");

  function send(cmd) {
    if (ws && ws.readyState === 1) ws.send(JSON.stringify(cmd));
  }
  function showEditor(st) {
    if (!st || st.mode === "closed" || !st.selected) { toolbar.hidden = true; return; }
    var sel = st.selected;
    var box = sel.boundingBox || { x: 0, y: 0, height: 0 };
    toolbar.hidden = false;
    toolbar.style.left = box.x + "px";
    toolbar.style.top = (box.y + box.height + 8) + "px";
    toolbar.dataset.mode = st.mode;
    if (document.activeElement !== toolbarText) {
      toolbarText.value = st.mode === "editing" && st.draft ? st.draft : sel.value;
    }
    toolbarText.disabled = sel.elementType === "image" || sel.elementType === "container";
    if (document.activeElement !== toolbarClasses) toolbarClasses.value = (sel.classList || []).join(" ");
  }

  function api(method, path, body) {
    return fetch("/api/sessions/" + sessionId + path, {
      method: method,
      headers: { "Content-Type": "application/json" },
      body: body === undefined ? undefined : JSON.stringify(body)
    }).then(function (r) {
      return r.json().then(function (j) {
        if (!r.ok) { status.textContent = j.error.message; throw j.error; }
        return j;
      });
    });
  }
  function loadPreview() {
    fetch("/api/sessions/" + sessionId + "/preview").then(function (r) {
      if (r.ok) return r.text().then(function (html) { frame.srcdoc = html; });
    });
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    ws = new WebSocket(proto + location.host + "/ws?session=" + sessionId);
    ws.onmessage = function (m) {
      var ev = JSON.parse(m.data);
      if (ev.type === "source" && document.activeElement !== source) source.value = ev.data.source;
      if (ev.type === "preview") loadPreview();
      if (ev.type === "editor") showEditor(ev.data);
      if (ev.type === "warning" || ev.type === "error" || ev.type === "preview_error" || ev.type === "command_error") {
        status.textContent = (ev.data && ev.data.message) || ev.type;
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  window.addEventListener("message", function (e) {
    send({ type: "frame_message", envelope: { origin: e.origin, data: e.data } });
  });
  frame.addEventListener("load", function () {
    var r = frame.getBoundingClientRect();
    send({ type: "frame_offset", offset: { x: r.left, y: r.top } });
  });
  document.getElementById("toolbar-save-text").addEventListener("click", function () {
    send({ type: "commit_text", text: toolbarText.value });
  });
  document.getElementById("toolbar-save-classes").addEventListener("click", function () {
    send({ type: "commit_classes", classes: toolbarClasses.value });
  });
  document.getElementById("toolbar-close").addEventListener("click", function () {
    send({ type: "close" });
  });
  toolbarText.addEventListener("keydown", function (e) {
    if (e.key === "Enter" && !e.shiftKey) { e.preventDefault(); send({ type: "commit_text", text: toolbarText.value }); }
  });
  toolbarClasses.addEventListener("keydown", function (e) {
    if (e.key === "Enter") { e.preventDefault(); send({ type: "commit_classes", classes: toolbarClasses.value }); }
  });
  document.addEventListener("keydown", function (e) {
    if (e.key === "Escape" && !toolbar.hidden) send({ type: "escape" });
  });
  source.addEventListener("input", function () { api("PUT", "/source", { source: source.value, typing: true }); });
  document.querySelectorAll("[data-action]").forEach(function (b) {
    b.addEventListener("click", function () { api("POST", "/" + b.dataset.action); });
  });

  function start(snapshot) {
    sessionId = snapshot.id;
    history.replaceState(null, "", "?session=" + sessionId);
    source.value = snapshot.source;
    connect();
    loadPreview();
  }
  if (sessionId) {
    api("GET", "").then(start);
  } else {
    fetch("/api/sessions", { method: "POST", headers: { "Content-Type": "application/json" }, body: "{}" })
      .then(function (r) { return r.json(); }).then(start);
  }
})();
</script>`

// editorPage renders the editing shell around the preview frame.
func editorPage(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		cfg, err := json.Marshal(map[string]string{"sessionId": d.SessionID})
		if err != nil {
			return err
		}

		parts := []string{
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`, templ.EscapeString(d.Title), `</title>`,
			`<style>body{margin:0;font-family:system-ui,sans-serif;display:grid;grid-template-columns:2fr 3fr;height:100vh}`,
			`textarea{width:100%;height:calc(100vh - 6rem);font-family:monospace;border:0;padding:1rem;box-sizing:border-box}`,
			`iframe{width:100%;height:100vh;border:0;border-left:1px solid #e5e7eb}`,
			`nav{display:flex;gap:.5rem;padding:.5rem;border-bottom:1px solid #e5e7eb}#status{padding:.5rem;color:#b91c1c}`,
			`#toolbar{position:fixed;z-index:10;display:flex;gap:.25rem;padding:.375rem;background:#fff;border:1px solid #d1d5db;border-radius:.375rem;box-shadow:0 4px 12px rgba(0,0,0,.12)}`,
			`#toolbar[hidden]{display:none}#toolbar input{font:inherit;padding:.125rem .375rem}</style>`,
			`</head><body>`,
			`<section id="storefront" data-config="`, templ.EscapeString(string(cfg)), `">`,
			`<nav><button data-action="undo">Undo</button><button data-action="redo">Redo</button>`,
			`<button data-action="restore">Restore backup</button>`,
			`<span style="margin-left:auto;color:#6b7280">`, templ.EscapeString(d.Version), `</span></nav>`,
			`<textarea id="source" spellcheck="false"></textarea>`,
			`<div id="status" role="status"></div></section>`,
			`<iframe id="preview" title="Preview" sandbox="allow-scripts allow-same-origin"></iframe>`,
		}
		if err := writeParts(w, parts...); err != nil {
			return err
		}
		if err := inlineToolbar().Render(ctx, w); err != nil {
			return err
		}

		return writeParts(w, editorScript, `</body></html>`)
	})
}

// inlineToolbar is the floating editor shown next to the selected preview
// element. It stays hidden until the session reports a selection.
func inlineToolbar() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return writeParts(w,
			`<div id="toolbar" role="toolbar" aria-label="Edit element" hidden>`,
			`<input id="toolbar-text" type="text" aria-label="Text">`,
			`<button id="toolbar-save-text" type="button">Save text</button>`,
			`<input id="toolbar-classes" type="text" aria-label="Classes" spellcheck="false">`,
			`<button id="toolbar-save-classes" type="button">Apply classes</button>`,
			`<button id="toolbar-close" type="button" aria-label="Close">&times;</button>`,
			`</div>`,
		)
	})
}

func writeParts(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}

	return nil
}

// renderFailurePage is shown inside the preview frame while no render has
// succeeded yet.
func renderFailurePage(d apperrors.Detail) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Preview unavailable</title></head>`+
			`<body style="font-family:system-ui,sans-serif;padding:2rem;color:#374151">`+
			`<h1 style="font-size:1.25rem">Preview unavailable</h1><p>`+templ.EscapeString(d.Message)+`</p>`+
			`<p style="color:#9ca3af;font-size:.875rem">`+templ.EscapeString(d.Code)+`</p></body></html>`)
		return err
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	d := pageData{
		Title:     "Storefront Builder",
		Version:   s.version,
		SessionID: r.URL.Query().Get("session"),
	}
	if d.SessionID != "" {
		if _, err := s.sessions.Get(d.SessionID); err != nil {
			d.SessionID = ""
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := editorPage(d).Render(r.Context(), w); err != nil {
		loggerFrom(r.Context()).Warn(r.Context(), err, "Could not render editor page")
	}
}
