package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/preview"
	"github.com/conneroisu/storefront/internal/section"
	"github.com/conneroisu/storefront/internal/stream"
)

const (
	hero   = `component Hero { render { <h1 className="text-xl">Hi</h1> } }`
	origin = "http://localhost:8080"
)

func renderBody(_ context.Context, code string, _ preview.Props) (string, error) {
	r, ok := section.Find(section.Parse(code), "render")
	if !ok {
		return "", fmt.Errorf("no render section")
	}
	body := strings.ReplaceAll(r.Body(code), "className=", "class=")
	return "<html><body>" + body + "</body></html>", nil
}

type testEnv struct {
	srv      *Server
	http     *httptest.Server
	sessions *editor.Manager
}

func newEnv(t *testing.T, base editor.Options, opts Options) *testEnv {
	t.Helper()

	if base.Renderer == nil {
		base.Renderer = preview.RendererFunc(renderBody)
	}
	base.HostOrigin = origin
	base.Preview.Debounce = time.Hour

	sessions := editor.NewManager(base)
	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{origin}
	}
	srv, err := New(sessions, opts)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
		sessions.Close()
	})

	return &testEnv{srv: srv, http: ts, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}

	return resp, out
}

func (e *testEnv) create(t *testing.T, source string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{
		"vendor": map[string]string{"id": "v1", "name": "Acme"},
		"source": source,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestNewRequiresOrigins(t *testing.T) {
	_, err := New(editor.NewManager(editor.Options{}), Options{})
	assert.Error(t, err)

	_, err = New(nil, Options{AllowedOrigins: []string{origin}})
	assert.Error(t, err)
}

func TestHealthAndCatalogs(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{Version: "1.2.3"})

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	_, body = env.do(t, http.MethodGet, "/api/tools", nil)
	assert.NotEmpty(t, body["tools"])

	_, body = env.do(t, http.MethodGet, "/api/templates", nil)
	assert.NotEmpty(t, body["templates"])
}

func TestSessionLifecycle(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	resp, body := env.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, hero, body["source"])
	assert.Equal(t, false, body["canUndo"])

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/tools/font-size", map[string]string{"direction": "increase"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["source"], "text-2xl")
	assert.Equal(t, true, body["canUndo"])

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/undo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, hero, body["source"])

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/redo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["source"], "text-2xl")

	resp, _ = env.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ERR_SESSION_NOT_FOUND", errorCode(body))
}

func TestUserErrorsAreUnprocessable(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	resp, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/undo", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ERR_NOTHING_TO_UNDO", errorCode(body))

	resp, body = env.do(t, http.MethodPut, "/api/sessions/"+id+"/source", map[string]string{"source": "component A {"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ERR_UNBALANCED_BRACES", errorCode(body))

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/tools/teleport", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/generate", map[string]string{"prompt": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestTypingUpdatesWithoutValidation(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	resp, body := env.do(t, http.MethodPut, "/api/sessions/"+id+"/source", map[string]interface{}{
		"source": "component A {",
		"typing": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "component A {", body["source"])
}

func TestSectionRoutes(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, "component Shop {\n  props {\n    a: string\n  }\n  data {\n    x = 1\n  }\n  render {\n    <main></main>\n  }\n}\n")

	_, body := env.do(t, http.MethodGet, "/api/sessions/"+id+"/sections", nil)
	require.Len(t, body["sections"], 3)

	resp, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/sections/data/move", map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	src := body["source"].(string)
	assert.Less(t, strings.Index(src, "data {"), strings.Index(src, "props {"))

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/sections/data/move", map[string]string{"direction": "up"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ERR_NO_CHANGE", errorCode(body))

	resp, body = env.do(t, http.MethodDelete, "/api/sessions/"+id+"/sections/data", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body["source"], "data {")

	resp, _ = env.do(t, http.MethodDelete, "/api/sessions/"+id+"/sections/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/sections", map[string]string{"template": "no-such-template"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewRoute(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	resp, err := env.http.Client().Get(env.http.URL + "/api/sessions/" + id + "/preview")
	require.NoError(t, err)
	defer resp.Body.Close()
	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Preview-Key"))
	assert.Contains(t, string(html), `<h1 class="text-xl">Hi</h1>`)
	assert.True(t, preview.Instrumented(string(html)))
}

func TestAuditRoute(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	resp, body := env.do(t, http.MethodGet, "/api/sessions/"+id+"/audit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rules []string
	for _, v := range body["violations"].([]interface{}) {
		rules = append(rules, v.(map[string]interface{})["rule"].(string))
	}
	// The test renderer emits a bare document.
	assert.ElementsMatch(t, []string{"html-lang", "document-title"}, rules)
	assert.Contains(t, body["passed"], "image-alt")
}

func TestPreviewFailurePage(t *testing.T) {
	failing := preview.RendererFunc(func(context.Context, string, preview.Props) (string, error) {
		return "", fmt.Errorf("render service down")
	})
	env := newEnv(t, editor.Options{Renderer: failing}, Options{})
	id := env.create(t, hero)

	resp, err := env.http.Client().Get(env.http.URL + "/api/sessions/" + id + "/preview")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(page), "Preview unavailable")
}

func TestIndexPage(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{Version: "9.9.9"})
	id := env.create(t, hero)

	get := func(path string) string {
		resp, err := env.http.Client().Get(env.http.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		page, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		return string(page)
	}

	page := get("/?session=" + id)
	assert.Contains(t, page, "Storefront Builder")
	assert.Contains(t, page, "9.9.9")
	assert.Contains(t, page, id)

	page = get("/?session=missing")
	assert.NotContains(t, page, "missing", "unknown session ids are dropped")
}

func TestIndexPageCarriesInlineToolbar(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	resp, err := env.http.Client().Get(env.http.URL + "/?session=" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)

	assert.Contains(t, page, `<div id="toolbar" role="toolbar" aria-label="Edit element" hidden>`)
	assert.Less(t, strings.Index(page, `id="toolbar"`), strings.Index(page, "<script>"), "toolbar markup precedes the script that binds it")
	for _, cmd := range []string{"commit_text", "commit_classes", "escape", "close"} {
		assert.Contains(t, page, `type: "`+cmd+`"`, cmd)
	}
	assert.Contains(t, page, `ev.type === "editor"`)
}

func TestGenerateRelaysDataLines(t *testing.T) {
	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range []string{
			`{"event":"status","message":"Thinking"}`,
			`{"event":"code_chunk","chunk":"component Foo { render {} }"}`,
			`{"event":"complete","code":null,"conversationId":"c1"}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", l)
			w.(http.Flusher).Flush()
		}
	}))
	defer ai.Close()

	env := newEnv(t, editor.Options{Stream: stream.Config{URL: ai.URL}}, Options{})
	id := env.create(t, hero)

	resp, err := env.http.Client().Post(env.http.URL+"/api/sessions/"+id+"/generate", "application/json",
		strings.NewReader(`{"prompt":"make it a Foo"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []map[string]interface{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.Len(t, events, 4)
	assert.Equal(t, "status", events[0]["event"])
	assert.Equal(t, "complete", events[2]["event"])
	assert.Equal(t, "result", events[3]["event"])
	result := events[3]["result"].(map[string]interface{})
	assert.Equal(t, "component Foo { render {} }", result["code"])

	sess, err := env.sessions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "component Foo { render {} }", sess.Source())
}

func TestGenerateWithoutServiceIsUnavailable(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	resp, err := env.http.Client().Post(env.http.URL+"/api/sessions/"+id+"/generate", "application/json",
		strings.NewReader(`{"prompt":"anything"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var last string
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			last = strings.TrimPrefix(scanner.Text(), "data: ")
		}
	}
	var outcome generateOutcome
	require.NoError(t, json.Unmarshal([]byte(last), &outcome))
	require.NotNil(t, outcome.Error)
	assert.Equal(t, "ERR_CONFIG_INVALID", outcome.Error.Code)
	assert.Nil(t, outcome.Result)
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodGet, "/api/tools", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := env.do(t, http.MethodGet, "/api/tools", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, ErrCodeRateLimited, errorCode(body))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	resp, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is not limited")
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	rl.cleanup(time.Now().Add(visitorTTL + time.Second))
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestWebSocketPushesSessionEvents(t *testing.T) {
	env := newEnv(t, editor.Options{}, Options{})
	id := env.create(t, hero)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws?session=" + id

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example.com"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return env.srv.hub.CountFor(id) == 1 }, time.Second, 10*time.Millisecond)

	r, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/tools/font-size", map[string]string{"direction": "increase"})
	require.Equal(t, http.StatusOK, r.StatusCode)

	for {
		var ev editor.Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if ev.Type == editor.EventSource {
			data, ok := ev.Data.(map[string]interface{})
			require.True(t, ok)
			assert.Contains(t, data["source"], "text-2xl")
			break
		}
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusOf(fmt.Errorf("plain")))
	assert.Equal(t, http.StatusConflict, statusOf(stream.ErrBusy))
}
