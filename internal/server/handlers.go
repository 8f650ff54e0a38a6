package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conneroisu/storefront/internal/editor"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/stream"
	"github.com/conneroisu/storefront/internal/tools"
)

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}

	return sess, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   s.version,
		"sessions":  s.sessions.Len(),
		"clients":   s.hub.Count(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": tools.All()})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": s.catalog.All()})
}

type createSessionRequest struct {
	Vendor editor.Vendor `json:"vendor"`
	Source string        `json:"source"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Vendor, req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type putSourceRequest struct {
	Source string `json:"source"`
	// Typing marks keystroke updates: they are not validated and the next
	// structural edit checkpoints them.
	Typing bool `json:"typing,omitempty"`
}

func (s *Server) handlePutSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req putSourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Typing {
		sess.SetSource(r.Context(), req.Source)
	} else if err := sess.Replace(r.Context(), req.Source); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sections": sess.Sections()})
}

type insertTemplateRequest struct {
	Template string `json:"template"`
}

func (s *Server) handleInsertTemplate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req insertTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s.respondEdit(w, r, sess, func() (string, error) {
		return sess.InsertTemplate(r.Context(), req.Template)
	})
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.respondEdit(w, r, sess, func() (string, error) {
		return sess.DeleteSection(r.Context(), chi.URLParam(r, "name"))
	})
}

type moveSectionRequest struct {
	Direction editor.Direction `json:"direction"`
}

func (s *Server) handleMoveSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req moveSectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s.respondEdit(w, r, sess, func() (string, error) {
		return sess.MoveSection(r.Context(), chi.URLParam(r, "name"), req.Direction)
	})
}

func (s *Server) handleApplyTool(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	params := tools.Params{}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &params); err != nil {
			writeError(w, r, err)
			return
		}
	}

	s.respondEdit(w, r, sess, func() (string, error) {
		return sess.ApplyTool(r.Context(), chi.URLParam(r, "tool"), params)
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.respondEdit(w, r, sess, func() (string, error) {
		return sess.Undo(r.Context())
	})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.respondEdit(w, r, sess, func() (string, error) {
		return sess.Redo(r.Context())
	})
}

// respondEdit runs one document edit and answers with the new session state.
func (s *Server) respondEdit(w http.ResponseWriter, r *http.Request, sess *editor.Session, edit func() (string, error)) {
	if _, err := edit(); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handlePendingBackup(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	entry, pending := sess.PendingBackup(r.Context())
	if entry.VendorID == "" {
		writeError(w, r, apperrors.NewValidationError(apperrors.ErrCodeNoBackup, "no backup for this session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"backup": entry, "pending": pending})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if _, err := sess.Restore(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// generateOutcome is the last data line of a generation stream.
type generateOutcome struct {
	Event  string            `json:"event"`
	Result *stream.Result    `json:"result,omitempty"`
	Error  *apperrors.Detail `json:"error,omitempty"`
}

// handleGenerate relays the generation as data lines in the same format the
// AI service uses, followed by one "result" line.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req editor.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "prompt is required"))
		return
	}
	if err := req.References.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, apperrors.NewInternalError(apperrors.ErrCodeInternalError, "streaming unsupported", nil))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var mu sync.Mutex
	done := false
	emit := func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	res, err := sess.Generate(r.Context(), req, func(ev stream.Event) {
		data, encErr := stream.Encode(ev)
		if encErr != nil {
			loggerFrom(r.Context()).Warn(r.Context(), encErr, "Could not encode stream event")
			return
		}
		emit(data)
	})

	outcome := generateOutcome{Event: "result", Result: &res}
	if err != nil {
		d := apperrors.DetailOf(err)
		outcome.Error = &d
		if !res.Partial {
			outcome.Result = nil
		}
	}
	data, _ := json.Marshal(outcome)
	emit(data)

	mu.Lock()
	done = true
	mu.Unlock()
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	frame, err := sess.Frame()
	if frame.Key == 0 {
		frame, err = sess.Render(r.Context())
	}
	if frame.Key == 0 {
		if err == nil {
			err = apperrors.NewRenderError(apperrors.ErrCodeRenderFailed, "no preview rendered yet", nil)
		}
		if r.URL.Query().Get("format") == "json" {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusOf(err))
		_ = renderFailurePage(apperrors.DetailOf(err)).Render(r.Context(), w)
		return
	}

	w.Header().Set("X-Preview-Key", strconv.FormatUint(frame.Key, 10))
	if err != nil {
		w.Header().Set("X-Preview-Error", apperrors.DetailOf(err).Message)
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, frame)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(frame.HTML))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	report, err := sess.Audit(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.hub.Serve(w, r, sess)
}
