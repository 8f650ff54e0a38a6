package stream

import (
	"encoding/json"
	"strings"
	"sync"
)

// ToolRecord is one tool the service executed.
type ToolRecord struct {
	Tool    string          `json:"tool"`
	Result  string          `json:"result"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Screenshot is the latest preview image sent by the service.
type Screenshot struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType,omitempty"`
}

// Session is the state of one generation request.
type Session struct {
	Code *Accumulator

	mu             sync.RWMutex
	status         string
	thinking       strings.Builder
	tools          []ToolRecord
	screenshot     *Screenshot
	conversationID string
	complete       *CompleteEvent
	failure        string
}

// Snapshot is a copy of a session's state.
type Snapshot struct {
	Status         string       `json:"status"`
	Thinking       string       `json:"thinking,omitempty"`
	Code           string       `json:"code"`
	Tools          []ToolRecord `json:"tools,omitempty"`
	Screenshot     *Screenshot  `json:"screenshot,omitempty"`
	ConversationID string       `json:"conversationId,omitempty"`
}

// NewSession creates a session whose code backup is passed to sink.
func NewSession(sink func(string)) *Session {
	return &Session{Code: NewAccumulator(sink)}
}

// Apply folds one event into the session.
func (s *Session) Apply(ev Event) {
	if c, ok := ev.(CodeChunkEvent); ok {
		s.Code.Append(c.Chunk)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case StatusEvent:
		s.status = e.Message
	case ToolStartEvent:
		s.status = "Running " + e.Tool
		if e.Message != "" {
			s.status = e.Message
		}
	case ToolResultEvent:
		s.tools = append(s.tools, ToolRecord(e))
	case ScreenshotEvent:
		s.screenshot = &Screenshot{Image: e.Image, MimeType: e.MimeType}
	case ThinkingEvent:
		s.thinking.WriteString(e.Text)
	case CompleteEvent:
		s.complete = &e
		if e.ConversationID != "" {
			s.conversationID = e.ConversationID
		}
		s.status = "Complete"
	case ErrorEvent:
		s.failure = e.Message
		s.status = "Failed"
	}
}

// Completed returns the complete event, if one arrived.
func (s *Session) Completed() (CompleteEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.complete == nil {
		return CompleteEvent{}, false
	}

	return *s.complete, true
}

// Failure returns the message of an error event, if one arrived.
func (s *Session) Failure() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.failure, s.status == "Failed"
}

// FinalCode picks the code a completed session adopts: the complete event's
// code, else the backup, else the raw buffer.
func (s *Session) FinalCode() string {
	if c, ok := s.Completed(); ok && c.Code != nil && *c.Code != "" {
		return *c.Code
	}

	return s.Code.Best()
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:         s.status,
		Thinking:       s.thinking.String(),
		Code:           s.Code.String(),
		Tools:          append([]ToolRecord(nil), s.tools...),
		ConversationID: s.conversationID,
	}
	if s.screenshot != nil {
		shot := *s.screenshot
		snap.Screenshot = &shot
	}

	return snap
}
