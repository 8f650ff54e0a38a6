// Package websocket pushes editor session events to browsers and feeds
// inline-edit commands and preview frame messages back into the session.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/conneroisu/storefront/internal/editor"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/liveedit"
)

// Target is the session a connection is attached to. *editor.Session
// satisfies it.
type Target interface {
	ID() string
	Subscribe() (<-chan editor.Event, func())
	HandleFrameMessage(ctx context.Context, env liveedit.Envelope) bool
	SetFrameOffset(p liveedit.Point)
	CommitText(ctx context.Context, text string) error
	CommitClasses(ctx context.Context, classes string) error
	CommitStyle(ctx context.Context, property, value string) error
	EscapeEditor()
	CloseEditor()
}

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// OriginList admits a fixed set of origins, compared by scheme, host and
// port.
type OriginList struct {
	filters []*liveedit.OriginFilter
}

// NewOriginList builds a validator from configured origins.
func NewOriginList(origins ...string) (*OriginList, error) {
	l := &OriginList{}
	for _, o := range origins {
		f, err := liveedit.NewOriginFilter(o)
		if err != nil {
			return nil, err
		}
		l.filters = append(l.filters, f)
	}

	return l, nil
}

// IsAllowedOrigin reports whether origin is one of the list.
func (l *OriginList) IsAllowedOrigin(origin string) bool {
	for _, f := range l.filters {
		if f.Allow(origin) {
			return true
		}
	}

	return false
}

// CommandType names a message sent by the browser.
type CommandType string

const (
	CommandFrameMessage  CommandType = "frame_message"
	CommandFrameOffset   CommandType = "frame_offset"
	CommandCommitText    CommandType = "commit_text"
	CommandCommitClasses CommandType = "commit_classes"
	CommandCommitStyle   CommandType = "commit_style"
	CommandEscape        CommandType = "escape"
	CommandClose         CommandType = "close"
	CommandPing          CommandType = "ping"
)

// Command is one message from the browser.
type Command struct {
	Type     CommandType        `json:"type"`
	Envelope *liveedit.Envelope `json:"envelope,omitempty"`
	Offset   *liveedit.Point    `json:"offset,omitempty"`
	Text     string             `json:"text,omitempty"`
	Classes  string             `json:"classes,omitempty"`
	Property string             `json:"property,omitempty"`
	Value    string             `json:"value,omitempty"`
}

// Reply types sent to a single client, next to the session events every
// client of the session receives.
const (
	ReplyPong  editor.EventType = "pong"
	ReplyError editor.EventType = "command_error"
)

func reply(sessionID string, t editor.EventType, data interface{}) editor.Event {
	return editor.Event{Type: t, SessionID: sessionID, Data: data, Timestamp: time.Now()}
}

func errorReply(sessionID string, err error) editor.Event {
	return reply(sessionID, ReplyError, apperrors.DetailOf(err))
}

func decodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "malformed command")
	}
	if cmd.Type == "" {
		return cmd, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "command without type")
	}

	return cmd, nil
}
