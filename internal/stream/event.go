// Package stream drives one AI generation request: it reads the service's
// event stream, accumulates code durably, and recovers partial output when
// the stream fails.
package stream

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Kind discriminates stream events.
type Kind string

const (
	KindStatus     Kind = "status"
	KindToolStart  Kind = "tool_start"
	KindToolResult Kind = "tool_result"
	KindScreenshot Kind = "screenshot"
	KindThinking   Kind = "thinking"
	KindCodeChunk  Kind = "code_chunk"
	KindComplete   Kind = "complete"
	KindError      Kind = "error"
)

// Event is one decoded stream event. The concrete types below are the only
// implementations.
type Event interface {
	Kind() Kind
}

// StatusEvent carries a progress message.
type StatusEvent struct {
	Message string `json:"message"`
}

// ToolStartEvent announces a tool the service started running.
type ToolStartEvent struct {
	Tool    string `json:"tool"`
	Message string `json:"message,omitempty"`
}

// ToolResultEvent reports a finished tool.
type ToolResultEvent struct {
	Tool    string          `json:"tool"`
	Result  string          `json:"result"`
	Details json.RawMessage `json:"details,omitempty"`
}

// ScreenshotEvent carries an encoded preview image.
type ScreenshotEvent struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType,omitempty"`
}

// ThinkingEvent carries reasoning text.
type ThinkingEvent struct {
	Text string `json:"text"`
}

// CodeChunkEvent carries the next piece of generated code.
type CodeChunkEvent struct {
	Chunk string `json:"chunk"`
}

// CompleteEvent ends a successful stream. Code is nil when the service did
// not repeat the full code.
type CompleteEvent struct {
	Code           *string `json:"code"`
	ConversationID string  `json:"conversationId,omitempty"`
}

// ErrorEvent aborts the stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (StatusEvent) Kind() Kind     { return KindStatus }
func (ToolStartEvent) Kind() Kind  { return KindToolStart }
func (ToolResultEvent) Kind() Kind { return KindToolResult }
func (ScreenshotEvent) Kind() Kind { return KindScreenshot }
func (ThinkingEvent) Kind() Kind   { return KindThinking }
func (CodeChunkEvent) Kind() Kind  { return KindCodeChunk }
func (CompleteEvent) Kind() Kind   { return KindComplete }
func (ErrorEvent) Kind() Kind      { return KindError }

// ErrUnknownEvent is returned for well-formed events with an unknown
// discriminator.
var ErrUnknownEvent = apperrors.NewStreamError("ERR_STREAM_UNKNOWN_EVENT", "unknown stream event", nil)

// wireEvent is the union of all event fields as sent by the service.
type wireEvent struct {
	Event          Kind            `json:"event"`
	Message        string          `json:"message"`
	Tool           string          `json:"tool"`
	Result         string          `json:"result"`
	Details        json.RawMessage `json:"details"`
	Image          string          `json:"image"`
	MimeType       string          `json:"mimeType"`
	Text           string          `json:"text"`
	Chunk          string          `json:"chunk"`
	Content        string          `json:"content"`
	Code           *string         `json:"code"`
	ConversationID string          `json:"conversationId"`
	Error          string          `json:"error"`
}

// DecodeEvent decodes the JSON body of one data line.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperrors.NewStreamError("ERR_STREAM_MALFORMED", "malformed stream event", err)
	}

	switch w.Event {
	case KindStatus:
		return StatusEvent{Message: w.Message}, nil
	case KindToolStart:
		return ToolStartEvent{Tool: w.Tool, Message: w.Message}, nil
	case KindToolResult:
		return ToolResultEvent{Tool: w.Tool, Result: w.Result, Details: w.Details}, nil
	case KindScreenshot:
		return ScreenshotEvent{Image: w.Image, MimeType: w.MimeType}, nil
	case KindThinking:
		text := w.Text
		if text == "" {
			text = w.Content
		}
		return ThinkingEvent{Text: text}, nil
	case KindCodeChunk:
		chunk := w.Chunk
		if chunk == "" {
			chunk = w.Content
		}
		return CodeChunkEvent{Chunk: chunk}, nil
	case KindComplete:
		return CompleteEvent{Code: w.Code, ConversationID: w.ConversationID}, nil
	case KindError:
		msg := w.Message
		if msg == "" {
			msg = w.Error
		}
		return ErrorEvent{Message: msg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Event)
	}
}

// Encode renders an event in the wire format, used when relaying events to
// browser clients.
func Encode(ev Event) ([]byte, error) {
	w := wireEvent{Event: ev.Kind()}
	switch e := ev.(type) {
	case StatusEvent:
		w.Message = e.Message
	case ToolStartEvent:
		w.Tool, w.Message = e.Tool, e.Message
	case ToolResultEvent:
		w.Tool, w.Result, w.Details = e.Tool, e.Result, e.Details
	case ScreenshotEvent:
		w.Image, w.MimeType = e.Image, e.MimeType
	case ThinkingEvent:
		w.Text = e.Text
	case CodeChunkEvent:
		w.Chunk = e.Chunk
	case CompleteEvent:
		w.Code, w.ConversationID = e.Code, e.ConversationID
	case ErrorEvent:
		w.Message = e.Message
	}

	return json.Marshal(struct {
		Event          Kind            `json:"event"`
		Message        string          `json:"message,omitempty"`
		Tool           string          `json:"tool,omitempty"`
		Result         string          `json:"result,omitempty"`
		Details        json.RawMessage `json:"details,omitempty"`
		Image          string          `json:"image,omitempty"`
		MimeType       string          `json:"mimeType,omitempty"`
		Text           string          `json:"text,omitempty"`
		Chunk          string          `json:"chunk,omitempty"`
		Code           *string         `json:"code,omitempty"`
		ConversationID string          `json:"conversationId,omitempty"`
	}{w.Event, w.Message, w.Tool, w.Result, w.Details, w.Image, w.MimeType, w.Text, w.Chunk, w.Code, w.ConversationID})
}
