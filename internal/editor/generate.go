package editor

import (
	"context"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/section"
	"github.com/conneroisu/storefront/internal/stream"
)

// GenerateRequest is what the user asks the AI to do.
type GenerateRequest struct {
	Prompt     string                  `json:"prompt"`
	References stream.ReferenceWeights `json:"references,omitempty"`
	// NewConversation drops the previous conversation id.
	NewConversation bool `json:"newConversation,omitempty"`
}

// Generate streams an AI edit of the document. Events are published to
// subscribers and passed to obs. A complete generation replaces the document
// when its braces balance. A failed generation that produced code still
// replaces the document with the partial code and returns the error
// alongside the result, so the caller can show it as a warning.
func (s *Session) Generate(ctx context.Context, gr GenerateRequest, obs stream.Observer) (stream.Result, error) {
	if s.generator == nil {
		return stream.Result{}, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "AI generation is not configured")
	}

	s.mu.Lock()
	src := s.text
	if gr.NewConversation {
		s.conversationID = ""
	}
	req := stream.Request{
		Prompt:            gr.Prompt,
		FullCode:          src,
		VendorID:          s.vendor.ID,
		VendorName:        s.vendor.Name,
		Industry:          s.vendor.Industry,
		IsEditingExisting: stream.IsEditingExisting(src, gr.Prompt),
		ConversationID:    s.conversationID,
		References:        gr.References,
	}
	s.mu.Unlock()

	key := s.vendor.ID + generationSuffix
	sink := func(code string) {
		s.publish(EventStreamCode, map[string]string{"code": code})
		s.persistChunk.Do(func() { s.saveBackup(ctx, key, code) })
	}
	relay := func(ev stream.Event) {
		s.publish(EventStream, eventPayload(ev))
		if obs != nil {
			obs(ev)
		}
	}

	res, err := s.generator.Generate(ctx, req, sink, relay)
	s.clearGenerationBackup(ctx, key)

	switch {
	case err == nil:
		if verr := section.Validate(res.Code); verr != nil {
			s.logger.Warn(ctx, verr, "Discarding generated code with unbalanced braces")
			s.publish(EventError, map[string]string{"message": "The generated code was incomplete and was not applied"})
			return res, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "generated code failed validation").
				WithContext("cause", verr.Error())
		}
		s.adopt(ctx, res)
		return res, nil

	case res.Partial && res.Code != "":
		s.adopt(ctx, res)
		s.publish(EventWarning, map[string]string{"message": res.Warning})
		return res, err

	default:
		s.publish(EventError, map[string]string{"message": err.Error()})
		return res, err
	}
}

func (s *Session) adopt(ctx context.Context, res stream.Result) {
	if res.ConversationID != "" {
		s.mu.Lock()
		s.conversationID = res.ConversationID
		s.mu.Unlock()
	}

	_, err := s.mutate(ctx, "generate", func(string) (string, error) {
		return res.Code, nil
	})
	if err != nil && apperrors.CodeOf(err) != apperrors.ErrCodeNoChange {
		s.logger.Warn(ctx, err, "Could not apply generated code")
	}
}

func (s *Session) clearGenerationBackup(ctx context.Context, key string) {
	if s.vendor.ID == "" {
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Debug(ctx, "Could not clear generation backup", "error", err.Error())
	}
}

// ConversationID returns the id the AI service assigned to the last
// generation.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversationID
}

// Generating reports whether a generation is running.
func (s *Session) Generating() bool {
	return s.generator != nil && s.generator.Busy()
}

type streamPayload struct {
	Kind  stream.Kind  `json:"kind"`
	Event stream.Event `json:"event"`
}

func eventPayload(ev stream.Event) streamPayload {
	return streamPayload{Kind: ev.Kind(), Event: ev}
}
