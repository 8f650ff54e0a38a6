package editor

import (
	"context"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/liveedit"
	"github.com/conneroisu/storefront/internal/section"
)

// ErrCodePatchNotFound is returned when a live patch's old value is no longer
// in the render section.
const ErrCodePatchNotFound = "ERR_PATCH_NOT_FOUND"

// PatchText implements liveedit.Document.
func (s *Session) PatchText(old, new string) error {
	return s.livePatch("patch-text", func(src string) (string, bool) {
		return section.PatchText(src, old, new, section.RenderScope)
	})
}

// PatchClassList implements liveedit.Document.
func (s *Session) PatchClassList(old, new string) error {
	return s.livePatch("patch-classes", func(src string) (string, bool) {
		return section.PatchClassList(src, old, new, section.RenderScope)
	})
}

// PatchStyle implements liveedit.Document.
func (s *Session) PatchStyle(tag, classList, property, value string) error {
	return s.livePatch("patch-style", func(src string) (string, bool) {
		return section.PatchStyle(src, tag, classList, property, value, section.RenderScope)
	})
}

func (s *Session) livePatch(op string, fn func(src string) (string, bool)) error {
	_, err := s.mutate(context.Background(), op, func(src string) (string, error) {
		out, ok := fn(src)
		if !ok {
			return src, apperrors.NewValidationError(ErrCodePatchNotFound, "The edited element is no longer in the source")
		}
		return out, nil
	})

	return err
}

// HandleFrameMessage passes a message posted by the preview frame to the
// inline editor. It reports whether the message was accepted.
func (s *Session) HandleFrameMessage(ctx context.Context, env liveedit.Envelope) bool {
	return s.live.Receive(ctx, env)
}

// SetFrameOffset records where the preview frame sits on the page.
func (s *Session) SetFrameOffset(p liveedit.Point) {
	s.live.SetFrameOffset(p)
}

// EditorState returns the inline editor state.
func (s *Session) EditorState() liveedit.State {
	return s.live.State()
}

// CommitText replaces the selected element's text. The preview frame is
// patched before the source.
func (s *Session) CommitText(ctx context.Context, text string) error {
	if s.live.State().Mode != liveedit.ModeEditingText {
		if err := s.live.BeginEdit(); err != nil {
			return err
		}
	}
	if err := s.live.SetDraft(text); err != nil {
		return err
	}

	return s.live.Commit(ctx)
}

// CommitClasses replaces the selected element's class list.
func (s *Session) CommitClasses(ctx context.Context, classes string) error {
	return s.live.SetClasses(ctx, classes)
}

// CommitStyle sets one inline style property on the selected element.
func (s *Session) CommitStyle(ctx context.Context, property, value string) error {
	return s.live.SetStyle(ctx, property, value)
}

// EscapeEditor reverts a draft, or closes the editor when nothing is being
// edited.
func (s *Session) EscapeEditor() {
	s.live.Escape()
}

// CloseEditor drops the selection.
func (s *Session) CloseEditor() {
	s.live.Close()
}
