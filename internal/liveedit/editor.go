package liveedit

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
)

// Document is the component source the editor reconciles frame mutations
// into. Each method applies one scoped literal patch.
type Document interface {
	PatchText(old, new string) error
	PatchClassList(old, new string) error
	PatchStyle(tag, classList, property, value string) error
}

// Mode is the state of the floating toolbar.
type Mode string

const (
	ModeClosed      Mode = "closed"
	ModeViewing     Mode = "viewing"
	ModeEditingText Mode = "editing"
)

// State is a snapshot of the editor.
type State struct {
	Mode     Mode             `json:"mode"`
	Selected *SelectedElement `json:"selected,omitempty"`
	Draft    string           `json:"draft,omitempty"`
}

var (
	// ErrNotOpen is returned by operations that need a selected element.
	ErrNotOpen = apperrors.NewValidationError("ERR_EDITOR_CLOSED", "no element selected")
	// ErrNotEditing is returned when no text edit is in progress.
	ErrNotEditing = apperrors.NewValidationError("ERR_EDITOR_NOT_EDITING", "not editing text")
	// ErrNotEditable is returned for elements without editable text.
	ErrNotEditable = apperrors.NewValidationError("ERR_EDITOR_NOT_EDITABLE", "element text is not editable")
)

// Editor is the inline editor state machine. It owns the selected element;
// the frame only reports facts.
//
//	closed --click--> viewing <--begin/commit/escape--> editing
//	viewing --escape/close--> closed
//
// A click while open replaces the selection and drops any draft.
type Editor struct {
	filter *OriginFilter
	doc    Document
	logger logging.Logger

	mu       sync.Mutex
	frame    Frame
	offset   Point
	mode     Mode
	selected SelectedElement
	draft    string
	onChange func(State)
}

// NewEditor creates a closed editor. frame may be nil when no preview has
// been rendered yet.
func NewEditor(filter *OriginFilter, doc Document, frame Frame, logger logging.Logger) *Editor {
	if logger == nil {
		logger = logging.Nop()
	}

	return &Editor{
		filter: filter,
		doc:    doc,
		frame:  frame,
		logger: logger.WithComponent("liveedit"),
		mode:   ModeClosed,
	}
}

// SetFrame swaps the frame after a re-render. The selection is looked up
// again in the new frame and survives as long as the element still exists;
// an element that is gone closes the editor. A draft in progress is kept.
func (e *Editor) SetFrame(f Frame) {
	e.mu.Lock()
	e.frame = f
	mode, sel := e.mode, e.selected.Selector
	e.mu.Unlock()

	if mode == ModeClosed {
		return
	}

	var text string
	var err error
	if f == nil {
		err = ErrElementNotFound
	} else {
		text, err = f.Text(sel)
	}

	e.mu.Lock()
	var changed bool
	switch {
	case e.mode == ModeClosed || e.selected.Selector != sel:
		// A click or close raced the re-render and already updated state.
	case err != nil:
		changed = e.closeLocked()
	case e.mode == ModeViewing:
		text = strings.TrimSpace(text)
		changed = text != e.selected.TextValue
		e.selected.TextValue = text
	}
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// SetFrameOffset records where the frame sits on the page.
func (e *Editor) SetFrameOffset(p Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offset = p
}

// OnChange registers a callback receiving every state change.
func (e *Editor) OnChange(fn func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// State returns a snapshot.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stateLocked()
}

func (e *Editor) stateLocked() State {
	st := State{Mode: e.mode}
	if e.mode != ModeClosed {
		sel := e.selected
		sel.ClassList = append([]string(nil), e.selected.ClassList...)
		st.Selected = &sel
	}
	if e.mode == ModeEditingText {
		st.Draft = e.draft
	}

	return st
}

func (e *Editor) notify() {
	e.mu.Lock()
	fn := e.onChange
	st := e.stateLocked()
	e.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// Receive handles one cross-frame message. Messages from any origin other
// than the hosting page are dropped without touching state. It reports
// whether the message was acted on.
func (e *Editor) Receive(ctx context.Context, env Envelope) bool {
	if e.filter == nil || !e.filter.Allow(env.Origin) {
		e.logger.Debug(ctx, "Dropped cross-origin message", "origin", env.Origin, "type", env.Data.Type)
		return false
	}

	switch env.Data.Type {
	case ElementClickedLive, ElementSelected:
		click, err := DecodeClick(env.Data)
		if err != nil {
			e.logger.Debug(ctx, "Dropped malformed click", "error", err.Error())
			return false
		}
		e.open(click)
	case PageChanged:
		e.Close()
	default:
		return false
	}

	return true
}

func (e *Editor) open(c ElementClick) {
	e.mu.Lock()
	e.selected = NewSelection(c, e.offset)
	e.mode = ModeViewing
	e.draft = ""
	e.mu.Unlock()

	e.notify()
}

// BeginEdit switches from viewing to editing the element's text.
func (e *Editor) BeginEdit() error {
	e.mu.Lock()
	switch {
	case e.mode == ModeClosed:
		e.mu.Unlock()
		return ErrNotOpen
	case e.selected.Type == ElementImage || e.selected.Type == ElementContainer:
		e.mu.Unlock()
		return ErrNotEditable
	}
	e.mode = ModeEditingText
	e.draft = e.selected.TextValue
	e.mu.Unlock()

	e.notify()
	return nil
}

// SetDraft updates the uncommitted text.
func (e *Editor) SetDraft(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode != ModeEditingText {
		return ErrNotEditing
	}
	e.draft = text

	return nil
}

// Commit applies the draft. The frame is patched first, then the source; if
// the source patch fails the frame gets back the text it showed before, so
// the two never disagree.
func (e *Editor) Commit(ctx context.Context) error {
	e.mu.Lock()
	if e.mode != ModeEditingText {
		e.mu.Unlock()
		return ErrNotEditing
	}
	sel, old, next, frame := e.selected.Selector, e.selected.TextValue, e.draft, e.frame
	e.mu.Unlock()

	if next == old {
		e.toViewing(old)
		return nil
	}

	shown := old
	if frame != nil {
		if t, err := frame.Text(sel); err == nil {
			shown = t
		}
	}

	e.mutateFrame(ctx, frame, func() error { return frame.SetText(sel, next) })

	if err := e.doc.PatchText(old, next); err != nil {
		e.mutateFrame(ctx, frame, func() error { return frame.SetText(sel, shown) })
		e.toViewing(old)
		return err
	}

	e.toViewing(next)
	return nil
}

func (e *Editor) toViewing(text string) {
	e.mu.Lock()
	e.selected.TextValue = text
	e.mode = ModeViewing
	e.draft = ""
	e.mu.Unlock()

	e.notify()
}

// SetClasses replaces the element's class list in the frame and the source.
func (e *Editor) SetClasses(ctx context.Context, classes string) error {
	e.mu.Lock()
	if e.mode == ModeClosed {
		e.mu.Unlock()
		return ErrNotOpen
	}
	sel, tag, old, frame := e.selected.Selector, e.selected.Tag, e.selected.Classes(), e.frame
	e.mu.Unlock()

	fields := strings.Fields(classes)
	next := strings.Join(fields, " ")
	if next == old {
		return nil
	}

	e.mutateFrame(ctx, frame, func() error { return frame.SetClassName(sel, next) })

	if err := e.doc.PatchClassList(old, next); err != nil {
		reverted := SelectorFor(tag, fields)
		e.mutateFrame(ctx, frame, func() error { return frame.SetClassName(reverted, old) })
		return err
	}

	e.mu.Lock()
	e.selected.ClassList = fields
	e.selected.Selector = SelectorFor(tag, fields)
	e.mu.Unlock()

	e.notify()
	return nil
}

// SetStyle sets one inline style property in the frame and the source.
func (e *Editor) SetStyle(ctx context.Context, property, value string) error {
	e.mu.Lock()
	if e.mode == ModeClosed {
		e.mu.Unlock()
		return ErrNotOpen
	}
	sel, tag, classes, frame := e.selected.Selector, e.selected.Tag, e.selected.Classes(), e.frame
	e.mu.Unlock()

	var prev string
	if sr, ok := frame.(interface {
		Style(Selector, string) (string, error)
	}); ok {
		prev, _ = sr.Style(sel, property)
	}

	e.mutateFrame(ctx, frame, func() error { return frame.SetStyle(sel, property, value) })

	if err := e.doc.PatchStyle(tag, classes, property, value); err != nil {
		e.mutateFrame(ctx, frame, func() error { return frame.SetStyle(sel, property, prev) })
		return err
	}

	return nil
}

// Escape reverts a draft while editing and closes the editor while viewing.
func (e *Editor) Escape() {
	e.mu.Lock()
	switch e.mode {
	case ModeEditingText:
		e.mode = ModeViewing
		e.draft = ""
	case ModeViewing:
		e.closeLocked()
	default:
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.notify()
}

// Close drops the selection.
func (e *Editor) Close() {
	e.mu.Lock()
	changed := e.closeLocked()
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

func (e *Editor) closeLocked() bool {
	if e.mode == ModeClosed {
		return false
	}
	e.mode = ModeClosed
	e.selected = SelectedElement{}
	e.draft = ""

	return true
}

// mutateFrame applies an optimistic frame change. A frame that cannot apply
// it is stale and only logged; the source stays authoritative.
func (e *Editor) mutateFrame(ctx context.Context, frame Frame, fn func() error) {
	if frame == nil {
		return
	}
	if err := fn(); err != nil {
		e.logger.Debug(ctx, "Frame patch skipped", "error", err.Error())
	}
}
