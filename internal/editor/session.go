// Package editor ties the document, its history, backups, preview, inline
// editor and AI generation together into one editing session.
//
// A Session is the single owner of its component source. Every mutating
// operation checkpoints the text it started from before the change is
// applied, so Undo always returns to the state the user last saw.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/conneroisu/storefront/internal/backup"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/history"
	"github.com/conneroisu/storefront/internal/liveedit"
	"github.com/conneroisu/storefront/internal/logging"
	"github.com/conneroisu/storefront/internal/preview"
	"github.com/conneroisu/storefront/internal/section"
	"github.com/conneroisu/storefront/internal/stream"
	"github.com/conneroisu/storefront/internal/templates"
	"github.com/conneroisu/storefront/internal/tools"
)

// DefaultSource is the document a session starts with when none is given.
const DefaultSource = `component Storefront {
  props {
    vendorName: string = "Your Store"
  }
  render {
    <main className="p-8">
      <h1 className="text-3xl font-bold">Welcome to Your Store</h1>
      <p className="mt-4 text-base text-gray-600">Browse our latest products.</p>
    </main>
  }
}
`

// DefaultHostOrigin is assumed when no hosting origin is configured.
const DefaultHostOrigin = "http://localhost:8080"

// generationSuffix keys the in-flight AI backup apart from the document
// backup.
const generationSuffix = "#generation"

// Vendor identifies whose storefront is being edited.
type Vendor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
}

// Options configures a Session.
type Options struct {
	Vendor Vendor
	Source string

	// HostOrigin is the origin of the page hosting the preview frame.
	HostOrigin string

	HistoryCapacity int
	Store           backup.Store
	Renderer        preview.Renderer
	Preview         preview.Options
	Stream          stream.Config
	Catalog         *templates.Catalog
	Logger          logging.Logger
}

// Session is one open document.
type Session struct {
	id      string
	vendor  Vendor
	store   backup.Store
	catalog *templates.Catalog
	logger  logging.Logger

	history   *history.Manager
	previewer *preview.Previewer
	frame     *liveedit.HTMLFrame
	live      *liveedit.Editor
	generator *stream.Controller

	mu             sync.Mutex
	text           string
	conversationID string

	persistChunk rate.Sometimes
	events       broadcaster
}

// New creates a session. The preview is scheduled for the initial source.
func New(id string, opts Options) (*Session, error) {
	if opts.Renderer == nil {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "a preview renderer is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Store == nil {
		opts.Store = backup.NewMemoryStore()
	}
	if opts.Catalog == nil {
		opts.Catalog = templates.Default()
	}
	if opts.HistoryCapacity == 0 {
		opts.HistoryCapacity = history.DefaultCapacity
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if opts.HostOrigin == "" {
		opts.HostOrigin = DefaultHostOrigin
	}

	filter, err := liveedit.NewOriginFilter(opts.HostOrigin)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.With("session", id, "vendor", opts.Vendor.ID)

	s := &Session{
		id:           id,
		vendor:       opts.Vendor,
		store:        opts.Store,
		catalog:      opts.Catalog,
		logger:       logger.WithComponent("editor"),
		history:      history.New(opts.HistoryCapacity),
		frame:        &liveedit.HTMLFrame{},
		text:         opts.Source,
		persistChunk: rate.Sometimes{Interval: time.Second},
	}

	s.previewer = preview.New(opts.Renderer, preview.Props{
		VendorID:   opts.Vendor.ID,
		VendorName: opts.Vendor.Name,
	}, logger, opts.Preview)
	s.previewer.OnFrame(s.onFrame)
	s.previewer.OnError(func(err error) {
		s.publish(EventPreviewError, map[string]string{"message": err.Error()})
	})

	s.live = liveedit.NewEditor(filter, s, nil, logger)
	s.live.OnChange(func(st liveedit.State) {
		s.publish(EventEditor, st)
	})

	if opts.Stream.URL != "" {
		s.generator = stream.NewController(opts.Stream, logger)
	}

	s.previewer.Schedule(opts.Source)

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Vendor returns the vendor being edited.
func (s *Session) Vendor() Vendor {
	return s.vendor
}

// Source returns the current document.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.text
}

// Sections parses the current document.
func (s *Session) Sections() []section.Section {
	return section.Parse(s.Source())
}

// Snapshot is the session state sent to clients.
type Snapshot struct {
	ID         string            `json:"id"`
	Vendor     Vendor            `json:"vendor"`
	Source     string            `json:"source"`
	Sections   []section.Section `json:"sections"`
	CanUndo    bool              `json:"canUndo"`
	CanRedo    bool              `json:"canRedo"`
	Editor     liveedit.State    `json:"editor"`
	Generating bool              `json:"generating"`
	PreviewKey uint64            `json:"previewKey"`
}

// Snapshot returns the session state.
func (s *Session) Snapshot() Snapshot {
	src := s.Source()
	frame, _ := s.previewer.Current()

	return Snapshot{
		ID:         s.id,
		Vendor:     s.vendor,
		Source:     src,
		Sections:   section.Parse(src),
		CanUndo:    s.canUndo(src),
		CanRedo:    s.history.CanRedo(),
		Editor:     s.live.State(),
		Generating: s.generator != nil && s.generator.Busy(),
		PreviewKey: frame.Key,
	}
}

func (s *Session) canUndo(src string) bool {
	if s.history.CanUndo() {
		return true
	}
	cur, ok := s.history.Current()
	return ok && cur != src
}

// Subscribe returns a channel of session events and a function that ends the
// subscription. Slow subscribers miss events rather than block the session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

func (s *Session) publish(t EventType, data interface{}) {
	s.events.publish(Event{Type: t, SessionID: s.id, Data: data, Timestamp: time.Now()})
}

// Close stops pending work and ends all subscriptions.
func (s *Session) Close() {
	s.previewer.Stop()
	s.live.Close()
	s.events.close()
}

func (s *Session) onFrame(f preview.Frame) {
	if err := s.frame.Load(f.HTML); err != nil {
		s.logger.Warn(context.Background(), err, "Could not mirror preview frame")
	}
	s.live.SetFrame(s.frame)
	s.publish(EventPreview, f)
}

// SetSource replaces the document as the user types. It is backed up and
// previewed but not checkpointed; the next mutating operation checkpoints the
// typed text.
func (s *Session) SetSource(ctx context.Context, text string) {
	s.mu.Lock()
	if text == s.text {
		s.mu.Unlock()
		return
	}
	s.text = text
	s.mu.Unlock()

	s.changed(ctx, text)
}

// Replace swaps in a whole new document after checking that its braces
// balance.
func (s *Session) Replace(ctx context.Context, text string) error {
	if err := section.Validate(text); err != nil {
		return err
	}

	_, err := s.mutate(ctx, "replace", func(src string) (string, error) {
		if src == text {
			return src, noChange("The document is already up to date")
		}
		return text, nil
	})

	return err
}

// mutate checkpoints the current text and applies fn. fn returning its input
// unchanged, or an error, leaves the document and history untouched.
func (s *Session) mutate(ctx context.Context, op string, fn func(src string) (string, error)) (string, error) {
	s.mu.Lock()
	cur := s.text
	next, err := fn(cur)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug(ctx, "Edit rejected", "op", op, "error", err.Error())
		return cur, err
	}
	if next == cur {
		s.mu.Unlock()
		return cur, noChange("Nothing changed")
	}
	s.history.Checkpoint(cur)
	s.text = next
	s.mu.Unlock()

	s.logger.Debug(ctx, "Applied edit", "op", op, "bytes", len(next))
	s.changed(ctx, next)
	s.publish(EventHistory, map[string]bool{"canUndo": true, "canRedo": false})

	return next, nil
}

// changed runs the side effects of every accepted document change.
func (s *Session) changed(ctx context.Context, text string) {
	s.saveBackup(ctx, s.vendor.ID, text)
	s.previewer.Schedule(text)
	s.publish(EventSource, map[string]string{"source": text})
}

func (s *Session) saveBackup(ctx context.Context, key, text string) {
	if s.vendor.ID == "" {
		return
	}
	if err := s.store.Save(context.WithoutCancel(ctx), key, text); err != nil {
		s.logger.Warn(ctx, err, "Backup failed", "key", key)
	}
}

func noChange(msg string) error {
	return apperrors.NewValidationError(apperrors.ErrCodeNoChange, msg)
}

// ApplyTool runs a direct manipulation tool over the document.
func (s *Session) ApplyTool(ctx context.Context, name string, params tools.Params) (string, error) {
	return s.mutate(ctx, "tool:"+name, func(src string) (string, error) {
		return tools.Run(name, src, params)
	})
}

// DeleteSection removes the named section.
func (s *Session) DeleteSection(ctx context.Context, name string) (string, error) {
	return s.mutate(ctx, "delete-section", func(src string) (string, error) {
		target, ok := section.Find(section.Parse(src), name)
		if !ok {
			return src, apperrors.ErrSectionNotFound(name)
		}
		return section.Delete(src, target), nil
	})
}

// Direction of a section move.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MoveSection swaps the named section with its neighbor.
func (s *Session) MoveSection(ctx context.Context, name string, dir Direction) (string, error) {
	return s.mutate(ctx, "move-section", func(src string) (string, error) {
		sections := section.Parse(src)
		target, ok := section.Find(sections, name)
		if !ok {
			return src, apperrors.ErrSectionNotFound(name)
		}

		var out string
		switch dir {
		case Up:
			out = section.MoveUp(src, target, sections)
		case Down:
			out = section.MoveDown(src, target, sections)
		default:
			return src, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "direction must be up or down")
		}
		if out == src {
			return src, noChange("Section is already " + map[Direction]string{Up: "first", Down: "last"}[dir])
		}
		return out, nil
	})
}

// InsertTemplate applies a catalog template.
func (s *Session) InsertTemplate(ctx context.Context, id string) (string, error) {
	tmpl, err := s.catalog.Get(id)
	if err != nil {
		return s.Source(), err
	}

	return s.mutate(ctx, "insert-template", func(src string) (string, error) {
		out := tmpl.Apply(src)
		if out == src {
			return src, noChange("Could not insert " + tmpl.Name + " here")
		}
		return out, nil
	})
}

// Undo returns to the previous snapshot. When the cursor sits at the top and
// the document has moved on since, the live text is saved first so Redo can
// come back to it.
func (s *Session) Undo(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.history.AtTop() {
		if cur, ok := s.history.Current(); ok && cur != s.text {
			s.history.Save(s.text)
		}
	}
	prev, ok := s.history.Undo()
	if !ok {
		text := s.text
		s.mu.Unlock()
		return text, apperrors.NewValidationError(apperrors.ErrCodeNothingToUndo, "Nothing to undo")
	}
	s.text = prev
	s.mu.Unlock()

	s.changed(ctx, prev)
	s.publishHistory()
	return prev, nil
}

// Redo moves forward again after an Undo.
func (s *Session) Redo(ctx context.Context) (string, error) {
	s.mu.Lock()
	next, ok := s.history.Redo()
	if !ok {
		text := s.text
		s.mu.Unlock()
		return text, apperrors.NewValidationError(apperrors.ErrCodeNothingToRedo, "Nothing to redo")
	}
	s.text = next
	s.mu.Unlock()

	s.changed(ctx, next)
	s.publishHistory()
	return next, nil
}

func (s *Session) publishHistory() {
	s.publish(EventHistory, map[string]bool{
		"canUndo": s.canUndo(s.Source()),
		"canRedo": s.history.CanRedo(),
	})
}

// PendingBackup returns the stored backup when it differs from the open
// document, so the caller can offer to restore it.
func (s *Session) PendingBackup(ctx context.Context) (backup.Entry, bool) {
	if s.vendor.ID == "" {
		return backup.Entry{}, false
	}
	e, err := s.store.Load(ctx, s.vendor.ID)
	if err != nil {
		if !errors.Is(err, backup.ErrNotFound) {
			s.logger.Warn(ctx, err, "Could not read backup")
		}
		return backup.Entry{}, false
	}

	return e, e.Text != s.Source()
}

// Restore replaces the document with the vendor's backup. Backups may hold
// partial AI output, so the text is not brace-checked.
func (s *Session) Restore(ctx context.Context) (backup.Entry, error) {
	if s.vendor.ID == "" {
		return backup.Entry{}, apperrors.NewValidationError(apperrors.ErrCodeNoBackup, "session has no vendor")
	}
	e, err := s.store.Load(ctx, s.vendor.ID)
	if err != nil {
		return backup.Entry{}, err
	}

	_, err = s.mutate(ctx, "restore", func(src string) (string, error) {
		if src == e.Text {
			return src, noChange("The document already matches the backup")
		}
		return e.Text, nil
	})

	return e, err
}

// Render renders the current document now, bypassing the debounce.
func (s *Session) Render(ctx context.Context) (preview.Frame, error) {
	return s.previewer.Update(ctx, s.Source())
}

// Frame returns the last rendered frame and the last render error.
func (s *Session) Frame() (preview.Frame, error) {
	return s.previewer.Current()
}
