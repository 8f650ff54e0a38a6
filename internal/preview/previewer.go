package preview

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
	"github.com/conneroisu/storefront/internal/section"
)

// DefaultDebounce is the quiet period before a scheduled render runs.
const DefaultDebounce = 800 * time.Millisecond

// ErrStale is returned by Update when a newer render started before this one
// finished. Its result is discarded.
var ErrStale = apperrors.NewRenderError("ERR_RENDER_STALE", "superseded by a newer render", nil)

// Frame is one rendered, instrumented document. Key increases on every
// successful render so the hosting page remounts the frame.
type Frame struct {
	Key        uint64    `json:"key"`
	HTML       string    `json:"html"`
	Source     string    `json:"-"`
	RenderedAt time.Time `json:"renderedAt"`
}

// Options configures a Previewer.
type Options struct {
	Debounce time.Duration
	Timeout  time.Duration

	// ErrorEvery and ErrorBurst rate-limit failure notifications.
	ErrorEvery time.Duration
	ErrorBurst int
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Debounce:   DefaultDebounce,
		Timeout:    30 * time.Second,
		ErrorEvery: 10 * time.Second,
		ErrorBurst: 1,
	}
}

// Previewer renders source through a Renderer and keeps the latest frame.
// A failed render leaves the previous frame in place.
type Previewer struct {
	renderer Renderer
	logger   logging.Logger
	timeout  time.Duration
	limiter  *rate.Limiter

	debouncer *Debouncer[string]

	mu      sync.Mutex
	props   Props
	gen     uint64
	key     uint64
	frame   Frame
	lastErr error
	onFrame func(Frame)
	onError func(error)
}

// New creates a previewer.
func New(renderer Renderer, props Props, logger logging.Logger, opts Options) *Previewer {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ErrorBurst <= 0 {
		opts.ErrorBurst = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}

	limit := rate.Inf
	if opts.ErrorEvery > 0 {
		limit = rate.Every(opts.ErrorEvery)
	}

	p := &Previewer{
		renderer: renderer,
		logger:   logger.WithComponent("preview"),
		timeout:  opts.Timeout,
		limiter:  rate.NewLimiter(limit, opts.ErrorBurst),
		props:    props,
	}
	p.debouncer = NewDebouncer(opts.Debounce, func(src string) {
		ctx := context.Background()
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		_, _ = p.Update(ctx, src)
	})

	return p
}

// OnFrame registers the callback receiving every new frame.
func (p *Previewer) OnFrame(fn func(Frame)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFrame = fn
}

// OnError registers the callback receiving rate-limited render failures.
func (p *Previewer) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// SetProps changes the context props used by later renders.
func (p *Previewer) SetProps(props Props) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props = props
}

// Schedule renders source once no further Schedule call arrives within the
// debounce window.
func (p *Previewer) Schedule(source string) {
	p.debouncer.Trigger(source)
}

// Flush renders the pending source now.
func (p *Previewer) Flush() bool {
	return p.debouncer.Flush()
}

// Stop drops any pending render.
func (p *Previewer) Stop() {
	p.debouncer.Stop()
}

// Update strips comments, renders, instruments and publishes a new frame.
func (p *Previewer) Update(ctx context.Context, source string) (Frame, error) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	props := p.props
	p.mu.Unlock()

	op := logging.StartOperation(p.logger, "render")
	html, err := p.renderer.Render(ctx, section.StripComments(source), props)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		op.End(ctx, "stale", true)
		return Frame{}, ErrStale
	}

	if err != nil {
		p.lastErr = err
		onError := p.onError
		prev := p.frame
		p.mu.Unlock()

		op.EndWithError(ctx, err)
		if onError != nil && p.limiter.Allow() {
			onError(err)
		}
		return prev, err
	}

	p.key++
	frame := Frame{
		Key:        p.key,
		HTML:       Instrument(html),
		Source:     source,
		RenderedAt: time.Now(),
	}
	p.frame = frame
	p.lastErr = nil
	onFrame := p.onFrame
	p.mu.Unlock()

	op.End(ctx, "key", frame.Key, "bytes", len(frame.HTML))
	if onFrame != nil {
		onFrame(frame)
	}

	return frame, nil
}

// Current returns the latest frame and the error of the last render, if it
// failed.
func (p *Previewer) Current() (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.frame, p.lastErr
}
