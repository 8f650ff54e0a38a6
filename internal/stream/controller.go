package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
)

const (
	DefaultHardTimeout       = 3 * time.Minute
	DefaultInactivityTimeout = 120 * time.Second
	DefaultCompleteDelay     = 1500 * time.Millisecond
)

var (
	// ErrBusy is returned when a generation is already running.
	ErrBusy = apperrors.NewStreamError(apperrors.ErrCodeGenerationBusy, "a generation is already running", nil)
	// ErrInactivity is the cause recorded when the watchdog fired.
	ErrInactivity = apperrors.NewStreamError("ERR_STREAM_INACTIVE", "no data received before the inactivity timeout", nil)
	// ErrIncomplete is the cause recorded when the stream ended without a
	// complete event.
	ErrIncomplete = apperrors.NewStreamError("ERR_STREAM_INCOMPLETE", "stream ended before completion", nil)
)

// PartialWarning is shown when failed generation still produced code.
const PartialWarning = "Generation did not finish; partial code was saved"

// Config configures a Controller.
type Config struct {
	URL               string
	HardTimeout       time.Duration
	InactivityTimeout time.Duration
	CompleteDelay     time.Duration
	Client            *http.Client
}

// Observer receives every event as it is applied.
type Observer func(Event)

// Result is the outcome of one generation.
type Result struct {
	Code           string   `json:"code"`
	ConversationID string   `json:"conversationId,omitempty"`
	Partial        bool     `json:"partial"`
	Warning        string   `json:"warning,omitempty"`
	Session        Snapshot `json:"session"`
}

// Controller runs one generation at a time against the AI service.
type Controller struct {
	cfg    Config
	client *http.Client
	logger logging.Logger

	mu      sync.Mutex
	busy    bool
	release *time.Timer
}

// NewController creates a controller.
func NewController(cfg Config, logger logging.Logger) *Controller {
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = DefaultHardTimeout
	}
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultInactivityTimeout
	}
	if cfg.CompleteDelay < 0 {
		cfg.CompleteDelay = 0
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Controller{
		cfg:    cfg,
		client: client,
		logger: logger.WithComponent("stream"),
	}
}

// Busy reports whether a generation is running or still displaying its
// result.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.busy
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return false
	}
	c.busy = true
	if c.release != nil {
		c.release.Stop()
		c.release = nil
	}

	return true
}

func (c *Controller) releaseAfter(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d <= 0 {
		c.busy = false
		return
	}
	c.release = time.AfterFunc(d, func() {
		c.mu.Lock()
		c.busy = false
		c.release = nil
		c.mu.Unlock()
	})
}

// Generate streams one generation. sink receives the code backup after every
// chunk. On success the result carries the adopted code. On failure the
// result still carries the best partial code, with Partial set, alongside a
// non-nil error; callers should promote it rather than discard it.
func (c *Controller) Generate(ctx context.Context, req Request, sink func(string), obs Observer) (Result, error) {
	if !c.acquire() {
		return Result{}, ErrBusy
	}

	sess := NewSession(sink)
	res, err := c.run(ctx, req, sess, obs)

	if err != nil {
		c.releaseAfter(0)
		return c.recoverPartial(ctx, sess, err)
	}

	c.releaseAfter(c.cfg.CompleteDelay)
	return res, nil
}

func (c *Controller) run(ctx context.Context, req Request, sess *Session, obs Observer) (Result, error) {
	if !req.References.ShouldAnalyze() {
		req.References = nil
	} else if err := req.References.Validate(); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.HardTimeout)
	defer cancel()

	var inactive atomic.Bool
	watchdog := time.AfterFunc(c.cfg.InactivityTimeout, func() {
		inactive.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, apperrors.NewInternalError(apperrors.ErrCodeInternalError, "encode generation request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, apperrors.NewNetworkError(apperrors.ErrCodeGenerationFailed, "build generation request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	op := logging.StartOperation(c.logger, "generate")
	c.logger.Info(ctx, "Starting generation",
		"vendor", req.VendorID,
		"editing_existing", req.IsEditingExisting,
		"prompt", logging.Truncate(req.Prompt, 80))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, c.cause(ctx, &inactive, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, apperrors.NewNetworkError(apperrors.ErrCodeGenerationFailed,
			fmt.Sprintf("generation service returned %d", resp.StatusCode), errors.New(string(bytes.TrimSpace(msg))))
	}

	reader := NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			return Result{}, ErrIncomplete
		}
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				c.logger.Debug(ctx, "Skipping unknown stream event", "error", err.Error())
				continue
			}
			if ctx.Err() != nil {
				return Result{}, c.cause(ctx, &inactive, err)
			}
			var appErr *apperrors.Error
			if errors.As(err, &appErr) {
				c.logger.Warn(ctx, err, "Skipping malformed stream event")
				continue
			}
			return Result{}, apperrors.NewNetworkError(apperrors.ErrCodeGenerationFailed, "read generation stream", err)
		}

		watchdog.Reset(c.cfg.InactivityTimeout)
		sess.Apply(ev)
		if obs != nil {
			obs(ev)
		}

		switch e := ev.(type) {
		case ErrorEvent:
			return Result{}, apperrors.NewStreamError(apperrors.ErrCodeGenerationFailed, e.Message, nil)
		case CompleteEvent:
			code := sess.FinalCode()
			op.End(ctx, "bytes", len(code))
			return Result{
				Code:           code,
				ConversationID: e.ConversationID,
				Session:        sess.Snapshot(),
			}, nil
		}
	}
}

// cause attributes a transport failure to the watchdog, the hard timeout or
// the caller.
func (c *Controller) cause(ctx context.Context, inactive *atomic.Bool, err error) error {
	switch {
	case inactive.Load():
		return ErrInactivity
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.NewStreamError("ERR_STREAM_TIMEOUT", "generation exceeded the time limit", context.DeadlineExceeded)
	default:
		return apperrors.NewNetworkError(apperrors.ErrCodeGenerationFailed, "generation stream failed", err)
	}
}

// recoverPartial promotes the best partial code after a failure.
func (c *Controller) recoverPartial(ctx context.Context, sess *Session, cause error) (Result, error) {
	code := sess.Code.Best()
	snap := sess.Snapshot()

	if code == "" {
		c.logger.Warn(ctx, cause, "Generation failed without output")
		return Result{Session: snap}, apperrors.NewStreamError(apperrors.ErrCodeGenerationFailed, "generation failed", cause)
	}

	c.logger.Warn(ctx, cause, "Generation failed; keeping partial code", "bytes", len(code))
	return Result{
			Code:           code,
			ConversationID: snap.ConversationID,
			Partial:        true,
			Warning:        PartialWarning,
			Session:        snap,
		}, apperrors.NewStreamError(apperrors.ErrCodeGenerationPartial, PartialWarning, cause).
			WithContext("bytes", len(code))
}
