package preview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
)

func TestInstrumentBeforeBody(t *testing.T) {
	html := "<html><body><h1>Hi</h1></body></html>"

	got := Instrument(html)

	require.True(t, Instrumented(got))
	assert.True(t, strings.HasSuffix(got, "</script></body></html>"))
	assert.True(t, strings.HasPrefix(got, "<html><body><h1>Hi</h1><script"))
	assert.Contains(t, got, "ELEMENT_CLICKED_LIVE")
	assert.Contains(t, got, "ELEMENT_SELECTED")
	assert.Contains(t, got, "fullText: text", "clicks carry the untruncated text")
}

func TestInstrumentUsesLastBodyTag(t *testing.T) {
	html := "<body><pre>&lt;/body&gt; </body></pre></BODY>"

	got := Instrument(html)
	assert.True(t, strings.HasSuffix(got, "</script></BODY>"))
}

func TestInstrumentWithoutBody(t *testing.T) {
	got := Instrument("<h1>fragment</h1>")

	assert.True(t, strings.HasPrefix(got, "<h1>fragment</h1><script"))
}

func TestDebouncerCoalesces(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	d := NewDebouncer(40*time.Millisecond, func(v string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, v)
	})

	for i := 0; i < 10; i++ {
		d.Trigger(strings.Repeat("x", i+1))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"xxxxxxxxxx"}, calls)
}

func TestDebouncerFlushAndStop(t *testing.T) {
	var n atomic.Int32
	d := NewDebouncer(time.Hour, func(string) { n.Add(1) })

	assert.False(t, d.Flush())
	d.Trigger("a")
	assert.True(t, d.Pending())
	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), n.Load())

	d.Trigger("b")
	d.Stop()
	assert.False(t, d.Pending())
	d.Trigger("c")
	assert.False(t, d.Flush())
	assert.Equal(t, int32(1), n.Load())
}

func newRenderService(t *testing.T, handler func(req renderRequest) renderResponse) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handler(req))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestHTTPRenderer(t *testing.T) {
	srv, _ := newRenderService(t, func(req renderRequest) renderResponse {
		assert.Equal(t, "v1", req.Props.VendorID)
		assert.Equal(t, "Acme", req.Props.VendorName)
		return renderResponse{Success: true, HTML: "<body>" + req.Code + "</body>"}
	})

	r := NewHTTPRenderer(srv.URL, time.Second)
	html, err := r.Render(context.Background(), "component A {}", Props{VendorID: "v1", VendorName: "Acme"})

	require.NoError(t, err)
	assert.Equal(t, "<body>component A {}</body>", html)
}

func TestHTTPRendererFailure(t *testing.T) {
	srv, _ := newRenderService(t, func(renderRequest) renderResponse {
		return renderResponse{Success: false, Error: "syntax error at 1:3"}
	})

	_, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), "x", Props{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRenderFailed, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "syntax error at 1:3")
	assert.True(t, apperrors.IsBackground(err))
}

func TestHTTPRendererUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPRenderer(url, time.Second).Render(context.Background(), "x", Props{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRenderFailed, apperrors.CodeOf(err))
}

func TestPreviewerScheduleCallsRendererOnceWithFinalSource(t *testing.T) {
	var (
		mu    sync.Mutex
		codes []string
	)
	renderer := RendererFunc(func(_ context.Context, code string, _ Props) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		codes = append(codes, code)
		return "<body>ok</body>", nil
	})

	p := New(renderer, Props{}, logging.Nop(), Options{Debounce: 30 * time.Millisecond})
	frames := make(chan Frame, 4)
	p.OnFrame(func(f Frame) { frames <- f })

	for i := 1; i <= 5; i++ {
		p.Schedule(strings.Repeat("a", i))
	}

	select {
	case f := <-frames:
		assert.Equal(t, uint64(1), f.Key)
		assert.True(t, Instrumented(f.HTML))
	case <-time.After(time.Second):
		t.Fatal("no frame rendered")
	}

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"aaaaa"}, codes)
}

func TestPreviewerStripsComments(t *testing.T) {
	var got string
	renderer := RendererFunc(func(_ context.Context, code string, _ Props) (string, error) {
		got = code
		return "<body></body>", nil
	})
	p := New(renderer, Props{}, nil, DefaultOptions())

	_, err := p.Update(context.Background(), "component A { // note\n render { } }")
	require.NoError(t, err)
	assert.Equal(t, "component A { \n render { } }", got)
}

func TestPreviewerKeyIsMonotonic(t *testing.T) {
	p := New(RendererFunc(func(context.Context, string, Props) (string, error) {
		return "<body></body>", nil
	}), Props{}, nil, DefaultOptions())

	var last uint64
	for i := 0; i < 3; i++ {
		f, err := p.Update(context.Background(), "component A {}")
		require.NoError(t, err)
		assert.Greater(t, f.Key, last)
		last = f.Key
	}
}

func TestPreviewerFailureKeepsPreviousFrame(t *testing.T) {
	fail := errors.New("boom")
	var broken atomic.Bool
	p := New(RendererFunc(func(context.Context, string, Props) (string, error) {
		if broken.Load() {
			return "", apperrors.NewRenderError(apperrors.ErrCodeRenderFailed, "render failed", fail)
		}
		return "<body>v1</body>", nil
	}), Props{}, nil, Options{ErrorEvery: time.Hour, ErrorBurst: 1})

	var surfaced atomic.Int32
	p.OnError(func(error) { surfaced.Add(1) })

	first, err := p.Update(context.Background(), "v1")
	require.NoError(t, err)

	broken.Store(true)
	for i := 0; i < 3; i++ {
		got, err := p.Update(context.Background(), "v2")
		require.Error(t, err)
		assert.True(t, errors.Is(err, fail))
		assert.Equal(t, first.Key, got.Key)
	}

	cur, lastErr := p.Current()
	assert.Equal(t, first.HTML, cur.HTML)
	assert.Error(t, lastErr)
	assert.Equal(t, int32(1), surfaced.Load(), "failures are rate limited")
}

func TestPreviewerDiscardsStaleResult(t *testing.T) {
	release := make(chan struct{})
	p := New(RendererFunc(func(_ context.Context, code string, _ Props) (string, error) {
		if code == "old" {
			<-release
		}
		return "<body>" + code + "</body>", nil
	}), Props{}, nil, DefaultOptions())

	done := make(chan error, 1)
	go func() {
		_, err := p.Update(context.Background(), "old")
		done <- err
	}()

	// Wait until the slow render is in flight.
	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.gen == 1
	}, time.Second, time.Millisecond)

	_, err := p.Update(context.Background(), "new")
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	cur, _ := p.Current()
	assert.Contains(t, cur.HTML, "<body>new")
}
