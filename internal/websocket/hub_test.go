package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/storefront/internal/editor"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/liveedit"
)

const testOrigin = "http://localhost:8080"

type fakeTarget struct {
	mu       sync.Mutex
	events   chan editor.Event
	texts    []string
	styles   [][2]string
	frames   []liveedit.Envelope
	offset   liveedit.Point
	escapes  int
	closes   int
	textErr  error
	unsubbed bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{events: make(chan editor.Event, 8)}
}

func (f *fakeTarget) ID() string { return "s1" }

func (f *fakeTarget) Subscribe() (<-chan editor.Event, func()) {
	return f.events, func() {
		f.mu.Lock()
		f.unsubbed = true
		f.mu.Unlock()
	}
}

func (f *fakeTarget) HandleFrameMessage(_ context.Context, env liveedit.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, env)
	return env.Origin == testOrigin
}

func (f *fakeTarget) SetFrameOffset(p liveedit.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset = p
}

func (f *fakeTarget) CommitText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.textErr
}

func (f *fakeTarget) CommitClasses(context.Context, string) error { return nil }

func (f *fakeTarget) CommitStyle(_ context.Context, property, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.styles = append(f.styles, [2]string{property, value})
	return nil
}

func (f *fakeTarget) EscapeEditor() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escapes++
}

func (f *fakeTarget) CloseEditor() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeTarget) snapshot() fakeTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeTarget{
		texts:    append([]string(nil), f.texts...),
		styles:   append([][2]string(nil), f.styles...),
		frames:   append([]liveedit.Envelope(nil), f.frames...),
		offset:   f.offset,
		escapes:  f.escapes,
		closes:   f.closes,
		unsubbed: f.unsubbed,
	}
}

func newTestHub(t *testing.T, target Target, opts Options) (*Hub, string) {
	t.Helper()

	if opts.Origins == nil {
		origins, err := NewOriginList(testOrigin)
		require.NoError(t, err)
		opts.Origins = origins
	}
	hub := NewHub(opts)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, target)
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
}

func readEvent(t *testing.T, conn *websocket.Conn) editor.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ev editor.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	return ev
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, cmd))
}

func TestOriginList(t *testing.T) {
	l, err := NewOriginList("http://localhost:8080", "https://shop.example.com")
	require.NoError(t, err)

	assert.True(t, l.IsAllowedOrigin("http://localhost:8080"))
	assert.True(t, l.IsAllowedOrigin("https://shop.example.com"))
	assert.False(t, l.IsAllowedOrigin("http://localhost:3000"))
	assert.False(t, l.IsAllowedOrigin("http://evil.example.com"))
	assert.False(t, l.IsAllowedOrigin(""))

	_, err = NewOriginList("not an origin")
	assert.Error(t, err)
}

func TestServeRejectsForeignOrigin(t *testing.T) {
	_, url := newTestHub(t, newFakeTarget(), Options{})

	_, resp, err := dial(t, url, "http://evil.example.com")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServeForwardsSessionEvents(t *testing.T) {
	target := newFakeTarget()
	hub, url := newTestHub(t, target, Options{})

	conn, _, err := dial(t, url, testOrigin)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.CountFor("s1") == 1 }, time.Second, 10*time.Millisecond)

	target.events <- editor.Event{Type: editor.EventSource, SessionID: "s1", Data: "component A {}"}
	ev := readEvent(t, conn)
	assert.Equal(t, editor.EventSource, ev.Type)
	assert.Equal(t, "component A {}", ev.Data)
}

func TestServeDispatchesCommands(t *testing.T) {
	target := newFakeTarget()
	_, url := newTestHub(t, target, Options{})

	conn, _, err := dial(t, url, testOrigin)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	send(t, conn, Command{Type: CommandFrameOffset, Offset: &liveedit.Point{X: 10, Y: 20}})
	send(t, conn, Command{Type: CommandFrameMessage, Envelope: &liveedit.Envelope{
		Origin: testOrigin,
		Data:   liveedit.Message{Type: liveedit.ElementClickedLive},
	}})
	send(t, conn, Command{Type: CommandCommitText, Text: "Welcome"})
	send(t, conn, Command{Type: CommandCommitStyle, Property: "color", Value: "red"})
	send(t, conn, Command{Type: CommandEscape})
	send(t, conn, Command{Type: CommandClose})
	send(t, conn, Command{Type: CommandPing})

	ev := readEvent(t, conn)
	assert.Equal(t, ReplyPong, ev.Type)

	got := target.snapshot()
	assert.Equal(t, liveedit.Point{X: 10, Y: 20}, got.offset)
	require.Len(t, got.frames, 1)
	assert.Equal(t, []string{"Welcome"}, got.texts)
	assert.Equal(t, [][2]string{{"color", "red"}}, got.styles)
	assert.Equal(t, 1, got.escapes)
	assert.Equal(t, 1, got.closes)
}

func TestServeRepliesWithCommandErrors(t *testing.T) {
	target := newFakeTarget()
	target.textErr = apperrors.NewValidationError("ERR_PATCH_NOT_FOUND", "text not found in source")
	_, url := newTestHub(t, target, Options{})

	conn, _, err := dial(t, url, testOrigin)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	send(t, conn, Command{Type: CommandCommitText, Text: "x"})
	ev := readEvent(t, conn)
	assert.Equal(t, ReplyError, ev.Type)
	detail, ok := ev.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ERR_PATCH_NOT_FOUND", detail["code"])

	send(t, conn, Command{Type: "teleport"})
	ev = readEvent(t, conn)
	assert.Equal(t, ReplyError, ev.Type)

	send(t, conn, Command{Type: CommandCommitStyle})
	ev = readEvent(t, conn)
	assert.Equal(t, ReplyError, ev.Type)
}

func TestServeClosesOnRateLimit(t *testing.T) {
	target := newFakeTarget()
	_, url := newTestHub(t, target, Options{MessageRate: 0.001, MessageBurst: 2})

	conn, _, err := dial(t, url, testOrigin)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	for i := 0; i < 3; i++ {
		send(t, conn, Command{Type: CommandEscape})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestShutdownClosesClients(t *testing.T) {
	target := newFakeTarget()
	hub, url := newTestHub(t, target, Options{})

	conn, _, err := dial(t, url, testOrigin)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err = conn.Read(ctx)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return hub.Count() == 0 && target.snapshot().unsubbed
	}, time.Second, 10*time.Millisecond)

	_, resp, err := dial(t, url, testOrigin)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
