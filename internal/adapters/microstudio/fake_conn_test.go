package microstudio

import (
	"MicroStudioLink/internal/adapters/eventbus"
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// waitFor bounds every blocking wait in these tests.
const waitFor = 2 * time.Second

// fakeConn is an in-memory socket. Tests play the server: they read what
// the client wrote from sent and push frames through deliver.
type fakeConn struct {
	inbound   chan []byte
	sent      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		sent:    make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-f.inbound:
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(data []byte) error {
	f.mu.Lock()
	err := f.writeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case f.sent <- data:
		return nil
	case <-f.closed:
		return errors.New("write on closed socket")
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// deliver pushes a server frame to the client.
func (f *fakeConn) deliver(t *testing.T, frame map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	f.deliverRaw(t, data)
}

func (f *fakeConn) deliverRaw(t *testing.T, data []byte) {
	t.Helper()
	select {
	case f.inbound <- data:
	case <-time.After(waitFor):
		t.Fatal("client did not read frame")
	}
}

// next returns the next frame the client wrote.
func (f *fakeConn) next(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case data := <-f.sent:
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(waitFor):
		t.Fatal("client did not write a frame")
		return nil
	}
}

func (f *fakeConn) assertSilent(t *testing.T) {
	t.Helper()
	select {
	case data := <-f.sent:
		t.Fatalf("unexpected frame written: %s", data)
	default:
	}
}

type fakeDialer struct {
	mu     sync.Mutex
	conn   *fakeConn
	err    error
	calls  int
	header http.Header
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.header = header
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type testHarness struct {
	client *Client
	conn   *fakeConn
	dialer *fakeDialer
	clock  *clock.Mock
	bus    ports.EventBus
}

func newHarness(t *testing.T, creds domain.Credentials) *testHarness {
	t.Helper()
	nopLogger := zerolog.Nop()
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	clk := clock.NewMock()
	bus := eventbus.NewInMemoryEventBus(&nopLogger)
	client := NewClient(creds, bus, &nopLogger, WithDialer(dialer), WithClock(clk))
	t.Cleanup(func() { _ = client.Close() })
	return &testHarness{client: client, conn: conn, dialer: dialer, clock: clk, bus: bus}
}

// connectAsync runs Connect in the background.
func (h *testHarness) connectAsync() <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.client.Connect(context.Background()) }()
	return done
}

// connect drives a credential login to Ready.
func (h *testHarness) connect(t *testing.T) {
	t.Helper()
	done := h.connectAsync()
	login := h.conn.next(t)
	require.Equal(t, "login", login["name"])
	h.conn.deliver(t, map[string]interface{}{
		"name":       "logged_in",
		"token":      "tok-1",
		"nick":       "alice",
		"request_id": login["request_id"],
	})
	require.NoError(t, wait(t, done))
}

// callAsync runs Call in the background.
func (h *testHarness) callAsync(kind RequestKind, payload Payload) <-chan callResult {
	done := make(chan callResult, 1)
	go func() {
		msg, err := h.client.Call(context.Background(), kind, payload)
		done <- callResult{msg: msg, err: err}
	}()
	return done
}

func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for result")
		var zero T
		return zero
	}
}

// requestID extracts the correlation id of a written frame.
func requestID(t *testing.T, frame map[string]interface{}) int64 {
	t.Helper()
	id, ok := frame["request_id"].(float64)
	require.True(t, ok, "frame has no numeric request_id: %v", frame)
	return int64(id)
}
