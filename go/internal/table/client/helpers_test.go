package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const waitTimeout = 2 * time.Second

// fakeClock is the subset of *clockwork.FakeClock the tests drive
type fakeClock interface {
	Now() time.Time
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func blockUntil(t *testing.T, clock fakeClock, waiters int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, waiters); err != nil {
		t.Fatalf("timed out waiting for %d clock waiters: %v", waiters, err)
	}
}

// fakeSocket is an in-memory Socket. Inbound frames are pushed with deliver,
// a server-side close with closeWith.
type fakeSocket struct {
	inbound  chan []byte
	failures chan error
	written  chan []byte
	controls chan []byte

	// onControl runs inside WriteControl, on the caller's goroutine
	onControl func()

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound:  make(chan []byte, 64),
		failures: make(chan error, 1),
		written:  make(chan []byte, 256),
		controls: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-s.inbound:
		return websocket.TextMessage, msg, nil
	case err := <-s.failures:
		return 0, nil, err
	case <-s.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure, Text: "socket closed"}
	}
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	select {
	case <-s.closed:
		return errors.New("write on closed socket")
	default:
	}
	select {
	case s.written <- data:
	default:
	}
	return nil
}

func (s *fakeSocket) WriteControl(_ int, data []byte, _ time.Time) error {
	if s.onControl != nil {
		s.onControl()
	}
	select {
	case s.controls <- data:
	default:
	}
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) deliver(frame string) {
	s.inbound <- []byte(frame)
}

func (s *fakeSocket) closeWith(code int, reason string) {
	s.failures <- &websocket.CloseError{Code: code, Text: reason}
}

func (s *fakeSocket) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out fakeSockets, or fails every dial while failWith is set
type fakeDialer struct {
	mu       sync.Mutex
	failWith error
	urls     []string
	sockets  chan *fakeSocket
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{sockets: make(chan *fakeSocket, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Socket, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	err := d.failWith
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	s := newFakeSocket()
	d.sockets <- s
	return s, nil
}

func (d *fakeDialer) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWith = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) dialedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) nextSocket(t *testing.T) *fakeSocket {
	t.Helper()
	select {
	case s := <-d.sockets:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

// recorder collects every emitted event of the given types
type recorder struct {
	events chan Event
}

func record(r *ListenerRegistry, types ...EventType) *recorder {
	rec := &recorder{events: make(chan Event, 256)}
	for _, typ := range types {
		r.On(typ, func(ev Event) { rec.events <- ev })
	}
	return rec
}

// next waits for the next event of type want, skipping others
func (r *recorder) next(t *testing.T, want EventType) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-r.events:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}

// none asserts that no event of the unwanted types arrives within d
func (r *recorder) none(t *testing.T, d time.Duration, unwanted ...EventType) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-r.events:
			for _, typ := range unwanted {
				if ev.Type == typ {
					t.Fatalf("unexpected %s event: %+v", typ, ev.Data)
				}
			}
		case <-deadline:
			return
		}
	}
}

// nextError waits for the next error event of kind
func (r *recorder) nextError(t *testing.T, kind ErrorKind) ErrorPayload {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-r.events:
			if ev.Type != EventError {
				continue
			}
			if p, ok := ev.Data.(ErrorPayload); ok && p.Kind == kind {
				return p
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s error", kind)
			return ErrorPayload{}
		}
	}
}

func recvWritten(t *testing.T, s *fakeSocket) []byte {
	t.Helper()
	select {
	case msg := <-s.written:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an outbound frame")
		return nil
	}
}
