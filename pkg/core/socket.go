package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrSocketClosed  = errors.New("socket is closed")
	ErrSendFailed    = errors.New("failed to send message")
	ErrInfoQueueFull = errors.New("info queue is full")
)

// DefaultInfoBuffer is the capacity of a socket's info queue.
const DefaultInfoBuffer = 16

// DiffEvent is the event name of pushed diffs.
const DiffEvent = "diff"

// Socket binds one component instance to its client connection. Diffs go
// out through the Transport; info messages queue up for the session loop.
type Socket struct {
	id        string
	transport Transport
	closed    atomic.Bool

	info      chan any
	done      chan struct{}
	closeOnce sync.Once
}

// Transport is the outbound half of a client connection.
type Transport interface {
	Send(msg Message) error
	Close() error
	IsConnected() bool
}

// Message is an outbound frame.
type Message struct {
	Ref     string         `json:"ref,omitempty"`
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

func NewSocket(id string, transport Transport) *Socket {
	return &Socket{
		id:        id,
		transport: transport,
		info:      make(chan any, DefaultInfoBuffer),
		done:      make(chan struct{}),
	}
}

func (s *Socket) ID() string { return s.id }

// Topic is the channel name the client joined under.
func (s *Socket) Topic() string { return "lv:" + s.id }

func (s *Socket) IsConnected() bool {
	return !s.closed.Load() && s.transport != nil && s.transport.IsConnected()
}

// Send writes msg to the client. It is safe to call concurrently with
// Close; once closed it returns ErrSocketClosed.
func (s *Socket) Send(msg Message) error {
	if !s.IsConnected() {
		return ErrSocketClosed
	}
	if err := s.transport.Send(msg); err != nil {
		if s.closed.Load() {
			return ErrSocketClosed
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// SendInfo queues msg for the component's HandleInfo. It never blocks:
// a full queue yields ErrInfoQueueFull, a closed socket ErrSocketClosed.
func (s *Socket) SendInfo(msg any) error {
	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}

	select {
	case s.info <- msg:
		return nil
	case <-s.done:
		return ErrSocketClosed
	default:
		return ErrInfoQueueFull
	}
}

// Info is the queue drained by the session loop.
func (s *Socket) Info() <-chan any { return s.info }

// Done is closed by Close.
func (s *Socket) Done() <-chan struct{} { return s.done }

// DiffPayload is one page update. Slots replace an element's textContent,
// HTMLSlots its innerHTML, and Full replaces the whole page body. Version
// increases per session so the client can drop stale diffs.
type DiffPayload struct {
	Version   uint64            `json:"v"`
	Slots     map[string]string `json:"s,omitempty"`
	HTMLSlots map[string]string `json:"h,omitempty"`
	Full      string            `json:"f,omitempty"`
}

func (d *DiffPayload) IsEmpty() bool {
	return len(d.Slots) == 0 && len(d.HTMLSlots) == 0 && d.Full == ""
}

// Size is the content size in bytes.
func (d *DiffPayload) Size() int {
	size := len(d.Full)
	for _, content := range d.Slots {
		size += len(content)
	}
	for _, content := range d.HTMLSlots {
		size += len(content)
	}
	return size
}

// SendDiff pushes payload unless it is empty.
func (s *Socket) SendDiff(payload *DiffPayload) error {
	if payload == nil || payload.IsEmpty() {
		return nil
	}
	return s.Send(Message{
		Topic: s.Topic(),
		Event: DiffEvent,
		Payload: map[string]any{
			"v": payload.Version,
			"s": payload.Slots,
			"h": payload.HTMLSlots,
			"f": payload.Full,
		},
	})
}

// Close closes the socket and its transport and drops queued info
// messages. It is idempotent.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if s.transport != nil {
			err = s.transport.Close()
		}
	})
	return err
}

// SocketManager tracks the open sockets so shutdown can close them all.
type SocketManager struct {
	mu       sync.Mutex
	sockets  map[string]*Socket
	draining bool
	drained  chan struct{}
}

func NewSocketManager() *SocketManager {
	return &SocketManager{
		sockets: make(map[string]*Socket),
		drained: make(chan struct{}),
	}
}

// Add registers socket. It returns false once Shutdown has begun.
func (sm *SocketManager) Add(socket *Socket) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.draining {
		return false
	}
	sm.sockets[socket.ID()] = socket
	return true
}

// Remove unregisters a socket. The session loop calls it on exit.
func (sm *SocketManager) Remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sockets, id)
	sm.signalDrainedLocked()
}

func (sm *SocketManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sockets)
}

// IsShutdown reports whether Shutdown has begun.
func (sm *SocketManager) IsShutdown() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.draining
}

// Shutdown refuses new sockets, closes every open one and waits until all
// have been removed or ctx is done. Calling it again just waits.
func (sm *SocketManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	var open []*Socket
	if !sm.draining {
		sm.draining = true
		for _, s := range sm.sockets {
			open = append(open, s)
		}
		sm.signalDrainedLocked()
	}
	sm.mu.Unlock()

	for _, s := range open {
		s.Close()
	}

	select {
	case <-sm.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sm *SocketManager) signalDrainedLocked() {
	if !sm.draining || len(sm.sockets) > 0 {
		return
	}
	select {
	case <-sm.drained:
	default:
		close(sm.drained)
	}
}
