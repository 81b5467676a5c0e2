// Package core defines the live component model: components, the socket
// that connects one component to its client, and the diff payloads pushed
// over it.
package core

import (
	"context"
	"io"
)

// Component is a stateful server-side view. The router calls its methods
// from a single goroutine per live session, so implementations need no
// locking of their own.
type Component interface {
	// Name identifies the component type in session snapshots.
	Name() string

	// Mount initialises state before the first render.
	Mount(ctx context.Context, params Params, session Session) error

	Render(ctx context.Context) Renderer

	// HandleEvent applies one client event. A returned error is sent back
	// to the client; the session stays open.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// HandleInfo applies a server-side message queued with Socket.SendInfo.
	HandleInfo(ctx context.Context, msg any) error

	Terminate(ctx context.Context, reason TerminateReason) error
}

// Snapshotter is implemented by components whose state survives a
// reconnect. The router stores the snapshot after every handled event and
// restores it when a client rejoins with the same session token.
type Snapshotter interface {
	Snapshot() ([]byte, error)
	Restore(ctx context.Context, data []byte) error
}

// SocketAware components receive their socket before Mount.
type SocketAware interface {
	SetSocket(s *Socket)
}

// Renderer writes HTML.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Params are the query parameters of the page request, first value only.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[key]
}

// Session holds values derived from request cookies.
type Session map[string]any

// GetString returns the value for key if it is a string.
func (s Session) GetString(key string) string {
	v, _ := s[key].(string)
	return v
}

// TerminateReason says why a component is being torn down.
type TerminateReason int

const (
	// TerminateNormal covers client disconnects and static renders.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown means the server is stopping.
	TerminateShutdown
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// BaseComponent supplies no-op lifecycle methods and socket storage.
// Embed it and override what the component needs.
type BaseComponent struct {
	socket *Socket
}

func (bc *BaseComponent) SetSocket(s *Socket) { bc.socket = s }

// Socket returns the live socket, or nil during the static HTTP render.
func (bc *BaseComponent) Socket() *Socket { return bc.socket }

func (bc *BaseComponent) Name() string { return "" }

func (bc *BaseComponent) Mount(ctx context.Context, params Params, session Session) error {
	return nil
}

func (bc *BaseComponent) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	return nil
}

func (bc *BaseComponent) HandleInfo(ctx context.Context, msg any) error { return nil }

func (bc *BaseComponent) Terminate(ctx context.Context, reason TerminateReason) error {
	return nil
}
