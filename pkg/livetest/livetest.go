// Package livetest drives LiveView components in tests without a browser
// or a WebSocket connection.
package livetest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/kycform/pkg/core"
)

// View is a mounted component with a recording socket.
type View struct {
	t         testing.TB
	component core.Component
	socket    *core.Socket
	transport *MockTransport
	ctx       context.Context
	html      string
}

// Option configures Mount.
type Option func(*mountConfig)

type mountConfig struct {
	params  core.Params
	session core.Session
}

// WithParams sets mount parameters.
func WithParams(params core.Params) Option {
	return func(c *mountConfig) { c.params = params }
}

// WithSession sets session data.
func WithSession(session core.Session) Option {
	return func(c *mountConfig) { c.session = session }
}

// Mount wires comp to a mock socket, mounts it and renders once.
// The component is terminated when the test ends.
func Mount(t testing.TB, comp core.Component, opts ...Option) *View {
	t.Helper()
	v := attach(t, comp, opts...)
	require.NoError(t, comp.Mount(v.ctx, core.ParamsFromContext(v.ctx), core.SessionFromContext(v.ctx)), "mount")
	v.render()
	return v
}

func attach(t testing.TB, comp core.Component, opts ...Option) *View {
	cfg := &mountConfig{params: core.Params{}, session: core.Session{}}
	for _, opt := range opts {
		opt(cfg)
	}

	transport := NewMockTransport()
	socket := core.NewSocket("test-"+uuid.NewString()[:8], transport)
	if sa, ok := comp.(core.SocketAware); ok {
		sa.SetSocket(socket)
	}

	v := &View{
		t:         t,
		component: comp,
		socket:    socket,
		transport: transport,
		ctx:       core.BuildContext(context.Background(), socket, cfg.session, cfg.params),
	}
	t.Cleanup(func() {
		comp.Terminate(context.Background(), core.TerminateNormal)
		socket.Close()
	})
	return v
}

// Event sends a client event. The view re-renders only when the handler
// accepts it, matching the live router.
func (v *View) Event(name string, payload map[string]any) error {
	v.t.Helper()
	if payload == nil {
		payload = map[string]any{}
	}
	if err := v.component.HandleEvent(v.ctx, name, payload); err != nil {
		return err
	}
	v.render()
	return nil
}

// MustEvent is Event that fails the test on error.
func (v *View) MustEvent(name string, payload map[string]any) *View {
	v.t.Helper()
	require.NoError(v.t, v.Event(name, payload), "event %q", name)
	return v
}

// AwaitInfo waits for one queued info message, handles it and re-renders.
// It reports false when nothing arrives within timeout.
func (v *View) AwaitInfo(timeout time.Duration) bool {
	v.t.Helper()
	select {
	case msg := <-v.socket.Info():
		require.NoError(v.t, v.component.HandleInfo(v.ctx, msg), "info %T", msg)
		v.render()
		return true
	case <-time.After(timeout):
		return false
	}
}

// Reconnect snapshots the component, restores the snapshot into fresh and
// returns a view of fresh, the way a reconnecting client resumes a session.
func (v *View) Reconnect(fresh core.Component) *View {
	v.t.Helper()

	from, ok := v.component.(core.Snapshotter)
	require.True(v.t, ok, "%s does not implement core.Snapshotter", v.component.Name())
	to, ok := fresh.(core.Snapshotter)
	require.True(v.t, ok, "%s does not implement core.Snapshotter", fresh.Name())

	data, err := from.Snapshot()
	require.NoError(v.t, err, "snapshot")

	next := attach(v.t, fresh)
	require.NoError(v.t, fresh.Mount(next.ctx, core.Params{}, core.Session{}), "mount")
	require.NoError(v.t, to.Restore(next.ctx, data), "restore")
	next.render()
	return next
}

// HTML returns the last render.
func (v *View) HTML() string {
	return v.html
}

// Render re-renders and returns the output.
func (v *View) Render() string {
	v.render()
	return v.html
}

// Component returns the component under test.
func (v *View) Component() core.Component {
	return v.component
}

// Socket returns the component's socket.
func (v *View) Socket() *core.Socket {
	return v.socket
}

// Transport returns the recording transport.
func (v *View) Transport() *MockTransport {
	return v.transport
}

func (v *View) render() {
	v.t.Helper()
	renderer := v.component.Render(v.ctx)
	require.NotNil(v.t, renderer, "nil renderer")

	var buf bytes.Buffer
	require.NoError(v.t, renderer.Render(v.ctx, &buf), "render")
	v.html = buf.String()
}
