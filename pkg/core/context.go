package core

import "context"

// liveScope is what a component call can read from its context.
type liveScope struct {
	socket  *Socket
	session Session
	params  Params
}

type liveScopeKey struct{}

// BuildContext attaches the socket, session and params of one live
// session. A static HTTP render passes a nil socket.
func BuildContext(ctx context.Context, socket *Socket, session Session, params Params) context.Context {
	return context.WithValue(ctx, liveScopeKey{}, liveScope{socket: socket, session: session, params: params})
}

func scopeFrom(ctx context.Context) liveScope {
	s, _ := ctx.Value(liveScopeKey{}).(liveScope)
	return s
}

// SocketFromContext returns the live socket, or nil during a static render.
func SocketFromContext(ctx context.Context) *Socket { return scopeFrom(ctx).socket }

// SessionFromContext returns the HTTP session values.
func SessionFromContext(ctx context.Context) Session { return scopeFrom(ctx).session }

// ParamsFromContext returns the query parameters of the page request.
func ParamsFromContext(ctx context.Context) Params { return scopeFrom(ctx).params }
