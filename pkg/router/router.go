// Package router serves LiveView components over HTTP and WebSocket.
package router

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gabrielmiguelok/kycform/pkg/core"
	"github.com/gabrielmiguelok/kycform/pkg/limits"
	"github.com/gabrielmiguelok/kycform/pkg/logging"
	"github.com/gabrielmiguelok/kycform/pkg/metrics"
	"github.com/gabrielmiguelok/kycform/pkg/state"
	"github.com/gabrielmiguelok/kycform/pkg/tracing"
	"github.com/gabrielmiguelok/kycform/pkg/transport"
)

// Common router errors.
var (
	ErrNilRenderer        = errors.New("component returned a nil renderer")
	ErrTooManySessions    = errors.New("too many live sessions")
	ErrTooManyConnections = errors.New("too many live sessions from one client")
	ErrNotJoined          = errors.New("event received before phx_join")
	ErrComponentPanic     = errors.New("component panicked")
)

// Middleware wraps an HTTP handler.
type Middleware = func(http.Handler) http.Handler

// ErrorHandler handles errors during the static HTTP render.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// LiveRoute defines a route that renders a LiveView component.
type LiveRoute struct {
	Path       string
	Component  func() core.Component
	Middleware []Middleware
	Meta       map[string]any
}

// RouteOption configures a LiveRoute.
type RouteOption func(*LiveRoute)

// WithRouteMiddleware adds middleware to the route.
func WithRouteMiddleware(mw ...Middleware) RouteOption {
	return func(r *LiveRoute) {
		r.Middleware = append(r.Middleware, mw...)
	}
}

// WithMeta adds metadata to the route.
func WithMeta(key string, value any) RouteOption {
	return func(r *LiveRoute) {
		r.Meta[key] = value
	}
}

// Router handles HTTP routing and LiveView sessions.
type Router struct {
	mux        chi.Router
	liveRoutes map[string]*LiveRoute

	sessions    *LiveViewSessionManager
	sockets     *core.SocketManager
	maxSessions int

	connLimiter  *limits.ConnectionLimiter
	eventLimiter *limits.EventLimiter

	snapshots    *state.SessionStore
	storeTimeout time.Duration

	logger  logging.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Tracer

	transportConfig *transport.TransportConfig
	wsConfig        *transport.WebSocketConfig
	errorHandler    ErrorHandler

	mu sync.RWMutex
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// WithSessionStore enables snapshot save and restore for components
// implementing core.Snapshotter.
func WithSessionStore(ss *state.SessionStore) Option {
	return func(r *Router) { r.snapshots = ss }
}

// WithTransportConfig sets the WebSocket transport configuration.
func WithTransportConfig(cfg *transport.TransportConfig) Option {
	return func(r *Router) { r.transportConfig = cfg }
}

// WithWebSocketConfig sets the WebSocket origin policy.
func WithWebSocketConfig(cfg *transport.WebSocketConfig) Option {
	return func(r *Router) { r.wsConfig = cfg }
}

// WithMaxSessions caps concurrent live sessions; zero disables the cap.
func WithMaxSessions(n int) Option {
	return func(r *Router) { r.maxSessions = n }
}

// WithConnectionsPerIP caps concurrent live sessions per client IP;
// zero disables the cap.
func WithConnectionsPerIP(n int) Option {
	return func(r *Router) { r.connLimiter = limits.NewConnectionLimiter(n) }
}

// WithEventRate limits each live session to rate events per second with
// bursts up to burst; a rate of zero disables the limit.
func WithEventRate(rate float64, burst int) Option {
	return func(r *Router) { r.eventLimiter = limits.NewEventLimiter(rate, burst) }
}

// WithErrorHandler sets the handler for static render failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(r *Router) { r.errorHandler = h }
}

// New creates a router.
func New(opts ...Option) *Router {
	r := &Router{
		mux:             chi.NewRouter(),
		liveRoutes:      make(map[string]*LiveRoute),
		sockets:         core.NewSocketManager(),
		maxSessions:     10000,
		storeTimeout:    2 * time.Second,
		logger:          logging.NopLogger{},
		transportConfig: transport.DefaultTransportConfig(),
		wsConfig:        transport.DefaultWebSocketConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = metrics.Nop()
	}
	if r.tracer == nil {
		r.tracer = tracing.NewTracer("kycform")
	}
	if r.errorHandler == nil {
		r.errorHandler = r.defaultErrorHandler
	}
	if r.connLimiter == nil {
		r.connLimiter = limits.NewConnectionLimiter(0)
	}
	if r.eventLimiter == nil {
		r.eventLimiter = limits.NewEventLimiter(0, 0)
	}
	r.sessions = NewLiveViewSessionManager(r.maxSessions)
	return r
}

func (r *Router) defaultErrorHandler(w http.ResponseWriter, req *http.Request, err error) {
	logging.L(req.Context()).Error("live render failed", logging.Err(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Use adds middleware. It must be called before any route is registered.
func (r *Router) Use(mw ...Middleware) {
	r.mux.Use(mw...)
}

// Mux returns the underlying chi router.
func (r *Router) Mux() chi.Router {
	return r.mux
}

// Sessions returns the session manager.
func (r *Router) Sessions() *LiveViewSessionManager {
	return r.sessions
}

// Sockets returns the socket manager.
func (r *Router) Sockets() *core.SocketManager {
	return r.sockets
}

// Live registers a LiveView route. GET requests render the component;
// WebSocket upgrades on the same path start a live session.
func (r *Router) Live(path string, component func() core.Component, opts ...RouteOption) {
	route := &LiveRoute{
		Path:      path,
		Component: component,
		Meta:      make(map[string]any),
	}
	for _, opt := range opts {
		opt(route)
	}

	r.mu.Lock()
	r.liveRoutes[path] = route
	r.mu.Unlock()

	h := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.serveLive(w, req, route)
	})
	if len(route.Middleware) > 0 {
		r.mux.With(route.Middleware...).Get(path, h)
		return
	}
	r.mux.Get(path, h)
}

// Handle registers a standard HTTP handler for every method.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

// HandleFunc registers a standard HTTP handler function.
func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.mux.HandleFunc(pattern, handler)
}

// Get registers a GET handler.
func (r *Router) Get(pattern string, handler http.HandlerFunc) {
	r.mux.Get(pattern, handler)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Shutdown closes every live session and waits for their loops to finish.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.sockets.Shutdown(ctx)
}

func (r *Router) serveLive(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	if isWebSocketRequest(req) {
		r.handleWebSocket(w, req, route)
		return
	}

	component := route.Component()
	params := extractParams(req)
	session := extractSession(req)
	ctx := core.BuildContext(req.Context(), nil, session, params)

	if err := safeCall(func() error { return component.Mount(ctx, params, session) }); err != nil {
		r.errorHandler(w, req, err)
		return
	}
	defer component.Terminate(ctx, core.TerminateNormal)

	start := time.Now()
	buf := getBuffer()
	defer putBuffer(buf)

	if err := render(ctx, component, buf); err != nil {
		r.errorHandler(w, req, err)
		return
	}
	r.metrics.RecordRender(time.Since(start), 0)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	if r.sockets.IsShutdown() || r.sessions.Full() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	ip := limits.ClientIP(req)
	if !r.connLimiter.Acquire(ip) {
		r.logger.Warn("live session refused", logging.String("client_ip", ip), logging.Err(ErrTooManyConnections))
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	ws := transport.NewWebSocketTransportWithConfig(r.transportConfig, r.wsConfig)
	ws.SetLogger(r.logger)

	// Upgrade writes its own error response.
	if err := ws.Upgrade(w, req); err != nil {
		r.connLimiter.Release(ip)
		r.logger.Warn("websocket upgrade failed",
			logging.Err(err),
			logging.String("origin", req.Header.Get("Origin")),
		)
		return
	}

	socketID := generateID()
	socket := core.NewSocket(socketID, newTransportAdapter(ws))

	component := route.Component()
	if sa, ok := component.(core.SocketAware); ok {
		sa.SetSocket(socket)
	}

	params := extractParams(req)
	session := extractSession(req)

	lv, err := r.sessions.Create(socketID, component, params, session)
	if err != nil {
		r.connLimiter.Release(ip)
		r.logger.Warn("live session rejected", logging.Err(err))
		socket.Close()
		return
	}
	lv.Transport = ws
	lv.Socket = socket
	lv.ClientIP = ip

	if !r.sockets.Add(socket) {
		r.connLimiter.Release(ip)
		r.sessions.Remove(lv.ID)
		socket.Close()
		return
	}
	r.metrics.ConnectionOpened()

	logger := r.logger.With(
		logging.String("socket_id", socketID),
		logging.String("request_id", middleware.GetReqID(req.Context())),
	)
	logger.Debug("live session opened", logging.String("path", route.Path))

	// The connection outlives the upgrade request, so its context must not
	// derive from req.Context().
	ctx, cancel := context.WithCancel(context.Background())
	ctx = core.BuildContext(ctx, socket, session, params)
	ctx = logging.ContextWithLogger(ctx, logger)

	go r.messageLoop(ctx, cancel, lv, logger)
}

// messageLoop owns the component: client messages and info messages are
// handled one at a time, each followed by a render and a diff push.
func (r *Router) messageLoop(ctx context.Context, cancel context.CancelFunc, lv *LiveViewSession, logger logging.Logger) {
	reason := core.TerminateNormal
	defer func() {
		cancel()
		r.closeSession(lv, reason, logger)
	}()

	recvCh := lv.Transport.Receive()
	for {
		select {
		case msg := <-recvCh:

			switch msg.Event {
			case "heartbeat", "phx_heartbeat":
				r.sendReply(lv, msg, nil)
			case "phx_join":
				r.handleJoin(ctx, lv, msg, logger)
			case "phx_leave":
				r.handleLeave(ctx, lv, msg)
				return
			default:
				r.handleEvent(ctx, lv, msg, logger)
			}

		case info := <-lv.Socket.Info():
			r.handleInfo(ctx, lv, info, logger)

		case <-lv.Transport.CloseChan():
			if r.sockets.IsShutdown() {
				reason = core.TerminateShutdown
			}
			return

		case <-lv.Socket.Done():
			if r.sockets.IsShutdown() {
				reason = core.TerminateShutdown
			}
			return
		}
	}
}

func (r *Router) handleJoin(ctx context.Context, lv *LiveViewSession, msg transport.Message, logger logging.Logger) {
	restored := false

	if !lv.IsMounted() {
		if err := safeCall(func() error { return lv.Component.Mount(ctx, lv.Params, lv.Session) }); err != nil {
			logger.Error("mount failed", logging.Err(err))
			r.sendError(lv, msg, err)
			return
		}
		lv.SetMounted(true)

		token, _ := msg.Payload["session"].(string)
		restored = r.restoreSnapshot(ctx, lv, token, logger)
		if !restored {
			token = generateID()
		}
		lv.Token = token
	}

	// A join always gets every slot, so the client can rebuild from scratch.
	lv.SetSlotHashes(nil)
	payload, err := r.renderDiff(ctx, lv)
	if err != nil {
		logger.Error("join render failed", logging.Err(err))
		r.sendError(lv, msg, err)
		return
	}

	r.saveSnapshot(ctx, lv, logger)
	r.sendReply(lv, msg, map[string]any{
		"session":  lv.Token,
		"restored": restored,
		"diff":     diffMap(payload),
	})
}

func (r *Router) handleLeave(ctx context.Context, lv *LiveViewSession, msg transport.Message) {
	if r.snapshots != nil && lv.Token != "" {
		storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
		defer cancel()
		if err := r.snapshots.Delete(storeCtx, lv.Token); err != nil {
			r.metrics.SnapshotErrors.WithLabelValues("delete").Inc()
		}
	}
	r.sendReply(lv, msg, nil)
}

func (r *Router) handleEvent(ctx context.Context, lv *LiveViewSession, msg transport.Message, logger logging.Logger) {
	if !lv.IsMounted() {
		r.sendError(lv, msg, ErrNotJoined)
		return
	}
	if !r.eventLimiter.Allow(lv.ID) {
		r.metrics.RecordEvent(msg.Event, limits.ErrRateLimited, 0)
		r.sendError(lv, msg, limits.ErrRateLimited)
		return
	}

	ctx, span := r.tracer.StartSpan(ctx, "liveview.event", tracing.WithTag("event", msg.Event))
	defer span.End()
	start := time.Now()

	payload := msg.Payload
	if payload == nil {
		payload = make(map[string]any)
	}

	err := safeCall(func() error { return lv.Component.HandleEvent(ctx, msg.Event, payload) })
	if err == nil {
		err = r.pushDiff(ctx, lv)
	}
	r.metrics.RecordEvent(msg.Event, err, time.Since(start))

	if err != nil {
		span.SetError(err)
		logger.Debug("event rejected", logging.String("event", msg.Event), logging.Err(err))
		r.sendError(lv, msg, err)
		return
	}

	r.saveSnapshot(ctx, lv, logger)
	r.sendReply(lv, msg, nil)
}

func (r *Router) handleInfo(ctx context.Context, lv *LiveViewSession, info any, logger logging.Logger) {
	if !lv.IsMounted() {
		return
	}

	if err := safeCall(func() error { return lv.Component.HandleInfo(ctx, info) }); err != nil {
		logger.Warn("info handler failed", logging.String("info", fmt.Sprintf("%T", info)), logging.Err(err))
	}
	if err := r.pushDiff(ctx, lv); err != nil {
		logger.Warn("diff after info failed", logging.Err(err))
		return
	}
	r.saveSnapshot(ctx, lv, logger)
}

func (r *Router) pushDiff(ctx context.Context, lv *LiveViewSession) error {
	payload, err := r.renderDiff(ctx, lv)
	if err != nil {
		return err
	}
	if err := lv.Socket.SendDiff(payload); err != nil && !errors.Is(err, core.ErrSocketClosed) {
		return err
	}
	return nil
}

// renderDiff renders the component and diffs its slots against the hashes
// last sent to the client.
func (r *Router) renderDiff(ctx context.Context, lv *LiveViewSession) (*core.DiffPayload, error) {
	start := time.Now()
	buf := getBuffer()
	defer putBuffer(buf)

	if err := render(ctx, lv.Component, buf); err != nil {
		return nil, err
	}

	payload := buildDiffPayload(lv, buf.String())
	r.metrics.RecordRender(time.Since(start), payload.Size())
	return payload, nil
}

// buildDiffPayload keeps only the slots whose hash changed. Output without
// any slot is sent whole when it changes.
func buildDiffPayload(lv *LiveViewSession, html string) *core.DiffPayload {
	payload := &core.DiffPayload{
		Slots:     make(map[string]string),
		HTMLSlots: make(map[string]string),
	}

	textSlots, htmlSlots := extractSlots(html)
	prev := lv.SlotHashes()
	next := make(map[string]uint64, len(textSlots)+len(htmlSlots))

	for id, content := range textSlots {
		h := hashSlot(content)
		next[id] = h
		if old, ok := prev[id]; !ok || old != h {
			payload.Slots[id] = content
		}
	}
	for id, content := range htmlSlots {
		h := hashSlot(content)
		next[id] = h
		if old, ok := prev[id]; !ok || old != h {
			payload.HTMLSlots[id] = content
		}
	}

	if len(next) == 0 {
		h := hashSlot(html)
		next[""] = h
		if old, ok := prev[""]; !ok || old != h {
			payload.Full = html
		}
	}

	lv.SetSlotHashes(next)
	if !payload.IsEmpty() {
		payload.Version = lv.NextVersion()
	}
	return payload
}

func diffMap(p *core.DiffPayload) map[string]any {
	return map[string]any{
		"v": p.Version,
		"s": p.Slots,
		"h": p.HTMLSlots,
		"f": p.Full,
	}
}

func (r *Router) restoreSnapshot(ctx context.Context, lv *LiveViewSession, token string, logger logging.Logger) bool {
	snap, ok := lv.Component.(core.Snapshotter)
	if !ok || r.snapshots == nil || !validToken(token) {
		return false
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	rec, err := r.snapshots.Load(storeCtx, token)
	if errors.Is(err, state.ErrKeyNotFound) {
		return false
	}
	if err != nil {
		r.metrics.SnapshotErrors.WithLabelValues("load").Inc()
		logger.Warn("snapshot load failed", logging.Err(err))
		return false
	}
	if rec.Component != lv.Component.Name() {
		return false
	}

	if err := safeCall(func() error { return snap.Restore(ctx, rec.Data) }); err != nil {
		r.metrics.SnapshotErrors.WithLabelValues("restore").Inc()
		logger.Warn("snapshot restore failed", logging.Err(err))
		return false
	}

	lv.record = rec
	logger.Info("live session restored", logging.Int64("version", int64(rec.Version)))
	return true
}

func (r *Router) saveSnapshot(ctx context.Context, lv *LiveViewSession, logger logging.Logger) {
	snap, ok := lv.Component.(core.Snapshotter)
	if !ok || r.snapshots == nil || lv.Token == "" {
		return
	}

	data, err := snap.Snapshot()
	if err != nil {
		r.metrics.SnapshotErrors.WithLabelValues("encode").Inc()
		logger.Warn("snapshot encode failed", logging.Err(err))
		return
	}

	if lv.record == nil {
		lv.record = &state.SessionRecord{Token: lv.Token, Component: lv.Component.Name()}
	}
	lv.record.Data = data

	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	if err := r.snapshots.Save(storeCtx, lv.record); err != nil {
		r.metrics.SnapshotErrors.WithLabelValues("save").Inc()
		logger.Warn("snapshot save failed", logging.Err(err))
	}
}

func (r *Router) closeSession(lv *LiveViewSession, reason core.TerminateReason, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if lv.IsMounted() {
		if err := safeCall(func() error { return lv.Component.Terminate(ctx, reason) }); err != nil {
			logger.Warn("terminate failed", logging.Err(err))
		}
	}

	r.sessions.Remove(lv.ID)
	r.sockets.Remove(lv.SocketID)
	r.connLimiter.Release(lv.ClientIP)
	r.eventLimiter.Forget(lv.ID)
	lv.Socket.Close()
	r.metrics.ConnectionClosed()

	logger.Debug("live session closed",
		logging.String("reason", reason.String()),
		logging.Duration("duration", time.Since(lv.CreatedAt)),
	)
}

func (r *Router) sendReply(lv *LiveViewSession, msg transport.Message, response map[string]any) {
	r.send(lv, msg.Reply(response))
}

func (r *Router) sendError(lv *LiveViewSession, msg transport.Message, err error) {
	r.send(lv, msg.ErrorReply(err))
}

func (r *Router) send(lv *LiveViewSession, msg transport.Message) {
	if err := lv.Transport.Send(msg); err != nil {
		r.logger.Debug("reply not sent", logging.String("socket_id", lv.SocketID), logging.Err(err))
	}
}

func render(ctx context.Context, c core.Component, w io.Writer) error {
	return safeCall(func() error {
		renderer := c.Render(ctx)
		if renderer == nil {
			return ErrNilRenderer
		}
		return renderer.Render(ctx, w)
	})
}

// safeCall runs fn and converts a panic into ErrComponentPanic.
func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrComponentPanic, p)
		}
	}()
	return fn()
}

func validToken(token string) bool {
	if len(token) != 32 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// extractSession collects request cookies.
func extractSession(req *http.Request) core.Session {
	session := make(core.Session)
	for _, cookie := range req.Cookies() {
		session["cookie:"+cookie.Name] = cookie.Value
	}
	return session
}

// extractParams extracts query parameters, first value wins.
func extractParams(req *http.Request) core.Params {
	params := make(core.Params)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

// isWebSocketRequest checks if this is a WebSocket upgrade request.
func isWebSocketRequest(req *http.Request) bool {
	return strings.Contains(strings.ToLower(req.Header.Get("Upgrade")), "websocket")
}
