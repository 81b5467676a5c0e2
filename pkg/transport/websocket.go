package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/gabrielmiguelok/kycform/pkg/logging"
)

// WebSocket security errors
var (
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrOriginInvalid    = errors.New("invalid origin header")
)

// WebSocketConfig configures WebSocket security settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of allowed origins for WebSocket connections.
	// If empty and InsecureDevMode is false, only same-origin connections are allowed.
	AllowedOrigins []string

	// InsecureDevMode disables origin validation. Development only.
	InsecureDevMode bool
}

// DefaultWebSocketConfig returns secure default configuration.
func DefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{}
}

// WebSocketTransport is one WebSocket connection, dialed as a client or
// accepted from an HTTP upgrade. Reads and writes run on their own
// goroutines; callers use Send and Receive.
type WebSocketTransport struct {
	config   *TransportConfig
	wsConfig *WebSocketConfig
	logger   logging.Logger

	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	sendCh    chan Message
	recvCh    chan Message
	closeCh   chan struct{}
	closeOnce sync.Once
}

func NewWebSocketTransport(config *TransportConfig) *WebSocketTransport {
	return NewWebSocketTransportWithConfig(config, nil)
}

// NewWebSocketTransportWithConfig applies an origin policy. Nil configs
// fall back to the defaults.
func NewWebSocketTransportWithConfig(config *TransportConfig, wsConfig *WebSocketConfig) *WebSocketTransport {
	if config == nil {
		config = DefaultTransportConfig()
	}
	if wsConfig == nil {
		wsConfig = DefaultWebSocketConfig()
	}
	return &WebSocketTransport{
		config:   config,
		wsConfig: wsConfig,
		logger:   logging.NopLogger{},
		sendCh:   make(chan Message, config.SendBufferSize),
		recvCh:   make(chan Message, config.ReceiveBufferSize),
		closeCh:  make(chan struct{}),
	}
}

func (t *WebSocketTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Receive delivers decoded inbound frames.
func (t *WebSocketTransport) Receive() <-chan Message {
	return t.recvCh
}

// CloseChan is closed once the connection is gone.
func (t *WebSocketTransport) CloseChan() <-chan struct{} {
	return t.closeCh
}

// SetLogger sets the logger used for frame-level debug output.
func (t *WebSocketTransport) SetLogger(logger logging.Logger) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	t.logger = logger
}

// isOriginAllowed checks if the origin is allowed for WebSocket connections.
func (t *WebSocketTransport) isOriginAllowed(origin string, requestHost string) bool {
	if t.wsConfig != nil && t.wsConfig.InsecureDevMode {
		return true
	}

	// Browsers always send Origin; its absence means a non-browser client.
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if originURL.Host == requestHost {
		return true
	}

	if t.wsConfig != nil {
		for _, allowed := range t.wsConfig.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
			if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host != "" {
				if allowedURL.Host == originURL.Host {
					return true
				}
			}
		}
	}

	return false
}

// originPatterns converts AllowedOrigins into host patterns for websocket.Accept.
func (t *WebSocketTransport) originPatterns() []string {
	if t.wsConfig == nil {
		return nil
	}
	patterns := make([]string, 0, len(t.wsConfig.AllowedOrigins))
	for _, allowed := range t.wsConfig.AllowedOrigins {
		if allowed == "*" {
			patterns = append(patterns, "*")
			continue
		}
		if u, err := url.Parse(allowed); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else {
			patterns = append(patterns, allowed)
		}
	}
	return patterns
}

// SetURL sets the WebSocket URL for client-side connections.
func (t *WebSocketTransport) SetURL(url string) {
	t.url = url
}

// Connect establishes a WebSocket connection (client-side).
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	if t.url == "" {
		return fmt.Errorf("websocket URL not set")
	}

	conn, _, err := websocket.Dial(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}

	t.start(conn)
	return nil
}

// Upgrade upgrades an HTTP connection to WebSocket (server-side).
// The Origin header is validated to prevent cross-site WebSocket hijacking.
func (t *WebSocketTransport) Upgrade(w http.ResponseWriter, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if !t.isOriginAllowed(origin, r.Host) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return ErrOriginNotAllowed
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: t.wsConfig != nil && t.wsConfig.InsecureDevMode,
		OriginPatterns:     t.originPatterns(),
	})
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}

	t.start(conn)
	return nil
}

func (t *WebSocketTransport) start(conn *websocket.Conn) {
	conn.SetReadLimit(t.config.MaxMessageSize)

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	go t.readLoop()
	go t.writeLoop()
	go t.pingLoop()
}

// Send queues a message for the write loop.
func (t *WebSocketTransport) Send(msg Message) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	timer := time.NewTimer(t.config.WriteTimeout)
	defer timer.Stop()

	select {
	case t.sendCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Close is idempotent and safe from any goroutine.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closeCh) })

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.connected = false
	t.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "closing")
	}
	return nil
}

func (t *WebSocketTransport) currentConn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// readLoop reads frames and pushes decoded messages to the receive channel.
func (t *WebSocketTransport) readLoop() {
	defer t.Close()

	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		conn := t.currentConn()
		if conn == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.config.ReadTimeout)
		_, data, err := conn.Read(ctx)
		cancel()

		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway {
				t.logger.Debug("websocket read ended", logging.Err(err))
			}
			return
		}

		msg, err := Unmarshal(data)
		if err != nil {
			t.logger.Debug("websocket dropped invalid frame",
				logging.Err(err),
				logging.Int("bytes", len(data)),
			)
			continue
		}

		t.logger.Debug("websocket received",
			logging.String("event", msg.Event),
			logging.String("topic", msg.Topic),
			logging.String("ref", msg.Ref),
		)

		select {
		case t.recvCh <- msg:
		case <-t.closeCh:
			return
		default:
			t.logger.Warn("websocket receive buffer full, dropping message",
				logging.String("event", msg.Event),
			)
		}
	}
}

// writeLoop writes queued messages to the WebSocket.
func (t *WebSocketTransport) writeLoop() {
	for {
		select {
		case msg := <-t.sendCh:
			conn := t.currentConn()
			if conn == nil {
				return
			}

			data, err := msg.Marshal()
			if err != nil {
				t.logger.Error("websocket marshal failed",
					logging.String("event", msg.Event),
					logging.Err(err),
				)
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
			err = conn.Write(ctx, websocket.MessageText, data)
			cancel()

			if err != nil {
				t.logger.Debug("websocket write failed", logging.Err(err))
				t.Close()
				return
			}

		case <-t.closeCh:
			return
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (t *WebSocketTransport) pingLoop() {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sendPing()
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocketTransport) sendPing() {
	conn := t.currentConn()
	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		t.logger.Debug("websocket ping failed", logging.Err(err))
	}
}
