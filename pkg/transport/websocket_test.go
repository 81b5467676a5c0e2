package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocket_OriginValidation(t *testing.T) {
	tests := []struct {
		name          string
		wsConfig      *WebSocketConfig
		origin        string
		host          string
		expectAllowed bool
	}{
		{"same-origin allowed", &WebSocketConfig{}, "https://example.com", "example.com", true},
		{"no origin allowed", &WebSocketConfig{}, "", "example.com", true},
		{"explicit origin allowed", &WebSocketConfig{AllowedOrigins: []string{"https://allowed.com"}}, "https://allowed.com", "example.com", true},
		{"origin not in list blocked", &WebSocketConfig{AllowedOrigins: []string{"https://allowed.com"}}, "https://attacker.com", "example.com", false},
		{"wildcard allows all", &WebSocketConfig{AllowedOrigins: []string{"*"}}, "https://any-site.com", "example.com", true},
		{"insecure dev mode allows all", &WebSocketConfig{InsecureDevMode: true}, "https://attacker.com", "example.com", true},
		{"cross-origin blocked by default", &WebSocketConfig{}, "https://other-site.com", "example.com", false},
		{"malformed origin blocked", &WebSocketConfig{}, "://bad", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewWebSocketTransportWithConfig(DefaultTransportConfig(), tt.wsConfig)
			assert.Equal(t, tt.expectAllowed, transport.isOriginAllowed(tt.origin, tt.host))
		})
	}
}

func TestWebSocket_OriginPatterns(t *testing.T) {
	transport := NewWebSocketTransportWithConfig(nil, &WebSocketConfig{
		AllowedOrigins: []string{"https://allowed.com", "*", "plain.example"},
	})

	assert.Equal(t, []string{"allowed.com", "*", "plain.example"}, transport.originPatterns())
}

func TestWebSocket_RejectsInvalidOrigin(t *testing.T) {
	transport := NewWebSocketTransportWithConfig(DefaultTransportConfig(), &WebSocketConfig{
		AllowedOrigins: []string{"https://allowed.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/live/ws", nil)
	req.Header.Set("Origin", "https://attacker.com")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Host = "example.com"

	w := httptest.NewRecorder()
	err := transport.Upgrade(w, req)

	assert.ErrorIs(t, err, ErrOriginNotAllowed)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDefaultWebSocketConfig(t *testing.T) {
	config := DefaultWebSocketConfig()

	assert.False(t, config.InsecureDevMode)
	assert.Nil(t, config.AllowedOrigins)
}

func TestWebSocket_RoundTrip(t *testing.T) {
	accepted := make(chan *WebSocketTransport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server := NewWebSocketTransport(nil)
		if err := server.Upgrade(w, r); err != nil {
			return
		}
		accepted <- server
	}))
	defer srv.Close()

	client := NewWebSocketTransport(nil)
	client.SetURL("ws" + strings.TrimPrefix(srv.URL, "http"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	var server *WebSocketTransport
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("server did not accept")
	}
	defer server.Close()

	require.NoError(t, client.Send(NewMessage("lv:1", "change", map[string]any{"field": "city"}).WithRef("7")))

	select {
	case msg := <-server.Receive():
		assert.Equal(t, "change", msg.Event)
		assert.Equal(t, "7", msg.Ref)
		assert.Equal(t, "city", msg.Payload["field"])
	case <-ctx.Done():
		t.Fatal("message not received")
	}

	require.NoError(t, client.Close())
	select {
	case <-server.CloseChan():
	case <-ctx.Done():
		t.Fatal("server did not observe close")
	}
	assert.False(t, server.IsConnected())
}

func TestWebSocket_SendWhenDisconnected(t *testing.T) {
	transport := NewWebSocketTransport(nil)
	assert.ErrorIs(t, transport.Send(Message{Event: "x"}), ErrNotConnected)
}
