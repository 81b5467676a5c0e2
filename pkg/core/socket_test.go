package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTransport implements Transport for testing.
type MockTransport struct {
	connected bool
	messages  []Message
	mu        sync.Mutex
}

func NewMockTransport() *MockTransport {
	return &MockTransport{connected: true}
}

func (m *MockTransport) Send(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrSocketClosed
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockTransport) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Message, len(m.messages))
	copy(result, m.messages)
	return result
}

func TestNewSocket(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())

	assert.Equal(t, "test-id", socket.ID())
	assert.Equal(t, "lv:test-id", socket.Topic())
	assert.True(t, socket.IsConnected())
}

func TestSocket_TransportDisconnected(t *testing.T) {
	transport := NewMockTransport()
	socket := NewSocket("test-id", transport)

	require.NoError(t, transport.Close())
	assert.False(t, socket.IsConnected())
	assert.ErrorIs(t, socket.Send(Message{Event: "x"}), ErrSocketClosed)
}

func TestSocket_Send_Closed(t *testing.T) {
	transport := NewMockTransport()
	socket := NewSocket("test-id", transport)

	require.NoError(t, socket.Close())
	assert.False(t, socket.IsConnected())
	assert.ErrorIs(t, socket.Send(Message{Event: "x"}), ErrSocketClosed)
	assert.Empty(t, transport.Messages())
}

func TestSocket_Send_Concurrent(t *testing.T) {
	transport := NewMockTransport()
	socket := NewSocket("test-id", transport)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			socket.Send(Message{Event: "ping"})
		}()
	}
	wg.Wait()

	assert.Len(t, transport.Messages(), 50)
}

func TestSocket_CloseDuringSend(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			socket.Send(Message{Event: "ping"})
		}()
		go func() {
			defer wg.Done()
			socket.Close()
		}()
	}
	wg.Wait()

	assert.False(t, socket.IsConnected())
}

func TestSocket_SendDiff(t *testing.T) {
	transport := NewMockTransport()
	socket := NewSocket("test-id", transport)

	err := socket.SendDiff(&DiffPayload{Version: 3, HTMLSlots: map[string]string{"app": "<p>hi</p>"}})
	require.NoError(t, err)

	msgs := transport.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, DiffEvent, msgs[0].Event)
	assert.Equal(t, "lv:test-id", msgs[0].Topic)
	assert.Equal(t, uint64(3), msgs[0].Payload["v"])
	assert.Equal(t, map[string]string{"app": "<p>hi</p>"}, msgs[0].Payload["h"])
}

func TestSocket_SendDiff_NilAndEmpty(t *testing.T) {
	transport := NewMockTransport()
	socket := NewSocket("test-id", transport)

	assert.NoError(t, socket.SendDiff(nil))
	assert.NoError(t, socket.SendDiff(&DiffPayload{Version: 1}))
	assert.Empty(t, transport.Messages())
}

func TestDiffPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload DiffPayload
		empty   bool
		size    int
	}{
		{"zero", DiffPayload{}, true, 0},
		{"version only", DiffPayload{Version: 7}, true, 0},
		{"text slot", DiffPayload{Slots: map[string]string{"a": "abc"}}, false, 3},
		{"html slot", DiffPayload{HTMLSlots: map[string]string{"a": "<b></b>"}}, false, 7},
		{"full", DiffPayload{Full: "<div></div>", Slots: map[string]string{"x": "1"}}, false, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.empty, tt.payload.IsEmpty())
			assert.Equal(t, tt.size, tt.payload.Size())
		})
	}
}

func TestSocket_SendInfo(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())

	require.NoError(t, socket.SendInfo("done"))

	select {
	case msg := <-socket.Info():
		assert.Equal(t, "done", msg)
	case <-time.After(time.Second):
		t.Fatal("info message not delivered")
	}
}

func TestSocket_SendInfo_Full(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())

	for i := range DefaultInfoBuffer {
		require.NoError(t, socket.SendInfo(i))
	}
	assert.ErrorIs(t, socket.SendInfo("overflow"), ErrInfoQueueFull)
}

func TestSocket_SendInfo_AfterClose(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())
	require.NoError(t, socket.Close())
	require.NoError(t, socket.Close())

	assert.ErrorIs(t, socket.SendInfo("late"), ErrSocketClosed)

	select {
	case <-socket.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSocketManager_AddRemove(t *testing.T) {
	sm := NewSocketManager()
	s1 := NewSocket("one", NewMockTransport())
	s2 := NewSocket("two", NewMockTransport())

	assert.True(t, sm.Add(s1))
	assert.True(t, sm.Add(s2))
	assert.Equal(t, 2, sm.Count())

	sm.Remove("one")
	sm.Remove("one")
	assert.Equal(t, 1, sm.Count())
}

func TestSocketManager_Shutdown(t *testing.T) {
	sm := NewSocketManager()
	socket := NewSocket("one", NewMockTransport())
	sm.Add(socket)

	// Simulates the session loop removing its socket once closed.
	go func() {
		<-socket.Done()
		sm.Remove(socket.ID())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sm.Shutdown(ctx))

	assert.True(t, sm.IsShutdown())
	assert.False(t, socket.IsConnected())
	assert.False(t, sm.Add(NewSocket("late", NewMockTransport())))
	require.NoError(t, sm.Shutdown(ctx), "a second shutdown only waits")
}

func TestSocketManager_ShutdownEmpty(t *testing.T) {
	sm := NewSocketManager()
	require.NoError(t, sm.Shutdown(context.Background()))
}

func TestSocketManager_ShutdownTimeout(t *testing.T) {
	sm := NewSocketManager()
	sm.Add(NewSocket("stuck", NewMockTransport()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sm.Shutdown(ctx), context.DeadlineExceeded)
}

func TestBuildContext(t *testing.T) {
	socket := NewSocket("ctx", NewMockTransport())
	ctx := BuildContext(context.Background(), socket, Session{"user": "u1"}, Params{"step": "2"})

	assert.Same(t, socket, SocketFromContext(ctx))
	assert.Equal(t, "u1", SessionFromContext(ctx).GetString("user"))
	assert.Equal(t, "2", ParamsFromContext(ctx).Get("step"))
	assert.Empty(t, ParamsFromContext(ctx).Get("missing"))

	static := BuildContext(context.Background(), nil, nil, nil)
	assert.Nil(t, SocketFromContext(static))

	bare := context.Background()
	assert.Nil(t, SocketFromContext(bare))
	assert.Empty(t, ParamsFromContext(bare).Get("step"))
}
