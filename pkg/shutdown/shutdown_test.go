package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gabrielmiguelok/kycform/pkg/logging"
)

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestHandler_RunsHooksInPriorityOrder(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second, Logger: logging.FromZap(zaptest.NewLogger(t))})

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	h.RegisterFunc("store", PriorityStore, record("store"))
	h.RegisterFunc("http", PriorityHTTP, record("http"))
	h.RegisterFunc("live", PriorityLive, record("live"))

	require.NoError(t, h.Shutdown())
	assert.Equal(t, []string{"http", "live", "store"}, order)

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestHandler_CollectsErrors(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second})
	boom := errors.New("boom")

	h.RegisterFunc("bad", 1, func(context.Context) error { return boom })
	c := &closer{}
	h.Register(CloseableHook("closer", 2, c))

	err := h.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.True(t, c.closed, "later hooks still run")
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler(&Config{Timeout: 20 * time.Millisecond})
	h.RegisterFunc("slow", 1, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	ran := false
	h.RegisterFunc("after", 2, func(context.Context) error {
		ran = true
		return nil
	})

	assert.ErrorIs(t, h.Shutdown(), ErrShutdownTimeout)
	assert.False(t, ran)
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h := NewHandler(nil)
	require.NoError(t, h.Shutdown())
	assert.ErrorIs(t, h.Shutdown(), ErrAlreadyClosed)
}

func TestHandler_WaitReturnsOnContextCancel(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second})
	ran := make(chan struct{})
	h.RegisterFunc("hook", 1, func(context.Context) error {
		close(ran)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
	<-ran
}

func TestHandler_SamePriorityRunsConcurrently(t *testing.T) {
	h := NewHandler(&Config{Timeout: 2 * time.Second})

	// Each hook waits for the other, so only concurrent execution finishes.
	a, b := make(chan struct{}), make(chan struct{})
	rendezvous := func(mine, other chan struct{}) func(context.Context) error {
		return func(ctx context.Context) error {
			close(mine)
			select {
			case <-other:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	h.RegisterFunc("a", PriorityStore, rendezvous(a, b))
	h.RegisterFunc("b", PriorityStore, rendezvous(b, a))

	assert.NoError(t, h.Shutdown())
}

func TestStages(t *testing.T) {
	hooks := []Hook{
		{Name: "store", Priority: PriorityStore},
		{Name: "http", Priority: PriorityHTTP},
		{Name: "cache", Priority: PriorityStore},
	}

	var names [][]string
	for _, stage := range stages(hooks) {
		var row []string
		for _, hook := range stage {
			row = append(row, hook.Name)
		}
		names = append(names, row)
	}
	assert.Equal(t, [][]string{{"http"}, {"store", "cache"}}, names)
	assert.Empty(t, stages(nil))
}
