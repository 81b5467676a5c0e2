package limits

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimiter(t *testing.T) {
	cl := NewConnectionLimiter(2)

	require.True(t, cl.Acquire("10.0.0.1"))
	require.True(t, cl.Acquire("10.0.0.1"))
	assert.False(t, cl.Acquire("10.0.0.1"))
	assert.True(t, cl.Acquire("10.0.0.2"))

	assert.Equal(t, 2, cl.Count("10.0.0.1"))
	assert.Equal(t, int64(3), cl.TotalAllowed())
	assert.Equal(t, int64(1), cl.TotalBlocked())

	cl.Release("10.0.0.1")
	assert.True(t, cl.Acquire("10.0.0.1"))

	cl.Release("10.0.0.2")
	cl.Release("10.0.0.2")
	assert.Equal(t, 0, cl.Count("10.0.0.2"))
}

func TestConnectionLimiter_Unlimited(t *testing.T) {
	cl := NewConnectionLimiter(0)
	for range 100 {
		require.True(t, cl.Acquire("10.0.0.1"))
	}
	assert.Equal(t, 100, cl.Count("10.0.0.1"))
}

func TestConnectionLimiter_Concurrent(t *testing.T) {
	cl := NewConnectionLimiter(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cl.Acquire("10.0.0.1") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.Equal(t, int64(40), cl.TotalBlocked())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", ClientIP(r))

	r.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", ClientIP(r))
}

func TestEventLimiter(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	el := NewEventLimiter(2, 3)

	for i := range 3 {
		assert.True(t, el.allowAt("a", clock), "burst event %d", i)
	}
	assert.False(t, el.allowAt("a", clock))
	assert.True(t, el.allowAt("b", clock), "keys are independent")

	clock = clock.Add(500 * time.Millisecond)
	assert.True(t, el.allowAt("a", clock))
	assert.False(t, el.allowAt("a", clock))

	clock = clock.Add(time.Hour)
	for range 3 {
		assert.True(t, el.allowAt("a", clock))
	}
	assert.False(t, el.allowAt("a", clock), "refill is capped at burst")
}

func TestEventLimiter_Allow(t *testing.T) {
	el := NewEventLimiter(0.001, 2)

	assert.True(t, el.Allow("a"))
	assert.True(t, el.Allow("a"))
	assert.False(t, el.Allow("a"))
}

func TestEventLimiter_Forget(t *testing.T) {
	el := NewEventLimiter(1, 1)
	el.Allow("a")
	el.Allow("b")
	require.Equal(t, 2, el.Len())

	el.Forget("a")
	assert.Equal(t, 1, el.Len())
	assert.True(t, el.Allow("a"))
}

func TestEventLimiter_Disabled(t *testing.T) {
	el := NewEventLimiter(0, 0)
	for range 1000 {
		require.True(t, el.Allow("a"))
	}
	assert.Equal(t, 0, el.Len())
}
