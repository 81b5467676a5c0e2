// Package limits caps live connections per client and the rate of events
// each live session may send.
package limits

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
)

// ConnectionLimiter limits concurrent connections per IP address.
// A max of zero or less disables the limit.
type ConnectionLimiter struct {
	maxPerIP int

	mu          sync.Mutex
	connections map[string]int

	totalBlocked atomic.Int64
	totalAllowed atomic.Int64
}

// NewConnectionLimiter creates a connection limiter.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxPerIP:    maxPerIP,
		connections: make(map[string]int),
	}
}

// Acquire takes a connection slot for ip. It returns false when ip is at
// its limit; in that case Release must not be called.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.maxPerIP > 0 && cl.connections[ip] >= cl.maxPerIP {
		cl.totalBlocked.Add(1)
		return false
	}
	cl.connections[ip]++
	cl.totalAllowed.Add(1)
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n := cl.connections[ip] - 1
	if n <= 0 {
		delete(cl.connections, ip)
		return
	}
	cl.connections[ip] = n
}

// Count returns the current connection count for an IP.
func (cl *ConnectionLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.connections[ip]
}

// TotalBlocked returns the number of refused acquisitions.
func (cl *ConnectionLimiter) TotalBlocked() int64 {
	return cl.totalBlocked.Load()
}

// TotalAllowed returns the number of granted acquisitions.
func (cl *ConnectionLimiter) TotalAllowed() int64 {
	return cl.totalAllowed.Load()
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// not read here; chi's RealIP middleware rewrites RemoteAddr upstream.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
