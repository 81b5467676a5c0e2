package router

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/kycform/pkg/core"
	"github.com/gabrielmiguelok/kycform/pkg/state"
	"github.com/gabrielmiguelok/kycform/pkg/transport"
)

// LiveViewSession binds one WebSocket connection to its component instance.
// Everything below the exported fields belongs to the session's message
// loop and is never touched from another goroutine.
type LiveViewSession struct {
	// ID identifies the connection. It also keys the event rate limiter.
	ID string

	// Token is the reconnect token handed to the client on join.
	// It keys the session snapshot.
	Token string

	SocketID  string
	Component core.Component
	Socket    *core.Socket
	Transport *transport.WebSocketTransport
	Params    core.Params
	Session   core.Session
	Topic     string
	CreatedAt time.Time

	// ClientIP holds the connection-limit slot released on close.
	ClientIP string

	mounted    bool
	version    uint64
	slotHashes map[string]uint64

	// record is reused across snapshot saves so its version keeps counting.
	record *state.SessionRecord
}

func NewLiveViewSession(socketID string, comp core.Component, params core.Params, session core.Session) *LiveViewSession {
	return &LiveViewSession{
		ID:        generateID(),
		SocketID:  socketID,
		Component: comp,
		Params:    params,
		Session:   session,
		Topic:     "lv:" + socketID,
		CreatedAt: time.Now(),
	}
}

func (s *LiveViewSession) SetMounted(mounted bool) { s.mounted = mounted }

func (s *LiveViewSession) IsMounted() bool { return s.mounted }

// NextVersion increments and returns the diff version.
func (s *LiveViewSession) NextVersion() uint64 {
	s.version++
	return s.version
}

// SlotHashes are the hashes of the slots last sent to the client. Nil
// forces the next diff to carry every slot.
func (s *LiveViewSession) SlotHashes() map[string]uint64 { return s.slotHashes }

func (s *LiveViewSession) SetSlotHashes(hashes map[string]uint64) { s.slotHashes = hashes }

// LiveViewSessionManager counts live sessions against an optional cap.
type LiveViewSessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*LiveViewSession
	maxSessions int
}

// NewLiveViewSessionManager creates a manager; maxSessions of zero means no limit.
func NewLiveViewSessionManager(maxSessions int) *LiveViewSessionManager {
	return &LiveViewSessionManager{
		sessions:    make(map[string]*LiveViewSession),
		maxSessions: max(maxSessions, 0),
	}
}

// Full reports whether the cap has been reached. Upgrades check it before
// accepting so a full server answers with a plain HTTP error.
func (m *LiveViewSessionManager) Full() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.full()
}

func (m *LiveViewSessionManager) full() bool {
	return m.maxSessions > 0 && len(m.sessions) >= m.maxSessions
}

// Create registers a new session, or returns ErrTooManySessions.
func (m *LiveViewSessionManager) Create(socketID string, comp core.Component, params core.Params, session core.Session) (*LiveViewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.full() {
		return nil, ErrTooManySessions
	}
	lv := NewLiveViewSession(socketID, comp, params, session)
	m.sessions[lv.ID] = lv
	return lv, nil
}

func (m *LiveViewSessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *LiveViewSessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateID returns a random UUID as 32 hex characters. Reconnect tokens
// use the same shape.
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
