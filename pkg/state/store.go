// Package state stores LiveView session snapshots so a reconnecting client
// gets its form back. Backends: in-memory (default) and Redis.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common store errors.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrStoreClosed = errors.New("store is closed")
	ErrInvalidData = errors.New("invalid data format")
)

// Store is a key/value backend with per-key expiry.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value; a ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// SessionRecord is what the router persists for one LiveView session.
type SessionRecord struct {
	Token     string    `msgpack:"token"`
	Component string    `msgpack:"component"`
	Data      []byte    `msgpack:"data"`
	Version   uint64    `msgpack:"version"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

// SessionStore saves and loads session records on top of a Store.
type SessionStore struct {
	store     Store
	codec     *Codec[SessionRecord]
	keyPrefix string
	ttl       time.Duration
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) SessionStoreOption {
	return func(ss *SessionStore) {
		ss.keyPrefix = prefix
	}
}

// WithTTL sets how long an idle session record is kept.
func WithTTL(ttl time.Duration) SessionStoreOption {
	return func(ss *SessionStore) {
		ss.ttl = ttl
	}
}

// NewSessionStore creates a session store.
func NewSessionStore(store Store, opts ...SessionStoreOption) *SessionStore {
	ss := &SessionStore{
		store:     store,
		codec:     NewCodec[SessionRecord](),
		keyPrefix: "kycform:session:",
		ttl:       30 * time.Minute,
	}
	for _, opt := range opts {
		opt(ss)
	}
	return ss
}

// TTL returns the record lifetime.
func (ss *SessionStore) TTL() time.Duration {
	return ss.ttl
}

// Save persists rec under its token and refreshes the TTL.
func (ss *SessionStore) Save(ctx context.Context, rec *SessionRecord) error {
	if rec.Token == "" {
		return fmt.Errorf("save session: %w: empty token", ErrInvalidData)
	}
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()

	data, err := ss.codec.Encode(*rec)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return ss.store.Set(ctx, ss.keyPrefix+rec.Token, data, ss.ttl)
}

// Load returns the record for token, or ErrKeyNotFound.
func (ss *SessionStore) Load(ctx context.Context, token string) (*SessionRecord, error) {
	data, err := ss.store.Get(ctx, ss.keyPrefix+token)
	if err != nil {
		return nil, err
	}

	rec, err := ss.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &rec, nil
}

// Delete removes the record for token.
func (ss *SessionStore) Delete(ctx context.Context, token string) error {
	return ss.store.Delete(ctx, ss.keyPrefix+token)
}
