// Package store provides the best-effort key-value persistence used by every stateful
// part of the portal. Durable values survive restarts; session values live only as long
// as a browser session.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned by a Backend when the key is absent.
var ErrNotFound = errors.New("key not found")

// ErrUnavailable is returned when a scope has no backend at all.
var ErrUnavailable = errors.New("storage unavailable")

// Backend is a raw key-value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by backends that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ErrNoListing is returned by Adapter.Keys when the backend is not a Lister.
var ErrNoListing = errors.New("storage cannot list keys")

// Scope selects the durable or the session-scoped backend.
type Scope int

const (
	Durable Scope = iota
	Session
)

func (s Scope) String() string {
	if s == Session {
		return "session"
	}
	return "durable"
}

// Adapter wraps the two backends. None of its methods panic on storage failure:
// reads degrade to "absent", writes are logged and reported.
type Adapter struct {
	durable   Backend
	session   Backend
	sessionID string
}

// NewAdapter creates an adapter. Either backend may be nil, in which case every
// operation on that scope fails softly.
func NewAdapter(durable, session Backend) *Adapter {
	return &Adapter{durable: durable, session: session}
}

// ForSession returns a view whose session-scope keys are namespaced by sid.
func (a *Adapter) ForSession(sid string) *Adapter {
	return &Adapter{durable: a.durable, session: a.session, sessionID: sid}
}

func (a *Adapter) resolve(key string, scope Scope) (Backend, string) {
	if scope == Session {
		if a.sessionID != "" {
			key = a.sessionID + ":" + key
		}
		return a.session, key
	}
	return a.durable, key
}

// Get returns the stored value and true, or "" and false if the key is absent or
// the storage cannot be read.
func (a *Adapter) Get(ctx context.Context, key string, scope Scope) (string, bool) {
	b, k := a.resolve(key, scope)
	if b == nil {
		slog.Warn("storage access blocked", "key", key, "scope", scope, "error", ErrUnavailable)
		return "", false
	}
	v, err := b.Get(ctx, k)
	if errors.Is(err, ErrNotFound) {
		return "", false
	}
	if err != nil {
		slog.Warn("storage access blocked", "key", key, "scope", scope, "error", err)
		return "", false
	}
	return v, true
}

// Set stores value under key. A failure is logged and returned; callers may ignore it.
func (a *Adapter) Set(ctx context.Context, key, value string, scope Scope) error {
	b, k := a.resolve(key, scope)
	if b == nil {
		slog.Warn("storage write blocked", "key", key, "scope", scope, "error", ErrUnavailable)
		return ErrUnavailable
	}
	if err := b.Set(ctx, k, value); err != nil {
		slog.Warn("storage write blocked", "key", key, "scope", scope, "error", err)
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (a *Adapter) Remove(ctx context.Context, key string, scope Scope) error {
	b, k := a.resolve(key, scope)
	if b == nil {
		slog.Warn("storage remove blocked", "key", key, "scope", scope, "error", ErrUnavailable)
		return ErrUnavailable
	}
	if err := b.Remove(ctx, k); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Warn("storage remove blocked", "key", key, "scope", scope, "error", err)
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys returns the keys in scope that start with prefix. Session keys come back
// without the session namespace.
func (a *Adapter) Keys(ctx context.Context, prefix string, scope Scope) ([]string, error) {
	b, p := a.resolve(prefix, scope)
	if b == nil {
		return nil, ErrUnavailable
	}
	l, ok := b.(Lister)
	if !ok {
		return nil, ErrNoListing
	}
	keys, err := l.Keys(ctx, p)
	if err != nil {
		slog.Warn("storage listing blocked", "prefix", prefix, "scope", scope, "error", err)
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	strip := len(p) - len(prefix)
	for i, k := range keys {
		keys[i] = k[strip:]
	}
	return keys, nil
}

// LoadJSON decodes the blob under key into dst. It returns false, leaving dst
// untouched, when the key is absent, unreadable or corrupt.
func LoadJSON(ctx context.Context, a *Adapter, key string, scope Scope, dst any) bool {
	raw, ok := a.Get(ctx, key, scope)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.Warn("discarding corrupt stored value", "key", key, "scope", scope, "error", err)
		return false
	}
	return true
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, a *Adapter, key string, scope Scope, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return a.Set(ctx, key, string(data), scope)
}
