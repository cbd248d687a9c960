package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("newTestSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// failingBackend simulates storage that the host environment blocks entirely.
type failingBackend struct{}

var errBlocked = errors.New("blocked")

func (failingBackend) Get(context.Context, string) (string, error) { return "", errBlocked }
func (failingBackend) Set(context.Context, string, string) error { return errBlocked }
func (failingBackend) Remove(context.Context, string) error { return errBlocked }

func testBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
	if err := b.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "v2" {
		t.Errorf("Get = %q, want last write v2", v)
	}
	if err := b.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove err = %v", err)
	}
	if err := b.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove of absent key: %v", err)
	}
}

func TestSQLiteBackend(t *testing.T) {
	testBackend(t, newTestSQLite(t))
}

func TestMemoryBackend(t *testing.T) {
	testBackend(t, NewMemory(0))
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("PORTAL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PORTAL_TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(context.Background(), addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	testBackend(t, r)
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "a", "1")
	_ = m.Set(ctx, "b", "2")
	now = now.Add(30 * time.Second)
	if v, err := m.Get(ctx, "a"); err != nil || v != "1" {
		t.Fatalf("Get before expiry = %q, %v", v, err)
	}

	now = now.Add(time.Minute)
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired key, got %v", err)
	}
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
}

func TestSQLiteKeys(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	for _, k := range []string{"sess:b", "sess:a", "other"} {
		if err := s.Set(ctx, k, "x"); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	keys, err := s.Keys(ctx, "sess:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "sess:a" || keys[1] != "sess:b" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestAdapterScopes(t *testing.T) {
	ctx := context.Background()
	durable := NewMemory(0)
	session := NewMemory(0)
	a := NewAdapter(durable, session)

	_ = a.Set(ctx, "k", "durable", Durable)
	_ = a.Set(ctx, "k", "session", Session)

	if v, _ := a.Get(ctx, "k", Durable); v != "durable" {
		t.Errorf("durable = %q", v)
	}
	if v, _ := a.Get(ctx, "k", Session); v != "session" {
		t.Errorf("session = %q", v)
	}
}

func TestAdapterForSession(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemory(0), NewMemory(0))
	one := a.ForSession("one")
	two := a.ForSession("two")

	_ = one.Set(ctx, "wizard", "step3", Session)
	if _, ok := two.Get(ctx, "wizard", Session); ok {
		t.Error("session values leaked between browser sessions")
	}
	if v, ok := one.Get(ctx, "wizard", Session); !ok || v != "step3" {
		t.Errorf("one.Get = %q, %v", v, ok)
	}

	_ = one.Set(ctx, "shared", "yes", Durable)
	if v, ok := two.Get(ctx, "shared", Durable); !ok || v != "yes" {
		t.Errorf("durable values should be shared, got %q, %v", v, ok)
	}
}

func TestAdapterToleratesFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		adapter *Adapter
	}{
		{"failing backends", NewAdapter(failingBackend{}, failingBackend{})},
		{"no backends", NewAdapter(nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, scope := range []Scope{Durable, Session} {
				if v, ok := tt.adapter.Get(ctx, "k", scope); ok || v != "" {
					t.Errorf("Get(%s) = %q, %v; want absent", scope, v, ok)
				}
				if err := tt.adapter.Set(ctx, "k", "v", scope); err == nil {
					t.Errorf("Set(%s) should report the failure", scope)
				}
				if err := tt.adapter.Remove(ctx, "k", scope); err == nil {
					t.Errorf("Remove(%s) should report the failure", scope)
				}
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemory(0), nil)

	type payload struct {
		Items []string `json:"items"`
	}

	var got payload
	if LoadJSON(ctx, a, "p", Durable, &got) {
		t.Error("LoadJSON of absent key should return false")
	}

	if err := SaveJSON(ctx, a, "p", Durable, payload{Items: []string{"a", "b"}}); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	if !LoadJSON(ctx, a, "p", Durable, &got) || len(got.Items) != 2 {
		t.Errorf("LoadJSON = %+v", got)
	}

	_ = a.Set(ctx, "p", "{not json", Durable)
	fallback := payload{Items: []string{"default"}}
	if LoadJSON(ctx, a, "p", Durable, &fallback) {
		t.Error("corrupt blob should not load")
	}
	if len(fallback.Items) != 1 || fallback.Items[0] != "default" {
		t.Errorf("corrupt blob modified dst: %+v", fallback)
	}
}

func TestNewSQLiteBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "portal.db")
	if _, err := NewSQLite(path); err == nil {
		t.Fatal("expected error for a path in a missing directory")
	}
}

type plainBackend struct{ Backend }

func TestAdapterKeys(t *testing.T) {
	ctx := context.Background()
	durable := newTestSQLite(t)
	session := NewMemory(0)
	a := NewAdapter(durable, session)
	browser := a.ForSession("sid1")

	_ = a.Set(ctx, "pre:b", "1", Durable)
	_ = a.Set(ctx, "pre:a", "1", Durable)
	_ = a.Set(ctx, "other", "1", Durable)
	_ = browser.Set(ctx, "pre:x", "1", Session)
	_ = a.ForSession("sid2").Set(ctx, "pre:y", "1", Session)

	keys, err := a.Keys(ctx, "pre:", Durable)
	if err != nil || len(keys) != 2 || keys[0] != "pre:a" || keys[1] != "pre:b" {
		t.Errorf("durable Keys = %v, %v", keys, err)
	}
	keys, err = browser.Keys(ctx, "pre:", Session)
	if err != nil || len(keys) != 1 || keys[0] != "pre:x" {
		t.Errorf("session Keys = %v, %v", keys, err)
	}

	if _, err := NewAdapter(plainBackend{durable}, nil).Keys(ctx, "pre:", Durable); !errors.Is(err, ErrNoListing) {
		t.Errorf("err = %v, want ErrNoListing", err)
	}
	if _, err := NewAdapter(nil, nil).Keys(ctx, "pre:", Durable); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestMemoryKeysSkipsExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	_ = m.Set(ctx, "k:old", "1")
	now = now.Add(30 * time.Second)
	_ = m.Set(ctx, "k:new", "1")
	now = now.Add(45 * time.Second)

	keys, _ := m.Keys(ctx, "k:")
	if len(keys) != 1 || keys[0] != "k:new" {
		t.Errorf("Keys = %v", keys)
	}
}
