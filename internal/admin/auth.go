package admin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sdceria/portal/internal/store"
)

const (
	sessionKeyPrefix = "sas_admin_session:"

	// SessionTTL is how long an admin login stays valid.
	SessionTTL = 24 * time.Hour
)

// ErrBadCredentials is returned by Login for a username/password mismatch.
var ErrBadCredentials = errors.New("username or password is incorrect")

// Credentials is the fixed admin username and password pair.
type Credentials struct {
	Username string
	Password string
}

type adminSession struct {
	Expires time.Time `json:"expires"`
}

// Auth keeps admin logins in the durable scope. The credential check is a plain
// equality test and is not meant as a security boundary.
type Auth struct {
	store    *store.Adapter
	creds    Credentials
	now      func() time.Time
	newToken func() (string, error)
}

// NewAuth creates an Auth for creds.
func NewAuth(a *store.Adapter, creds Credentials) *Auth {
	return &Auth{store: a, creds: creds, now: time.Now, newToken: generateToken}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Login checks the credentials and returns a new session token.
func (a *Auth) Login(ctx context.Context, username, password string) (string, error) {
	if username != a.creds.Username || password != a.creds.Password {
		return "", ErrBadCredentials
	}
	token, err := a.newToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	sess := adminSession{Expires: a.now().Add(SessionTTL)}
	// A failed write still lets this request through; the next one asks again.
	_ = store.SaveJSON(ctx, a.store, sessionKeyPrefix+token, store.Durable, sess)
	if n := a.Sweep(ctx); n > 0 {
		slog.Info("removed expired admin sessions", "count", n)
	}
	return token, nil
}

// Sweep removes every expired or unreadable admin session and returns how many
// were removed.
func (a *Auth) Sweep(ctx context.Context) int {
	keys, err := a.store.Keys(ctx, sessionKeyPrefix, store.Durable)
	if err != nil {
		return 0
	}
	now := a.now()
	n := 0
	for _, k := range keys {
		var sess adminSession
		if store.LoadJSON(ctx, a.store, k, store.Durable, &sess) && now.Before(sess.Expires) {
			continue
		}
		if a.store.Remove(ctx, k, store.Durable) == nil {
			n++
		}
	}
	return n
}

// Authenticated reports whether token belongs to a live admin session.
// Expired sessions are removed.
func (a *Auth) Authenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	var sess adminSession
	if !store.LoadJSON(ctx, a.store, sessionKeyPrefix+token, store.Durable, &sess) {
		return false
	}
	if !a.now().Before(sess.Expires) {
		_ = a.store.Remove(ctx, sessionKeyPrefix+token, store.Durable)
		return false
	}
	return true
}

// Logout ends the session for token.
func (a *Auth) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_ = a.store.Remove(ctx, sessionKeyPrefix+token, store.Durable)
}
