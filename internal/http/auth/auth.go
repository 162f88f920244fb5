// Package auth issues bearer tokens for logged-in sessions and resolves them
// back to the session on each request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

const issuer = "salesledger"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSession    = errors.New("session not found")
)

// Factory builds an empty session for a login attempt.
type Factory func() *session.Session

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Entry is one live session. Requests sharing a token are serialised on it.
type Entry struct {
	mu        sync.Mutex
	sess      *session.Session
	username  string
	expiresAt time.Time
}

// Do runs fn with exclusive access to the session.
func (e *Entry) Do(fn func(s *session.Session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return fn(e.sess)
}

// end logs the session out once no request is using it.
func (e *Entry) end() {
	_ = e.Do(func(s *session.Session) error {
		s.Logout()
		return nil
	})
}

func (e *Entry) Username() string {
	return e.username
}

type Manager struct {
	secret     []byte
	ttl        time.Duration
	newSession Factory
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Entry
}

func NewManager(secret string, ttl time.Duration, newSession Factory, logger *zap.Logger) *Manager {
	if secret == "" {
		secret = "dev-change-me"
	}

	if ttl <= 0 {
		ttl = 8 * time.Hour
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		secret:     []byte(secret),
		ttl:        ttl,
		newSession: newSession,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Entry),
	}
}

type claims struct {
	jwtlib.RegisteredClaims
}

// Login authenticates through a fresh session and registers it under a new token.
func (m *Manager) Login(ctx context.Context, username, password string) (Token, error) {
	sess := m.newSession()
	if err := sess.Login(ctx, username, password); err != nil {
		return Token{}, err
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	id := uuid.NewString()

	signed, err := m.sign(id, username, now, expiresAt)
	if err != nil {
		sess.Logout()
		return Token{}, fmt.Errorf("signing token: %w", err)
	}

	m.mu.Lock()
	expired := m.pruneLocked(now)
	m.sessions[id] = &Entry{sess: sess, username: username, expiresAt: expiresAt}
	m.mu.Unlock()

	for _, e := range expired {
		e.end()
	}

	return Token{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// Logout ends the session behind id. Unknown ids are ignored.
func (m *Manager) Logout(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		e.end()
	}
}

// Resolve returns the session id and entry for a signed token.
func (m *Manager) Resolve(tokenStr string) (string, *Entry, error) {
	c := &claims{}

	token, err := jwtlib.ParseWithClaims(tokenStr, c, func(t *jwtlib.Token) (any, error) {
		return m.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || c.ID == "" {
		return "", nil, ErrInvalidToken
	}

	m.mu.Lock()
	e, ok := m.sessions[c.ID]
	m.mu.Unlock()

	if !ok {
		return "", nil, ErrNoSession
	}

	return c.ID, e, nil
}

// Active is the number of registered sessions, expired ones included until pruned.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

type ctxKey struct{}

type bound struct {
	id    string
	entry *Entry
}

// Middleware rejects requests without a live bearer token.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		id, e, err := m.Resolve(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, bound{id: id, entry: e})))
	})
}

// FromContext returns the session bound by Middleware.
func FromContext(ctx context.Context) (*Entry, bool) {
	b, ok := ctx.Value(ctxKey{}).(bound)
	return b.entry, ok
}

// IDFromContext returns the token id bound by Middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	b, ok := ctx.Value(ctxKey{}).(bound)
	return b.id, ok
}

func (m *Manager) sign(id, username string, issuedAt, expiresAt time.Time) (string, error) {
	c := claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        id,
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}

	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(m.secret)
}

// pruneLocked unregisters expired entries and returns them. Callers end them
// after releasing m.mu, since ending waits for any request still using one.
func (m *Manager) pruneLocked(now time.Time) []*Entry {
	var expired []*Entry

	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			delete(m.sessions, id)
			expired = append(expired, e)
			m.logger.Debug("session expired", zap.String("username", e.username))
		}
	}

	return expired
}
