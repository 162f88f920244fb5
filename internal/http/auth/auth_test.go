package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerstore "github.com/MrJamesThe3rd/salesledger/internal/ledger/store"
	"github.com/MrJamesThe3rd/salesledger/internal/password"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
	userstore "github.com/MrJamesThe3rd/salesledger/internal/user/store"
)

func newManager(t *testing.T) *Manager {
	t.Helper()

	m, _ := newManagerWithBooks(t)

	return m
}

func newManagerWithBooks(t *testing.T) (*Manager, *session.Books) {
	t.Helper()

	dir := t.TempDir()
	users := user.NewService(userstore.NewCSV(filepath.Join(dir, "users.csv"), nil), password.SHA256{}, nil)

	for _, name := range []string{"alice", "bob"} {
		_, err := users.Register(context.Background(), name, "secret")
		require.NoError(t, err)
	}

	store := ledgerstore.NewCSV(dir, nil)
	books := session.NewBooks()

	return NewManager("secret-key", time.Hour, func() *session.Session {
		return session.New(users, store, session.PerUser, nil, session.WithBooks(books))
	}, nil), books
}

func TestManager_LoginResolveLogout(t *testing.T) {
	m := newManager(t)

	tok, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Active())

	id, e, err := m.Resolve(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Username())

	m.Logout(id)
	assert.Equal(t, 0, m.Active())

	_, _, err = m.Resolve(tok.AccessToken)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_LoginInvalid(t *testing.T) {
	m := newManager(t)

	_, err := m.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	assert.Equal(t, 0, m.Active())
}

func TestManager_ResolveRejects(t *testing.T) {
	m := newManager(t)

	tok, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	other := NewManager("other-key", time.Hour, nil, nil)
	_, _, err = other.Resolve(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong signing key")

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{ID: "x", Issuer: issuer})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = m.Resolve(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = m.Resolve(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestManager_PrunesExpired(t *testing.T) {
	m := newManager(t)

	_, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Active())
}

func TestManager_ReleasesLedgerCache(t *testing.T) {
	m, books := newManagerWithBooks(t)

	first, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	second, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, books.Open(), "both tokens share alice's ledger")

	id, _, err := m.Resolve(first.AccessToken)
	require.NoError(t, err)
	m.Logout(id)
	assert.Equal(t, 1, books.Open())

	// bob's login prunes alice's expired token and drops her ledger.
	m.now = func() time.Time { return second.ExpiresAt.Add(time.Minute) }

	_, err = m.Login(context.Background(), "bob", "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Active())
	assert.Equal(t, 1, books.Open(), "only bob's ledger is cached")
}

func TestManager_Middleware(t *testing.T) {
	m := newManager(t)

	tok, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	var seen string

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e, ok := FromContext(r.Context()); ok {
			seen = e.Username()
		}

		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "Missing", header: "", want: http.StatusUnauthorized},
		{name: "WrongScheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "Garbage", header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "Valid", header: "Bearer " + tok.AccessToken, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, "alice", seen)
}
