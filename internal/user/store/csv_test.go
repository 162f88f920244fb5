package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/salesledger/internal/password"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
	"github.com/MrJamesThe3rd/salesledger/internal/user/store"
)

func TestCSV_LoadMissing(t *testing.T) {
	s := store.NewCSV(filepath.Join(t.TempDir(), "users.csv"), nil)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSV_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	s := store.NewCSV(path, nil)

	accounts := []user.Account{
		{Username: "alice", PasswordHash: password.Digest("secret")},
		{Username: "bob", PasswordHash: "$2a$04$abcdefghijklmnopqrstuv"},
	}

	require.NoError(t, s.Save(context.Background(), accounts))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "username,password\nalice,"+password.Digest("secret")+"\nbob,$2a$04$abcdefghijklmnopqrstuv\n", string(raw))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accounts, got)
}

func TestCSV_LoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "MissingPasswordColumn", content: "username,hash\nalice,x\n"},
		{name: "ShortRow", content: "username,password\nalice\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "users.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := store.NewCSV(path, nil).Load(context.Background())
			assert.ErrorIs(t, err, store.ErrMalformed)
		})
	}
}

// Register and authenticate against a real file, the way a fresh install runs.
func TestCSV_WithService(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.csv")
	svc := user.NewService(store.NewCSV(path, nil), password.SHA256{}, nil)

	_, err := svc.Authenticate(ctx, "alice", "secret")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)

	_, err = svc.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "different")
	assert.ErrorIs(t, err, user.ErrUsernameTaken)

	_, err = svc.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err, "original hash must survive a rejected registration")

	_, err = svc.Authenticate(ctx, "alice", "different")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "alice,2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b")
}

func TestCSV_ConcurrentRegister(t *testing.T) {
	ctx := context.Background()
	svc := user.NewService(store.NewCSV(filepath.Join(t.TempDir(), "users.csv"), nil), password.SHA256{}, nil)

	const n = 20

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.Register(ctx, fmt.Sprintf("u%d", i), "pw")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	for i := range n {
		ok, err := svc.Exists(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		assert.True(t, ok, "u%d must survive concurrent registrations", i)
	}
}

func TestCSV_ConcurrentRegisterSameName(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.csv")
	svc := user.NewService(store.NewCSV(path, nil), password.SHA256{}, nil)

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.Register(ctx, "alice", fmt.Sprintf("pw%d", i))

			switch {
			case err == nil:
				created.Add(1)
			case !errors.Is(err, user.ErrUsernameTaken):
				assert.NoError(t, err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), created.Load())

	accounts, err := store.NewCSV(path, nil).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestCSV_UpdateHash(t *testing.T) {
	ctx := context.Background()
	s := store.NewCSV(filepath.Join(t.TempDir(), "users.csv"), nil)

	require.NoError(t, s.Create(ctx, user.Account{Username: "alice", PasswordHash: "old"}))
	require.NoError(t, s.Create(ctx, user.Account{Username: "bob", PasswordHash: "b"}))
	assert.ErrorIs(t, s.Create(ctx, user.Account{Username: "alice", PasswordHash: "x"}), user.ErrUsernameTaken)

	require.NoError(t, s.UpdateHash(ctx, "alice", "new"))
	assert.ErrorIs(t, s.UpdateHash(ctx, "carol", "x"), user.ErrNotFound)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []user.Account{
		{Username: "alice", PasswordHash: "new"},
		{Username: "bob", PasswordHash: "b"},
	}, got)
}
