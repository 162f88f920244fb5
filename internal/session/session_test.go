package session_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
	ledgerstore "github.com/MrJamesThe3rd/salesledger/internal/ledger/store"
	"github.com/MrJamesThe3rd/salesledger/internal/password"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
	userstore "github.com/MrJamesThe3rd/salesledger/internal/user/store"
)

var today = time.Date(2024, 5, 6, 15, 4, 5, 0, time.UTC)

func clock() time.Time { return today }

func params(product string, qty int, price, cost string) ledger.Params {
	return ledger.Params{
		Product:     product,
		Quantity:    qty,
		Price:       decimal.RequireFromString(price),
		CostPerUnit: decimal.RequireFromString(cost),
	}
}

// newUsers returns a user service backed by a temp accounts file holding alice/secret.
func newUsers(t *testing.T) *user.Service {
	t.Helper()

	svc := user.NewService(userstore.NewCSV(filepath.Join(t.TempDir(), "users.csv"), nil), password.SHA256{}, nil)

	_, err := svc.Register(context.Background(), "alice", "secret")
	require.NoError(t, err)

	return svc
}

func loggedIn(t *testing.T, repo session.Repository, resolve session.OwnerFunc) *session.Session {
	t.Helper()

	s := session.New(newUsers(t), repo, resolve, nil, session.WithClock(clock))
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))

	return s
}

func TestSession_Login(t *testing.T) {
	type testCase struct {
		name      string
		username  string
		password  string
		resolve   session.OwnerFunc
		setupMock func(m *session.MockRepository)
		wantErr   error
	}

	tests := []testCase{
		{
			name:     "PerUser",
			username: "alice",
			password: "secret",
			resolve:  session.PerUser,
			setupMock: func(m *session.MockRepository) {
				m.EXPECT().Load(gomock.Any(), ledger.UserOwner("alice")).Return(ledger.Empty())
			},
		},
		{
			name:     "Shared",
			username: "alice",
			password: "secret",
			resolve:  session.Shared("erp_data"),
			setupMock: func(m *session.MockRepository) {
				m.EXPECT().Load(gomock.Any(), ledger.SharedOwner("erp_data")).Return(ledger.Empty())
			},
		},
		{
			name:     "WrongPassword",
			username: "alice",
			password: "nope",
			wantErr:  user.ErrInvalidCredentials,
		},
		{
			name:     "UnknownUser",
			username: "bob",
			password: "secret",
			wantErr:  user.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := session.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			s := session.New(newUsers(t), repo, tt.resolve, nil)
			err := s.Login(context.Background(), tt.username, tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, s.LoggedIn())

				return
			}

			require.NoError(t, err)

			acc, ok := s.User()
			assert.True(t, ok)
			assert.Equal(t, tt.username, acc.Username)
		})
	}
}

func TestSession_RequiresLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := session.New(newUsers(t), session.NewMockRepository(ctrl), nil, nil)
	ctx := context.Background()

	_, err := s.Add(ctx, params("A", 1, "1", "0"))
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)
	assert.ErrorIs(t, s.Update(ctx, 0, params("A", 1, "1", "0")), session.ErrNotLoggedIn)
	assert.ErrorIs(t, s.Delete(ctx, 0), session.ErrNotLoggedIn)
	assert.ErrorIs(t, s.Save(ctx), session.ErrNotLoggedIn)
	assert.ErrorIs(t, s.Reload(ctx), session.ErrNotLoggedIn)
	assert.ErrorIs(t, s.Export(&bytes.Buffer{}), session.ErrNotLoggedIn)
}

func TestSession_AddPersists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := session.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any(), gomock.Any()).Return(ledger.Empty())
	repo.EXPECT().
		Save(gomock.Any(), ledger.UserOwner("alice"), gomock.Len(1)).
		Return(nil)

	s := loggedIn(t, repo, session.PerUser)

	rec, err := s.Add(context.Background(), params("Widget", 3, "10", "4"))
	require.NoError(t, err)

	assert.Equal(t, ledger.Day(today), rec.Date)
	assert.Equal(t, "30", rec.TotalSales().String())
	assert.False(t, s.Dirty())
	assert.Len(t, s.Ledger(), 1)
}

func TestSession_ValidationLeavesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := session.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any(), gomock.Any()).Return(ledger.Empty())

	s := loggedIn(t, repo, session.PerUser)

	_, err := s.Add(context.Background(), params("Widget", 0, "10", "4"))
	assert.ErrorIs(t, err, ledger.ErrValidation)

	err = s.Delete(context.Background(), 0)
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)

	assert.Empty(t, s.Ledger())
	assert.False(t, s.Dirty())
}

func TestSession_SaveFailureKeepsDirtyState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := session.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any(), gomock.Any()).Return(ledger.Empty())

	gomock.InOrder(
		repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
		repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Len(1)).Return(nil),
	)

	s := loggedIn(t, repo, session.PerUser)
	ctx := context.Background()

	_, err := s.Add(ctx, params("Widget", 1, "2", "1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.True(t, s.Dirty())
	assert.Len(t, s.Ledger(), 1, "cache keeps the unsaved record")

	require.NoError(t, s.Save(ctx))
	assert.False(t, s.Dirty())
}

func TestSession_ReloadErrorKeepsCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := session.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any(), gomock.Any()).Return(ledger.Ledger{{Product: "A", Quantity: 1}})
	repo.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, ledger.ErrStorageUnavailable)

	s := loggedIn(t, repo, session.PerUser)

	err := s.Reload(context.Background())
	assert.ErrorIs(t, err, ledger.ErrStorageUnavailable)
	assert.Len(t, s.Ledger(), 1)
}

func TestSession_LogoutDiscardsCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := session.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any(), gomock.Any()).Return(ledger.Ledger{{Product: "A", Quantity: 1}})
	repo.EXPECT().Load(gomock.Any(), gomock.Any()).Return(ledger.Empty())

	s := loggedIn(t, repo, session.PerUser)
	require.Len(t, s.Ledger(), 1)

	s.Logout()
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.Ledger())

	require.NoError(t, s.Login(context.Background(), "alice", "secret"))
	assert.Empty(t, s.Ledger(), "second login reads storage again")
}

func TestSession_SharedOwnerSeesEveryWrite(t *testing.T) {
	ctx := context.Background()
	store := ledgerstore.NewCSV(t.TempDir(), nil)
	users := newUsers(t)
	books := session.NewBooks()
	shared := session.Shared("erp_data")

	_, err := users.Register(ctx, "bob", "b")
	require.NoError(t, err)

	alice := session.New(users, store, shared, nil, session.WithClock(clock), session.WithBooks(books))
	bob := session.New(users, store, shared, nil, session.WithClock(clock), session.WithBooks(books))

	require.NoError(t, alice.Login(ctx, "alice", "secret"))
	require.NoError(t, bob.Login(ctx, "bob", "b"))
	assert.Equal(t, 1, books.Open())

	_, err = alice.Add(ctx, params("A", 1, "1", "0"))
	require.NoError(t, err)

	_, err = bob.Add(ctx, params("B", 1, "1", "0"))
	require.NoError(t, err)

	stored, err := store.Read(ctx, ledger.SharedOwner("erp_data"))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "A", stored[0].Product)
	assert.Equal(t, "B", stored[1].Product)

	assert.Len(t, alice.Ledger(), 2)
	assert.Len(t, bob.Ledger(), 2)

	alice.Logout()
	assert.Equal(t, 1, books.Open(), "bob still holds the ledger")
	assert.Len(t, bob.Ledger(), 2)

	bob.Logout()
	assert.Equal(t, 0, books.Open())
}

func TestSession_ConcurrentSessionsSameOwner(t *testing.T) {
	ctx := context.Background()
	store := ledgerstore.NewCSV(t.TempDir(), nil)
	users := newUsers(t)
	books := session.NewBooks()

	const n = 10

	sessions := make([]*session.Session, n)
	for i := range sessions {
		sessions[i] = session.New(users, store, session.PerUser, nil, session.WithClock(clock), session.WithBooks(books))
		require.NoError(t, sessions[i].Login(ctx, "alice", "secret"))
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := s.Add(ctx, params(fmt.Sprintf("P%d", i), 1, "1", "0"))
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	stored, err := store.Read(ctx, session.PerUser("alice"))
	require.NoError(t, err)
	assert.Len(t, stored, n)

	for _, s := range sessions {
		assert.Len(t, s.Ledger(), n)
		assert.False(t, s.Dirty())
	}
}

func TestSession_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := session.New(newUsers(t), session.NewMockRepository(ctrl), nil, nil)

	assert.ErrorIs(t, s.Register(context.Background(), "alice", "x"), user.ErrUsernameTaken)
	assert.NoError(t, s.Register(context.Background(), "bob", "x"))
}

// Full lifecycle against the CSV stores.
func TestSession_CSVLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := ledgerstore.NewCSV(dir, nil)

	s := loggedIn(t, store, session.PerUser)

	_, err := s.Add(ctx, params("A", 2, "10", "0"))
	require.NoError(t, err)
	_, err = s.Add(ctx, params("B", 1, "5", "0"))
	require.NoError(t, err)
	_, err = s.Add(ctx, params("A", 1, "10", "0"))
	require.NoError(t, err)

	agg := s.Aggregate()
	assert.Equal(t, "30", agg["A"].String())
	assert.Equal(t, "5", agg["B"].String())

	first := s.Ledger()[0]
	require.NoError(t, s.Update(ctx, 0, params("A2", 5, "1", "0.5")))
	require.NoError(t, s.DeleteByID(ctx, s.Ledger()[1].ID))

	require.NoError(t, s.Reload(ctx))

	got := s.Ledger()
	require.Len(t, got, 2)
	assert.Equal(t, "A2", got[0].Product)
	assert.Equal(t, first.Date, got[0].Date)
	assert.Equal(t, "2.5", got[0].Profit().String())
	assert.Equal(t, "A", got[1].Product)

	n, err := s.Import(ctx, strings.NewReader("Date,Product,Quantity,Price,Cost\n2023-12-01,Legacy,3,4,5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))
	assert.Equal(t,
		"Date,Product,Quantity,Price,Cost per Unit,Total Cost,Total Sales,Profit\n"+
			"2024-05-06,A2,5,1,0.5,2.5,5,2.5\n"+
			"2024-05-06,A,1,10,0,0,10,10\n"+
			"2023-12-01,Legacy,3,4,5,15,12,-3\n",
		buf.String(),
	)

	summary := s.Summary()
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, "27", summary.TotalSales.String())
}
