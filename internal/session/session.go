// Package session ties an authenticated user to their cached ledger. Every
// mutation goes through the cache and is persisted before it returns.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
)

//go:generate mockgen -source=session.go -destination=repository_mock.go -package=session

var ErrNotLoggedIn = errors.New("not logged in")

// Repository is the ledger storage a session reads from and writes through.
type Repository interface {
	// Load never fails; unreadable storage yields the empty ledger.
	Load(ctx context.Context, owner ledger.Owner) ledger.Ledger
	Read(ctx context.Context, owner ledger.Owner) (ledger.Ledger, error)
	Save(ctx context.Context, owner ledger.Owner, l ledger.Ledger) error
}

// OwnerFunc maps a logged-in username to the ledger it works on.
type OwnerFunc func(username string) ledger.Owner

// PerUser gives every user their own ledger.
func PerUser(username string) ledger.Owner {
	return ledger.UserOwner(username)
}

// Shared points every user at the same named ledger.
func Shared(name string) OwnerFunc {
	return func(string) ledger.Owner {
		return ledger.SharedOwner(name)
	}
}

type Option func(*Session)

// WithClock overrides the source of the date stamped on new records.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithBooks makes the session share ledger caches with every other session
// built with the same Books.
func WithBooks(b *Books) Option {
	return func(s *Session) {
		s.books = b
	}
}

// Session is not safe for concurrent use. Sessions on the same owner may run
// concurrently when they share Books.
type Session struct {
	users   *user.Service
	store   Repository
	resolve OwnerFunc
	logger  *zap.Logger
	now     func() time.Time
	books   *Books

	account *user.Account
	owner   ledger.Owner
	book    *book
}

func New(users *user.Service, store Repository, resolve OwnerFunc, logger *zap.Logger, opts ...Option) *Session {
	if resolve == nil {
		resolve = PerUser
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		users:   users,
		store:   store,
		resolve: resolve,
		logger:  logger,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.books == nil {
		s.books = NewBooks()
	}

	return s
}

// Login authenticates and loads the user's ledger into the cache, unless
// another session already holds it. A previous login is replaced.
func (s *Session) Login(ctx context.Context, username, password string) error {
	acc, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	s.Logout()

	s.account = &acc
	s.owner = s.resolve(acc.Username)
	s.book = s.books.acquire(s.owner)

	s.book.mu.Lock()
	if !s.book.loaded {
		s.book.ledger = s.store.Load(ctx, s.owner)
		s.book.loaded = true
	}
	n := len(s.book.ledger)
	s.book.mu.Unlock()

	s.logger.Info("logged in",
		zap.String("username", acc.Username),
		zap.Stringer("owner", s.owner),
		zap.Int("records", n),
	)

	return nil
}

// Logout drops the user and its hold on the cached ledger. Unsaved changes are
// discarded once no other session holds the ledger.
func (s *Session) Logout() {
	if s.account == nil {
		return
	}

	if s.Dirty() {
		s.logger.Warn("logout with unsaved changes", zap.String("username", s.account.Username))
	}

	s.logger.Info("logged out", zap.String("username", s.account.Username))

	s.books.release(s.book)

	s.account = nil
	s.owner = ledger.Owner{}
	s.book = nil
}

func (s *Session) Register(ctx context.Context, username, password string) error {
	if _, err := s.users.Register(ctx, username, password); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	return nil
}

// User returns the logged-in account.
func (s *Session) User() (user.Account, bool) {
	if s.account == nil {
		return user.Account{}, false
	}

	return *s.account, true
}

func (s *Session) LoggedIn() bool {
	return s.account != nil
}

// Owner is the ledger the session currently works on.
func (s *Session) Owner() ledger.Owner {
	return s.owner
}

// Ledger returns a copy of the cached ledger.
func (s *Session) Ledger() ledger.Ledger {
	return slices.Clone(s.snapshot())
}

// Dirty reports whether the cache holds changes the store does not.
func (s *Session) Dirty() bool {
	if s.book == nil {
		return false
	}

	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	return s.book.dirty
}

func (s *Session) Add(ctx context.Context, p ledger.Params) (ledger.Record, error) {
	var rec ledger.Record

	err := s.mutate(ctx, func(l ledger.Ledger) (ledger.Ledger, error) {
		next, added, err := ledger.Add(l, p, s.now())
		rec = added

		return next, err
	})

	return rec, err
}

func (s *Session) Update(ctx context.Context, index int, p ledger.Params) error {
	return s.mutate(ctx, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.Update(l, index, p)
	})
}

func (s *Session) Delete(ctx context.Context, index int) error {
	return s.mutate(ctx, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.Delete(l, index)
	})
}

func (s *Session) UpdateByID(ctx context.Context, id uuid.UUID, p ledger.Params) error {
	return s.mutate(ctx, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.UpdateByID(l, id, p)
	})
}

func (s *Session) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return s.mutate(ctx, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.DeleteByID(l, id)
	})
}

// Import appends every record of a sales CSV, in any known schema version,
// and persists the result. It returns how many records were added.
func (s *Session) Import(ctx context.Context, r io.Reader) (int, error) {
	if err := s.requireLogin(); err != nil {
		return 0, err
	}

	incoming, err := ledger.Decode(r)
	if err != nil {
		return 0, fmt.Errorf("decoding import: %w", err)
	}

	if len(incoming) == 0 {
		return 0, nil
	}

	return len(incoming), s.mutate(ctx, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.Append(l, incoming), nil
	})
}

// Export writes the cached ledger as a canonical CSV.
func (s *Session) Export(w io.Writer) error {
	if err := s.requireLogin(); err != nil {
		return err
	}

	return ledger.Encode(w, s.snapshot())
}

// Save persists the cache as is. It is how a failed write gets retried.
func (s *Session) Save(ctx context.Context) error {
	if err := s.requireLogin(); err != nil {
		return err
	}

	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	return s.persist(ctx)
}

// Reload replaces the cache with the stored ledger. On error the cache is left
// untouched.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.requireLogin(); err != nil {
		return err
	}

	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	l, err := s.store.Read(ctx, s.owner)
	if err != nil {
		return fmt.Errorf("reloading ledger: %w", err)
	}

	s.book.ledger = l
	s.book.dirty = false

	return nil
}

func (s *Session) Aggregate() map[string]decimal.Decimal {
	return ledger.AggregateByProduct(s.snapshot())
}

// ProductTotals is Aggregate sorted by product for display.
func (s *Session) ProductTotals() []ledger.ProductTotal {
	return ledger.SortedProductTotals(s.snapshot())
}

func (s *Session) Summary() ledger.Summary {
	return ledger.Summarize(s.snapshot())
}

func (s *Session) requireLogin() error {
	if s.account == nil {
		return ErrNotLoggedIn
	}

	return nil
}

// snapshot returns the cached ledger. Ledgers are never modified in place, so
// the result stays valid after the lock is released.
func (s *Session) snapshot() ledger.Ledger {
	if s.book == nil {
		return nil
	}

	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	return s.book.ledger
}

// mutate applies fn to the cache and writes the result through, holding the
// owner's lock throughout. A failed write keeps the result cached and marks
// the ledger dirty.
func (s *Session) mutate(ctx context.Context, fn func(ledger.Ledger) (ledger.Ledger, error)) error {
	if err := s.requireLogin(); err != nil {
		return err
	}

	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	next, err := fn(s.book.ledger)
	if err != nil {
		return err
	}

	s.book.ledger = next
	s.book.dirty = true

	return s.persist(ctx)
}

// persist must be called with s.book.mu held.
func (s *Session) persist(ctx context.Context) error {
	if err := s.store.Save(ctx, s.owner, s.book.ledger); err != nil {
		s.book.dirty = true
		s.logger.Error("saving ledger failed", zap.Stringer("owner", s.owner), zap.Error(err))

		if !errors.Is(err, ledger.ErrPersistence) {
			err = fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
		}

		return err
	}

	s.book.dirty = false

	return nil
}
