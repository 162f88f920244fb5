package user

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/password"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=user

// Repository persists accounts. Writes touch one account at a time so a stale
// read can never drop accounts written since.
type Repository interface {
	// Load returns every account. Missing storage is an empty table.
	Load(ctx context.Context) ([]Account, error)
	// Create stores a new account, or fails with ErrUsernameTaken.
	Create(ctx context.Context, acc Account) error
	// UpdateHash replaces the stored hash of an existing account.
	UpdateHash(ctx context.Context, username, hash string) error
}

// Service is safe for concurrent use.
type Service struct {
	mu     sync.Mutex
	repo   Repository
	hasher password.Hasher
	logger *zap.Logger
}

func NewService(repo Repository, hasher password.Hasher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{repo: repo, hasher: hasher, logger: logger}
}

// Register adds a new account. Usernames match exactly, case included.
func (s *Service) Register(ctx context.Context, username, plain string) (Account, error) {
	if username == "" {
		return Account{}, ErrInvalidUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.repo.Load(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("loading accounts: %w", err)
	}

	if indexOf(accounts, username) >= 0 {
		return Account{}, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return Account{}, fmt.Errorf("hashing password: %w", err)
	}

	acc := Account{Username: username, PasswordHash: hash}

	if err := s.repo.Create(ctx, acc); err != nil {
		return Account{}, fmt.Errorf("saving account: %w", err)
	}

	s.logger.Info("account registered", zap.String("username", username))

	return acc, nil
}

// Authenticate returns the account when password matches its stored hash.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, plain string) (Account, error) {
	accounts, err := s.repo.Load(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("loading accounts: %w", err)
	}

	i := indexOf(accounts, username)
	if i < 0 || !s.hasher.Verify(accounts[i].PasswordHash, plain) {
		return Account{}, ErrInvalidCredentials
	}

	acc := accounts[i]

	if s.hasher.NeedsRehash(acc.PasswordHash) {
		acc = s.upgrade(ctx, acc, plain)
	}

	return acc, nil
}

// Exists reports whether username is registered.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	accounts, err := s.repo.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading accounts: %w", err)
	}

	return indexOf(accounts, username) >= 0, nil
}

// upgrade rewrites a legacy hash with the configured hasher. Failures only
// cost the upgrade, never the login.
func (s *Service) upgrade(ctx context.Context, acc Account, plain string) Account {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("username", acc.Username), zap.Error(err))
		return acc
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.UpdateHash(ctx, acc.Username, hash); err != nil {
		s.logger.Warn("persisting upgraded password hash failed", zap.String("username", acc.Username), zap.Error(err))
		return acc
	}

	s.logger.Info("password hash upgraded", zap.String("username", acc.Username))
	acc.PasswordHash = hash

	return acc
}

func indexOf(accounts []Account, username string) int {
	return slices.IndexFunc(accounts, func(a Account) bool {
		return a.Username == username
	})
}
