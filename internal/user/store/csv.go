// Package store persists the accounts table.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/csvfile"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
)

const (
	colUsername = "username"
	colPassword = "password"
)

var ErrMalformed = errors.New("malformed accounts table")

// CSV stores accounts in a single "username,password" file. Every write
// rewrites the file, so writes are serialised.
type CSV struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewCSV(path string, logger *zap.Logger) *CSV {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CSV{path: path, logger: logger}
}

func (s *CSV) Load(ctx context.Context) ([]user.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tbl, err := csvfile.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	if len(tbl.Rows) == 0 {
		return nil, nil
	}

	header := tbl.Rows[0]
	ui := columnIndex(header, colUsername)
	pi := columnIndex(header, colPassword)

	if ui < 0 || pi < 0 {
		return nil, fmt.Errorf("%w: %s: header %v", ErrMalformed, s.path, header)
	}

	accounts := make([]user.Account, 0, len(tbl.Rows)-1)

	for n, row := range tbl.Rows[1:] {
		if len(row) <= max(ui, pi) {
			return nil, fmt.Errorf("%w: %s: row %d has %d fields", ErrMalformed, s.path, n+1, len(row))
		}

		if row[ui] == "" {
			continue
		}

		accounts = append(accounts, user.Account{Username: row[ui], PasswordHash: row[pi]})
	}

	return accounts, nil
}

// Create appends acc to the file.
func (s *CSV) Create(ctx context.Context, acc user.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.Load(ctx)
	if err != nil {
		return err
	}

	if slices.ContainsFunc(accounts, func(a user.Account) bool { return a.Username == acc.Username }) {
		return user.ErrUsernameTaken
	}

	return s.save(ctx, append(accounts, acc))
}

func (s *CSV) UpdateHash(ctx context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.Load(ctx)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(accounts, func(a user.Account) bool { return a.Username == username })
	if i < 0 {
		return fmt.Errorf("%w: %s", user.ErrNotFound, username)
	}

	accounts[i].PasswordHash = hash

	return s.save(ctx, accounts)
}

// Save replaces the whole file with accounts.
func (s *CSV) Save(ctx context.Context, accounts []user.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(ctx, accounts)
}

func (s *CSV) save(ctx context.Context, accounts []user.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([][]string, 0, len(accounts)+1)
	rows = append(rows, []string{colUsername, colPassword})

	for _, a := range accounts {
		rows = append(rows, []string{a.Username, a.PasswordHash})
	}

	if err := csvfile.WriteAtomic(s.path, rows); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}

	s.logger.Debug("accounts saved", zap.String("path", s.path), zap.Int("accounts", len(accounts)))

	return nil
}

func columnIndex(header []string, name string) int {
	return slices.IndexFunc(header, func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(h), name)
	})
}
