package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/user"
)

type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgres(db *sql.DB, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Postgres{db: db, logger: logger}
}

func (s *Postgres) Load(ctx context.Context) ([]user.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password
		FROM accounts
		ORDER BY created_at ASC, username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []user.Account

	for rows.Next() {
		var a user.Account
		if err := rows.Scan(&a.Username, &a.PasswordHash); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

// Create inserts acc. An existing username is left untouched.
func (s *Postgres) Create(ctx context.Context, acc user.Account) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, password)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
	`, acc.Username, acc.PasswordHash)
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", acc.Username, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", acc.Username, err)
	}

	if n == 0 {
		return user.ErrUsernameTaken
	}

	s.logger.Debug("account created", zap.String("username", acc.Username))

	return nil
}

func (s *Postgres) UpdateHash(ctx context.Context, username, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET password = $2 WHERE username = $1`, username, hash)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", username, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating account %s: %w", username, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", user.ErrNotFound, username)
	}

	return nil
}
