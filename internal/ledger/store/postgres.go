package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
)

// Postgres keeps each owner's ledger as ordered rows of the sales table.
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

func (s *Postgres) Read(ctx context.Context, owner ledger.Owner) (ledger.Ledger, error) {
	query := `
		SELECT date, product, quantity, price, cost_per_unit
		FROM sales
		WHERE owner = $1
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, owner.Key())
	if err != nil {
		return nil, fmt.Errorf("%w: querying sales: %w", ledger.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := ledger.Empty()

	for rows.Next() {
		var (
			date  time.Time
			rec   ledger.Record
			price decimal.Decimal
			cost  decimal.Decimal
		)

		if err := rows.Scan(&date, &rec.Product, &rec.Quantity, &price, &cost); err != nil {
			return nil, fmt.Errorf("%w: scanning sale: %w", ledger.ErrStorageUnavailable, err)
		}

		rec.ID = uuid.New()
		rec.Date = ledger.Day(date)
		rec.Price = price
		rec.CostPerUnit = cost
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating sales: %w", ledger.ErrStorageUnavailable, err)
	}

	return out, nil
}

func (s *Postgres) Load(ctx context.Context, owner ledger.Owner) ledger.Ledger {
	return loadOrEmpty(ctx, s, owner, s.logger)
}

// Save replaces every row of owner inside one database transaction.
func (s *Postgres) Save(ctx context.Context, owner ledger.Owner, l ledger.Ledger) error {
	if err := s.save(ctx, owner, l); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}

	return nil
}

func (s *Postgres) save(ctx context.Context, owner ledger.Owner, l ledger.Ledger) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM sales WHERE owner = $1`, owner.Key()); err != nil {
		return fmt.Errorf("clearing sales: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO sales (owner, position, date, product, quantity, price, cost_per_unit, total_cost, total_sales, profit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range l {
		if _, err := stmt.ExecContext(ctx,
			owner.Key(), i, r.Date, r.Product, r.Quantity,
			r.Price, r.CostPerUnit, r.TotalCost(), r.TotalSales(), r.Profit(),
		); err != nil {
			return fmt.Errorf("inserting sale %d: %w", i, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("ledger saved", zap.Stringer("owner", owner), zap.Int("records", len(l)))

	return nil
}
