// Package store persists ledgers as whole tables, either as CSV files or as
// rows of a Postgres table.
package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
)

type reader interface {
	Read(ctx context.Context, owner ledger.Owner) (ledger.Ledger, error)
}

// loadOrEmpty substitutes the empty ledger for any read failure. A broken or
// missing table must not stop a session from starting.
func loadOrEmpty(ctx context.Context, r reader, owner ledger.Owner, logger *zap.Logger) ledger.Ledger {
	l, err := r.Read(ctx, owner)
	if err != nil {
		logger.Warn("ledger unavailable, starting empty",
			zap.Stringer("owner", owner),
			zap.Error(err),
		)

		return ledger.Empty()
	}

	return l
}
