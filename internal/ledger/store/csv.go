package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/csvfile"
	"github.com/MrJamesThe3rd/salesledger/internal/encoding"
	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
)

const userDir = "ledgers"

/*
File layout under dir:

	<shared-name>.csv          shared ledger
	ledgers/<username>.csv     one ledger per user (names are path-escaped)

Each file is a full table with the canonical header. Every save rewrites the
whole file through a temp file and a rename.
*/
type CSV struct {
	dir    string
	logger *zap.Logger
}

func NewCSV(dir string, logger *zap.Logger) *CSV {
	if dir == "" {
		dir = "."
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &CSV{dir: dir, logger: logger}
}

// Path returns the file holding owner's ledger.
func (s *CSV) Path(owner ledger.Owner) string {
	name := escapeName(owner.Name) + ".csv"
	if owner.PerUser {
		return filepath.Join(s.dir, userDir, name)
	}

	return filepath.Join(s.dir, name)
}

// Read returns the stored ledger. A missing file is an empty ledger; any other
// failure wraps ledger.ErrStorageUnavailable.
func (s *CSV) Read(ctx context.Context, owner ledger.Owner) (ledger.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrStorageUnavailable, err)
	}

	path := s.Path(owner)

	tbl, err := csvfile.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.Empty(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ledger.ErrStorageUnavailable, path, err)
	}

	raw := ledger.TableFromRecords(tbl.Rows)

	l, err := ledger.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ledger.ErrStorageUnavailable, path, err)
	}

	if v := ledger.DetectSchema(raw.Header); len(raw.Header) > 0 && v != ledger.CurrentSchema {
		s.logger.Info("migrated ledger schema on load",
			zap.String("path", path),
			zap.Stringer("from", v),
			zap.Stringer("to", ledger.CurrentSchema),
		)
	}

	if tbl.Charset != encoding.CharsetUTF8 {
		s.logger.Info("decoded non UTF-8 ledger", zap.String("path", path), zap.String("charset", tbl.Charset))
	}

	return l, nil
}

// Load is Read with every failure replaced by the empty ledger.
func (s *CSV) Load(ctx context.Context, owner ledger.Owner) ledger.Ledger {
	return loadOrEmpty(ctx, s, owner, s.logger)
}

// Save overwrites owner's file with l in canonical column order.
func (s *CSV) Save(ctx context.Context, owner ledger.Owner, l ledger.Ledger) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}

	path := s.Path(owner)
	if err := csvfile.WriteAtomic(path, l.Table().Records()); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}

	s.logger.Debug("ledger saved", zap.String("path", path), zap.Int("records", len(l)))

	return nil
}

// escapeName makes an owner name safe as a single file name.
func escapeName(name string) string {
	esc := url.PathEscape(name)
	if esc == "" || strings.Trim(esc, ".") == "" {
		return strings.ReplaceAll("_"+esc, ".", "%2E")
	}

	return esc
}
