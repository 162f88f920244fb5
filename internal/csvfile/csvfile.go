// Package csvfile reads and atomically rewrites whole CSV tables on disk.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MrJamesThe3rd/salesledger/internal/encoding"
)

// Table is the decoded content of a CSV file.
type Table struct {
	Rows    [][]string
	Charset string
}

// Read loads every record of the file at path. Errors from os.Open are returned
// unwrapped enough for errors.Is(err, fs.ErrNotExist) to work.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a CSV stream in any encoding understood by the encoding package.
func Decode(r io.Reader) (*Table, error) {
	dec, err := encoding.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(dec)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return &Table{Rows: rows, Charset: dec.Charset}, nil
}

// Encode writes rows as UTF-8 CSV.
func Encode(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	return nil
}

// WriteAtomic replaces the file at path with rows. The content goes to a temp
// file in the same directory which is synced and renamed over path, so readers
// see either the old table or the new one.
func WriteAtomic(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := Encode(tmp, rows); err != nil {
		cleanup()
		return err
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}

	return nil
}
