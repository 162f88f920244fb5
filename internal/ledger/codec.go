package ledger

import (
	"fmt"
	"io"

	"github.com/MrJamesThe3rd/salesledger/internal/csvfile"
)

// Decode reads a ledger CSV in any supported schema version and encoding.
func Decode(r io.Reader) (Ledger, error) {
	tbl, err := csvfile.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return Normalize(TableFromRecords(tbl.Rows))
}

// Encode writes l as a canonical ledger CSV.
func Encode(w io.Writer, l Ledger) error {
	return csvfile.Encode(w, l.Table().Records())
}
