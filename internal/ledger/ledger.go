// Package ledger holds sale records, the persisted table schema and the
// operations that add, edit, delete and summarize them.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrRecordNotFound     = errors.New("record not found")
	ErrMalformed          = errors.New("malformed ledger table")
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
	ErrPersistence        = errors.New("ledger could not be persisted")
)

// Record is one sale line. Totals are derived from the base fields on demand.
type Record struct {
	// ID identifies the record for the lifetime of a loaded ledger. It is not
	// written to the flat file, so it is regenerated on every load.
	ID          uuid.UUID
	Date        time.Time
	Product     string
	Quantity    int
	Price       decimal.Decimal
	CostPerUnit decimal.Decimal
}

func (r Record) TotalSales() decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

func (r Record) TotalCost() decimal.Decimal {
	return r.CostPerUnit.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

func (r Record) Profit() decimal.Decimal {
	return r.TotalSales().Sub(r.TotalCost())
}

// Ledger is the ordered sequence of records for one identity. Position is
// display order; operations return a new Ledger and leave their input untouched.
type Ledger []Record

// Empty returns the canonical ledger with no rows.
func Empty() Ledger {
	return Ledger{}
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Owner identifies whose ledger is persisted: a single shared ledger, or one
// ledger per authenticated user.
type Owner struct {
	Name    string
	PerUser bool
}

func SharedOwner(name string) Owner {
	return Owner{Name: name}
}

func UserOwner(username string) Owner {
	return Owner{Name: username, PerUser: true}
}

// Key is a stable string form, used as the owner column in SQL storage.
func (o Owner) Key() string {
	if o.PerUser {
		return "user:" + o.Name
	}

	return "shared:" + o.Name
}

func (o Owner) String() string {
	return o.Key()
}
