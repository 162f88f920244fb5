package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Params are the caller-supplied base fields of a record.
type Params struct {
	Product     string
	Quantity    int
	Price       decimal.Decimal
	CostPerUnit decimal.Decimal
}

// Validate rejects out-of-range input instead of clamping it.
func (p Params) Validate() error {
	var problems []string

	if strings.TrimSpace(p.Product) == "" {
		problems = append(problems, "product must not be empty")
	}

	if p.Quantity < 1 {
		problems = append(problems, fmt.Sprintf("quantity must be at least 1, got %d", p.Quantity))
	}

	if p.Price.IsNegative() {
		problems = append(problems, fmt.Sprintf("price must not be negative, got %s", p.Price))
	}

	if p.CostPerUnit.IsNegative() {
		problems = append(problems, fmt.Sprintf("cost per unit must not be negative, got %s", p.CostPerUnit))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}

	return nil
}

// Add appends a new record dated today.
func Add(l Ledger, p Params, today time.Time) (Ledger, Record, error) {
	if err := p.Validate(); err != nil {
		return l, Record{}, err
	}

	rec := Record{
		ID:          uuid.New(),
		Date:        Day(today),
		Product:     p.Product,
		Quantity:    p.Quantity,
		Price:       p.Price,
		CostPerUnit: p.CostPerUnit,
	}

	out := make(Ledger, len(l), len(l)+1)
	copy(out, l)

	return append(out, rec), rec, nil
}

// Update replaces the base fields of the record at index. Date and ID are kept.
func Update(l Ledger, index int, p Params) (Ledger, error) {
	if err := checkIndex(l, index); err != nil {
		return l, err
	}

	if err := p.Validate(); err != nil {
		return l, err
	}

	out := slices.Clone(l)
	rec := &out[index]
	rec.Product = p.Product
	rec.Quantity = p.Quantity
	rec.Price = p.Price
	rec.CostPerUnit = p.CostPerUnit

	return out, nil
}

// Delete removes the record at index; later records move up one position.
func Delete(l Ledger, index int) (Ledger, error) {
	if err := checkIndex(l, index); err != nil {
		return l, err
	}

	out := make(Ledger, 0, len(l)-1)
	out = append(out, l[:index]...)

	return append(out, l[index+1:]...), nil
}

// IndexOf returns the current position of the record with id, or -1.
func IndexOf(l Ledger, id uuid.UUID) int {
	return slices.IndexFunc(l, func(r Record) bool { return r.ID == id })
}

func UpdateByID(l Ledger, id uuid.UUID, p Params) (Ledger, error) {
	idx := IndexOf(l, id)
	if idx < 0 {
		return l, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	return Update(l, idx, p)
}

func DeleteByID(l Ledger, id uuid.UUID) (Ledger, error) {
	idx := IndexOf(l, id)
	if idx < 0 {
		return l, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	return Delete(l, idx)
}

// Append returns l followed by every record of other. Imported records get
// fresh IDs so they never collide with existing ones.
func Append(l, other Ledger) Ledger {
	out := make(Ledger, len(l), len(l)+len(other))
	copy(out, l)

	for _, r := range other {
		r.ID = uuid.New()
		out = append(out, r)
	}

	return out
}

// Between returns the records dated within [start, end], both days inclusive.
func Between(l Ledger, start, end time.Time) Ledger {
	from, to := Day(start), Day(end)

	out := make(Ledger, 0, len(l))
	for _, r := range l {
		d := Day(r.Date)
		if !d.Before(from) && !d.After(to) {
			out = append(out, r)
		}
	}

	return out
}

// AggregateByProduct sums total sales per exact product text.
func AggregateByProduct(l Ledger) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, r := range l {
		totals[r.Product] = totals[r.Product].Add(r.TotalSales())
	}

	return totals
}

type ProductTotal struct {
	Product    string
	TotalSales decimal.Decimal
}

// SortedProductTotals is AggregateByProduct ordered by product name.
func SortedProductTotals(l Ledger) []ProductTotal {
	totals := AggregateByProduct(l)

	out := make([]ProductTotal, 0, len(totals))
	for product, sum := range totals {
		out = append(out, ProductTotal{Product: product, TotalSales: sum})
	}

	slices.SortFunc(out, func(a, b ProductTotal) int { return strings.Compare(a.Product, b.Product) })

	return out
}

type Summary struct {
	Records    int
	Quantity   int
	TotalSales decimal.Decimal
	TotalCost  decimal.Decimal
	Profit     decimal.Decimal
}

func Summarize(l Ledger) Summary {
	s := Summary{Records: len(l)}
	for _, r := range l {
		s.Quantity += r.Quantity
		s.TotalSales = s.TotalSales.Add(r.TotalSales())
		s.TotalCost = s.TotalCost.Add(r.TotalCost())
		s.Profit = s.Profit.Add(r.Profit())
	}

	return s
}

func checkIndex(l Ledger, index int) error {
	if index < 0 || index >= len(l) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(l))
	}

	return nil
}
