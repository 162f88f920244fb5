package ledger

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ColDate        = "Date"
	ColProduct     = "Product"
	ColQuantity    = "Quantity"
	ColPrice       = "Price"
	ColCostPerUnit = "Cost per Unit"
	ColTotalCost   = "Total Cost"
	ColTotalSales  = "Total Sales"
	ColProfit      = "Profit"

	colLegacyCost = "Cost"
)

// Columns is the canonical column order of a persisted ledger.
var Columns = []string{
	ColDate, ColProduct, ColQuantity, ColPrice,
	ColCostPerUnit, ColTotalCost, ColTotalSales, ColProfit,
}

var maxQuantity = decimal.NewFromInt(math.MaxInt)

// dateLayouts are tried in order; spreadsheet round-trips sometimes add a time part.
var dateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339}

// Table is a raw ledger table: a header and string cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// TableFromRecords splits CSV records into header and rows.
func TableFromRecords(records [][]string) Table {
	if len(records) == 0 {
		return Table{}
	}

	return Table{Header: records[0], Rows: records[1:]}
}

// Records joins header and rows back into CSV records.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header)

	return append(out, t.Rows...)
}

// SchemaVersion identifies a persisted column layout.
type SchemaVersion int

const (
	SchemaUnknown SchemaVersion = iota
	// SchemaV1 stores a single per-unit "Cost" column.
	SchemaV1
	// SchemaV2 stores "Cost per Unit" and "Total Cost".
	SchemaV2
)

const CurrentSchema = SchemaV2

func (v SchemaVersion) String() string {
	switch v {
	case SchemaV1:
		return "v1"
	case SchemaV2:
		return "v2"
	}

	return "unknown"
}

// signature lists the columns that identify a schema version.
// More specific signatures come first.
type signature struct {
	version  SchemaVersion
	required []string
}

var signatures = []signature{
	// Derived columns are recomputed, so a v2 file that lost "Total Cost"
	// (the shape left by a rename-only migration) still matches.
	{version: SchemaV2, required: []string{ColDate, ColProduct, ColQuantity, ColPrice, ColCostPerUnit}},
	{version: SchemaV1, required: []string{ColDate, ColProduct, ColQuantity, ColPrice, colLegacyCost}},
}

// migrations upgrade a table from the keyed version to the next one.
var migrations = map[SchemaVersion]func(Table) Table{
	SchemaV1: migrateV1,
}

// DetectSchema returns the version whose signature the header satisfies.
func DetectSchema(header []string) SchemaVersion {
	cols := indexColumns(header)

	for _, sig := range signatures {
		if hasAll(cols, sig.required) {
			return sig.version
		}
	}

	return SchemaUnknown
}

// Normalize converts a table in any known schema into a Ledger. Derived
// columns are always recomputed from quantity, price and cost per unit.
func Normalize(t Table) (Ledger, error) {
	if len(t.Header) == 0 {
		if len(t.Rows) == 0 {
			return Empty(), nil
		}

		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}

	version := DetectSchema(t.Header)
	if version == SchemaUnknown {
		return nil, fmt.Errorf("%w: unrecognised columns %v", ErrMalformed, t.Header)
	}

	for v := version; v < CurrentSchema; v++ {
		migrate, ok := migrations[v]
		if !ok {
			return nil, fmt.Errorf("%w: no migration from schema %s", ErrMalformed, v)
		}

		t = migrate(t)
	}

	return parseRows(t)
}

// Table renders the ledger in canonical column order and formatting.
func (l Ledger) Table() Table {
	rows := make([][]string, len(l))
	for i, r := range l {
		rows[i] = []string{
			r.Date.Format(time.DateOnly),
			r.Product,
			fmt.Sprint(r.Quantity),
			r.Price.String(),
			r.CostPerUnit.String(),
			r.TotalCost().String(),
			r.TotalSales().String(),
			r.Profit().String(),
		}
	}

	return Table{Header: slices.Clone(Columns), Rows: rows}
}

// migrateV1 renames the legacy per-unit cost column. Total Cost is filled in
// when rows are parsed.
func migrateV1(t Table) Table {
	header := slices.Clone(t.Header)
	for i, h := range header {
		if strings.TrimSpace(h) == colLegacyCost {
			header[i] = ColCostPerUnit
		}
	}

	return Table{Header: header, Rows: t.Rows}
}

type colIndex map[string]int

func indexColumns(header []string) colIndex {
	cols := make(colIndex, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, dup := cols[name]; name != "" && !dup {
			cols[name] = i
		}
	}

	return cols
}

func hasAll(cols colIndex, names []string) bool {
	for _, n := range names {
		if _, ok := cols[n]; !ok {
			return false
		}
	}

	return true
}

func parseRows(t Table) (Ledger, error) {
	cols := indexColumns(t.Header)
	out := make(Ledger, 0, len(t.Rows))

	for i, row := range t.Rows {
		if isBlank(row) {
			continue
		}

		rec, err := parseRow(cols, row)
		if err != nil {
			// +2: one for the header, one for 1-based numbering.
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, i+2, err)
		}

		out = append(out, rec)
	}

	return out, nil
}

func parseRow(cols colIndex, row []string) (Record, error) {
	date, err := parseDate(cell(row, cols[ColDate]))
	if err != nil {
		return Record{}, err
	}

	qty, err := parseQuantity(cell(row, cols[ColQuantity]))
	if err != nil {
		return Record{}, err
	}

	price, err := parseAmount(ColPrice, cell(row, cols[ColPrice]))
	if err != nil {
		return Record{}, err
	}

	cost, err := parseAmount(ColCostPerUnit, cell(row, cols[ColCostPerUnit]))
	if err != nil {
		return Record{}, err
	}

	// Product text is kept verbatim: grouping is exact and case-sensitive.
	product := ""
	if idx := cols[ColProduct]; idx < len(row) {
		product = row[idx]
	}

	return Record{
		ID:          uuid.New(),
		Date:        date,
		Product:     product,
		Quantity:    qty,
		Price:       price,
		CostPerUnit: cost,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseQuantity(s string) (int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}

	if !d.IsInteger() {
		return 0, fmt.Errorf("quantity %q is not a whole number", s)
	}

	if d.LessThan(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("quantity %q must be at least 1", s)
	}

	if d.GreaterThan(maxQuantity) {
		return 0, fmt.Errorf("quantity %q is too large", s)
	}

	return int(d.IntPart()), nil
}

// parseAmount reads a decimal cell. Empty cells, as written for missing values
// by spreadsheet tools, count as zero.
func parseAmount(col, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", strings.ToLower(col), s)
	}

	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s %q must not be negative", strings.ToLower(col), s)
	}

	return d, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
