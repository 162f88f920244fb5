package ledger_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
)

var today = time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func params(product string, qty int, price, cost string) ledger.Params {
	return ledger.Params{Product: product, Quantity: qty, Price: dec(price), CostPerUnit: dec(cost)}
}

func mustAdd(t *testing.T, l ledger.Ledger, p ledger.Params) ledger.Ledger {
	t.Helper()

	out, _, err := ledger.Add(l, p, today)
	require.NoError(t, err)

	return out
}

func TestAdd_DerivedFields(t *testing.T) {
	type testCase struct {
		name       string
		params     ledger.Params
		wantSales  string
		wantCost   string
		wantProfit string
	}

	tests := []testCase{
		{name: "Simple", params: params("Coffee", 3, "2.50", "1.10"), wantSales: "7.5", wantCost: "3.3", wantProfit: "4.2"},
		{name: "Loss", params: params("Tea", 2, "1", "1.75"), wantSales: "2", wantCost: "3.5", wantProfit: "-1.5"},
		{name: "Free", params: params("Sample", 10, "0", "0"), wantSales: "0", wantCost: "0", wantProfit: "0"},
		{name: "NoFloatDrift", params: params("Cent", 3, "0.1", "0.2"), wantSales: "0.3", wantCost: "0.6", wantProfit: "-0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, rec, err := ledger.Add(ledger.Empty(), tt.params, today)
			require.NoError(t, err)
			require.Len(t, l, 1)

			assert.Equal(t, rec, l[0])
			assert.NotEqual(t, uuid.Nil, rec.ID)
			assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), rec.Date)
			assert.True(t, dec(tt.wantSales).Equal(rec.TotalSales()), "sales %s", rec.TotalSales())
			assert.True(t, dec(tt.wantCost).Equal(rec.TotalCost()), "cost %s", rec.TotalCost())
			assert.True(t, dec(tt.wantProfit).Equal(rec.Profit()), "profit %s", rec.Profit())
		})
	}
}

func TestAdd_AppendsWithoutReordering(t *testing.T) {
	l := mustAdd(t, ledger.Empty(), params("B", 1, "1", "0"))
	l = mustAdd(t, l, params("A", 1, "1", "0"))

	before := l
	l = mustAdd(t, l, params("C", 1, "1", "0"))

	require.Len(t, before, 2, "input ledger must not grow")
	assert.Equal(t, []string{"B", "A", "C"}, products(l))
}

func TestAdd_Validation(t *testing.T) {
	type testCase struct {
		name   string
		params ledger.Params
	}

	tests := []testCase{
		{name: "ZeroQuantity", params: params("A", 0, "1", "1")},
		{name: "NegativeQuantity", params: params("A", -2, "1", "1")},
		{name: "NegativePrice", params: params("A", 1, "-0.01", "1")},
		{name: "NegativeCost", params: params("A", 1, "1", "-1")},
		{name: "EmptyProduct", params: params("  ", 1, "1", "1")},
	}

	base := mustAdd(t, ledger.Empty(), params("Existing", 1, "1", "1"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := ledger.Add(base, tt.params, today)
			require.ErrorIs(t, err, ledger.ErrValidation)
			assert.Equal(t, base, got)
		})
	}
}

func TestUpdate_PreservesDateAndRecomputes(t *testing.T) {
	l := mustAdd(t, ledger.Empty(), params("Coffee", 1, "2", "1"))
	orig := l[0]

	got, err := ledger.Update(l, 0, params("Espresso", 4, "3", "0.5"))
	require.NoError(t, err)

	rec := got[0]
	assert.Equal(t, orig.Date, rec.Date)
	assert.Equal(t, orig.ID, rec.ID)
	assert.Equal(t, "Espresso", rec.Product)
	assert.Equal(t, 4, rec.Quantity)
	assert.True(t, dec("12").Equal(rec.TotalSales()))
	assert.True(t, dec("2").Equal(rec.TotalCost()))
	assert.True(t, dec("10").Equal(rec.Profit()))

	assert.Equal(t, "Coffee", l[0].Product, "input ledger must not change")
}

func TestUpdateDelete_IndexOutOfRange(t *testing.T) {
	l := mustAdd(t, ledger.Empty(), params("A", 1, "1", "0"))
	l = mustAdd(t, l, params("B", 1, "1", "0"))

	for _, idx := range []int{-1, 2, 100} {
		got, err := ledger.Update(l, idx, params("X", 1, "1", "0"))
		require.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
		assert.Equal(t, l, got)

		got, err = ledger.Delete(l, idx)
		require.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
		assert.Equal(t, l, got)
	}

	_, err := ledger.Delete(ledger.Empty(), 0)
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
}

func TestUpdate_IndexCheckedBeforeValidation(t *testing.T) {
	_, err := ledger.Update(ledger.Empty(), 0, params("", 0, "1", "0"))
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)

	l := mustAdd(t, ledger.Empty(), params("A", 1, "1", "0"))
	_, err = ledger.Update(l, 0, params("A", 0, "1", "0"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestDelete_TwiceAtSamePosition(t *testing.T) {
	l := ledger.Empty()
	for _, p := range []string{"A", "B", "C", "D"} {
		l = mustAdd(t, l, params(p, 1, "1", "0"))
	}

	l2, err := ledger.Delete(l, 1)
	require.NoError(t, err)
	l2, err = ledger.Delete(l2, 1)
	require.NoError(t, err)

	assert.Len(t, l2, 2)
	assert.Equal(t, []string{"A", "D"}, products(l2))
	assert.Len(t, l, 4)
}

func TestByID_SurvivesShifts(t *testing.T) {
	l := mustAdd(t, ledger.Empty(), params("A", 1, "1", "0"))
	l = mustAdd(t, l, params("B", 1, "1", "0"))
	l = mustAdd(t, l, params("C", 1, "1", "0"))
	target := l[2].ID

	l, err := ledger.Delete(l, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.IndexOf(l, target))

	l, err = ledger.UpdateByID(l, target, params("C2", 2, "1", "0"))
	require.NoError(t, err)
	assert.Equal(t, "C2", l[1].Product)

	l, err = ledger.DeleteByID(l, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, products(l))

	_, err = ledger.DeleteByID(l, target)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)

	_, err = ledger.UpdateByID(l, target, params("X", 1, "1", "0"))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestAggregateByProduct(t *testing.T) {
	l := mustAdd(t, ledger.Empty(), params("A", 2, "10", "0"))
	l = mustAdd(t, l, params("B", 1, "5", "0"))
	l = mustAdd(t, l, params("A", 1, "10", "0"))

	got := ledger.AggregateByProduct(l)
	require.Len(t, got, 2)
	assert.True(t, dec("30").Equal(got["A"]))
	assert.True(t, dec("5").Equal(got["B"]))

	assert.Empty(t, ledger.AggregateByProduct(ledger.Empty()))
}

func TestAggregateByProduct_ExactText(t *testing.T) {
	l := mustAdd(t, ledger.Empty(), params("apple", 1, "1", "0"))
	l = mustAdd(t, l, params("Apple", 1, "2", "0"))
	l = mustAdd(t, l, params("Apple ", 1, "4", "0"))

	got := ledger.AggregateByProduct(l)
	assert.Len(t, got, 3)

	sorted := ledger.SortedProductTotals(l)
	require.Len(t, sorted, 3)
	assert.Equal(t, "Apple", sorted[0].Product)
	assert.Equal(t, "Apple ", sorted[1].Product)
	assert.Equal(t, "apple", sorted[2].Product)
}

func TestSummarize(t *testing.T) {
	l := mustAdd(t, ledger.Empty(), params("A", 2, "10", "4"))
	l = mustAdd(t, l, params("B", 3, "1.5", "2"))

	s := ledger.Summarize(l)
	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 5, s.Quantity)
	assert.True(t, dec("24.5").Equal(s.TotalSales))
	assert.True(t, dec("14").Equal(s.TotalCost))
	assert.True(t, dec("10.5").Equal(s.Profit))

	empty := ledger.Summarize(ledger.Empty())
	assert.Equal(t, 0, empty.Records)
	assert.True(t, empty.TotalSales.IsZero())
}

func TestAppend_AssignsFreshIDs(t *testing.T) {
	a := mustAdd(t, ledger.Empty(), params("A", 1, "1", "0"))
	got := ledger.Append(a, a)

	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Len(t, a, 1)
}

func TestBetween(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	l := ledger.Ledger{
		{Product: "feb", Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{Product: "first", Date: day(1)},
		{Product: "mid", Date: day(15)},
		{Product: "last", Date: day(31)},
	}

	got := ledger.Between(l, day(1), time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, []string{"first", "mid", "last"}, products(got))

	assert.Empty(t, ledger.Between(l, day(2), day(14)))
	assert.Len(t, l, 4)
}

func products(l ledger.Ledger) []string {
	out := make([]string, len(l))
	for i, r := range l {
		out[i] = r.Product
	}

	return out
}
