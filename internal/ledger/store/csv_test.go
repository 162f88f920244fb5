package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
	"github.com/MrJamesThe3rd/salesledger/internal/ledger/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sampleLedger() ledger.Ledger {
	return ledger.Ledger{
		{
			Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Product:     "Widget",
			Quantity:    3,
			Price:       decimal.RequireFromString("10.5"),
			CostPerUnit: decimal.RequireFromString("4"),
		},
		{
			Date:        time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Product:     "Gadget",
			Quantity:    1,
			Price:       decimal.RequireFromString("99.99"),
			CostPerUnit: decimal.Zero,
		},
	}
}

func TestCSV_Path(t *testing.T) {
	s := store.NewCSV("data", nil)

	tests := []struct {
		name  string
		owner ledger.Owner
		want  string
	}{
		{name: "Shared", owner: ledger.SharedOwner("erp_data"), want: filepath.Join("data", "erp_data.csv")},
		{name: "PerUser", owner: ledger.UserOwner("alice"), want: filepath.Join("data", "ledgers", "alice.csv")},
		{name: "EscapesSeparators", owner: ledger.UserOwner("a/b"), want: filepath.Join("data", "ledgers", "a%2Fb.csv")},
		{name: "EscapesDotNames", owner: ledger.UserOwner(".."), want: filepath.Join("data", "ledgers", "_%2E%2E.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Path(tt.owner))
		})
	}
}

func TestCSV_SaveRead(t *testing.T) {
	ctx := context.Background()
	s := store.NewCSV(t.TempDir(), nil)
	owner := ledger.UserOwner("alice")

	require.NoError(t, s.Save(ctx, owner, sampleLedger()))

	got, err := s.Read(ctx, owner)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Widget", got[0].Product)
	assert.Equal(t, "31.5", got[0].TotalSales().String())
	assert.Equal(t, "12", got[0].TotalCost().String())
	assert.Equal(t, "Gadget", got[1].Product)
	assert.True(t, got[1].CostPerUnit.IsZero())

	raw, err := os.ReadFile(s.Path(owner))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Date,Product,Quantity,Price,Cost per Unit,Total Cost,Total Sales,Profit\n")
}

func TestCSV_ReadMissingFile(t *testing.T) {
	s := store.NewCSV(t.TempDir(), nil)

	got, err := s.Read(context.Background(), ledger.SharedOwner("erp_data"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSV_ReadLegacySchema(t *testing.T) {
	dir := t.TempDir()
	s := store.NewCSV(dir, nil)
	owner := ledger.SharedOwner("erp_data")

	writeFile(t, s.Path(owner), "Date,Product,Quantity,Price,Cost\n2024-01-02,Widget,3,10,5\n")

	got, err := s.Read(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "5", got[0].CostPerUnit.String())
	assert.Equal(t, "15", got[0].TotalCost().String())
	assert.Equal(t, "15", got[0].Profit().String())
}

func TestCSV_ReadMalformed(t *testing.T) {
	dir := t.TempDir()
	s := store.NewCSV(dir, nil)
	owner := ledger.UserOwner("bob")

	writeFile(t, s.Path(owner), "Foo,Bar\n1,2\n")

	_, err := s.Read(context.Background(), owner)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStorageUnavailable)
	assert.ErrorIs(t, err, ledger.ErrMalformed)

	assert.Empty(t, s.Load(context.Background(), owner))
}

func TestCSV_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "not a directory")

	s := store.NewCSV(blocker, nil)

	err := s.Save(context.Background(), ledger.UserOwner("alice"), sampleLedger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPersistence)
}

func TestCSV_SaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := store.NewCSV(t.TempDir(), nil)

	err := s.Save(ctx, ledger.UserOwner("alice"), sampleLedger())
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)
}
