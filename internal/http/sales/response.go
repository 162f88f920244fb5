package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
)

type recordResponse struct {
	ID          uuid.UUID       `json:"id"`
	Index       int             `json:"index"`
	Date        string          `json:"date"`
	Product     string          `json:"product"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	Profit      decimal.Decimal `json:"profit"`
}

type ledgerResponse struct {
	Records []recordResponse `json:"records"`
	Dirty   bool             `json:"dirty"`
}

type summaryResponse struct {
	Records    int             `json:"records"`
	Quantity   int             `json:"quantity"`
	TotalSales decimal.Decimal `json:"total_sales"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	Profit     decimal.Decimal `json:"profit"`
}

type productTotalResponse struct {
	Product    string          `json:"product"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

type importResponse struct {
	Imported int `json:"imported"`
	Records  int `json:"records"`
}

func toResponse(index int, r ledger.Record) recordResponse {
	return recordResponse{
		ID:          r.ID,
		Index:       index,
		Date:        r.Date.Format(time.DateOnly),
		Product:     r.Product,
		Quantity:    r.Quantity,
		Price:       r.Price,
		CostPerUnit: r.CostPerUnit,
		TotalCost:   r.TotalCost(),
		TotalSales:  r.TotalSales(),
		Profit:      r.Profit(),
	}
}

func toResponseList(l ledger.Ledger) []recordResponse {
	resp := make([]recordResponse, len(l))
	for i, r := range l {
		resp[i] = toResponse(i, r)
	}

	return resp
}

func toSummaryResponse(s ledger.Summary) summaryResponse {
	return summaryResponse{
		Records:    s.Records,
		Quantity:   s.Quantity,
		TotalSales: s.TotalSales,
		TotalCost:  s.TotalCost,
		Profit:     s.Profit,
	}
}

func toProductTotals(totals []ledger.ProductTotal) []productTotalResponse {
	resp := make([]productTotalResponse, len(totals))
	for i, t := range totals {
		resp[i] = productTotalResponse{Product: t.Product, TotalSales: t.TotalSales}
	}

	return resp
}
