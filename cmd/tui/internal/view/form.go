package view

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
)

// saleFields backs the add and edit forms. It lives on the heap so the form
// keeps writing to it while the model is copied around.
type saleFields struct {
	product  string
	quantity string
	price    string
	cost     string
}

func fieldsFrom(r ledger.Record) *saleFields {
	return &saleFields{
		product:  r.Product,
		quantity: strconv.Itoa(r.Quantity),
		price:    r.Price.String(),
		cost:     r.CostPerUnit.String(),
	}
}

func (f *saleFields) params() (ledger.Params, error) {
	qty, err := ParseQuantity(f.quantity)
	if err != nil {
		return ledger.Params{}, err
	}

	price, err := ParseMoney(f.price)
	if err != nil {
		return ledger.Params{}, err
	}

	cost, err := ParseMoney(f.cost)
	if err != nil {
		return ledger.Params{}, err
	}

	return ledger.Params{Product: f.product, Quantity: qty, Price: price, CostPerUnit: cost}, nil
}

func saleForm(f *saleFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Product").
				Value(&f.product).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("product cannot be empty")
					}
					return nil
				}),

			huh.NewInput().
				Title("Quantity").
				Placeholder("1").
				Value(&f.quantity).
				Validate(func(s string) error {
					_, err := ParseQuantity(s)
					return err
				}),

			huh.NewInput().
				Title("Price").
				Placeholder("0.00").
				Value(&f.price).
				Validate(func(s string) error {
					_, err := ParseMoney(s)
					return err
				}),

			huh.NewInput().
				Title("Cost per Unit").
				Placeholder("0.00").
				Value(&f.cost).
				Validate(func(s string) error {
					_, err := ParseMoney(s)
					return err
				}),
		),
	).WithWidth(45).WithShowHelp(false)
}
