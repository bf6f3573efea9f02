// Package calculator derives budget totals from record collections.
// Everything here is pure: no state, no I/O, same input same output.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// shareScale is the number of decimal places kept when dividing totals.
const shareScale = 16

// AggregateView is the derived total-cost view over both collections.
type AggregateView struct {
	ItemsTotal decimal.Decimal
	CostsTotal decimal.Decimal
	GrandTotal decimal.Decimal

	// ItemsShare and CostsShare are fractions in [0, 1]. Both are zero when
	// GrandTotal is zero, otherwise they sum to exactly one.
	ItemsShare decimal.Decimal
	CostsShare decimal.Decimal

	ItemCount int
	CostCount int
}

// Aggregate computes totals and per-collection shares.
//
//	itemsTotal = Σ amount over items
//	costsTotal = Σ amount over costs
//	grandTotal = itemsTotal + costsTotal
//	share      = total / grandTotal, or 0 when grandTotal is 0
//
// The costs share is taken as the complement of the items share so the two
// always add up to one despite rounding in the division.
func Aggregate(items, costs []models.Record) AggregateView {
	view := AggregateView{
		ItemsTotal: Subtotal(items),
		CostsTotal: Subtotal(costs),
		ItemsShare: decimal.Zero,
		CostsShare: decimal.Zero,
		ItemCount:  len(items),
		CostCount:  len(costs),
	}
	view.GrandTotal = view.ItemsTotal.Add(view.CostsTotal)

	if !view.GrandTotal.IsPositive() {
		return view
	}

	view.ItemsShare = view.ItemsTotal.DivRound(view.GrandTotal, shareScale)
	view.CostsShare = decimal.NewFromInt(1).Sub(view.ItemsShare)
	return view
}

// Subtotal sums the amounts of records.
func Subtotal(records []models.Record) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Amount)
	}
	return sum
}

// Percent converts a share into a percentage rounded to one decimal place.
func Percent(share decimal.Decimal) decimal.Decimal {
	return share.Mul(decimal.NewFromInt(100)).Round(1)
}
