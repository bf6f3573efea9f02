package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/calculator"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// formatter renders amounts in one currency.
type formatter struct {
	code     string
	fraction int
}

func newFormatter(code string) formatter {
	cur := money.GetCurrency(code)
	if cur == nil {
		cur = money.GetCurrency(money.USD)
	}
	return formatter{code: cur.Code, fraction: cur.Fraction}
}

// amount formats d with the currency symbol and grouping, e.g. "$1,200.50".
func (f formatter) amount(d decimal.Decimal) string {
	minor := d.Shift(int32(f.fraction)).Round(0).IntPart()
	return money.New(minor, f.code).Display()
}

func percent(share decimal.Decimal) string {
	return calculator.Percent(share).StringFixed(1) + "%"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func collectionTitle(coll models.Collection) string {
	if coll == models.CollectionCosts {
		return "Other costs"
	}
	return "Items"
}

// recordsMarkdown renders a collection, or a filtered part of it, as a table.
func recordsMarkdown(coll models.Collection, view calculator.FilteredView, f formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", collectionTitle(coll))

	switch {
	case view.Total == 0:
		fmt.Fprintf(&b, "No %s yet.\n", strings.ToLower(collectionTitle(coll)))
		return b.String()
	case view.NoMatch():
		fmt.Fprintf(&b, "Nothing matches %q.\n", view.Query)
		return b.String()
	}

	b.WriteString("| # | Label | Amount | ID |\n")
	b.WriteString("|---|---|---:|---|\n")
	for i, r := range view.Records {
		fmt.Fprintf(&b, "| %d | %s | %s | `%s` |\n", i+1, escapeCell(r.Label), f.amount(r.Amount), r.ID)
	}
	b.WriteString("\n")

	if view.Query != "" {
		fmt.Fprintf(&b, "**Subtotal** (%d of %d matching %q): %s\n", len(view.Records), view.Total, view.Query, f.amount(view.Subtotal))
	} else {
		fmt.Fprintf(&b, "**Subtotal:** %s\n", f.amount(view.Subtotal))
	}
	return b.String()
}

// summaryMarkdown renders the dashboard.
func summaryMarkdown(view calculator.AggregateView, f formatter) string {
	var b strings.Builder
	b.WriteString("## Project summary\n\n")
	b.WriteString("| | Count | Total | Share |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| Items | %d | %s | %s |\n", view.ItemCount, f.amount(view.ItemsTotal), percent(view.ItemsShare))
	fmt.Fprintf(&b, "| Other costs | %d | %s | %s |\n", view.CostCount, f.amount(view.CostsTotal), percent(view.CostsShare))
	fmt.Fprintf(&b, "| **Total** | %d | **%s** | |\n", view.ItemCount+view.CostCount, f.amount(view.GrandTotal))
	return b.String()
}

// printer writes markdown either raw or rendered for the terminal.
type printer struct {
	out   io.Writer
	plain bool
}

func (p printer) markdown(md string) {
	if !p.plain {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				md = out
			}
		}
	}
	fmt.Fprint(p.out, md)
}

func (p printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}
