package calculator

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// FilteredView is a display subset of a collection with its own subtotal.
// It is never fed back into Aggregate.
type FilteredView struct {
	Query    string
	Records  []models.Record
	Subtotal decimal.Decimal

	// Total is the number of records before filtering, so callers can tell
	// "nothing matched" apart from "collection is empty".
	Total int
}

// NoMatch reports whether the collection has records but none matched the query.
func (v FilteredView) NoMatch() bool {
	return v.Total > 0 && len(v.Records) == 0
}

// FilterByLabel returns the records whose label contains query, ignoring case.
// An empty query matches everything. The input slice is never modified.
func FilterByLabel(records []models.Record, query string) FilteredView {
	view := FilteredView{Query: query, Total: len(records)}

	needle := strings.ToLower(query)
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if needle == "" || strings.Contains(strings.ToLower(r.Label), needle) {
			out = append(out, r)
		}
	}

	view.Records = out
	view.Subtotal = Subtotal(out)
	return view
}
