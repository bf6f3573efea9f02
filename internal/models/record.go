package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Collection names one of the two per-user record collections.
type Collection string

const (
	// CollectionItems holds the project's line items.
	CollectionItems Collection = "items"
	// CollectionCosts holds the project's miscellaneous other costs.
	CollectionCosts Collection = "otherCosts"
)

// Valid reports whether c is a known collection name.
func (c Collection) Valid() bool {
	return c == CollectionItems || c == CollectionCosts
}

// ParseCollection converts a collection name into a Collection.
// Besides the canonical names it accepts "costs" as an alias for otherCosts.
func ParseCollection(s string) (Collection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "items", "item":
		return CollectionItems, nil
	case "othercosts", "costs", "cost":
		return CollectionCosts, nil
	default:
		return "", fmt.Errorf("unknown collection %q", s)
	}
}

// Record is one item or cost stored for a user.
type Record struct {
	// ID is assigned by the remote store when the record is created.
	// It is empty on drafts that have not been confirmed yet.
	ID string

	// Label is the item name or cost description. Never empty.
	Label string

	// Amount is the currency amount with two-place precision.
	Amount decimal.Decimal

	// CreatedAt is an RFC 3339 timestamp assigned at creation and never modified.
	CreatedAt string
}

// MaxAmount is the largest amount the remote store holds exactly: MaxInt64
// cents.
var MaxAmount = decimal.New(math.MaxInt64, -2)

// checkAmount adds at most one problem with d to verr. Amounts must be
// positive, carry no more than two decimal places and fit in MaxAmount, so a
// stored amount always reads back unchanged.
func checkAmount(verr *ValidationError, d decimal.Decimal) {
	switch {
	case !d.IsPositive():
		verr.Add("amount", "Amount must be greater than 0")
	case !d.Equal(d.Round(2)):
		verr.Add("amount", "Amount can have at most 2 decimal places")
	case d.GreaterThan(MaxAmount):
		verr.Add("amount", "Amount is too large")
	}
}

// Draft carries the caller-supplied fields of a record that does not exist yet.
type Draft struct {
	Label  string
	Amount decimal.Decimal
}

// Validate checks the draft before it is dispatched to the store.
// A label must contain something other than whitespace.
func (d Draft) Validate() error {
	var verr ValidationError
	if strings.TrimSpace(d.Label) == "" {
		verr.Add("label", "Label is required")
	}
	checkAmount(&verr, d.Amount)
	return verr.OrNil()
}

// Patch is a partial update of a record. Nil fields are left untouched.
type Patch struct {
	Label  *string
	Amount *decimal.Decimal
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Label == nil && p.Amount == nil
}

// Validate checks every field present in the patch.
func (p Patch) Validate() error {
	var verr ValidationError
	if p.IsEmpty() {
		verr.Add("patch", "At least one field must be updated")
	}
	if p.Label != nil && strings.TrimSpace(*p.Label) == "" {
		verr.Add("label", "Label is required")
	}
	if p.Amount != nil {
		checkAmount(&verr, *p.Amount)
	}
	return verr.OrNil()
}

// Apply returns r with the patched fields overwritten.
// ID and CreatedAt are never changed by a patch.
func (p Patch) Apply(r Record) Record {
	if p.Label != nil {
		r.Label = *p.Label
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	return r
}

// ParseAmount parses user input into a currency amount, rounded half away
// from zero to two decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Fields: []FieldError{{Field: "amount", Message: "Amount is required"}}}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Fields: []FieldError{{Field: "amount", Message: fmt.Sprintf("Amount %q is not a number", s)}}}
	}
	return d.Round(2), nil
}

// LabelPtr and AmountPtr build patch fields inline.
func LabelPtr(s string) *string { return &s }

// AmountPtr returns a pointer to a copy of d.
func AmountPtr(d decimal.Decimal) *decimal.Decimal { return &d }
