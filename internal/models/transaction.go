package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Monetary values go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Transaction struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	Age             int             `json:"age"`
	Gender          string          `json:"gender"`
	Location        string          `json:"location"`
	ProductCategory string          `json:"product_category"`
	ProductName     string          `json:"product_name"`
	PurchaseAmount  decimal.Decimal `json:"purchase_amount"`
	Quantity        int             `json:"quantity"`
	PurchaseDate    time.Time       `json:"purchase_date"`
	PaymentMethod   string          `json:"payment_method"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UnitPrice is the amount per item; a non-positive quantity counts as one.
func (t Transaction) UnitPrice() decimal.Decimal {
	qty := t.Quantity
	if qty <= 0 {
		qty = 1
	}
	return t.PurchaseAmount.Div(decimal.NewFromInt(int64(qty)))
}

// AgeRange bounds are inclusive. A nil Max means no upper bound.
type AgeRange struct {
	Min int  `json:"min"`
	Max *int `json:"max,omitempty"`
}

// FilterCriteria narrows a transaction collection. Zero values mean "absent".
type FilterCriteria struct {
	Category  string     `json:"category,omitempty"`
	Location  string     `json:"location,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Age       *AgeRange  `json:"ageGroup,omitempty"`
}

type SortOrder int

const (
	Unordered SortOrder = iota
	OldestFirst
	NewestFirst
)

// Query is what a repository needs to return the rows for one view.
type Query struct {
	Criteria FilterCriteria
	Order    SortOrder
	Limit    int
}
