package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"shoppersense/internal/models"
)

var refNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func newTx(customer, product, category string, amount string, at time.Time) models.Transaction {
	return models.Transaction{
		CustomerID:      customer,
		Age:             34,
		Gender:          "Female",
		Location:        "New York",
		ProductCategory: category,
		ProductName:     product,
		PurchaseAmount:  decimal.RequireFromString(amount),
		Quantity:        1,
		PurchaseDate:    at,
		PaymentMethod:   "Credit Card",
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
