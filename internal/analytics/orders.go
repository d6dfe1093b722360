package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"shoppersense/internal/models"
)

const dayLayout = "2006-01-02"

// Order is every row one customer bought on one UTC calendar day.
type Order struct {
	Key        string
	CustomerID string
	Day        string
	Rows       []int
}

// OrderKey groups a transaction into its customer-day basket.
func OrderKey(tx models.Transaction) string {
	return tx.CustomerID + "_" + dayOf(tx.PurchaseDate)
}

func dayOf(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

func monthOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// GroupOrders builds the customer-day multimap. Orders come back in the order
// their first row appears and each row index lands in exactly one order.
func GroupOrders(txs []models.Transaction) []Order {
	index := make(map[string]int)
	var orders []Order
	for i, tx := range txs {
		key := OrderKey(tx)
		pos, ok := index[key]
		if !ok {
			pos = len(orders)
			index[key] = pos
			orders = append(orders, Order{
				Key:        key,
				CustomerID: tx.CustomerID,
				Day:        dayOf(tx.PurchaseDate),
			})
		}
		orders[pos].Rows = append(orders[pos].Rows, i)
	}
	return orders
}

// distinct returns the unique values of field over the order rows, first seen first.
func (o Order) distinct(txs []models.Transaction, field func(models.Transaction) string) []string {
	seen := make(map[string]bool, len(o.Rows))
	out := make([]string, 0, len(o.Rows))
	for _, i := range o.Rows {
		v := field(txs[i])
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (o Order) Products(txs []models.Transaction) []string {
	return o.distinct(txs, func(t models.Transaction) string { return t.ProductName })
}

func (o Order) Categories(txs []models.Transaction) []string {
	return o.distinct(txs, func(t models.Transaction) string { return t.ProductCategory })
}

type CustomerAggregate struct {
	ID            string
	TotalSpend    decimal.Decimal
	RowCount      int
	FirstPurchase time.Time
	LastPurchase  time.Time
	Categories    map[string]bool
}

func (c CustomerAggregate) summary() models.CustomerSummary {
	return models.CustomerSummary{
		ID:         c.ID,
		TotalSpend: c.TotalSpend,
		Count:      c.RowCount,
		FirstDate:  c.FirstPurchase,
		LastDate:   c.LastPurchase,
	}
}

// Customers folds rows into one aggregate per customer, first seen first.
func Customers(txs []models.Transaction) []CustomerAggregate {
	index := make(map[string]int)
	var out []CustomerAggregate
	for _, tx := range txs {
		pos, ok := index[tx.CustomerID]
		if !ok {
			pos = len(out)
			index[tx.CustomerID] = pos
			out = append(out, CustomerAggregate{
				ID:            tx.CustomerID,
				FirstPurchase: tx.PurchaseDate,
				LastPurchase:  tx.PurchaseDate,
				Categories:    make(map[string]bool),
			})
		}
		c := &out[pos]
		c.TotalSpend = c.TotalSpend.Add(tx.PurchaseAmount)
		c.RowCount++
		c.Categories[tx.ProductCategory] = true
		if tx.PurchaseDate.Before(c.FirstPurchase) {
			c.FirstPurchase = tx.PurchaseDate
		}
		if tx.PurchaseDate.After(c.LastPurchase) {
			c.LastPurchase = tx.PurchaseDate
		}
	}
	return out
}

func totalRevenue(txs []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.PurchaseAmount)
	}
	return total
}
