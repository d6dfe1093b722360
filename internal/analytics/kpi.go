package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"shoppersense/internal/models"
)

const retentionSpan = 30 * 24 * time.Hour

// KPIs summarises revenue and customers. TotalOrders counts rows. Retention
// is a span proxy: a customer is retained when their first and last purchase
// are at least 30 days apart.
func KPIs(txs []models.Transaction) models.KPIs {
	revenue := totalRevenue(txs)
	customers := Customers(txs)

	var repeat, retained int
	for _, c := range customers {
		if c.RowCount > 1 {
			repeat++
		}
		if c.LastPurchase.Sub(c.FirstPurchase) >= retentionSpan {
			retained++
		}
	}

	aov := decimal.Zero
	if len(txs) > 0 {
		aov = revenue.Div(decimal.NewFromInt(int64(len(txs))))
	}

	return models.KPIs{
		TotalRevenue:          revenue,
		TotalOrders:           len(txs),
		TotalCustomers:        len(customers),
		AOV:                   aov,
		RepeatPurchaseRate:    ratio(repeat, len(customers)) * 100,
		CustomerRetentionRate: ratio(retained, len(customers)) * 100,
	}
}
