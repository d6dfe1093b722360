package insights

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"shoppersense/internal/analytics"
	"shoppersense/internal/models"
)

// Leader is the top entry of a histogram.
type Leader struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MarshalJSON keeps the [name, value] pair shape the prompt documents.
func (l *Leader) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]any{l.Name, l.Value})
}

// Summary is the compact view of a transaction set handed to the generator.
type Summary struct {
	TotalRevenue        decimal.Decimal            `json:"totalRevenue"`
	TotalTransactions   int                        `json:"totalTransactions"`
	TopCategory         *Leader                    `json:"topCategory"`
	CategoryPerformance map[string]decimal.Decimal `json:"categoryPerformance"`
	TopLocation         *Leader                    `json:"topLocation"`
	LocationPerformance map[string]decimal.Decimal `json:"locationPerformance"`
	TopAgeGroup         *Leader                    `json:"topAgeGroup"`
	AgePerformance      map[string]int             `json:"agePerformance"`
	BusiestDay          *Leader                    `json:"busiestDay"`
	DayPerformance      map[string]int             `json:"dayPerformance"`
}

// BuildSummary ranks categories and locations by revenue, age buckets and
// weekdays by transaction count. Ties go to the first value seen.
func BuildSummary(txs []models.Transaction) Summary {
	categories := analytics.NewSums[string]()
	locations := analytics.NewSums[string]()
	ages := analytics.NewCounter[string]()
	days := analytics.NewCounter[string]()
	total := decimal.Zero

	for _, tx := range txs {
		total = total.Add(tx.PurchaseAmount)
		categories.Add(tx.ProductCategory, tx.PurchaseAmount)
		locations.Add(tx.Location, tx.PurchaseAmount)
		ages.Inc(analytics.AgeBucket(tx.Age))
		days.Inc(analytics.Weekday(tx.PurchaseDate))
	}

	return Summary{
		TotalRevenue:        total,
		TotalTransactions:   len(txs),
		TopCategory:         topSum(categories),
		CategoryPerformance: categories.Map(),
		TopLocation:         topSum(locations),
		LocationPerformance: locations.Map(),
		TopAgeGroup:         topCount(ages),
		AgePerformance:      ages.Map(),
		BusiestDay:          topCount(days),
		DayPerformance:      days.Map(),
	}
}

func topSum(s analytics.Sums[string]) *Leader {
	var best *Leader
	var bestVal decimal.Decimal
	for _, k := range s.Keys() {
		v := s.Get(k)
		if best == nil || v.GreaterThan(bestVal) {
			best, bestVal = &Leader{Name: k, Value: v.InexactFloat64()}, v
		}
	}
	return best
}

func topCount(c analytics.Counter[string]) *Leader {
	var best *Leader
	for _, k := range c.Keys() {
		v := float64(c.Get(k))
		if best == nil || v > best.Value {
			best = &Leader{Name: k, Value: v}
		}
	}
	return best
}
