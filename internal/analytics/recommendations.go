package analytics

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"shoppersense/internal/models"
)

const (
	maxCrossSell        = 6
	maxUpsell           = 6
	maxSegmentCards     = 4
	upsellPerCategory   = 2
	frequentBuyerRows   = 5
	newCustomerWindow   = 30 * 24 * time.Hour
	highSpendMultiplier = 2
)

func Recommendations(txs []models.Transaction, now time.Time) models.Recommendations {
	return models.Recommendations{
		CrossSell: crossSell(txs),
		Upsell:    upsell(txs),
		Segment:   segmentCards(Customers(txs), totalRevenue(txs), now),
	}
}

// crossSell recommends each product's most frequent basket partner.
func crossSell(txs []models.Transaction) []models.Recommendation {
	partners := NewTally[string, Counter[string]]()
	for _, o := range GroupOrders(txs) {
		items := o.Products(txs)
		if len(items) < 2 {
			continue
		}
		for _, item := range items {
			if !partners.Has(item) {
				partners.Update(item, func(Counter[string]) Counter[string] { return NewCounter[string]() })
			}
			tally := partners.Get(item)
			for _, other := range items {
				if other != item {
					tally.Inc(other)
				}
			}
		}
	}

	out := []models.Recommendation{}
	for _, product := range partners.Keys() {
		if len(out) == maxCrossSell {
			break
		}
		best, count, ok := argMax(partners.Get(product).Tally, func(a, b int) bool { return a < b })
		if !ok {
			continue
		}
		out = append(out, models.Recommendation{
			Title:    best,
			Subtitle: "Complementary to " + product,
			Reason:   fmt.Sprintf("Customers who bought %s also purchased this %d times.", product, count),
		})
	}
	return out
}

type pricedItem struct {
	name  string
	price decimal.Decimal
}

// upsell surfaces the highest unit-price products of each category.
func upsell(txs []models.Transaction) []models.Recommendation {
	byCategory := NewTally[string, []pricedItem]()
	for _, tx := range txs {
		item := pricedItem{name: tx.ProductName, price: tx.UnitPrice()}
		byCategory.Update(tx.ProductCategory, func(items []pricedItem) []pricedItem {
			return append(items, item)
		})
	}

	out := []models.Recommendation{}
	for _, cat := range byCategory.Keys() {
		items := slices.Clone(byCategory.Get(cat))
		slices.SortStableFunc(items, func(a, b pricedItem) int { return b.price.Cmp(a.price) })

		seen := make(map[string]bool)
		for _, it := range items {
			if len(seen) == upsellPerCategory {
				break
			}
			if seen[it.name] {
				continue
			}
			seen[it.name] = true
			out = append(out, models.Recommendation{
				Title:    it.name,
				Subtitle: fmt.Sprintf("Premium %s choice", cat),
				Reason:   fmt.Sprintf("Higher value option in your frequently shopped %s category.", cat),
			})
		}
	}
	return out[:min(len(out), maxUpsell)]
}

type segmentCard struct {
	card  models.Recommendation
	match func(CustomerAggregate) bool
}

// segmentCards emits one card per non-empty population. Populations overlap.
func segmentCards(customers []CustomerAggregate, revenue decimal.Decimal, now time.Time) []models.Recommendation {
	avgSpend := revenue.Div(decimal.NewFromInt(int64(max(len(customers), 1))))
	highSpend := avgSpend.Mul(decimal.NewFromInt(highSpendMultiplier))
	recent := now.Add(-newCustomerWindow)

	cards := []segmentCard{
		{
			card: models.Recommendation{
				Title:    "Bulk Purchase Reward",
				Subtitle: "For our loyal frequent buyers",
				Reason:   "Based on your high purchase frequency, we recommend our premium bundles.",
			},
			match: func(c CustomerAggregate) bool { return c.RowCount > frequentBuyerRows },
		},
		{
			card: models.Recommendation{
				Title:    "Starter Welcome Offer",
				Subtitle: "Exclusive for new explorers",
				Reason:   "Welcome! Based on your first purchase, here is a special offer to explore more.",
			},
			match: func(c CustomerAggregate) bool { return c.LastPurchase.After(recent) && c.RowCount == 1 },
		},
		{
			card: models.Recommendation{
				Title:    "Elite Loyalty Access",
				Subtitle: "Premium rewards for top spenders",
				Reason:   "Your high value status entitles you to exclusive early access to new collections.",
			},
			match: func(c CustomerAggregate) bool { return c.TotalSpend.GreaterThan(highSpend) },
		},
	}

	out := []models.Recommendation{}
	for _, sc := range cards {
		if len(out) == maxSegmentCards {
			break
		}
		if slices.ContainsFunc(customers, sc.match) {
			out = append(out, sc.card)
		}
	}
	return out
}
