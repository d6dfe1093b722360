package analytics

import (
	"math"
	"slices"

	"shoppersense/internal/models"
)

const (
	maxBundles    = 10
	pairSeparator = " + "
)

type pair struct {
	a, b string
}

func newPair(x, y string) pair {
	if y < x {
		x, y = y, x
	}
	return pair{a: x, b: y}
}

func (p pair) String() string {
	return p.a + pairSeparator + p.b
}

// basket holds co-occurrence tallies over a set of orders. Occurrences are
// counted once per order an item appears in.
type basket struct {
	pairs       Counter[pair]
	occurrences Counter[string]
}

func newBasket() basket {
	return basket{pairs: NewCounter[pair](), occurrences: NewCounter[string]()}
}

// add records one order's distinct items. Pair enumeration is quadratic in
// the basket size.
func (b basket) add(items []string) {
	for _, it := range items {
		b.occurrences.Inc(it)
	}
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			b.pairs.Inc(newPair(items[i], items[j]))
		}
	}
}

// ranked returns pairs by count descending, ties in first-seen order.
func (b basket) ranked() []pair {
	keys := slices.Clone(b.pairs.Keys())
	slices.SortStableFunc(keys, func(x, y pair) int {
		return b.pairs.Get(y) - b.pairs.Get(x)
	})
	return keys
}

// Affinity runs market-basket analysis over customer-day orders.
func Affinity(txs []models.Transaction) models.Affinity {
	orders := GroupOrders(txs)
	out := models.Affinity{
		TopBundles:       []models.Bundle{},
		CategoryAffinity: []models.CategoryPair{},
		TotalOrders:      len(orders),
	}
	if len(orders) == 0 {
		return out
	}

	products := newBasket()
	categories := newBasket()
	for _, o := range orders {
		products.add(o.Products(txs))
		categories.add(o.Categories(txs))
	}

	n := len(orders)
	for _, p := range products.ranked() {
		if len(out.TopBundles) == maxBundles {
			break
		}
		out.TopBundles = append(out.TopBundles, bundleFor(p, products, n))
	}

	for _, p := range categories.ranked() {
		c := categories.pairs.Get(p)
		out.CategoryAffinity = append(out.CategoryAffinity, models.CategoryPair{
			Name:    p.String(),
			Count:   c,
			CatA:    p.a,
			CatB:    p.b,
			Support: round(ratio(c, n), 4),
		})
	}

	return out
}

func bundleFor(p pair, b basket, orders int) models.Bundle {
	c := b.pairs.Get(p)
	occA := b.occurrences.Get(p.a)
	occB := b.occurrences.Get(p.b)

	// support / (P(A) * P(B)) == c * n / (occA * occB)
	lift := 0.0
	if occA > 0 && occB > 0 {
		lift = float64(c) * float64(orders) / (float64(occA) * float64(occB))
	}

	return models.Bundle{
		Name:       p.String(),
		Count:      c,
		Support:    round(ratio(c, orders), 4),
		Confidence: round(ratio(c, occA), 4),
		Lift:       round(lift, 4),
		Strength:   Strength(lift),
	}
}

// Strength maps lift onto a 0-100 score.
func Strength(lift float64) int {
	return int(min(100, math.Round(lift*20)))
}

