package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

// Tally is an insertion-ordered map with get-or-zero lookups.
type Tally[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

func NewTally[K comparable, V any]() *Tally[K, V] {
	return &Tally[K, V]{values: make(map[K]V)}
}

func (t *Tally[K, V]) Get(key K) V {
	return t.values[key]
}

func (t *Tally[K, V]) Has(key K) bool {
	_, ok := t.values[key]
	return ok
}

// Update replaces the value for key with fn(current), registering new keys in
// the order they are first seen.
func (t *Tally[K, V]) Update(key K, fn func(V) V) {
	current, ok := t.values[key]
	if !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = fn(current)
}

func (t *Tally[K, V]) Keys() []K {
	return t.keys
}

func (t *Tally[K, V]) Len() int {
	return len(t.keys)
}

// Map copies the tally into a plain map for JSON output.
func (t *Tally[K, V]) Map() map[K]V {
	out := make(map[K]V, len(t.keys))
	for _, k := range t.keys {
		out[k] = t.values[k]
	}
	return out
}

// Counter counts occurrences per key.
type Counter[K comparable] struct {
	*Tally[K, int]
}

func NewCounter[K comparable]() Counter[K] {
	return Counter[K]{NewTally[K, int]()}
}

func (c Counter[K]) Inc(key K) {
	c.Update(key, func(n int) int { return n + 1 })
}

// Sums accumulates exact decimal amounts per key.
type Sums[K comparable] struct {
	*Tally[K, decimal.Decimal]
}

func NewSums[K comparable]() Sums[K] {
	return Sums[K]{NewTally[K, decimal.Decimal]()}
}

func (s Sums[K]) Add(key K, amount decimal.Decimal) {
	s.Update(key, func(d decimal.Decimal) decimal.Decimal { return d.Add(amount) })
}

// argMax returns the first key holding the largest value.
func argMax[K comparable, V any](t *Tally[K, V], less func(a, b V) bool) (K, V, bool) {
	var (
		bestKey K
		bestVal V
	)
	for i, k := range t.keys {
		v := t.values[k]
		if i == 0 || less(bestVal, v) {
			bestKey, bestVal = k, v
		}
	}
	return bestKey, bestVal, len(t.keys) > 0
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// ratio is num/den, or 0 when den is zero.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// growth is the percentage change from prev to cur rounded to two places, or
// 0 when prev is zero.
func growth(prev, cur decimal.Decimal) float64 {
	if prev.IsZero() {
		return 0
	}
	return cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
