package analytics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shoppersense/internal/models"
)

const (
	highValueDivisor   = 5
	maxHighValueListed = 10
	atRiskAfter        = 60 * 24 * time.Hour
	newWithin          = 30 * 24 * time.Hour
)

type Segment string

const (
	SegmentHighValue Segment = "High Value"
	SegmentFrequent  Segment = "Frequent"
	SegmentAtRisk    Segment = "At Risk"
	SegmentNew       Segment = "New"
	SegmentRegular   Segment = "Regular"
)

type segmentRule struct {
	segment Segment
	match   func(CustomerAggregate) bool
}

// Classifier assigns each customer to exactly one segment by walking an
// ordered rule list; the first matching rule wins.
type Classifier struct {
	rules    []segmentRule
	fallback Segment
}

// NewClassifier derives the population thresholds from customers.
func NewClassifier(customers []CustomerAggregate, now time.Time) Classifier {
	minHighValue := highValueFloor(customers)

	avgCount := 0.0
	if len(customers) > 0 {
		total := 0
		for _, c := range customers {
			total += c.RowCount
		}
		avgCount = float64(total) / float64(len(customers))
	}

	riskCutoff := now.Add(-atRiskAfter)
	newCutoff := now.Add(-newWithin)

	return Classifier{
		rules: []segmentRule{
			{SegmentHighValue, func(c CustomerAggregate) bool {
				return c.TotalSpend.GreaterThanOrEqual(minHighValue) && c.TotalSpend.IsPositive()
			}},
			{SegmentFrequent, func(c CustomerAggregate) bool { return float64(c.RowCount) > avgCount }},
			{SegmentAtRisk, func(c CustomerAggregate) bool { return c.LastPurchase.Before(riskCutoff) }},
			{SegmentNew, func(c CustomerAggregate) bool { return c.FirstPurchase.After(newCutoff) }},
		},
		fallback: SegmentRegular,
	}
}

func (cl Classifier) Classify(c CustomerAggregate) Segment {
	for _, r := range cl.rules {
		if r.match(c) {
			return r.segment
		}
	}
	return cl.fallback
}

// highValueFloor is the spend of the customer ranked ceil(20%) from the top.
// Ties at the floor all qualify, so the bucket can exceed 20%.
func highValueFloor(customers []CustomerAggregate) decimal.Decimal {
	if len(customers) == 0 {
		return decimal.Zero
	}
	spends := make([]decimal.Decimal, len(customers))
	for i, c := range customers {
		spends[i] = c.TotalSpend
	}
	slices.SortFunc(spends, func(a, b decimal.Decimal) int { return b.Cmp(a) })
	// ceil(n * 20%) in integer arithmetic.
	top := (len(customers) + highValueDivisor - 1) / highValueDivisor
	return spends[top-1]
}

// AgeBucket labels the decade an age falls in, e.g. "30-39".
func AgeBucket(age int) string {
	lo := age / 10 * 10
	return fmt.Sprintf("%d-%d", lo, lo+9)
}

func Segments(txs []models.Transaction, now time.Time) models.Segmentation {
	customers := Customers(txs)
	classifier := NewClassifier(customers, now)

	var (
		counts    models.SegmentCounts
		highValue []CustomerAggregate
	)
	for _, c := range customers {
		switch classifier.Classify(c) {
		case SegmentHighValue:
			counts.HighValue++
			highValue = append(highValue, c)
		case SegmentFrequent:
			counts.Frequent++
		case SegmentAtRisk:
			counts.AtRisk++
		case SegmentNew:
			counts.New++
		default:
			counts.Regular++
		}
	}

	slices.SortStableFunc(highValue, func(a, b CustomerAggregate) int {
		if cmp := b.TotalSpend.Cmp(a.TotalSpend); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID, b.ID)
	})
	listed := make([]models.CustomerSummary, 0, maxHighValueListed)
	for _, c := range highValue[:min(len(highValue), maxHighValueListed)] {
		listed = append(listed, c.summary())
	}

	gender := NewCounter[string]()
	age := NewCounter[string]()
	for _, tx := range txs {
		gender.Inc(tx.Gender)
		age.Inc(AgeBucket(tx.Age))
	}

	return models.Segmentation{
		Segments:           counts,
		HighValueCustomers: listed,
		Demographics: models.Demographics{
			Gender: gender.Map(),
			Age:    age.Map(),
		},
	}
}
