package analytics

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"shoppersense/internal/models"
)

const movingAverageWindow = 7

var weekdayNames = [...]string{
	time.Sunday:    "Sunday",
	time.Monday:    "Monday",
	time.Tuesday:   "Tuesday",
	time.Wednesday: "Wednesday",
	time.Thursday:  "Thursday",
	time.Friday:    "Friday",
	time.Saturday:  "Saturday",
}

// Weekday names the UTC weekday of t in English regardless of locale.
func Weekday(t time.Time) string {
	return weekdayNames[t.UTC().Weekday()]
}

// Trends computes the time-indexed views. It sorts its own copy ascending by
// purchase date; all calendar boundaries are UTC.
func Trends(txs []models.Transaction) models.Trends {
	sorted := SortByDate(txs, models.OldestFirst)

	daily := NewSums[string]()
	monthly := NewSums[string]()
	byCategory := newGroupTrend()
	byLocation := newGroupTrend()
	payments := NewCounter[string]()
	var days [7]int
	var hours [24]int

	for _, tx := range sorted {
		day := dayOf(tx.PurchaseDate)
		month := monthOf(tx.PurchaseDate)
		daily.Add(day, tx.PurchaseAmount)
		monthly.Add(month, tx.PurchaseAmount)
		byCategory.add(tx.ProductCategory, month, tx.PurchaseAmount)
		byLocation.add(tx.Location, month, tx.PurchaseAmount)
		payments.Inc(tx.PaymentMethod)
		days[tx.PurchaseDate.UTC().Weekday()]++
		hours[tx.PurchaseDate.UTC().Hour()]++
	}

	out := models.Trends{
		DailySales:          dailySales(daily),
		MonthlyTrends:       monthlyTrends(monthly),
		CategoryPerformance: []models.CategoryPerformance{},
		LocationInsights:    []models.LocationInsight{},
		PaymentInsights:     payments.Map(),
		PeakDays:            []models.DayCount{},
		PeakHours:           []models.HourCount{},
	}

	for _, cat := range byCategory.totals.Keys() {
		out.CategoryPerformance = append(out.CategoryPerformance, models.CategoryPerformance{
			Category: cat,
			Revenue:  byCategory.totals.Get(cat),
			Orders:   byCategory.rows.Get(cat),
			Growth:   byCategory.lastGrowth(cat),
		})
	}
	for _, loc := range byLocation.totals.Keys() {
		out.LocationInsights = append(out.LocationInsights, models.LocationInsight{
			Location: loc,
			Revenue:  byLocation.totals.Get(loc),
			Growth:   byLocation.lastGrowth(loc),
		})
	}

	for wd, n := range days {
		if n > 0 {
			out.PeakDays = append(out.PeakDays, models.DayCount{Day: weekdayNames[wd], Count: n})
		}
	}
	for h, n := range hours {
		if n > 0 {
			out.PeakHours = append(out.PeakHours, models.HourCount{Hour: fmt.Sprintf("%d:00", h), Count: n})
		}
	}

	return out
}

func dailySales(daily Sums[string]) []models.DailySales {
	keys := daily.Keys()
	out := make([]models.DailySales, len(keys))
	window := decimal.Zero
	for i, day := range keys {
		amount := daily.Get(day)
		window = window.Add(amount)
		if i >= movingAverageWindow {
			window = window.Sub(daily.Get(keys[i-movingAverageWindow]))
		}
		size := min(i+1, movingAverageWindow)
		out[i] = models.DailySales{
			Date:          day,
			Amount:        amount,
			MovingAverage: window.Div(decimal.NewFromInt(int64(size))).Round(2),
		}
	}
	return out
}

func monthlyTrends(monthly Sums[string]) []models.MonthlyTrend {
	keys := slices.Sorted(slices.Values(monthly.Keys()))
	out := make([]models.MonthlyTrend, len(keys))
	for i, month := range keys {
		rev := monthly.Get(month)
		g := 0.0
		if i > 0 {
			g = growth(monthly.Get(keys[i-1]), rev)
		}
		out[i] = models.MonthlyTrend{Month: month, Revenue: rev, Growth: g}
	}
	return out
}

// groupTrend tracks revenue per group and per group-month.
type groupTrend struct {
	totals Sums[string]
	rows   Counter[string]
	months map[string]Sums[string]
}

func newGroupTrend() *groupTrend {
	return &groupTrend{
		totals: NewSums[string](),
		rows:   NewCounter[string](),
		months: make(map[string]Sums[string]),
	}
}

func (g *groupTrend) add(group, month string, amount decimal.Decimal) {
	g.totals.Add(group, amount)
	g.rows.Inc(group)
	m, ok := g.months[group]
	if !ok {
		m = NewSums[string]()
		g.months[group] = m
	}
	m.Add(month, amount)
}

// lastGrowth compares the group's two latest months present in the data,
// whether or not they are calendar-adjacent.
func (g *groupTrend) lastGrowth(group string) float64 {
	m := g.months[group]
	if m.Tally == nil || m.Len() < 2 {
		return 0
	}
	keys := slices.Sorted(slices.Values(m.Keys()))
	return growth(m.Get(keys[len(keys)-2]), m.Get(keys[len(keys)-1]))
}
