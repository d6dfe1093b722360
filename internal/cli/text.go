package cli

import (
	"cmp"
	"io"
	"maps"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"shoppersense/internal/models"
)

const maxTextRows = 10

// textWriter prints with English digit grouping and keeps the first error.
type textWriter struct {
	w   io.Writer
	p   *message.Printer
	err error
}

func newTextWriter(w io.Writer) *textWriter {
	return &textWriter{w: w, p: message.NewPrinter(language.English)}
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = t.p.Fprintf(t.w, format, args...)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func writeKPIs(w io.Writer, k models.KPIs) error {
	t := newTextWriter(w)
	t.kpis(k)
	return t.err
}

func (t *textWriter) kpis(k models.KPIs) {
	t.printf("Total revenue      $%.2f\n", money(k.TotalRevenue))
	t.printf("Total orders       %d\n", k.TotalOrders)
	t.printf("Total customers    %d\n", k.TotalCustomers)
	t.printf("Average order      $%.2f\n", money(k.AOV))
	t.printf("Repeat purchase    %.1f%%\n", k.RepeatPurchaseRate)
	t.printf("Retention          %.1f%%\n", k.CustomerRetentionRate)
}

func writeSegments(w io.Writer, s models.Segmentation) error {
	t := newTextWriter(w)
	t.segments(s)
	return t.err
}

func (t *textWriter) segments(s models.Segmentation) {
	c := s.Segments
	t.printf("Segments: %d high value, %d frequent, %d at risk, %d new, %d regular\n",
		c.HighValue, c.Frequent, c.AtRisk, c.New, c.Regular)
	for i, cust := range s.HighValueCustomers {
		if i == maxTextRows {
			break
		}
		t.printf("  %-12s $%.2f over %d purchases\n", cust.ID, money(cust.TotalSpend), cust.Count)
	}
	t.counts("Gender", s.Demographics.Gender)
	t.counts("Age", s.Demographics.Age)
}

func (t *textWriter) counts(label string, m map[string]int) {
	t.printf("%s:", label)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		t.printf(" %s=%d", k, m[k])
	}
	t.printf("\n")
}

func writeAffinity(w io.Writer, a models.Affinity) error {
	t := newTextWriter(w)
	t.affinity(a)
	return t.err
}

func (t *textWriter) affinity(a models.Affinity) {
	t.printf("Orders analysed: %d\n", a.TotalOrders)
	if len(a.TopBundles) == 0 {
		t.printf("No product bundles found\n")
		return
	}
	t.printf("%-40s %6s %8s %6s %8s\n", "Bundle", "Orders", "Support", "Lift", "Strength")
	for i, b := range a.TopBundles {
		if i == maxTextRows {
			break
		}
		t.printf("%-40s %6d %7.1f%% %6.2f %8d\n", b.Name, b.Count, b.Support*100, b.Lift, b.Strength)
	}
}

func writeTrends(w io.Writer, tr models.Trends) error {
	t := newTextWriter(w)
	t.trends(tr)
	return t.err
}

func (t *textWriter) trends(tr models.Trends) {
	t.printf("Monthly revenue\n")
	for _, m := range tr.MonthlyTrends {
		t.printf("  %s  $%.2f  %+.1f%%\n", m.Month, money(m.Revenue), m.Growth)
	}
	t.printf("Categories\n")
	for _, c := range tr.CategoryPerformance {
		t.printf("  %-20s $%.2f  %d orders\n", c.Category, money(c.Revenue), c.Orders)
	}
	t.printf("Payment methods\n")
	payments := slices.SortedFunc(maps.Keys(tr.PaymentInsights), func(a, b string) int {
		return cmp.Or(cmp.Compare(tr.PaymentInsights[b], tr.PaymentInsights[a]), cmp.Compare(a, b))
	})
	for _, p := range payments {
		t.printf("  %-20s %d\n", p, tr.PaymentInsights[p])
	}
}

func writeRecommendations(w io.Writer, r models.Recommendations) error {
	t := newTextWriter(w)
	t.recommendations(r)
	return t.err
}

func (t *textWriter) recommendations(r models.Recommendations) {
	for _, group := range []struct {
		name string
		recs []models.Recommendation
	}{
		{"Cross-sell", r.CrossSell},
		{"Upsell", r.Upsell},
		{"Segment", r.Segment},
	} {
		t.printf("%s\n", group.name)
		for _, rec := range group.recs {
			t.printf("  %s: %s (%s)\n", rec.Title, rec.Subtitle, rec.Reason)
		}
	}
}

func writeInsights(w io.Writer, insights []models.Insight) error {
	t := newTextWriter(w)
	for _, in := range insights {
		t.printf("[%s] %s\n  %s\n", in.Type, in.Title, in.Description)
	}
	return t.err
}

func writeDashboard(w io.Writer, d models.Dashboard) error {
	t := newTextWriter(w)
	t.kpis(d.KPIs)
	t.printf("\n")
	t.segments(d.Segmentation)
	t.printf("\n")
	t.affinity(d.Affinity)
	t.printf("\n")
	t.trends(d.Trends)
	t.printf("\n")
	t.recommendations(d.Recommendations)
	return t.err
}
