package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"shoppersense/internal/analytics"
	"shoppersense/internal/models"
)

// Generator turns a summary into insight records. Implementations call an
// external text-generation service and may fail or time out.
type Generator interface {
	Generate(ctx context.Context, summary Summary) ([]models.Insight, error)
}

type Options struct {
	Timeout         time.Duration
	Retries         int
	MaxTransactions int
}

func DefaultOptions() Options {
	return Options{
		Timeout:         20 * time.Second,
		Retries:         1,
		MaxTransactions: 1000,
	}
}

// Summarizer produces insights for a transaction set. Generator failures
// never reach the caller; they degrade to Fallback.
type Summarizer struct {
	generator Generator
	opts      Options
	logger    *slog.Logger
}

// NewSummarizer accepts a nil generator, in which case every non-empty
// request is answered by Fallback.
func NewSummarizer(generator Generator, opts Options, logger *slog.Logger) *Summarizer {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxTransactions <= 0 {
		opts.MaxTransactions = def.MaxTransactions
	}
	opts.Retries = max(opts.Retries, 0)
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{generator: generator, opts: opts, logger: logger}
}

func (s *Summarizer) MaxTransactions() int {
	return s.opts.MaxTransactions
}

// Insights summarises the most recent MaxTransactions rows of txs and asks
// the generator for insights. An empty set short-circuits to NoData without
// calling the generator. The only error returned is the caller's own
// context cancellation.
func (s *Summarizer) Insights(ctx context.Context, txs []models.Transaction) ([]models.Insight, error) {
	if len(txs) == 0 {
		return []models.Insight{NoData()}, nil
	}

	recent := analytics.SortByDate(txs, models.NewestFirst)
	if len(recent) > s.opts.MaxTransactions {
		recent = recent[:s.opts.MaxTransactions]
	}
	summary := BuildSummary(recent)

	if s.generator == nil {
		s.logger.Debug("no insight generator configured, using fallback")
		return Fallback(summary), nil
	}

	out, err := s.generate(ctx, summary)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("insight generation failed, using fallback",
			"error", err,
			"transactions", summary.TotalTransactions,
		)
		return Fallback(summary), nil
	}
	return out, nil
}

func (s *Summarizer) generate(ctx context.Context, summary Summary) ([]models.Insight, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}

		out, err := s.attempt(ctx, summary)
		if err == nil {
			return out, nil
		}
		lastErr = err
		s.logger.Debug("insight attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (s *Summarizer) attempt(ctx context.Context, summary Summary) ([]models.Insight, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.generator.Generate(ctx, summary)
	if err != nil {
		return nil, err
	}
	out = usable(out)
	if len(out) == 0 {
		return nil, ErrNoInsights
	}
	return out, nil
}

var ErrNoInsights = errors.New("no usable insights in response")

// usable drops records without the fields the dashboard keys on.
func usable(in []models.Insight) []models.Insight {
	out := make([]models.Insight, 0, len(in))
	for _, ins := range in {
		if ins.Type != "" && ins.Title != "" {
			out = append(out, ins)
		}
	}
	return out
}

// NoData is the single insight served when no transactions match.
func NoData() models.Insight {
	return models.Insight{
		Type:        "alert",
		Title:       "No Data Detected",
		Description: "Currently no transactions match your filters. Upload data to see insights.",
		Confidence:  "High",
		ImplementationGuide: models.ImplementationGuide{
			Explanation: "No transaction data found for the current filter selection.",
			Metrics:     models.InsightMetrics{Duration: "N/A"},
			Actions:     []string{"Upload more data", "Adjust filters"},
		},
	}
}

// Fallback derives insights straight from the summary when the generator is
// unavailable.
func Fallback(summary Summary) []models.Insight {
	revenue := summary.TotalRevenue.InexactFloat64()

	name, catRevenue := "Top category", 0.0
	filters := map[string]any{}
	if summary.TopCategory != nil {
		name, catRevenue = summary.TopCategory.Name, summary.TopCategory.Value
		filters["category"] = name
	}

	share := 0.0
	if revenue > 0 {
		share = math.Round(catRevenue / revenue * 100)
	}

	return []models.Insight{
		{
			Type:        "sales",
			Title:       name + " Dominance",
			Description: fmt.Sprintf("Category contributes %.0f%% of total revenue.", share),
			Confidence:  "High",
			ImplementationGuide: models.ImplementationGuide{
				Explanation: fmt.Sprintf("The %s category leads with $%.2f in total revenue, showing strong market fit.", name, catRevenue),
				Metrics: models.InsightMetrics{
					RevenueImpact: catRevenue,
					Growth:        15,
					SegmentSize:   float64(summary.TotalTransactions),
					Duration:      "Last 30 days",
				},
				Actions: []string{"Increase stock for top items", "Launch targeted category promotions", "Explore premium variants"},
				Impact: models.InsightImpact{
					RevenueUplift:        10,
					RetentionImprovement: 5,
					CrossSellImpact:      8,
				},
				VisualData:       []float64{40, 55, 45, 70, 65, 80, 75, 90},
				SuggestedFilters: filters,
			},
		},
		{
			Type:        "behavior",
			Title:       "Customer Loyalty Patterns",
			Description: "A significant portion of your revenue comes from repeat shoppers.",
			Confidence:  "High",
			ImplementationGuide: models.ImplementationGuide{
				Explanation: "Repeat purchase rate indicates strong brand loyalty among your core demographic.",
				Metrics: models.InsightMetrics{
					RevenueImpact: math.Round(revenue*0.4*100) / 100,
					Growth:        8,
					SegmentSize:   math.Round(float64(summary.TotalTransactions) * 0.3),
					Duration:      "Last 60 days",
				},
				Actions: []string{"Introduce loyalty points", "Send personalized re-engagement emails", "VIP exclusive offers"},
				Impact: models.InsightImpact{
					RevenueUplift:        12,
					RetentionImprovement: 15,
					CrossSellImpact:      5,
				},
				VisualData:       []float64{30, 35, 40, 45, 42, 50, 55, 60},
				SuggestedFilters: map[string]any{},
			},
		},
	}
}
