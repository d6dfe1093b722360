package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shoppersense/internal/analytics"
	"shoppersense/internal/insights"
	"shoppersense/internal/models"
	"shoppersense/internal/observability"
	"shoppersense/internal/store"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

// Analytics computes every dashboard view from a fresh repository read.
// Nothing is cached between calls; each request works on its own snapshot.
type Analytics struct {
	repo     store.Repository
	insights *insights.Summarizer
	logger   *slog.Logger
	now      func() time.Time
	started  time.Time

	computations atomic.Int64
	inserted     atomic.Int64
}

func NewAnalytics(repo store.Repository, summarizer *insights.Summarizer, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	if summarizer == nil {
		summarizer = insights.NewSummarizer(nil, insights.DefaultOptions(), logger)
	}
	return &Analytics{
		repo:     repo,
		insights: summarizer,
		logger:   logger,
		now:      time.Now,
		started:  time.Now(),
	}
}

// SetClock pins the reference time used for recency rules.
func (a *Analytics) SetClock(now func() time.Time) {
	a.now = now
}

func compute[T any](ctx context.Context, a *Analytics, view string, q models.Query, fn func([]models.Transaction) T) (T, error) {
	ctx, span := observability.StartSpan(ctx, "analytics."+view)
	defer span.End(ctx, a.logger)

	var zero T
	txs, err := a.repo.List(ctx, q)
	if err != nil {
		span.SetError(err)
		return zero, fmt.Errorf("list transactions: %w", err)
	}
	span.SetTag("transactions", strconv.Itoa(len(txs)))

	start := time.Now()
	out := fn(txs)
	a.computations.Add(1)
	a.logger.DebugContext(ctx, "view computed",
		"view", view,
		"transactions", len(txs),
		"duration", time.Since(start),
	)
	return out, nil
}

func (a *Analytics) KPIs(ctx context.Context, c models.FilterCriteria) (models.KPIs, error) {
	return compute(ctx, a, "kpis", models.Query{Criteria: c}, analytics.KPIs)
}

func (a *Analytics) Segments(ctx context.Context, c models.FilterCriteria) (models.Segmentation, error) {
	now := a.now()
	return compute(ctx, a, "segments", models.Query{Criteria: c}, func(txs []models.Transaction) models.Segmentation {
		return analytics.Segments(txs, now)
	})
}

func (a *Analytics) Affinity(ctx context.Context, c models.FilterCriteria) (models.Affinity, error) {
	return compute(ctx, a, "affinity", models.Query{Criteria: c}, analytics.Affinity)
}

func (a *Analytics) Trends(ctx context.Context, c models.FilterCriteria) (models.Trends, error) {
	return compute(ctx, a, "trends", models.Query{Criteria: c, Order: models.OldestFirst}, analytics.Trends)
}

func (a *Analytics) Recommendations(ctx context.Context, c models.FilterCriteria) (models.Recommendations, error) {
	now := a.now()
	return compute(ctx, a, "recommendations", models.Query{Criteria: c}, func(txs []models.Transaction) models.Recommendations {
		return analytics.Recommendations(txs, now)
	})
}

// Insights reads the most recent matching rows and hands them to the
// summarizer. Generator failures are absorbed there; only store errors and
// caller cancellation come back.
func (a *Analytics) Insights(ctx context.Context, c models.FilterCriteria) ([]models.Insight, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.insights")
	defer span.End(ctx, a.logger)

	txs, err := a.repo.List(ctx, models.Query{
		Criteria: c,
		Order:    models.NewestFirst,
		Limit:    a.insights.MaxTransactions(),
	})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	span.SetTag("transactions", strconv.Itoa(len(txs)))

	out, err := a.insights.Insights(ctx, txs)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	a.computations.Add(1)
	return out, nil
}

// Dashboard reads one snapshot and derives all engine views from it
// concurrently. The views share the slice read-only.
func (a *Analytics) Dashboard(ctx context.Context, c models.FilterCriteria) (models.Dashboard, error) {
	now := a.now()
	return compute(ctx, a, "dashboard", models.Query{Criteria: c, Order: models.OldestFirst}, func(txs []models.Transaction) models.Dashboard {
		d := models.Dashboard{GeneratedAt: now.UTC()}

		var g errgroup.Group
		g.Go(func() error { d.KPIs = analytics.KPIs(txs); return nil })
		g.Go(func() error { d.Segmentation = analytics.Segments(txs, now); return nil })
		g.Go(func() error { d.Affinity = analytics.Affinity(txs); return nil })
		g.Go(func() error { d.Trends = analytics.Trends(txs); return nil })
		g.Go(func() error { d.Recommendations = analytics.Recommendations(txs, now); return nil })
		_ = g.Wait()

		return d
	})
}

func (a *Analytics) Transactions(ctx context.Context, q models.Query) ([]models.Transaction, error) {
	txs, err := a.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (a *Analytics) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := a.validate(tx); err != nil {
		return err
	}
	if err := a.repo.Create(ctx, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	a.inserted.Add(1)
	a.logger.InfoContext(ctx, "transaction created", "id", tx.ID, "customer_id", tx.CustomerID)
	return nil
}

type ImportResult struct {
	Received   int `json:"received"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// ImportTransactions validates each row, drops the invalid ones and
// bulk-inserts the rest. Rows already stored are counted as duplicates.
func (a *Analytics) ImportTransactions(ctx context.Context, txs []models.Transaction) (ImportResult, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.import")
	defer span.End(ctx, a.logger)

	res := ImportResult{Received: len(txs)}
	valid := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		if err := a.validate(&txs[i]); err != nil {
			res.Invalid++
			continue
		}
		valid = append(valid, txs[i])
	}

	n, err := a.repo.BulkCreate(ctx, valid)
	if err != nil {
		span.SetError(err)
		return res, fmt.Errorf("bulk create: %w", err)
	}
	res.Inserted = n
	res.Duplicates = len(valid) - n
	a.inserted.Add(int64(n))

	span.SetTag("inserted", strconv.Itoa(n))
	a.logger.InfoContext(ctx, "transactions imported",
		"received", res.Received,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"invalid", res.Invalid,
	)
	return res, nil
}

func (a *Analytics) DeleteTransaction(ctx context.Context, id string) error {
	if err := a.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	a.logger.InfoContext(ctx, "transaction deleted", "id", id)
	return nil
}

func (a *Analytics) validate(tx *models.Transaction) error {
	switch {
	case tx.CustomerID == "":
		return fmt.Errorf("%w: customer_id is required", ErrInvalidTransaction)
	case tx.ProductName == "":
		return fmt.Errorf("%w: product_name is required", ErrInvalidTransaction)
	case tx.PurchaseAmount.LessThan(decimal.Zero):
		return fmt.Errorf("%w: purchase_amount must not be negative", ErrInvalidTransaction)
	case tx.Age < 0:
		return fmt.Errorf("%w: age must not be negative", ErrInvalidTransaction)
	case tx.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidTransaction)
	}
	if tx.PurchaseDate.IsZero() {
		tx.PurchaseDate = a.now().UTC()
	}
	return nil
}

// Stats reports repository and service counters for monitoring.
func (a *Analytics) Stats(ctx context.Context) (map[string]any, error) {
	count, err := a.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	return map[string]any{
		"record_count": count,
		"inserted":     a.inserted.Load(),
		"computations": a.computations.Load(),
		"started_at":   a.started.UTC().Format(time.RFC3339),
		"uptime":       time.Since(a.started).Round(time.Second).String(),
	}, nil
}
