package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoppersense/internal/analytics"
	"shoppersense/internal/insights"
	"shoppersense/internal/models"
	"shoppersense/internal/store"
)

var refNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixture() []models.Transaction {
	at := func(m time.Month, d, h int) time.Time { return time.Date(2024, m, d, h, 0, 0, 0, time.UTC) }
	row := func(customer, gender, cat, product, amount string, when time.Time) models.Transaction {
		return models.Transaction{
			CustomerID:      customer,
			Age:             34,
			Gender:          gender,
			Location:        "Maine",
			ProductCategory: cat,
			ProductName:     product,
			PurchaseAmount:  decimal.RequireFromString(amount),
			Quantity:        1,
			PurchaseDate:    when,
			PaymentMethod:   "Cash",
		}
	}
	return []models.Transaction{
		row("C1", "Female", "Clothing", "Blouse", "50", at(4, 2, 10)),
		row("C1", "Female", "Accessories", "Belt", "20", at(4, 2, 11)),
		row("C2", "Male", "Clothing", "Jeans", "80", at(5, 10, 9)),
		row("C2", "Male", "Accessories", "Belt", "25", at(5, 10, 9)),
		row("C3", "Male", "Footwear", "Boots", "120", at(5, 28, 15)),
	}
}

func newService(t *testing.T, gen insights.Generator) *Analytics {
	t.Helper()
	repo := store.NewMemory(nil)
	_, err := repo.BulkCreate(context.Background(), fixture())
	require.NoError(t, err)

	summarizer := insights.NewSummarizer(gen, insights.Options{Timeout: time.Second, MaxTransactions: 3}, nil)
	a := NewAnalytics(repo, summarizer, nil)
	a.SetClock(func() time.Time { return refNow })
	return a
}

type recordingGenerator struct {
	summary insights.Summary
}

func (g *recordingGenerator) Generate(_ context.Context, s insights.Summary) ([]models.Insight, error) {
	g.summary = s
	return []models.Insight{{Type: "sales", Title: "Recorded"}}, nil
}

func TestAnalytics_ViewsMatchEngine(t *testing.T) {
	ctx := context.Background()
	a := newService(t, nil)
	txs := fixture()

	kpis, err := a.KPIs(ctx, models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, analytics.KPIs(txs), kpis)

	trends, err := a.Trends(ctx, models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, analytics.Trends(txs), trends)

	affinity, err := a.Affinity(ctx, models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 3, affinity.TotalOrders)
	assert.Equal(t, analytics.Affinity(txs), affinity)

	segments, err := a.Segments(ctx, models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, analytics.Segments(txs, refNow).Segments, segments.Segments)

	recs, err := a.Recommendations(ctx, models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, analytics.Recommendations(txs, refNow), recs)
}

func TestAnalytics_FilterApplied(t *testing.T) {
	a := newService(t, nil)

	kpis, err := a.KPIs(context.Background(), models.FilterCriteria{Gender: "Male"})
	require.NoError(t, err)
	assert.Equal(t, "225", kpis.TotalRevenue.String())
	assert.Equal(t, 3, kpis.TotalOrders)
	assert.Equal(t, 2, kpis.TotalCustomers)
}

func TestAnalytics_Dashboard(t *testing.T) {
	a := newService(t, nil)
	c := models.FilterCriteria{Category: "Clothing"}

	d, err := a.Dashboard(context.Background(), c)
	require.NoError(t, err)

	filtered := analytics.Filter(fixture(), c)
	assert.Equal(t, analytics.KPIs(filtered), d.KPIs)
	assert.Equal(t, analytics.Affinity(filtered), d.Affinity)
	assert.Equal(t, analytics.Trends(filtered), d.Trends)
	assert.Equal(t, analytics.Recommendations(filtered, refNow), d.Recommendations)
	assert.Equal(t, refNow, d.GeneratedAt)
}

func TestAnalytics_InsightsUseMostRecentRows(t *testing.T) {
	gen := &recordingGenerator{}
	a := newService(t, gen)

	got, err := a.Insights(context.Background(), models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, "Recorded", got[0].Title)

	// capped at 3, newest first: Boots, Jeans, Belt (May)
	assert.Equal(t, 3, gen.summary.TotalTransactions)
	assert.Equal(t, "225", gen.summary.TotalRevenue.String())
}

func TestAnalytics_InsightsNoData(t *testing.T) {
	a := newService(t, &recordingGenerator{})

	got, err := a.Insights(context.Background(), models.FilterCriteria{Location: "Nowhere"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "No Data Detected", got[0].Title)
}

func TestAnalytics_CreateTransaction(t *testing.T) {
	ctx := context.Background()
	a := newService(t, nil)

	tx := models.Transaction{CustomerID: "C9", ProductName: "Scarf", PurchaseAmount: decimal.NewFromInt(15)}
	require.NoError(t, a.CreateTransaction(ctx, &tx))
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, refNow, tx.PurchaseDate)

	bad := models.Transaction{CustomerID: "C9", PurchaseAmount: decimal.NewFromInt(1)}
	assert.ErrorIs(t, a.CreateTransaction(ctx, &bad), ErrInvalidTransaction)

	neg := models.Transaction{CustomerID: "C9", ProductName: "Hat", PurchaseAmount: decimal.NewFromInt(-1)}
	assert.ErrorIs(t, a.CreateTransaction(ctx, &neg), ErrInvalidTransaction)
}

func TestAnalytics_ImportTransactions(t *testing.T) {
	ctx := context.Background()
	a := newService(t, nil)

	batch := append(fixture()[:2], models.Transaction{CustomerID: "C4"}, models.Transaction{
		CustomerID:     "C4",
		ProductName:    "Gloves",
		PurchaseAmount: decimal.NewFromInt(12),
		PurchaseDate:   refNow.AddDate(0, 0, -1),
	})

	res, err := a.ImportTransactions(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Received: 4, Inserted: 1, Duplicates: 2, Invalid: 1}, res)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats["record_count"])
	assert.EqualValues(t, 1, stats["inserted"])
}

func TestAnalytics_DeleteTransaction(t *testing.T) {
	ctx := context.Background()
	a := newService(t, nil)

	txs, err := a.Transactions(ctx, models.Query{Order: models.NewestFirst, Limit: 1})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Boots", txs[0].ProductName)

	require.NoError(t, a.DeleteTransaction(ctx, txs[0].ID))
	assert.ErrorIs(t, a.DeleteTransaction(ctx, txs[0].ID), store.ErrNotFound)

	kpis, err := a.KPIs(ctx, models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, "175", kpis.TotalRevenue.String())
}

type brokenRepo struct{ store.Repository }

var errDown = errors.New("database is down")

func (brokenRepo) List(context.Context, models.Query) ([]models.Transaction, error) {
	return nil, errDown
}

func (brokenRepo) Count(context.Context) (int, error) { return 0, errDown }

func TestAnalytics_StoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	a := NewAnalytics(brokenRepo{}, nil, nil)

	_, err := a.KPIs(ctx, models.FilterCriteria{})
	assert.ErrorIs(t, err, errDown)

	_, err = a.Dashboard(ctx, models.FilterCriteria{})
	assert.ErrorIs(t, err, errDown)

	_, err = a.Insights(ctx, models.FilterCriteria{})
	assert.ErrorIs(t, err, errDown)

	_, err = a.Stats(ctx)
	assert.ErrorIs(t, err, errDown)
}
