package analytics

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoppersense/internal/models"
)

func sameDayBasket() []models.Transaction {
	return []models.Transaction{
		newTx("C1", "A", "X", "10", day(2024, 5, 1)),
		newTx("C1", "B", "Y", "20", day(2024, 5, 1)),
	}
}

func TestAffinity_SameDayBasket(t *testing.T) {
	a := Affinity(sameDayBasket())

	assert.Equal(t, 1, a.TotalOrders)
	require.Len(t, a.TopBundles, 1)
	b := a.TopBundles[0]
	assert.Equal(t, "A + B", b.Name)
	assert.Equal(t, 1, b.Count)
	assert.Equal(t, 1.0, b.Support)
	assert.Equal(t, 1.0, b.Confidence)
	assert.Equal(t, 1.0, b.Lift)
	assert.Equal(t, 20, b.Strength)
}

func TestAffinity_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	g.AssertJson(t, "affinity_same_day_basket", Affinity(sameDayBasket()))
	g.AssertJson(t, "kpis_same_day_basket", KPIs(sameDayBasket()))
}

func TestAffinity_OrdersSplitByDayAndCustomer(t *testing.T) {
	txs := []models.Transaction{
		newTx("C1", "A", "X", "10", day(2024, 5, 1)),
		newTx("C1", "B", "X", "10", day(2024, 5, 2)),
		newTx("C2", "A", "X", "10", day(2024, 5, 1)),
	}

	a := Affinity(txs)

	assert.Equal(t, 3, a.TotalOrders)
	assert.Empty(t, a.TopBundles)
	assert.Empty(t, a.CategoryAffinity)
}

func TestAffinity_DuplicateItemsCountOncePerOrder(t *testing.T) {
	txs := []models.Transaction{
		newTx("C1", "B", "X", "10", day(2024, 5, 1)),
		newTx("C1", "A", "X", "10", day(2024, 5, 1)),
		newTx("C1", "A", "X", "10", day(2024, 5, 1)),
	}

	a := Affinity(txs)

	require.Len(t, a.TopBundles, 1)
	assert.Equal(t, "A + B", a.TopBundles[0].Name)
	assert.Equal(t, 1, a.TopBundles[0].Count)
	assert.Empty(t, a.CategoryAffinity)
}

func TestAffinity_SupportConfidenceLift(t *testing.T) {
	// Four orders: {A,B} {A,B} {A,C} {D}
	txs := []models.Transaction{
		newTx("C1", "A", "X", "1", day(2024, 5, 1)),
		newTx("C1", "B", "Y", "1", day(2024, 5, 1)),
		newTx("C2", "A", "X", "1", day(2024, 5, 1)),
		newTx("C2", "B", "Y", "1", day(2024, 5, 1)),
		newTx("C3", "A", "X", "1", day(2024, 5, 1)),
		newTx("C3", "C", "Z", "1", day(2024, 5, 1)),
		newTx("C4", "D", "W", "1", day(2024, 5, 1)),
	}

	a := Affinity(txs)

	assert.Equal(t, 4, a.TotalOrders)
	require.Len(t, a.TopBundles, 2)

	ab := a.TopBundles[0]
	assert.Equal(t, "A + B", ab.Name)
	assert.Equal(t, 2, ab.Count)
	assert.Equal(t, 0.5, ab.Support)
	assert.Equal(t, 0.6667, ab.Confidence)
	assert.Equal(t, 1.3333, ab.Lift)
	assert.Equal(t, 27, ab.Strength)

	ac := a.TopBundles[1]
	assert.Equal(t, "A + C", ac.Name)
	assert.Equal(t, 0.25, ac.Support)
	assert.Equal(t, 1.3333, ac.Lift)

	require.Len(t, a.CategoryAffinity, 2)
	assert.Equal(t, "X + Y", a.CategoryAffinity[0].Name)
	assert.Equal(t, "X", a.CategoryAffinity[0].CatA)
	assert.Equal(t, "Y", a.CategoryAffinity[0].CatB)
	assert.Equal(t, 0.5, a.CategoryAffinity[0].Support)
}

func TestAffinity_IndependentItemsHaveUnitLift(t *testing.T) {
	// P(A) = P(B) = 1/2 and P(A,B) = 1/4
	txs := []models.Transaction{
		newTx("C1", "A", "X", "1", day(2024, 5, 1)),
		newTx("C1", "B", "X", "1", day(2024, 5, 1)),
		newTx("C2", "A", "X", "1", day(2024, 5, 1)),
		newTx("C3", "B", "X", "1", day(2024, 5, 1)),
		newTx("C4", "Z", "X", "1", day(2024, 5, 1)),
	}

	a := Affinity(txs)

	require.Len(t, a.TopBundles, 1)
	assert.Equal(t, 1.0, a.TopBundles[0].Lift)
}

func TestAffinity_TopTenByCount(t *testing.T) {
	var txs []models.Transaction
	products := []string{"P0", "P1", "P2", "P3", "P4", "P5"}
	for i, p := range products {
		for _, q := range products[i+1:] {
			c := p + q
			txs = append(txs,
				newTx(c, p, "X", "1", day(2024, 5, 1)),
				newTx(c, q, "X", "1", day(2024, 5, 1)),
			)
		}
	}
	// make P4 + P5 the most frequent pair
	txs = append(txs,
		newTx("extra", "P4", "X", "1", day(2024, 5, 2)),
		newTx("extra", "P5", "X", "1", day(2024, 5, 2)),
	)

	a := Affinity(txs)

	require.Len(t, a.TopBundles, 10)
	assert.Equal(t, "P4 + P5", a.TopBundles[0].Name)
	assert.Equal(t, 2, a.TopBundles[0].Count)
}

func TestAffinity_Empty(t *testing.T) {
	a := Affinity(nil)

	assert.Zero(t, a.TotalOrders)
	assert.NotNil(t, a.TopBundles)
	assert.Empty(t, a.TopBundles)
	assert.NotNil(t, a.CategoryAffinity)
	assert.Empty(t, a.CategoryAffinity)
}

func TestStrength_Monotonic(t *testing.T) {
	prev := Strength(0)
	for lift := 0.0; lift <= 10; lift += 0.05 {
		s := Strength(lift)
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}
	assert.Equal(t, 100, Strength(42))
}
