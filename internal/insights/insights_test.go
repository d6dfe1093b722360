package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoppersense/internal/models"
)

func tx(category, location string, age int, amount string, when time.Time) models.Transaction {
	return models.Transaction{
		CustomerID:      "C1",
		Age:             age,
		Location:        location,
		ProductCategory: category,
		ProductName:     category + " item",
		PurchaseAmount:  decimal.RequireFromString(amount),
		Quantity:        1,
		PurchaseDate:    when,
	}
}

// 2024-05-06 is a Monday.
func sample() []models.Transaction {
	mon := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	return []models.Transaction{
		tx("Clothing", "Maine", 22, "60", mon),
		tx("Clothing", "Ohio", 24, "40", mon.Add(time.Hour)),
		tx("Footwear", "Maine", 45, "30", mon.AddDate(0, 0, 1)),
	}
}

type fakeGenerator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, s Summary) ([]models.Insight, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, s Summary) ([]models.Insight, error) {
	f.calls.Add(1)
	return f.fn(ctx, s)
}

func quietOptions() Options {
	return Options{Timeout: time.Second, MaxTransactions: 1000}
}

func TestBuildSummary(t *testing.T) {
	s := BuildSummary(sample())

	assert.Equal(t, "130", s.TotalRevenue.String())
	assert.Equal(t, 3, s.TotalTransactions)
	assert.Equal(t, &Leader{Name: "Clothing", Value: 100}, s.TopCategory)
	assert.Equal(t, &Leader{Name: "Maine", Value: 90}, s.TopLocation)
	assert.Equal(t, &Leader{Name: "20-29", Value: 2}, s.TopAgeGroup)
	assert.Equal(t, &Leader{Name: "Monday", Value: 2}, s.BusiestDay)
	assert.Equal(t, 1, s.DayPerformance["Tuesday"])

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"topCategory":["Clothing",100]`)
	assert.Contains(t, string(data), `"totalRevenue":130`)
}

func TestBuildSummary_Empty(t *testing.T) {
	s := BuildSummary(nil)
	assert.Nil(t, s.TopCategory)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"topCategory":null`)
}

func TestSummarizer_NoDataSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{fn: func(context.Context, Summary) ([]models.Insight, error) {
		t.Fatal("generator must not be called")
		return nil, nil
	}}

	got, err := NewSummarizer(gen, quietOptions(), nil).Insights(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alert", got[0].Type)
	assert.Equal(t, "No Data Detected", got[0].Title)
	assert.Zero(t, gen.calls.Load())
}

func TestSummarizer_UsesGeneratorOutput(t *testing.T) {
	gen := &fakeGenerator{fn: func(context.Context, Summary) ([]models.Insight, error) {
		return []models.Insight{
			{Type: "sales", Title: "Clothing Surge"},
			{Type: "", Title: "dropped"},
		}, nil
	}}

	got, err := NewSummarizer(gen, quietOptions(), nil).Insights(context.Background(), sample())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Clothing Surge", got[0].Title)
}

func TestSummarizer_CapsToMostRecent(t *testing.T) {
	var seen Summary
	gen := &fakeGenerator{fn: func(_ context.Context, s Summary) ([]models.Insight, error) {
		seen = s
		return []models.Insight{{Type: "sales", Title: "ok"}}, nil
	}}

	opts := quietOptions()
	opts.MaxTransactions = 1
	_, err := NewSummarizer(gen, opts, nil).Insights(context.Background(), sample())
	require.NoError(t, err)

	assert.Equal(t, 1, seen.TotalTransactions)
	assert.Equal(t, "Footwear", seen.TopCategory.Name)
}

func TestSummarizer_FallsBack(t *testing.T) {
	tests := map[string]func(context.Context, Summary) ([]models.Insight, error){
		"error": func(context.Context, Summary) ([]models.Insight, error) {
			return nil, errors.New("boom")
		},
		"empty": func(context.Context, Summary) ([]models.Insight, error) {
			return nil, nil
		},
		"timeout": func(ctx context.Context, _ Summary) ([]models.Insight, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			opts := quietOptions()
			opts.Timeout = 20 * time.Millisecond

			got, err := NewSummarizer(&fakeGenerator{fn: fn}, opts, nil).Insights(context.Background(), sample())
			require.NoError(t, err)
			assert.Equal(t, Fallback(BuildSummary(sample())), got)
		})
	}
}

func TestSummarizer_Retries(t *testing.T) {
	gen := &fakeGenerator{}
	gen.fn = func(context.Context, Summary) ([]models.Insight, error) {
		if gen.calls.Load() == 1 {
			return nil, errors.New("transient")
		}
		return []models.Insight{{Type: "revenue", Title: "Second Try"}}, nil
	}

	opts := quietOptions()
	opts.Retries = 1
	got, err := NewSummarizer(gen, opts, nil).Insights(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, "Second Try", got[0].Title)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestSummarizer_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{fn: func(ctx context.Context, _ Summary) ([]models.Insight, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	_, err := NewSummarizer(gen, quietOptions(), nil).Insights(ctx, sample())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarizer_NilGenerator(t *testing.T) {
	got, err := NewSummarizer(nil, quietOptions(), nil).Insights(context.Background(), sample())
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFallback(t *testing.T) {
	got := Fallback(BuildSummary(sample()))
	require.Len(t, got, 2)

	assert.Equal(t, "Clothing Dominance", got[0].Title)
	assert.Equal(t, "Category contributes 77% of total revenue.", got[0].Description)
	assert.Equal(t, map[string]any{"category": "Clothing"}, got[0].ImplementationGuide.SuggestedFilters)
	assert.Equal(t, 100.0, got[0].ImplementationGuide.Metrics.RevenueImpact)

	assert.Equal(t, "Customer Loyalty Patterns", got[1].Title)
	assert.Equal(t, 52.0, got[1].ImplementationGuide.Metrics.RevenueImpact)
	assert.Equal(t, 1.0, got[1].ImplementationGuide.Metrics.SegmentSize)
}

func TestFallback_ZeroRevenue(t *testing.T) {
	got := Fallback(BuildSummary([]models.Transaction{tx("Gifts", "Ohio", 30, "0", time.Now())}))
	assert.Equal(t, "Category contributes 0% of total revenue.", got[0].Description)
}

func TestParseInsights(t *testing.T) {
	text := "Here you go:\n```json\n[{\"type\":\"sales\",\"title\":\"A\",\"confidence\":\"High\"},{\"title\":\"no type\"}]\n```"
	got, err := ParseInsights(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)

	_, err = ParseInsights("I cannot help with that")
	assert.ErrorIs(t, err, ErrNoInsights)

	_, err = ParseInsights(`[{"title":"missing type"}]`)
	assert.ErrorIs(t, err, ErrNoInsights)

	_, err = ParseInsights(`[{"type": oops}]`)
	assert.ErrorContains(t, err, "decode insights")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(BuildSummary(sample()))
	assert.Contains(t, p, `"topCategory":["Clothing",100]`)
	assert.Contains(t, p, "Return ONLY a JSON array")
}

const modelReply = `[{"type":"behavior","title":"Maine Loyalists","description":"d","confidence":"Medium","implementationGuide":{"visualData":[1,2,3,4,5,6,7,8]}}]`

func TestLLMClient_Gemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "Data Summary")

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": modelReply}}},
			}},
		})
	}))
	defer srv.Close()

	c, err := NewLLMClient(ClientConfig{Provider: ProviderGemini, Model: "test-model", APIKey: "secret", Endpoint: srv.URL + "/models/"}, srv.Client(), nil)
	require.NoError(t, err)

	got, err := c.Generate(context.Background(), BuildSummary(sample()))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Maine Loyalists", got[0].Title)
	assert.Len(t, got[0].ImplementationGuide.VisualData, 8)
}

func TestLLMClient_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": modelReply}}},
		})
	}))
	defer srv.Close()

	c, err := NewLLMClient(ClientConfig{Provider: ProviderOpenAI, Model: "gpt-test", APIKey: "secret", Endpoint: srv.URL + "/v1"}, nil, nil)
	require.NoError(t, err)

	got, err := c.Generate(context.Background(), BuildSummary(sample()))
	require.NoError(t, err)
	assert.Equal(t, "behavior", got[0].Type)
}

func TestLLMClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 500), http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewLLMClient(ClientConfig{Provider: ProviderGemini, APIKey: "k", Endpoint: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), BuildSummary(sample()))
	assert.ErrorContains(t, err, "api returned 429")
}

func TestLLMClient_KeyNotLogged(t *testing.T) {
	const key = "SUPERSECRETKEY"
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	for _, endpoint := range []string{"http://127.0.0.1:1", "http://127.0.0.1:1/v1?key=" + key} {
		c, err := NewLLMClient(ClientConfig{Provider: ProviderGemini, Model: "m", APIKey: key, Endpoint: endpoint}, nil, logger)
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), BuildSummary(sample()))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), key)

		opts := quietOptions()
		got, err := NewSummarizer(c, opts, logger).Insights(context.Background(), sample())
		require.NoError(t, err)
		assert.Equal(t, Fallback(BuildSummary(sample())), got)
	}

	assert.Contains(t, logs.String(), "insight generation failed")
	assert.NotContains(t, logs.String(), key)
}

func TestNewLLMClient_Validation(t *testing.T) {
	_, err := NewLLMClient(ClientConfig{Provider: "bard", APIKey: "k"}, nil, nil)
	assert.ErrorContains(t, err, "unsupported insights provider")

	_, err = NewLLMClient(ClientConfig{Provider: ProviderOpenAI}, nil, nil)
	assert.ErrorContains(t, err, "requires an api key")
}
