package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shoppersense/internal/config"
	"shoppersense/internal/models"
	"shoppersense/internal/services"
	"shoppersense/internal/store"
)

// Test helper to create analytics over an in-memory store
func newTestAnalytics() *services.Analytics {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }
	testData := []models.Transaction{
		{CustomerID: "C1", Age: 31, Gender: "Male", Location: "Ohio", ProductCategory: "Clothing", ProductName: "Shirt", PurchaseAmount: decimal.NewFromInt(30), Quantity: 1, PurchaseDate: day(1), PaymentMethod: "Cash"},
		{CustomerID: "C1", Age: 31, Gender: "Male", Location: "Ohio", ProductCategory: "Accessories", ProductName: "Tie", PurchaseAmount: decimal.NewFromInt(15), Quantity: 1, PurchaseDate: day(1), PaymentMethod: "Cash"},
		{CustomerID: "C2", Age: 52, Gender: "Female", Location: "Texas", ProductCategory: "Footwear", ProductName: "Heels", PurchaseAmount: decimal.NewFromInt(110), Quantity: 1, PurchaseDate: day(4), PaymentMethod: "PayPal"},
	}
	return services.NewAnalytics(store.NewMemory(testData), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.Security.EnableRateLimit = false
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return newHandler(ctx, newTestAnalytics(), cfg, logger)
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/transactions", http.StatusOK, "application/json"},
		{"/api/analytics/kpis", http.StatusOK, "application/json"},
		{"/api/analytics/segments", http.StatusOK, "application/json"},
		{"/api/analytics/affinity", http.StatusOK, "application/json"},
		{"/api/analytics/trends", http.StatusOK, "application/json"},
		{"/api/analytics/recommendations", http.StatusOK, "application/json"},
		{"/api/analytics/ai-insights", http.StatusOK, "application/json"},
		{"/api/analytics/dashboard", http.StatusOK, "application/json"},
		{"/api/analytics/kpis?startDate=tomorrow", http.StatusBadRequest, "application/json"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			h.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			if w.Header().Get("X-Request-ID") == "" {
				t.Error("response should carry X-Request-ID")
			}

			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

// Test the analytics JSON envelope end to end
func TestServer_JSONResponse(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/analytics/kpis?gender=Male", nil)
	h.ServeHTTP(w, r)

	var response struct {
		Success bool        `json:"success"`
		Data    models.KPIs `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if !response.Success {
		t.Error("expected success=true in response")
	}
	if got := response.Data.TotalRevenue.String(); got != "45" {
		t.Errorf("totalRevenue = %s, want 45", got)
	}
	if response.Data.TotalOrders != 2 {
		t.Errorf("totalOrders = %d, want 2", response.Data.TotalOrders)
	}
}

func TestServer_TransactionLifecycle(t *testing.T) {
	h := newTestHandler(t)

	body := `{"customer_id":"C3","product_name":"Sandals","product_category":"Footwear","purchase_amount":25,"purchase_date":"2024-03-05T10:00:00Z"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/transactions", strings.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", w.Code, http.StatusCreated)
	}

	var created struct {
		Data models.Transaction `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/transactions/"+created.Data.ID, nil))
	if w.Code != http.StatusOK {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/transactions/"+created.Data.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// Test Server-Sent Events routes
func TestServer_SSERoutes(t *testing.T) {
	h := newTestHandler(t)

	sseRoutes := []string{
		"/sse/kpis",
		"/sse/affinity",
		"/sse/trends",
		"/sse/refresh-all",
	}

	for _, route := range sseRoutes {
		t.Run(route, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", route, nil)

			h.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}

			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
			}

			if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
				t.Errorf("cache-control = %q, want 'no-cache'", cc)
			}
		})
	}
}

// Test error handling for invalid methods
func TestServer_ErrorHandling(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/analytics/kpis", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"PATCH", "/api/transactions", http.StatusMethodNotAllowed},
		{"GET", "/api/analytics/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, nil)

			h.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// Test dashboard template rendering
func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)

	handleDashboard(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, "ShopperSense Analytics") {
		t.Error("dashboard should contain title")
	}

	expectedComponents := []string{
		"Key Metrics",
		"Frequently Bought Together",
		"Sales Trends",
	}

	for _, component := range expectedComponents {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
}
