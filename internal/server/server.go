package server

import (
	"log/slog"
	"net/http"

	"shoppersense/internal/handlers"
	"shoppersense/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	if templateHandlers != nil && templateHandlers.Dashboard != nil {
		s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	}
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// transactions
	s.mux.HandleFunc("GET /api/transactions", s.apiHandlers.HandleListTransactions)
	s.mux.HandleFunc("POST /api/transactions", s.apiHandlers.HandleCreateTransaction)
	s.mux.HandleFunc("POST /api/transactions/bulk", s.apiHandlers.HandleBulkCreate)
	s.mux.HandleFunc("DELETE /api/transactions/{id}", s.apiHandlers.HandleDeleteTransaction)

	// analytics views
	s.mux.Handle("GET /api/analytics/kpis", s.apiHandlers.HandleKPIs())
	s.mux.Handle("GET /api/analytics/segments", s.apiHandlers.HandleSegments())
	s.mux.Handle("GET /api/analytics/affinity", s.apiHandlers.HandleAffinity())
	s.mux.Handle("GET /api/analytics/trends", s.apiHandlers.HandleTrends())
	s.mux.Handle("GET /api/analytics/recommendations", s.apiHandlers.HandleRecommendations())
	s.mux.Handle("GET /api/analytics/ai-insights", s.apiHandlers.HandleInsights())
	s.mux.Handle("GET /api/analytics/dashboard", s.apiHandlers.HandleDashboard())

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/kpis", s.sseHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /sse/affinity", s.sseHandlers.HandleAffinity)
	s.mux.HandleFunc("GET /sse/trends", s.sseHandlers.HandleTrends)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
