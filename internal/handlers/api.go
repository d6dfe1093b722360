package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"shoppersense/internal/analytics"
	"shoppersense/internal/errors"
	"shoppersense/internal/ingest"
	"shoppersense/internal/models"
	"shoppersense/internal/services"
	"shoppersense/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 5000
)

var maxBodyBytes int64 = 32 << 20

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	version   string
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		version:   "1.0.0",
	}
}

// fail maps service and store errors onto the JSON error envelope. A client
// that went away gets nothing written.
func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		h.logger.DebugContext(ctx, "request cancelled", "path", r.URL.Path)
		return
	}
	errors.WriteError(w, r, h.logger, apiErrors.Map(err))
}

var apiErrors = errors.Mapper{
	Rules: []errors.Rule{
		{Target: analytics.ErrInvalidFilter, Code: errors.CodeValidation, Message: "Invalid filter"},
		{Target: services.ErrInvalidTransaction, Code: errors.CodeValidation, Message: "Invalid transaction"},
		{Target: ingest.ErrMissingColumns, Code: errors.CodeValidation, Message: "Invalid CSV upload"},
		{Target: ingest.ErrNoValidRows, Code: errors.CodeValidation, Message: "Invalid CSV upload"},
		{Target: store.ErrNotFound, Code: errors.CodeNotFound, Message: "Transaction not found"},
		{Target: store.ErrDuplicate, Code: errors.CodeConflict, Message: "Transaction already exists"},
		{Match: isTooLarge, Code: errors.CodeTooLarge, Message: "Request body too large"},
	},
	Fallback: errors.Rule{Code: errors.CodeServiceUnavail, Message: "Transaction store unavailable"},
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return stderrors.As(err, &tooLarge)
}

func criteria(r *http.Request) (models.FilterCriteria, error) {
	return analytics.ParseCriteria(r.URL.Query())
}

// view adapts a filtered service call into a handler.
func view[T any](h *APIHandlers, fn func(context.Context, models.FilterCriteria) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := criteria(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		data, err := fn(r.Context(), c)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		errors.WriteNoStore(w, data)
	}
}

func (h *APIHandlers) HandleKPIs() http.HandlerFunc {
	return view(h, h.analytics.KPIs)
}

func (h *APIHandlers) HandleSegments() http.HandlerFunc {
	return view(h, h.analytics.Segments)
}

func (h *APIHandlers) HandleAffinity() http.HandlerFunc {
	return view(h, h.analytics.Affinity)
}

func (h *APIHandlers) HandleTrends() http.HandlerFunc {
	return view(h, h.analytics.Trends)
}

func (h *APIHandlers) HandleRecommendations() http.HandlerFunc {
	return view(h, h.analytics.Recommendations)
}

func (h *APIHandlers) HandleInsights() http.HandlerFunc {
	return view(h, h.analytics.Insights)
}

func (h *APIHandlers) HandleDashboard() http.HandlerFunc {
	return view(h, h.analytics.Dashboard)
}

func (h *APIHandlers) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	c, err := criteria(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q := models.Query{Criteria: c, Order: models.NewestFirst, Limit: defaultListLimit}
	params := r.URL.Query()
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.fail(w, r, errors.Validation("limit must be a positive integer"))
			return
		}
		q.Limit = min(n, maxListLimit)
	}
	switch params.Get("order") {
	case "", "desc":
	case "asc":
		q.Order = models.OldestFirst
	default:
		h.fail(w, r, errors.Validation("order must be asc or desc"))
		return
	}

	txs, err := h.analytics.Transactions(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteNoStore(w, txs)
}

func (h *APIHandlers) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.analytics.CreateTransaction(r.Context(), &tx); err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteCreated(w, tx)
}

type bulkRequest struct {
	Transactions []models.Transaction `json:"transactions"`
}

// HandleBulkCreate accepts {"transactions": [...]} or, with a text/csv
// content type, a raw CSV upload using the same header rules as file import.
func (h *APIHandlers) HandleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var txs []models.Transaction

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		res, err := ingest.ReadCSV(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		txs = res.Transactions
	} else {
		var body bulkRequest
		if err := decodeJSON(w, r, &body); err != nil {
			h.fail(w, r, err)
			return
		}
		if body.Transactions == nil {
			h.fail(w, r, errors.Validation("transactions must be an array"))
			return
		}
		txs = body.Transactions
	}

	res, err := h.analytics.ImportTransactions(r.Context(), txs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteCreated(w, res)
}

func (h *APIHandlers) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.fail(w, r, errors.BadRequest("transaction id is required"))
		return
	}
	if err := h.analytics.DeleteTransaction(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, map[string]string{"id": id, "status": "deleted"})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, stats)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errors.BadRequestWrap(err, fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}
