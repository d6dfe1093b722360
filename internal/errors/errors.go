// Package errors defines the JSON error envelope of the HTTP API and the
// mapping from domain errors onto it.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"shoppersense/internal/observability"
)

type ErrorCode string

const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeTooLarge       ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

var statusCodes = map[ErrorCode]int{
	CodeInternal:       http.StatusInternalServerError,
	CodeValidation:     http.StatusBadRequest,
	CodeNotFound:       http.StatusNotFound,
	CodeBadRequest:     http.StatusBadRequest,
	CodeConflict:       http.StatusConflict,
	CodeTooLarge:       http.StatusRequestEntityTooLarge,
	CodeRateLimit:      http.StatusTooManyRequests,
	CodeServiceUnavail: http.StatusServiceUnavailable,
}

// AppError is the body of every failed API response. Cause is logged but
// never serialised.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	status, ok := statusCodes[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

// Wrap keeps err as the cause. Validation errors also expose it as Details
// so clients can see which filter or field was rejected.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	if code == CodeValidation && err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

func Internal(message string) *AppError { return New(CodeInternal, message) }
func Validation(message string) *AppError { return New(CodeValidation, message) }
func NotFound(message string) *AppError { return New(CodeNotFound, message) }
func RateLimit(message string) *AppError { return New(CodeRateLimit, message) }
func BadRequest(message string) *AppError { return New(CodeBadRequest, message) }

func BadRequestWrap(err error, message string) *AppError {
	return Wrap(err, CodeBadRequest, message)
}

func ValidationWrap(err error, message string) *AppError {
	return Wrap(err, CodeValidation, message)
}

func ServiceUnavailableWrap(err error, message string) *AppError {
	return Wrap(err, CodeServiceUnavail, message)
}

// Rule maps errors matching Target (via errors.Is), or accepted by Match,
// onto Code.
type Rule struct {
	Target  error
	Match   func(error) bool
	Code    ErrorCode
	Message string
}

func (r Rule) matches(err error) bool {
	if r.Match != nil && r.Match(err) {
		return true
	}
	return r.Target != nil && stderrors.Is(err, r.Target)
}

// Mapper classifies errors by the first matching rule. Errors that already
// are an AppError pass through; anything unmatched becomes Fallback.
type Mapper struct {
	Rules    []Rule
	Fallback Rule
}

func (m Mapper) Map(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	for _, rule := range m.Rules {
		if rule.matches(err) {
			return Wrap(err, rule.Code, rule.Message)
		}
	}
	if m.Fallback.Code == "" {
		return Wrap(err, CodeInternal, "An unexpected error occurred")
	}
	return Wrap(err, m.Fallback.Code, m.Fallback.Message)
}

type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

// WriteError writes err as the error envelope, tagged with the request id,
// and logs it at Warn for client errors and Error otherwise.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	appErr := Mapper{}.Map(err)
	appErr.RequestID = observability.GetRequestID(ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	if encodeErr := json.NewEncoder(w).Encode(ErrorResponse{Error: appErr}); encodeErr != nil {
		logger.ErrorContext(ctx, "failed to encode error response",
			"encode_error", encodeErr,
			"original_error", err,
			"request_id", appErr.RequestID,
		)
		return
	}

	level := slog.LevelError
	if appErr.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "request failed",
		slog.String("error_code", string(appErr.Code)),
		slog.String("error_message", appErr.Message),
		slog.Int("status_code", appErr.StatusCode),
		slog.String("request_id", appErr.RequestID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("cause", appErr.Cause),
	)
}

type SuccessResponse struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteStatus(w, http.StatusOK, data)
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteStatus(w, http.StatusCreated, data)
}

// WriteNoStore is WriteSuccess for responses computed from live data.
func WriteNoStore(w http.ResponseWriter, data any) {
	w.Header().Set("Cache-Control", "no-store")
	WriteStatus(w, http.StatusOK, data)
}

func WriteStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(SuccessResponse{Data: data, Success: true})
}
