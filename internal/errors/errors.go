package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type ErrorCode string

const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	CodeSourceUnavailable   ErrorCode = "SOURCE_UNAVAILABLE"
	CodeTableNotFound       ErrorCode = "TABLE_NOT_FOUND"
	CodeMalformedCredential ErrorCode = "MALFORMED_CREDENTIAL"
	CodeJoinFailure         ErrorCode = "JOIN_FAILURE"
)

// Pipeline failure kinds. Loaders and the joiner wrap these with %w so the
// serving layer can classify a failure without parsing messages.
var (
	ErrSourceUnavailable   = stderrors.New("source unavailable")
	ErrMalformedCredential = stderrors.New("malformed credential")
	ErrJoinFailure         = stderrors.New("join failure")
)

// TableNotFoundError reports a missing worksheet together with the tables the
// source does have.
type TableNotFoundError struct {
	Table     string
	Available []string
}

func (e *TableNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("sheet '%s' not found; sheet names are case-sensitive", e.Table)
	}
	return fmt.Sprintf("sheet '%s' not found. Available sheets: %s. Sheet names are case-sensitive",
		e.Table, strings.Join(e.Available, ", "))
}

type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
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
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: getStatusCode(code),
		Timestamp:  time.Now().UTC(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: getStatusCode(code),
		Cause:      err,
		Timestamp:  time.Now().UTC(),
	}
}

func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

func ValidationWrap(err error, message string) *AppError {
	return Wrap(err, CodeValidation, message)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message)
}

func RateLimit(message string) *AppError {
	return New(CodeRateLimit, message)
}

func ServiceUnavailable(message string) *AppError {
	return New(CodeServiceUnavail, message)
}

// FromError classifies a pipeline error. The message is the error's own text
// so the failing stage it names reaches the client unchanged.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var tableErr *TableNotFoundError
	switch {
	case stderrors.As(err, &tableErr):
		e := Wrap(err, CodeTableNotFound, err.Error())
		e.Details = map[string]any{
			"table":            tableErr.Table,
			"available_tables": tableErr.Available,
		}
		return e
	case stderrors.Is(err, ErrMalformedCredential):
		return Wrap(err, CodeMalformedCredential, err.Error())
	case stderrors.Is(err, ErrSourceUnavailable):
		return Wrap(err, CodeSourceUnavailable, err.Error())
	case stderrors.Is(err, ErrJoinFailure):
		return Wrap(err, CodeJoinFailure, err.Error())
	default:
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error occurred"
		}
		return Wrap(err, CodeInternal, msg)
	}
}

func getStatusCode(code ErrorCode) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeServiceUnavail, CodeSourceUnavailable:
		return http.StatusServiceUnavailable
	case CodeTableNotFound:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	appErr := FromError(err)
	appErr.RequestID = requestID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	response := ErrorResponse{
		Error:   appErr,
		Success: false,
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		logger.Error("failed to encode error response",
			"encode_error", encodeErr,
			"original_error", err,
			"request_id", requestID,
		)
		return
	}

	logLevel := slog.LevelError
	if appErr.StatusCode < 500 {
		logLevel = slog.LevelWarn
	}

	logger.Log(context.TODO(), logLevel, "request failed",
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)
}

type SuccessResponse struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

// ReportResponse is the envelope of every sales report.
type ReportResponse struct {
	Data           any  `json:"data"`
	FiltersApplied any  `json:"filters_applied,omitempty"`
	CacheInfo      any  `json:"cache_info"`
	Success        bool `json:"success"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, SuccessResponse{
		Data:    data,
		Success: true,
	})
}

func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	WriteSuccess(w, data)
}

func WriteReport(w http.ResponseWriter, report ReportResponse, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	report.Success = true
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
