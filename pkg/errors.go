package pkg

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ExposeErrorDetails adds the wrapped cause to error responses. Off in release mode.
var ExposeErrorDetails = false

func init() {
	if gin.Mode() != gin.ReleaseMode {
		ExposeErrorDetails = true
	}
}

// pg SQLSTATE codes the order store reacts to.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrVerificationUnavailable = errors.New("payment verification unavailable")
)

// ErrorCode pairs a stable machine code with the HTTP status it surfaces as.
type ErrorCode struct {
	Code    string
	Status  int
	Message string
}

var (
	ErrInvalidInputCode = ErrorCode{Code: "APP_INVALID_INPUT", Status: http.StatusBadRequest, Message: "invalid input"}
	ErrServerCode       = ErrorCode{Code: "APP_INTERNAL", Status: http.StatusInternalServerError, Message: "internal server error"}
	ErrUnauthorizedCode = ErrorCode{Code: "APP_UNAUTHORIZED", Status: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbiddenCode    = ErrorCode{Code: "APP_FORBIDDEN", Status: http.StatusForbidden, Message: "forbidden"}

	ErrValidationCode              = ErrorCode{Code: "ORDER_VALIDATION", Status: http.StatusBadRequest, Message: "order validation failed"}
	ErrOrderNotFoundCode           = ErrorCode{Code: "ORDER_NOT_FOUND", Status: http.StatusNotFound, Message: "order not found"}
	ErrPersistenceCode             = ErrorCode{Code: "ORDER_PERSISTENCE", Status: http.StatusInternalServerError, Message: "order could not be persisted"}
	ErrSQLDuplicateCode            = ErrorCode{Code: "SQL_DUPLICATE", Status: http.StatusConflict, Message: "duplicate record"}
	ErrVerificationUnavailableCode = ErrorCode{Code: "PAYMENT_VERIFICATION_UNAVAILABLE", Status: http.StatusBadGateway, Message: "payment provider unavailable"}
	ErrVerificationRejectedCode    = ErrorCode{Code: "PAYMENT_VERIFICATION_REJECTED", Status: http.StatusBadRequest, Message: "payment verification rejected"}
)

type AppError struct {
	Code    ErrorCode
	Message string // public-facing message
	Cause   error
}

func (e AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e AppError) Unwrap() error { return e.Cause }

func NewAppError(code ErrorCode, msg string, cause error) error {
	return AppError{Code: code, Message: msg, Cause: cause}
}

// NewValidationError rejects caller input before anything is persisted.
func NewValidationError(msg string, cause error) error {
	return NewAppError(ErrValidationCode, msg, cause)
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code.Code == code.Code
	}
	return false
}

type ErrorResponse struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
	Details string `json:"details,omitempty"`
}

// ToErrorResponse maps err to the JSON error body. 5xx errors are logged at error level, rejections at warn.
// Anything that is not an AppError becomes APP_INTERNAL.
func ToErrorResponse(logger *zap.Logger, traceID string, err error) ErrorResponse {
	code := ErrServerCode
	msg := ErrServerCode.Message
	var appErr AppError
	if errors.As(err, &appErr) {
		code, msg = appErr.Code, appErr.Message
	}

	if code.Status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String(TraceId, traceID), zap.String("code", code.Code), zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.String(TraceId, traceID), zap.String("code", code.Code), zap.Error(err))
	}

	resp := ErrorResponse{Status: code.Status, Code: code.Code, Message: msg, TraceID: traceID}
	if ExposeErrorDetails {
		resp.Details = err.Error()
	}
	return resp
}

// OrderStoreError translates a repository error from an order read.
// No rows becomes ORDER_NOT_FOUND wrapping ErrOrderNotFound; anything else is a persistence failure.
func OrderStoreError(traceID string, logger *zap.Logger, notFoundMsg string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return NewAppError(ErrOrderNotFoundCode, notFoundMsg, ErrOrderNotFound)
	}

	fields := []zap.Field{zap.String(TraceId, traceID), zap.Error(err)}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields = append(fields,
			zap.String("sqlstate", pgErr.Code),
			zap.String("table", pgErr.TableName),
			zap.String("constraint", pgErr.ConstraintName))
	}
	logger.Error("order store failed", fields...)
	return NewAppError(ErrPersistenceCode, "failed to load order", err)
}

// IsUniqueViolation reports whether err is a pg unique violation, optionally on a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return isPgError(err, pgUniqueViolation, constraint)
}

// IsCheckViolation reports whether err broke a CHECK constraint, optionally a specific one.
func IsCheckViolation(err error, constraint string) bool {
	return isPgError(err, pgCheckViolation, constraint)
}

func isPgError(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
