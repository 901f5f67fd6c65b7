package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Error codes shared by the repositories, services and the transport binding.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeNotApproved    = "NOT_APPROVED"
	CodeAlreadyDone    = "ALREADY_PROCESSED"
	CodeSelfVote       = "SELF_VOTE"
	CodeRateLimited    = "RATE_LIMITED"
	CodePublishFailure = "PUBLISH_FAILURE"
	CodeTransientStore = "TRANSIENT_STORE_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	Details           string `json:"details,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
	// RetryAfter is only set for RATE_LIMITED errors.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewNotApprovedError(id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotApproved,
		Message: fmt.Sprintf("Confession %v is not approved", id),
	}
}

func NewAlreadyProcessedError(id interface{}) *AppError {
	return &AppError{
		Code:    CodeAlreadyDone,
		Message: fmt.Sprintf("Confession %v was already processed", id),
	}
}

func NewSelfVoteError() *AppError {
	return &AppError{
		Code:    CodeSelfVote,
		Message: "You cannot vote on your own content",
	}
}

// NewRateLimitedError carries the remaining wait so callers can render it.
func NewRateLimitedError(message string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

func NewPublishFailureError(err error) *AppError {
	return &AppError{
		Code:    CodePublishFailure,
		Message: "Publishing failed",
		Err:     err,
	}
}

func NewTransientStoreError(err error) *AppError {
	return &AppError{
		Code:    CodeTransientStore,
		Message: "Temporary storage problem, please retry",
		Err:     err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the AppError code carried by err, or INTERNAL_ERROR.
// A nil error has no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTransientStore
	}
	return CodeInternal
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// StatusFor maps an error to the HTTP status the transport binding answers with.
func StatusFor(err error) int {
	switch ErrorCode(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotApproved, CodeAlreadyDone:
		return http.StatusConflict
	case CodeSelfVote, CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodePublishFailure:
		return http.StatusBadGateway
	case CodeTransientStore:
		return http.StatusServiceUnavailable
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response.
// Internal error details never reach the client.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.RetryAfter > 0 {
			response.RetryAfterSeconds = int(math.Ceil(appErr.RetryAfter.Seconds()))
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", response.RetryAfterSeconds))
		}
	} else {
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  CodeInternal,
		}
	}

	return c.Status(status).JSON(response)
}
