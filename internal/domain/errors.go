package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingDocument ErrorCode = "VALIDATION_MISSING_DOCUMENT"
	ErrorCodeValidationInvalidDocument ErrorCode = "VALIDATION_INVALID_DOCUMENT"
	ErrorCodeValidationSeasonClosed    ErrorCode = "VALIDATION_SEASON_CLOSED"
	ErrorCodeValidationInstallmentCap  ErrorCode = "VALIDATION_INSTALLMENT_CAP"
	ErrorCodeValidationInvalidCategory ErrorCode = "VALIDATION_INVALID_CATEGORY"
	ErrorCodeValidationWalletRequired  ErrorCode = "VALIDATION_WALLET_REQUIRED"

	// Not Found Errors (NOT_FOUND_*)
	ErrorCodeCompetitorNotFound   ErrorCode = "NOT_FOUND_COMPETITOR"
	ErrorCodeSeasonNotFound       ErrorCode = "NOT_FOUND_SEASON"
	ErrorCodeRegistrationNotFound ErrorCode = "NOT_FOUND_REGISTRATION"
	ErrorCodePaymentNotFound      ErrorCode = "NOT_FOUND_PAYMENT"

	// Conflict Errors (CONFLICT_*)
	ErrorCodeDuplicateEnrollment   ErrorCode = "CONFLICT_DUPLICATE_ENROLLMENT"
	ErrorCodeStageAlreadySelected  ErrorCode = "CONFLICT_STAGE_ALREADY_SELECTED"
	ErrorCodeRegistrationCancelled ErrorCode = "CONFLICT_REGISTRATION_CANCELLED"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayTransient     ErrorCode = "GATEWAY_TRANSIENT"
	ErrorCodeGatewaySemantic      ErrorCode = "GATEWAY_SEMANTIC"
	ErrorCodeGatewayEmptyResponse ErrorCode = "GATEWAY_EMPTY_RESPONSE"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeCompetitorNotFound ||
		code == ErrorCodeSeasonNotFound ||
		code == ErrorCodeRegistrationNotFound ||
		code == ErrorCodePaymentNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationMissingDocument ||
		code == ErrorCodeValidationInvalidDocument ||
		code == ErrorCodeValidationSeasonClosed ||
		code == ErrorCodeValidationInstallmentCap ||
		code == ErrorCodeValidationInvalidCategory ||
		code == ErrorCodeValidationWalletRequired
}

// IsConflictError checks if an error is an enrollment conflict
func IsConflictError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeDuplicateEnrollment ||
		code == ErrorCodeStageAlreadySelected ||
		code == ErrorCodeRegistrationCancelled
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayTransient ||
		code == ErrorCodeGatewaySemantic ||
		code == ErrorCodeGatewayEmptyResponse
}

// IsGatewayTransient reports whether an error is worth retrying against the gateway
func IsGatewayTransient(err error) bool {
	return GetErrorCode(err) == ErrorCodeGatewayTransient
}

// Structured error instances
var (
	ErrCompetitorNotFound   = NewDomainError(ErrorCodeCompetitorNotFound, "competitor not found")
	ErrSeasonNotFound       = NewDomainError(ErrorCodeSeasonNotFound, "season not found")
	ErrRegistrationNotFound = NewDomainError(ErrorCodeRegistrationNotFound, "registration not found")
	ErrPaymentNotFound      = NewDomainError(ErrorCodePaymentNotFound, "payment record not found")

	ErrMissingDocument     = NewDomainError(ErrorCodeValidationMissingDocument, "competitor has no tax document on file")
	ErrInvalidDocument     = NewDomainError(ErrorCodeValidationInvalidDocument, "tax document must have 11 or 14 digits")
	ErrSeasonClosed        = NewDomainError(ErrorCodeValidationSeasonClosed, "season is not open for registration")
	ErrWalletRequired      = NewDomainError(ErrorCodeValidationWalletRequired, "split payment requires a payout wallet id")
	ErrDuplicateEnrollment = NewDomainError(ErrorCodeDuplicateEnrollment, "competitor is already enrolled in this season")
)
