package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidScheduleInput = errors.New("invalid schedule input")
	ErrCreditLimitExceeded  = errors.New("credit limit exceeded")
	ErrDisallowedOperation  = errors.New("operation not allowed for this loan")
	ErrOverpayment          = errors.New("payment exceeds outstanding balance")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrAlreadyReversed      = errors.New("payment already reversed")
	ErrInvalidState         = errors.New("entity is in an invalid state for this operation")
	ErrNotFound             = errors.New("entity not found")
	ErrDuplicateRequest     = errors.New("request already applied")
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvariantViolation   = errors.New("balance invariant violated")
	ErrInvalidInput         = errors.New("invalid input")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code     string
	Message  string
	EntityID string
	Err      error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithEntity attaches the offending entity id.
func (e *BusinessError) WithEntity(id fmt.Stringer) *BusinessError {
	e.EntityID = id.String()
	return e
}

// Error codes
const (
	ErrCodeInvalidScheduleInput = "INVALID_SCHEDULE_INPUT"
	ErrCodeCreditLimitExceeded  = "CREDIT_LIMIT_EXCEEDED"
	ErrCodeDisallowedOperation  = "DISALLOWED_OPERATION"
	ErrCodeOverpayment          = "OVERPAYMENT"
	ErrCodeIllegalTransition    = "ILLEGAL_TRANSITION"
	ErrCodeAlreadyReversed      = "ALREADY_REVERSED"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeDuplicateRequest     = "DUPLICATE_REQUEST"
	ErrCodeInvalidPaymentAmount = "INVALID_PAYMENT_AMOUNT"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeInvariantViolation   = "INVARIANT_VIOLATION"
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeCacheError           = "CACHE_ERROR"
)

// Code returns the business code carried by err, or "" when err is not a BusinessError.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Is and As re-export the standard helpers so callers importing this package under
// an alias don't also need the standard errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func WrapInvalidScheduleInput(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidScheduleInput,
		fmt.Sprintf("Invalid loan terms: %s", reason),
		ErrInvalidScheduleInput,
	)
}

func WrapCreditLimitExceeded(clientID fmt.Stringer, requested, available string) *BusinessError {
	return NewBusinessError(
		ErrCodeCreditLimitExceeded,
		fmt.Sprintf("Requested %s exceeds available credit %s", requested, available),
		ErrCreditLimitExceeded,
	).WithEntity(clientID)
}

func WrapDisallowedOperation(loanID fmt.Stringer, operation string) *BusinessError {
	return NewBusinessError(
		ErrCodeDisallowedOperation,
		fmt.Sprintf("Loan %s does not allow %s", loanID, operation),
		ErrDisallowedOperation,
	).WithEntity(loanID)
}

func WrapOverpayment(entityID fmt.Stringer, amount, outstanding string) *BusinessError {
	return NewBusinessError(
		ErrCodeOverpayment,
		fmt.Sprintf("Payment amount %s exceeds outstanding balance %s", amount, outstanding),
		ErrOverpayment,
	).WithEntity(entityID)
}

func WrapIllegalTransition(entityID fmt.Stringer, kind, from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeIllegalTransition,
		fmt.Sprintf("%s %s cannot move from %s to %s", kind, entityID, from, to),
		ErrIllegalTransition,
	).WithEntity(entityID)
}

func WrapAlreadyReversed(paymentID fmt.Stringer) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyReversed,
		fmt.Sprintf("Payment %s is already reversed", paymentID),
		ErrAlreadyReversed,
	).WithEntity(paymentID)
}

func WrapInvalidState(entityID fmt.Stringer, kind, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidState,
		fmt.Sprintf("%s %s is %s", kind, entityID, status),
		ErrInvalidState,
	).WithEntity(entityID)
}

func WrapNotFound(kind string, id fmt.Stringer) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with ID %s not found", kind, id),
		ErrNotFound,
	).WithEntity(id)
}

func WrapDuplicateRequest(requestID string, paymentID fmt.Stringer) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateRequest,
		fmt.Sprintf("Request %s was already applied as payment %s", requestID, paymentID),
		ErrDuplicateRequest,
	).WithEntity(paymentID)
}

func WrapInvalidPaymentAmount(amount string, reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount %s: %s", amount, reason),
		ErrInvalidPaymentAmount,
	)
}

func WrapAlreadyExists(kind, key string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyExists,
		fmt.Sprintf("%s %s already exists", kind, key),
		ErrAlreadyExists,
	)
}

func WrapInvariantViolation(entityID fmt.Stringer, detail string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvariantViolation,
		detail,
		ErrInvariantViolation,
	).WithEntity(entityID)
}

func WrapInvalidInput(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidInput,
		reason,
		ErrInvalidInput,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
