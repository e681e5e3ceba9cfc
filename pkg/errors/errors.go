package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeFloorPriceViolation Code = "FLOOR_PRICE_VIOLATION"
	CodeApprovalDenied      Code = "APPROVAL_DENIED"
	CodeInvalidQuantity     Code = "INVALID_QUANTITY"
	CodeOverReturnQuantity  Code = "OVER_RETURN_QUANTITY"
	CodePaymentDeclined     Code = "PAYMENT_DECLINED"
	CodePaymentError        Code = "PAYMENT_ERROR"
	CodeInconsistentTotals  Code = "INCONSISTENT_TOTALS"
	CodeCancelled           Code = "OPERATION_CANCELLED"
	CodeSessionBusy         Code = "SESSION_BUSY"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	Fatal          bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeFloorPriceViolation: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "price below floor requires override",
		DetailsAllowed: true,
	},
	CodeApprovalDenied: {
		HTTPStatus:     http.StatusForbidden,
		PublicMessage:  "approval denied",
		DetailsAllowed: true,
	},
	CodeInvalidQuantity: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "invalid quantity",
		DetailsAllowed: true,
	},
	CodeOverReturnQuantity: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "return quantity exceeds quantity sold",
		DetailsAllowed: true,
	},
	CodePaymentDeclined: {
		HTTPStatus:     http.StatusPaymentRequired,
		PublicMessage:  "payment declined",
		DetailsAllowed: true,
	},
	CodePaymentError: {
		HTTPStatus:     http.StatusBadGateway,
		Retryable:      true,
		PublicMessage:  "payment terminal error",
		DetailsAllowed: true,
	},
	CodeInconsistentTotals: {
		HTTPStatus:    http.StatusInternalServerError,
		Fatal:         true,
		PublicMessage: "transaction totals are inconsistent",
	},
	CodeCancelled: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "operation cancelled",
		DetailsAllowed: true,
	},
	CodeSessionBusy: {
		HTTPStatus:    http.StatusConflict,
		Retryable:     true,
		PublicMessage: "another operation is in progress",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a classified failure. The code selects its Metadata; message is
// written for operators and shown to clients only below 500.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap classifies err under code. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code is CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches client visible details and returns e.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return string(e.code) + ": " + e.message + ": " + e.cause.Error()
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error with the same code, so a bare New(code, "")
// works as a sentinel for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && t.code == e.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return err != nil && stdErrors.Is(err, &Error{code: code})
}

// Classify returns the metadata of err's outermost code. Untyped errors
// classify as CodeInternal.
func Classify(err error) Metadata {
	return MetadataFor(As(err).Code())
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return As(err) != nil && Classify(err).Retryable
}

// IsFatal reports whether err signals a broken invariant rather than bad input.
func IsFatal(err error) bool {
	return As(err) != nil && Classify(err).Fatal
}
