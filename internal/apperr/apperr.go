package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure so transport layers can pick a status code
// without inspecting messages.
type Kind string

const (
	KindValidation       Kind = "Validation"
	KindWeakPassword     Kind = "WeakPassword"
	KindTooManyDocuments Kind = "TooManyDocuments"
	KindInvalidDocument  Kind = "InvalidDocument"

	KindOutOfOrderStep  Kind = "OutOfOrderStep"
	KindNotVerified     Kind = "NotVerified"
	KindPendingApproval Kind = "PendingApproval"
	KindTradeRejected   Kind = "TradeRejected"
	KindNotTradeAccount Kind = "NotTradeAccount"
	KindAccountDisabled Kind = "AccountDisabled"
	KindForbidden       Kind = "Forbidden"

	KindInvalidCredentials Kind = "InvalidCredentials"
	KindInvalidToken       Kind = "InvalidToken"
	KindRevoked            Kind = "Revoked"
	KindExpired            Kind = "Expired"
	KindMismatch           Kind = "Mismatch"

	KindNotFound          Kind = "NotFound"
	KindDuplicateEmail    Kind = "DuplicateEmail"
	KindAlreadyConsumed   Kind = "AlreadyConsumed"
	KindAlreadyVerified   Kind = "AlreadyVerified"
	KindInvalidTransition Kind = "InvalidTransition"

	KindRateLimited Kind = "RateLimited"
)

// Error is an expected, client-facing failure.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// With returns a copy of e carrying an additional detail entry.
func (e *Error) With(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details}
}

// StatusCode maps the kind onto an HTTP status.
func (e *Error) StatusCode() int {
	return StatusCode(e.Kind)
}

func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation, KindWeakPassword, KindTooManyDocuments, KindInvalidDocument,
		KindExpired, KindMismatch:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindInvalidToken, KindRevoked:
		return http.StatusUnauthorized
	case KindNotVerified, KindPendingApproval, KindTradeRejected, KindNotTradeAccount,
		KindAccountDisabled, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindOutOfOrderStep, KindDuplicateEmail, KindAlreadyConsumed, KindAlreadyVerified,
		KindInvalidTransition:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
