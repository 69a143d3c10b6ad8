package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure. The controller keys its transition
// decisions off these values, never off raw transport errors.
type Kind int

const (
	// KindValidation: malformed local input, rejected without a network call.
	KindValidation Kind = iota + 1
	// KindUnauthenticated: missing or invalid bearer where one is required.
	KindUnauthenticated
	// KindCsrfRejected: the backend refused the anti-forgery token.
	KindCsrfRejected
	// KindInvalidCredentials: the backend rejected the username/password.
	KindInvalidCredentials
	// KindInvalidMfaCode: the backend rejected the MFA code.
	KindInvalidMfaCode
	// KindExpiredToken: the email verification link is no longer valid.
	KindExpiredToken
	// KindNetwork: transport-level failure; the operation was not retried.
	KindNetwork
	// KindBackend: any other backend rejection or malformed response.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindCsrfRejected:
		return "csrf_rejected"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidMfaCode:
		return "invalid_mfa_code"
	case KindExpiredToken:
		return "expired_token"
	case KindNetwork:
		return "network"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing the gateway boundary. Raw transport
// errors never escape uninterpreted.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or 0 when err is not a gateway error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
