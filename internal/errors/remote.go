package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// MapTransportError maps client-side transport failures to AppError instances.
// It handles the common patterns:
// - context.DeadlineExceeded → Transient (per-call timeout)
// - context.Canceled → Canceled
// - net.Error timeouts → Transient
// - any other transport failure (DNS, connection refused, TLS) → Transient
//
// Transport errors mean the remote was never reached or the exchange was cut
// short; none of them prove the request itself is unservable, so everything
// except cancellation stays retryable.
func MapTransportError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "request canceled",
			Cause:   err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTransient,
			Message: "request timed out",
			Cause:   err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &AppError{
			Code:    ErrCodeTransient,
			Message: "network timeout",
			Cause:   err,
		}
	}

	return &AppError{
		Code:    ErrCodeTransient,
		Message: "remote unreachable",
		Cause:   err,
	}
}

// MapStatus maps a non-2xx HTTP response onto the error taxonomy:
// - 429 → Transient (rate limited)
// - 5xx → Transient (remote fault)
// - 401/403 → Fatal (authentication/authorization)
// - any other 4xx → Fatal
//
// The response body summary, if any, is carried in the message for log
// context. Callers are expected to have already consumed the body with a
// size limit.
func MapStatus(status int, bodySummary string) *AppError {
	suffix := ""
	if bodySummary != "" {
		suffix = ": " + bodySummary
	}

	switch {
	case status == http.StatusTooManyRequests:
		return Transientf("remote rate limited (429)%s", suffix)
	case status >= 500:
		return Transientf("remote failure (%d)%s", status, suffix)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Fatalf("remote rejected credentials (%d)%s", status, suffix)
	case status >= 400:
		return Fatalf("remote rejected request (%d)%s", status, suffix)
	default:
		return Internalf("unexpected remote status (%d)%s", status, suffix)
	}
}

// MalformedPayload maps a decode failure to a fatal remote error. A body
// that cannot be decoded at all will not improve on retry.
func MalformedPayload(err error, what string) *AppError {
	return Wrapf(err, ErrCodeFatal, "malformed %s payload", what)
}
