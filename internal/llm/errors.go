package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// ErrorKind classifies completion-service failures into the categories the
// retry loop cares about. The client depends only on this classification,
// never on vendor-specific error schemas.
type ErrorKind int

const (
	// KindTransient is a generic upstream failure, retried with backoff at
	// the current tier.
	KindTransient ErrorKind = iota

	// KindRateLimited means upstream throttling. Recovered locally by tier
	// downgrade, then backoff once the lowest tier is reached.
	KindRateLimited

	// KindModelUnavailable means the requested model does not exist or was
	// retired. Handled like a rate limit: move down a tier.
	KindModelUnavailable

	// KindAuthFailed is a credential/configuration defect. Never retried,
	// never downgraded.
	KindAuthFailed

	// KindInvalidInput is a malformed or oversized request. Never retried.
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindModelUnavailable:
		return "model_unavailable"
	case KindAuthFailed:
		return "authentication_failed"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "transient"
	}
}

// Classify maps an error from the Anthropic SDK onto an ErrorKind.
func Classify(err error) ErrorKind {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests:
			return KindRateLimited
		case http.StatusNotFound:
			return KindModelUnavailable
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuthFailed
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge,
			http.StatusUnprocessableEntity:
			return KindInvalidInput
		}
	}
	return KindTransient
}

// ClassifiedError wraps an upstream failure with its classification so
// callers can branch on kind without re-deriving it.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain, defaulting to
// transient for unrecognized errors.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var ee *ExhaustedError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return Classify(err)
}

// ExhaustedError is returned when every tier has been tried and the retry
// ceiling at the lowest tier has been reached. Kind records the
// classification of the failure that exhausted the budget (rate-limited vs
// plain transient), so callers can still choose the right user message.
type ExhaustedError struct {
	Models   []string
	Attempts int
	Kind     ErrorKind
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("completion service exhausted after %d attempts across models [%s]",
		e.Attempts, strings.Join(e.Models, ", "))
}
