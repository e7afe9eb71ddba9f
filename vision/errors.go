// Package vision provides the recognition client boundary: one encoded
// tile in, one TileResult out, with retry, backoff, and failure
// classification applied at this boundary so tile failures reach the
// scheduler as data, never as panics or lost tiles.
package vision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spotlens-io/spotlens/types"
)

// Sentinel errors for recognition failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrTimeout indicates a per-attempt deadline expired.
	ErrTimeout = errors.New("request timed out")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")

	// ErrAuth indicates the recognition endpoint rejected the session
	// (401/403 or the AUTH_REQUIRED sentinel in the response body).
	ErrAuth = errors.New("authentication required")

	// ErrRateLimited indicates throttling (429, SlowDown).
	ErrRateLimited = errors.New("rate limited")

	// ErrServer indicates a 5xx response from the endpoint.
	ErrServer = errors.New("server error")

	// ErrUnknown indicates an unclassified failure.
	ErrUnknown = errors.New("recognition failed")
)

// RecognitionError wraps an underlying error with failure classification.
// It preserves the original error in the chain for inspection via errors.As.
type RecognitionError struct {
	// Kind is the sentinel error for classification (e.g. ErrTimeout).
	Kind error
	// TileIndex is the tile whose recognition failed.
	TileIndex int
	// Err is the underlying error.
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognize tile %d: %v: %v", e.TileIndex, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *RecognitionError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// WrapRecognitionError classifies and wraps a recognition failure.
// Returns nil if err is nil.
func WrapRecognitionError(err error, tileIndex int) error {
	if err == nil {
		return nil
	}
	return &RecognitionError{
		Kind:      classifyError(err),
		TileIndex: tileIndex,
		Err:       err,
	}
}

// ErrorCode maps a classified error to the machine error code recorded in
// a TileResult. AUTH_REQUIRED is the only code with downstream semantics;
// everything else is informational.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return types.ErrAuthRequired
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrNetwork):
		return "NETWORK"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrServer):
		return "SERVER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// UserMessage maps a classified error to a user-facing message category.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrTimeout):
		return "The image scan timed out. Check your connection and try again."
	case errors.Is(err, ErrNetwork):
		return "Couldn't reach the recognition service. Check your connection and try again."
	case errors.Is(err, ErrRateLimited):
		return "Too many scans right now. Wait a moment and try again."
	case errors.Is(err, ErrServer):
		return "The recognition service had a problem. Try again shortly."
	default:
		return "Something went wrong while scanning the image."
	}
}

// retriable reports whether a failure is worth another attempt.
// Auth failures never resolve by retrying; everything transient does.
func retriable(err error) bool {
	switch {
	case errors.Is(err, ErrAuth):
		return false
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNetwork),
		errors.Is(err, ErrRateLimited), errors.Is(err, ErrServer):
		return true
	default:
		return false
	}
}

// classifyError determines the appropriate sentinel for the given error.
// Classification is based on error type first, message patterns second.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already classified.
	for _, sentinel := range []error{ErrAuth, ErrTimeout, ErrNetwork, ErrRateLimited, ErrServer} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == 401 || statusErr.Code == 403:
			return ErrAuth
		case statusErr.Code == 429:
			return ErrRateLimited
		case statusErr.Code >= 500:
			return ErrServer
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case containsAny(errStr, "auth_required", "unauthorized", "expiredtoken", "401"):
		return ErrAuth
	case containsAny(errStr, "slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"):
		return ErrRateLimited
	case containsAny(errStr, "connection refused", "no route to host", "network unreachable",
		"dns", "dial tcp", "i/o timeout", "connection reset"):
		return ErrNetwork
	default:
		return ErrUnknown
	}
}

// containsAny checks if s contains any of the substrings.
// Callers lowercase s; the patterns here are already lowercase.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
