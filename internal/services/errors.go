package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuery       = errors.New("invalid query")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNetwork            = errors.New("network error")
	ErrTimeout            = errors.New("timeout")
	ErrParse              = errors.New("parse error")
	ErrNoServiceAvailable = errors.New("no search service available")
	ErrConfiguration      = errors.New("configuration error")
)

// Wrap builds an error message that includes source context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, source, operation, message string, err error) error {
	detail := buildDetail(source, operation, message)
	if marker == nil {
		marker = ErrServiceUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a stable identifier for the marker carried by err, suitable for
// API payloads and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrNoServiceAvailable):
		return "no_service_available"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "internal"
	}
}

// Retryable reports whether the caller should offer a retry affordance.
// Rate limits are excluded: those need the caller to slow down instead.
func Retryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

func buildDetail(source, operation, message string) string {
	parts := make([]string, 0, 3)
	if source = strings.TrimSpace(source); source != "" {
		parts = append(parts, source)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
