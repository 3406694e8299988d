package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies provider failures.
type Kind uint8

const (
	KindNetwork Kind = iota + 1
	KindTimeout
	KindInvalidRegion
	KindRateLimited
	KindParse
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindInvalidRegion:
		return "invalid_region"
	case KindRateLimited:
		return "rate_limited"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is returned by every provider operation that fails. Callers decide
// whether to retry by inspecting Retryable; providers never retry.
type Error struct {
	Kind       Kind
	Provider   string
	Region     string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s provider: %s", e.Provider, e.Kind)
	if e.Region != "" {
		msg += fmt.Sprintf(" (region %s)", e.Region)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}

// Guidance returns a short remediation hint for the error.
func (e *Error) Guidance() string {
	switch e.Kind {
	case KindRateLimited:
		return "The service is rate-limited. Please try again in a few moments."
	case KindTimeout:
		return "The request timed out. Try reducing the region or the number of features."
	case KindInvalidRegion:
		return "The region could not be used. Check the coordinates or place name, or choose a smaller area."
	case KindParse:
		return "The service returned data that could not be read. This is likely temporary."
	default:
		return "The service could not be reached. Please try again later."
	}
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}

// KindOf returns the kind of a provider error, or 0 when err is not one.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// StatusError maps an unexpected HTTP status to a provider error.
func StatusError(provider, region string, status int, message string) *Error {
	var kind Kind
	switch status {
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = KindTimeout
	case http.StatusBadRequest:
		kind = KindInvalidRegion
	default:
		kind = KindNetwork
	}
	return &Error{Kind: kind, Provider: provider, Region: region, StatusCode: status, Message: message}
}

// transportError maps a failed round trip to a provider error.
func transportError(provider, region string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: provider, Region: region, Message: "request failed", Err: err}
}
