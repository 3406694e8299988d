package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestStatusError(t *testing.T) {
	tests := []struct {
		status    int
		want      Kind
		retryable bool
	}{
		{http.StatusTooManyRequests, KindRateLimited, true},
		{http.StatusRequestTimeout, KindTimeout, true},
		{http.StatusGatewayTimeout, KindTimeout, true},
		{http.StatusBadRequest, KindInvalidRegion, false},
		{http.StatusInternalServerError, KindNetwork, true},
		{http.StatusServiceUnavailable, KindNetwork, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := StatusError("overpass", "bbox:1", tt.status, "boom")
			if err.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.want)
			}
			if err.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", err.Retryable(), tt.retryable)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
			if err.Guidance() == "" {
				t.Error("expected guidance")
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"refused", errors.New("connection refused"), KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := transportError("overpass", "r", tt.err)
			if err.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause should be preserved")
			}
		})
	}
}

func TestErrorMessageAndHelpers(t *testing.T) {
	err := &Error{Kind: KindParse, Provider: "overpass", Region: "place:berlin", Message: "bad json"}
	msg := err.Error()
	for _, want := range []string{"overpass", "parse", "place:berlin", "bad json"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	wrapped := fmt.Errorf("load: %w", err)
	if IsRetryable(wrapped) {
		t.Error("parse errors are not retryable")
	}
	if KindOf(wrapped) != KindParse {
		t.Errorf("KindOf = %v, want parse", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf of a non-provider error should be 0")
	}
	if !IsRetryable(fmt.Errorf("x: %w", &Error{Kind: KindRateLimited})) {
		t.Error("rate limited errors are retryable")
	}
}
