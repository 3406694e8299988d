// Package core provides the error model and request parsing shared by the
// osmgrid MCP tools.
package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/pipeline"
	"github.com/NERVsystems/osmgrid/pkg/provider"
)

// ErrorCode defines standard error codes for MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Provider errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrInvalidRegion      ErrorCode = "INVALID_REGION"

	// Data errors
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrCancelled     ErrorCode = "CANCELLED"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// MCPError represents a detailed error structure for MCP tool responses
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Field       string   `json:"field,omitempty"`
	Value       string   `json:"value,omitempty"`
	Region      string   `json:"region,omitempty"`
	Resolution  int      `json:"resolution,omitempty"`
	Retryable   bool     `json:"retryable"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}
	return mcp.NewToolResultError(string(errorJSON))
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

var providerCodes = map[provider.Kind]ErrorCode{
	provider.KindNetwork:       ErrNetworkError,
	provider.KindTimeout:       ErrServiceTimeout,
	provider.KindInvalidRegion: ErrInvalidRegion,
	provider.KindRateLimited:   ErrRateLimit,
	provider.KindParse:         ErrParseError,
}

// FromError converts a grid load error into an MCPError, keeping the
// configuration context and the retryable tag.
func FromError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var cerr *config.Error
	if errors.As(err, &cerr) {
		return &MCPError{
			Code:       string(cerr.Code),
			Message:    cerr.Message,
			Field:      cerr.Field,
			Value:      cerr.Value,
			Region:     cerr.Region,
			Resolution: cerr.Resolution,
			Guidance:   cerr.Guidance(),
		}
	}

	var perr *provider.Error
	if errors.As(err, &perr) {
		code, ok := providerCodes[perr.Kind]
		if !ok {
			code = ErrServiceUnavailable
		}
		return &MCPError{
			Code:      string(code),
			Message:   perr.Error(),
			Region:    perr.Region,
			Retryable: perr.Retryable(),
			Guidance:  perr.Guidance(),
		}
	}

	if errors.Is(err, pipeline.ErrCancelled) {
		return NewError(ErrCancelled, "grid generation was cancelled").
			WithGuidance("Retry the request when ready.")
	}

	return NewError(ErrInternalError, err.Error())
}

// ErrorResult converts err into an MCP tool error result.
func ErrorResult(err error) *mcp.CallToolResult {
	return FromError(err).ToMCPResult()
}
