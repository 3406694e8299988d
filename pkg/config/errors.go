package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every *Error through errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrorCode identifies the kind of configuration failure.
type ErrorCode string

// Configuration error codes
const (
	ErrInvalidResolution ErrorCode = "INVALID_RESOLUTION"
	ErrDegenerateRegion  ErrorCode = "DEGENERATE_REGION"
	ErrInvalidLatitude   ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude  ErrorCode = "INVALID_LONGITUDE"
	ErrUnresolvedRegion  ErrorCode = "UNRESOLVED_REGION"
	ErrInvalidRadius     ErrorCode = "INVALID_RADIUS"
	ErrEmptyPlace        ErrorCode = "EMPTY_PLACE"
	ErrUnknownPreset     ErrorCode = "UNKNOWN_PRESET"
	ErrUnknownFeature    ErrorCode = "UNKNOWN_FEATURE"
)

// Error is a fatal configuration error. It carries the offending field and
// value together with the region and resolution so the failure can be
// reproduced without fetching anything.
type Error struct {
	Code       ErrorCode `json:"code"`
	Field      string    `json:"field"`
	Value      string    `json:"value,omitempty"`
	Region     string    `json:"region,omitempty"`
	Resolution int       `json:"resolution,omitempty"`
	Message    string    `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value %s)", e.Value)
	}
	if e.Region != "" {
		msg += fmt.Sprintf(" [region %s, resolution %d]", e.Region, e.Resolution)
	}
	return msg
}

// Is reports whether target is ErrInvalidConfig.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Guidance returns a short hint on how to fix the configuration.
func (e *Error) Guidance() string {
	switch e.Code {
	case ErrInvalidResolution:
		return "Use a grid resolution of at least 1; 100 to 10000 is the supported range."
	case ErrDegenerateRegion:
		return "The bounding box must satisfy south < north and west < east."
	case ErrInvalidLatitude:
		return "Latitude must be between -90 and 90."
	case ErrInvalidLongitude:
		return "Longitude must be between -180 and 180."
	case ErrInvalidRadius:
		return "Radius must be a positive number of kilometres."
	case ErrEmptyPlace, ErrUnresolvedRegion:
		return "Provide a place name the provider can resolve, or an explicit bounding box."
	case ErrUnknownPreset:
		return "Use one of: " + fmt.Sprint(PresetNames()) + "."
	default:
		return "Please correct the configuration and try again."
	}
}

// withContext fills the region and resolution of an error raised while
// validating a whole configuration.
func (e *Error) withContext(region Region, resolution int) *Error {
	e.Region = region.String()
	e.Resolution = resolution
	return e
}
