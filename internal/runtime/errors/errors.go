// Package errors holds the sentinel errors shared by the bridge runtime.
package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired     = sterrors.New("geobridge: configuration is required")
	ErrLoggerRequired     = sterrors.New("geobridge: logger is required")
	ErrTopicRequired      = sterrors.New("geobridge: topic is required")
	ErrPublisherRequired  = sterrors.New("geobridge: publisher is required")
	ErrSubscriberRequired = sterrors.New("geobridge: subscriber is required")
	ErrResolverRequired   = sterrors.New("geobridge: lookup resolver is required")
	ErrServiceStarted     = sterrors.New("geobridge: service already started")
)

// ConfigValidationError marks a configuration that failed validation.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("geobridge: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
