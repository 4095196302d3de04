package promo

import (
	"errors"
	"fmt"
	"strings"
)

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Component string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Component)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Component, strings.Join(e.Variables, ", "))
}

// ConfigurationError signals input that will not resolve without user action.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration invalid: %s", e.Component, e.Reason)
}

// NotFoundError signals a configured identifier that the platform does not know.
type NotFoundError struct {
	Component string
	What      string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Component, e.What)
}

// PlatformError captures a non-success response from a social platform API.
// Code and Subcode carry the platform's machine-readable error identifiers.
type PlatformError struct {
	Platform string
	Status   int
	Code     int
	Subcode  int
	Message  string
	TraceID  string
}

func (e PlatformError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", e.Status)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d, subcode %d)", msg, e.Code, e.Subcode)
	}
	if e.TraceID != "" {
		msg = fmt.Sprintf("%s [trace %s]", msg, e.TraceID)
	}
	return fmt.Sprintf("%s rejected request: %s", e.Platform, msg)
}

// ProcessingError signals that remote asset processing failed or timed out.
type ProcessingError struct {
	Platform string
	Reason   string
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s media processing failed: %s", e.Platform, e.Reason)
}

// UploadError signals a rejected upload to the CDN/storage service.
type UploadError struct {
	Service string
	Reason  string
}

func (e UploadError) Error() string {
	return fmt.Sprintf("%s upload rejected: %s", e.Service, e.Reason)
}

// TransientError wraps a failure that is eligible for retry.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }

func (e TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err may succeed on a later attempt.
func IsTransient(err error) bool {
	var te TransientError
	return errors.As(err, &te)
}
