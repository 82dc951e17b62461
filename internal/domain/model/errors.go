package model

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrEmptyResult       = errors.New("empty result")
)

// ConfigurationError reports a malformed or missing AOI descriptor or input.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

// NotFoundError reports an administrative-name lookup with no matches.
type NotFoundError struct {
	Level   int
	Name    string
	Country string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no boundary features found for level=%d, name=%q, country=%q", e.Level, e.Name, e.Country)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// SourceUnavailableError reports an empty primary collection.
type SourceUnavailableError struct {
	SourceID string
	Window   DateWindow
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("primary source %s has no images for %s", e.SourceID, e.Window)
}

func (e *SourceUnavailableError) Unwrap() error { return ErrSourceUnavailable }

// EmptyResultError reports a sampling run that produced no rows.
type EmptyResultError struct {
	Region string
	Scale  float64
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("sampling %s at %gm returned no rows; widen the AOI or date range", e.Region, e.Scale)
}

func (e *EmptyResultError) Unwrap() error { return ErrEmptyResult }
