package services

import (
	"errors"
	"fmt"
	"strings"
)

// Review service errors
var (
	// Data source errors
	ErrSummaryUnavailable = errors.New("summary source unavailable")
	ErrSchemaMismatch     = errors.New("summary source is missing required columns")
	ErrSourceLoad         = errors.New("failed to load data source")

	// Input errors
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidSort   = errors.New("invalid sort column")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
)

// SummaryUnavailableError reports a summary source that is absent or has no
// rows. It matches ErrSummaryUnavailable.
type SummaryUnavailableError struct {
	File string
}

func (e *SummaryUnavailableError) Error() string {
	return fmt.Sprintf("%s not found. Run the pipeline first.", e.File)
}

func (e *SummaryUnavailableError) Unwrap() error { return ErrSummaryUnavailable }

// SchemaMismatchError lists the required summary columns that are missing.
// It matches ErrSchemaMismatch.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaMismatch, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }
