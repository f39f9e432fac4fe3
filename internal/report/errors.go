package report

import (
	"errors"
	"fmt"
)

// Sentinel errors for report failures
var (
	// ErrInvalidArgument indicates a report was called with a bad filter
	ErrInvalidArgument = errors.New("invalid report argument")

	// ErrInvalidConfig indicates a report configuration that cannot run
	ErrInvalidConfig = errors.New("invalid report configuration")

	// ErrReportNotFound indicates no report is registered under the name
	ErrReportNotFound = errors.New("report not found")

	// ErrDuplicateReport indicates a report name is already taken on its model
	ErrDuplicateReport = errors.New("report already registered")
)

// ReportError represents a failed report invocation with context
type ReportError struct {
	Model     string // Model name
	Report    string // Report name
	Operation string // Operation that failed
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *ReportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("report %s.%s failed during %s: %v", e.Model, e.Report, e.Operation, e.Err)
	}
	return fmt.Sprintf("report %s.%s failed during %s", e.Model, e.Report, e.Operation)
}

// Unwrap implements error unwrapping
func (e *ReportError) Unwrap() error {
	return e.Err
}

// ValidationError represents a report configuration validation error
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

// Is allows error comparison
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
