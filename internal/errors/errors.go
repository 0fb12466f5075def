// Package errors provides the scanner's error taxonomy.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidConfig       = errors.New("invalid scan configuration")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrInvalidSeries       = errors.New("invalid series")
	ErrSeriesUnavailable   = errors.New("series unavailable")
	ErrUniverseUnavailable = errors.New("stock universe unavailable")
	ErrJobNotFound         = errors.New("scan job not found")
	ErrJobTerminal         = errors.New("scan job already finished")
	ErrInvalidTransition   = errors.New("invalid scan job transition")
	ErrCancelled           = errors.New("cancelled")
	ErrDatabaseError       = errors.New("database error")
	ErrProviderTripped     = errors.New("series provider circuit open")
)

// ConfigError describes one rejected ScanConfig field.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any ConfigError against ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a problem with one stock's data.
type DataError struct {
	Code     string
	DataType string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Code, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(code, dataType, message string, err error) *DataError {
	return &DataError{
		Code:     code,
		DataType: dataType,
		Message:  message,
		Err:      err,
	}
}

// JobError represents a failed operation on a scan job.
type JobError struct {
	TaskID    string
	Operation string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job error [%s] %s: %v", e.TaskID, e.Operation, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewJobError creates a new JobError.
func NewJobError(taskID, operation string, err error) *JobError {
	return &JobError{
		TaskID:    taskID,
		Operation: operation,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
