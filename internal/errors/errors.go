package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeParsing          ErrorType = "PARSING"
	ErrTypeMissingColumn    ErrorType = "MISSING_COLUMN"
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
	ErrTypeRegression       ErrorType = "REGRESSION"
	ErrTypeDegenerateModel  ErrorType = "DEGENERATE_MODEL"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeConfig           ErrorType = "CONFIG"
	ErrTypeExport           ErrorType = "EXPORT"
)

// StudyError represents a study-specific error
type StudyError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *StudyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with StudyError
func (e *StudyError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *StudyError) WithContext(key string, value interface{}) *StudyError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewStudyError creates a new study error
func NewStudyError(errType ErrorType, message string, cause error) *StudyError {
	return &StudyError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *StudyError {
	return NewStudyError(ErrTypeParsing, message, cause)
}

// NewMissingColumns reports that a computation cannot run because the
// listed source columns are absent from the dataset.
func NewMissingColumns(stage string, columns []string) *StudyError {
	e := NewStudyError(ErrTypeMissingColumn,
		fmt.Sprintf("%s requires columns absent from the dataset: %s", stage, strings.Join(columns, ", ")), nil)
	return e.WithContext("stage", stage).WithContext("columns", columns)
}

// NewInsufficientData reports that a stage has fewer usable rows than it needs
func NewInsufficientData(stage string, have, need int) *StudyError {
	e := NewStudyError(ErrTypeInsufficientData,
		fmt.Sprintf("%s has %d observations, needs at least %d", stage, have, need), nil)
	return e.WithContext("stage", stage).WithContext("have", have).WithContext("need", need)
}

// NewRegressionError creates an estimation failure for a named model
func NewRegressionError(model string, cause error) *StudyError {
	e := NewStudyError(ErrTypeRegression, fmt.Sprintf("estimation failed for %s", model), cause)
	return e.WithContext("model", model)
}

// NewDegenerateModelError reports a quadratic fit whose squared-term
// coefficient is too close to zero for a turning point to exist.
func NewDegenerateModelError(model string, coefficient float64) *StudyError {
	e := NewStudyError(ErrTypeDegenerateModel,
		fmt.Sprintf("%s has no turning point: squared-term coefficient %.6f is numerically zero", model, coefficient), nil)
	return e.WithContext("model", model).WithContext("coefficient", coefficient)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *StudyError {
	return NewStudyError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *StudyError {
	return NewStudyError(ErrTypeConfig, message, cause)
}

// NewExportError creates an export error
func NewExportError(message string, cause error) *StudyError {
	return NewStudyError(ErrTypeExport, message, cause)
}

// TypeOf returns the ErrorType carried by err, or an empty string when err
// is not a StudyError.
func TypeOf(err error) ErrorType {
	var se *StudyError
	if errors.As(err, &se) {
		return se.Type
	}
	return ""
}

// IsType reports whether err is a StudyError of the given type
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// IsMissingColumn reports whether err is a missing-column error
func IsMissingColumn(err error) bool {
	return IsType(err, ErrTypeMissingColumn)
}

// IsInsufficientData reports whether err is an insufficient-data error
func IsInsufficientData(err error) bool {
	return IsType(err, ErrTypeInsufficientData)
}

// IsRegressionFailure reports whether err is an estimation failure
func IsRegressionFailure(err error) bool {
	return IsType(err, ErrTypeRegression)
}

// IsDegenerateModel reports whether err is a degenerate-model error
func IsDegenerateModel(err error) bool {
	return IsType(err, ErrTypeDegenerateModel)
}
