// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"errors"
	"fmt"
	"time"
)

// TransformErrorType defines the type of transform error
type TransformErrorType int

const (
	// ErrorSetup indicates the run could not start (input or output directory problems)
	ErrorSetup TransformErrorType = iota

	// ErrorFileSystem indicates a file system operation failure
	ErrorFileSystem

	// ErrorDecode indicates the source could not be decoded (corrupt image, unparsable document)
	ErrorDecode

	// ErrorDocumentProcessing indicates the watermark stage failed
	ErrorDocumentProcessing

	// ErrorEncryption indicates the document encryption stage failed
	ErrorEncryption

	// ErrorArchive indicates the archive could not be built
	ErrorArchive

	// ErrorConfiguration indicates invalid settings
	ErrorConfiguration
)

// String returns the string representation of the error type
func (t TransformErrorType) String() string {
	switch t {
	case ErrorSetup:
		return "setup"
	case ErrorFileSystem:
		return "file_system"
	case ErrorDecode:
		return "decode"
	case ErrorDocumentProcessing:
		return "document_processing"
	case ErrorEncryption:
		return "encryption"
	case ErrorArchive:
		return "archive"
	case ErrorConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// TransformError represents an error raised while sanitizing a file or building the run
type TransformError struct {
	// Type is the type of error
	Type TransformErrorType

	// Message is the error message
	Message string

	// FilePath is the path to the file being processed when the error occurred
	FilePath string

	// Component is the component that generated the error
	Component string

	// Recoverable indicates whether the run can continue with other files
	Recoverable bool

	// Timestamp is when the error occurred
	Timestamp time.Time

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (te *TransformError) Error() string {
	msg := fmt.Sprintf("[%s] %s", te.Type, te.Message)
	if te.FilePath != "" {
		msg += fmt.Sprintf(" (file: %s, component: %s)", te.FilePath, te.Component)
	} else if te.Component != "" {
		msg += fmt.Sprintf(" (component: %s)", te.Component)
	}
	if te.Cause != nil {
		msg += ": " + te.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping
func (te *TransformError) Unwrap() error {
	return te.Cause
}

// NewTransformError creates a new TransformError
func NewTransformError(errorType TransformErrorType, message, filePath, component string, cause error) *TransformError {
	return &TransformError{
		Type:        errorType,
		Message:     message,
		FilePath:    filePath,
		Component:   component,
		Recoverable: isRecoverable(errorType),
		Timestamp:   time.Now(),
		Cause:       cause,
	}
}

// isRecoverable reports whether an error type only affects a single file
func isRecoverable(errorType TransformErrorType) bool {
	switch errorType {
	case ErrorFileSystem, ErrorDecode, ErrorDocumentProcessing, ErrorEncryption:
		return true
	default:
		return false
	}
}

// IsRecoverable reports whether err is a per-file error the run can continue past.
// Errors that are not TransformErrors are treated as per-file failures.
func IsRecoverable(err error) bool {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Recoverable
	}
	return err != nil
}

// ErrorTypeOf returns the TransformErrorType carried by err, if any
func ErrorTypeOf(err error) (TransformErrorType, bool) {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Type, true
	}
	return 0, false
}

// TransformErrorCollection accumulates per-file errors for the run report
type TransformErrorCollection struct {
	errors []*TransformError
}

// NewTransformErrorCollection creates a new error collection
func NewTransformErrorCollection() *TransformErrorCollection {
	return &TransformErrorCollection{
		errors: make([]*TransformError, 0),
	}
}

// Add adds an error to the collection. Plain errors are wrapped as file system errors.
func (c *TransformErrorCollection) Add(filePath, component string, err error) {
	if err == nil {
		return
	}
	var te *TransformError
	if !errors.As(err, &te) {
		te = NewTransformError(ErrorFileSystem, "transform failed", filePath, component, err)
	}
	c.errors = append(c.errors, te)
}

// GetErrors returns all errors in the collection
func (c *TransformErrorCollection) GetErrors() []*TransformError {
	return c.errors
}

// HasErrors returns true if the collection contains any errors
func (c *TransformErrorCollection) HasErrors() bool {
	return len(c.errors) > 0
}

// HasUnrecoverableErrors returns true if the collection contains any unrecoverable errors
func (c *TransformErrorCollection) HasUnrecoverableErrors() bool {
	for _, err := range c.errors {
		if !err.Recoverable {
			return true
		}
	}
	return false
}

// GetErrorsByType returns all errors of the specified type
func (c *TransformErrorCollection) GetErrorsByType(errorType TransformErrorType) []*TransformError {
	var result []*TransformError
	for _, err := range c.errors {
		if err.Type == errorType {
			result = append(result, err)
		}
	}
	return result
}
