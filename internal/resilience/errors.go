// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
)

// ErrorType represents different types of errors for handling strategies
type ErrorType int

const (
	ErrorTypeUnknown            ErrorType = iota
	ErrorTypeTransient                    // connection resets, DNS hiccups
	ErrorTypePermanent                    // bad credentials, denied access
	ErrorTypeTimeout                      // request timeouts
	ErrorTypeRateLimit                    // throttling / SlowDown
	ErrorTypeServiceUnavailable           // 5xx from the store
	ErrorTypeInvalidInput                 // malformed request
	ErrorTypeResourceNotFound             // missing bucket or directory
	ErrorTypeCanceled                     // caller gave up
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnknown:
		return "Unknown"
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypePermanent:
		return "Permanent"
	case ErrorTypeTimeout:
		return "Timeout"
	case ErrorTypeRateLimit:
		return "RateLimit"
	case ErrorTypeServiceUnavailable:
		return "ServiceUnavailable"
	case ErrorTypeInvalidInput:
		return "InvalidInput"
	case ErrorTypeResourceNotFound:
		return "ResourceNotFound"
	case ErrorTypeCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(et))
	}
}

// ClassifiedError wraps an error with type information
type ClassifiedError struct {
	Original  error
	Type      ErrorType
	Message   string
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original == nil {
		return e.Type.String()
	}
	return e.Original.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// IsRetryable returns whether this error should be retried
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// S3 error codes that are worth another attempt
var retryableAPICodes = map[string]ErrorType{
	"SlowDown":             ErrorTypeRateLimit,
	"Throttling":           ErrorTypeRateLimit,
	"ThrottlingException":  ErrorTypeRateLimit,
	"RequestTimeout":       ErrorTypeTimeout,
	"RequestTimeTooSkewed": ErrorTypeTransient,
	"InternalError":        ErrorTypeServiceUnavailable,
	"ServiceUnavailable":   ErrorTypeServiceUnavailable,
}

// S3 error codes that will not change on retry
var permanentAPICodes = map[string]ErrorType{
	"AccessDenied":          ErrorTypePermanent,
	"InvalidAccessKeyId":    ErrorTypePermanent,
	"SignatureDoesNotMatch": ErrorTypePermanent,
	"ExpiredToken":          ErrorTypePermanent,
	"NoSuchBucket":          ErrorTypeResourceNotFound,
	"InvalidBucketName":     ErrorTypeInvalidInput,
	"EntityTooLarge":        ErrorTypeInvalidInput,
}

// ClassifyError categorizes an error for retry decisions
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) {
		return &ClassifiedError{Original: err, Type: ErrorTypeCanceled, Message: err.Error()}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if t, ok := retryableAPICodes[code]; ok {
			return &ClassifiedError{Original: err, Type: t, Message: fmt.Sprintf("%s: %v", t, err), Retryable: true}
		}
		if t, ok := permanentAPICodes[code]; ok {
			return &ClassifiedError{Original: err, Type: t, Message: fmt.Sprintf("%s: %v", t, err)}
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return &ClassifiedError{Original: err, Type: ErrorTypeServiceUnavailable, Message: fmt.Sprintf("Service unavailable: %v", err), Retryable: true}
		}
	}

	if isTimeoutError(err) {
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypeTimeout,
			Message:   fmt.Sprintf("Timeout error: %v", err),
			Retryable: true,
		}
	}

	if isNetworkError(err) {
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypeTransient,
			Message:   fmt.Sprintf("Network error: %v", err),
			Retryable: true,
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "throttl") || strings.Contains(errStr, "rate limit"):
		return &ClassifiedError{Original: err, Type: ErrorTypeRateLimit, Message: fmt.Sprintf("Rate limit exceeded: %v", err), Retryable: true}
	case strings.Contains(errStr, "service unavailable") || strings.Contains(errStr, "internal server error"):
		return &ClassifiedError{Original: err, Type: ErrorTypeServiceUnavailable, Message: fmt.Sprintf("Service unavailable: %v", err), Retryable: true}
	case strings.Contains(errStr, "access denied") || strings.Contains(errStr, "forbidden"):
		return &ClassifiedError{Original: err, Type: ErrorTypePermanent, Message: fmt.Sprintf("Authorization error: %v", err)}
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "no such file"):
		return &ClassifiedError{Original: err, Type: ErrorTypeResourceNotFound, Message: fmt.Sprintf("Resource not found: %v", err)}
	}

	return &ClassifiedError{
		Original: err,
		Type:     ErrorTypeUnknown,
		Message:  fmt.Sprintf("Unknown error: %v", err),
	}
}

// IsRetryable reports whether an error should be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).IsRetryable()
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypeTransient,
		Message:   message,
		Retryable: true,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypePermanent,
		Message:   message,
		Retryable: false,
	}
}
