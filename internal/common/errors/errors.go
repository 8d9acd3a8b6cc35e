// Package errors provides the structured error type shared by the change feeds,
// the mail transports and the workflow job integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMailSendFailed    ErrorCode = "MAIL_SEND_FAILED"
	ErrCodeMailConfigInvalid ErrorCode = "MAIL_CONFIG_INVALID"
	ErrCodeInvalidRecipient  ErrorCode = "INVALID_RECIPIENT"
	ErrCodeMailTimeout       ErrorCode = "MAIL_TIMEOUT"

	ErrCodeEventDecodeFailed  ErrorCode = "EVENT_DECODE_FAILED"
	ErrCodeEventSchemaInvalid ErrorCode = "EVENT_SCHEMA_INVALID"
	ErrCodeUnknownCollection  ErrorCode = "UNKNOWN_COLLECTION"

	ErrCodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// BPMNError is thrown back to the workflow engine when a job cannot be handled.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for job fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewMailSendFailedError wraps a transport failure. The notifier never retries
// it, but the flag is kept so callers can tell network faults from rejections.
func NewMailSendFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeMailSendFailed, "Mail delivery failed",
		fmt.Sprintf("provider: %s, error: %s", provider, err.Error()), true, err)
}

func NewMailConfigInvalidError(details string) *StandardError {
	return newError(ErrCodeMailConfigInvalid, "Mail transport configuration is invalid", details, false, nil)
}

func NewInvalidRecipientError(address string, err error) *StandardError {
	details := fmt.Sprintf("recipient: %q", address)
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return newError(ErrCodeInvalidRecipient, "Recipient address rejected", details, false, err)
}

func NewMailTimeoutError(provider string, err error) *StandardError {
	return newError(ErrCodeMailTimeout, fmt.Sprintf("Mail provider '%s' timeout", provider), err.Error(), true, err)
}

func NewEventDecodeFailedError(source string, err error) *StandardError {
	return newError(ErrCodeEventDecodeFailed, "Change event could not be decoded",
		fmt.Sprintf("source: %s, error: %s", source, err.Error()), false, err)
}

func NewEventSchemaInvalidError(details string) *StandardError {
	return newError(ErrCodeEventSchemaInvalid, "Change event failed schema validation", details, false, nil)
}

func NewUnknownCollectionError(collection string) *StandardError {
	return newError(ErrCodeUnknownCollection, "Collection is not watched",
		fmt.Sprintf("collection: %s", collection), false, nil)
}

func NewSourceUnavailableError(source string, err error) *StandardError {
	return newError(ErrCodeSourceUnavailable, fmt.Sprintf("Change feed '%s' unavailable", source), err.Error(), true, err)
}

// Normalize ensures err is a *StandardError, wrapping unknown errors as internal.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// CodeOf extracts the error code, or UNKNOWN_ERROR for foreign errors.
func CodeOf(err error) string {
	var stdErr *StandardError
	if err != nil && stderrors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "UNKNOWN_ERROR"
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "MAIL") || code == ErrCodeInvalidRecipient:
		return "MAIL"
	case strings.HasPrefix(codeStr, "EVENT") || code == ErrCodeUnknownCollection:
		return "EVENT"
	case strings.HasPrefix(codeStr, "SOURCE"):
		return "CHANGEFEED"
	default:
		return "OTHER"
	}
}
