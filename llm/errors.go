package llm

import (
	"context"
	"errors"
	"net/http"
)

// Error represents a provider-neutral LLM error.
type Error struct {
	Kind        ErrorKind
	Type        ErrorType
	Message     string
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// ErrorKind says whether repeating the identical call could succeed.
type ErrorKind string

const (
	// KindPermanent errors cannot succeed if the same call is repeated against the same model.
	KindPermanent ErrorKind = "permanent"
	// KindTransient errors might succeed if the same call is repeated.
	KindTransient ErrorKind = "transient"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeOverloaded      ErrorType = "overloaded"
	ErrorTypeRequestTooLarge ErrorType = "request_too_large"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeAuthentication  ErrorType = "authentication"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeProvider        ErrorType = "provider"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// Retryable reports whether the error is transient.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

func asError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

// IsPermanent checks if an error is a permanent provider error.
func IsPermanent(err error) bool {
	llmErr, ok := asError(err)
	return ok && llmErr.Kind == KindPermanent
}

// IsTransient checks if an error is a transient provider error.
func IsTransient(err error) bool {
	llmErr, ok := asError(err)
	return ok && llmErr.Kind == KindTransient
}

// IsCanceled checks if an error was caused by context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	llmErr, ok := asError(err)
	return ok && llmErr.Type == ErrorTypeRateLimit
}

// NewPermanentError creates an error that should never be retried against the same model.
func NewPermanentError(errType ErrorType, message string, providerErr error) *Error {
	return &Error{
		Kind:        KindPermanent,
		Type:        errType,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewTransientError creates an error that may succeed on retry.
func NewTransientError(errType ErrorType, message string, providerErr error) *Error {
	return &Error{
		Kind:        KindTransient,
		Type:        errType,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// ClassifyStatus maps an HTTP status code returned by a provider to an error type and kind.
func ClassifyStatus(status int) (ErrorType, ErrorKind) {
	switch status {
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit, KindTransient
	case 529: // Anthropic "overloaded_error"
		return ErrorTypeOverloaded, KindTransient
	case http.StatusServiceUnavailable:
		return ErrorTypeOverloaded, KindTransient
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorTypeTimeout, KindTransient
	case http.StatusConflict, http.StatusTooEarly:
		return ErrorTypeProvider, KindTransient
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorTypeAuthentication, KindPermanent
	case http.StatusNotFound:
		return ErrorTypeNotFound, KindPermanent
	case http.StatusRequestEntityTooLarge:
		return ErrorTypeRequestTooLarge, KindPermanent
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeInvalidRequest, KindPermanent
	}
	if status >= 500 {
		return ErrorTypeProvider, KindTransient
	}
	return ErrorTypeProvider, KindPermanent
}

// NewStatusError builds an Error for a provider HTTP failure using ClassifyStatus.
func NewStatusError(status int, message string, providerErr error) *Error {
	errType, kind := ClassifyStatus(status)
	return &Error{
		Kind:        kind,
		Type:        errType,
		Message:     message,
		StatusCode:  status,
		ProviderErr: providerErr,
	}
}
