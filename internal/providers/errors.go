package providers

import "fmt"

// ConfigurationError reports a missing or unusable credential, detected
// before any network call.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// ServiceErrorKind classifies extraction failures. Every kind is recoverable
// via an explicit retry.
type ServiceErrorKind string

const (
	KindRateLimited    ServiceErrorKind = "rate_limited"
	KindUnauthorized   ServiceErrorKind = "unauthorized"
	KindNetwork        ServiceErrorKind = "network"
	KindRemoteRejected ServiceErrorKind = "remote_rejected"
	KindEmptyResult    ServiceErrorKind = "empty_result"
)

// ServiceError is a typed extraction failure with a human-readable message.
type ServiceError struct {
	Kind    ServiceErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// RateLimited builds the user-actionable rate-limit error.
func RateLimited() *ServiceError {
	return &ServiceError{
		Kind:    KindRateLimited,
		Message: "rate limited by the extraction service, try again shortly",
	}
}

// Unauthorized builds the credential-rejection error.
func Unauthorized() *ServiceError {
	return &ServiceError{
		Kind:    KindUnauthorized,
		Message: "extraction service rejected the request, check your API key",
	}
}

// NetworkError wraps a transport failure that produced no response.
func NetworkError(err error) *ServiceError {
	return &ServiceError{
		Kind:    KindNetwork,
		Message: "network error calling the extraction service",
		Err:     err,
	}
}

// RemoteRejected carries a well-formed error message from the service.
func RemoteRejected(message string) *ServiceError {
	return &ServiceError{
		Kind:    KindRemoteRejected,
		Message: message,
	}
}

// EmptyResult reports a well-formed success payload with no usable text.
func EmptyResult() *ServiceError {
	return &ServiceError{
		Kind:    KindEmptyResult,
		Message: "empty response from the extraction service, the image may be unreadable",
	}
}
