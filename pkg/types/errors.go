package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by every component
const (
	CodeInvalidTransform   = "invalid_transform"
	CodeCaptureUnavailable = "capture_unavailable"
	CodeMissingCredential  = "missing_credential"
	CodeNetworkFailure     = "network_failure"
	CodeBackendError       = "backend_error"
	CodeMalformedResponse  = "malformed_response"
	CodeNoImageReturned    = "no_image_returned"
	CodeDecodeError        = "decode_error"
	CodeUploadFailed       = "upload_failed"
	CodeNoActiveTarget     = "no_active_target"
	CodeInvalidParameters  = "invalid_parameters"
	CodeInProgress         = "in_progress"
)

// Sentinels for errors.Is. They match any EditError carrying the same code
var (
	ErrInvalidTransform   = EditError{Code: CodeInvalidTransform}
	ErrCaptureUnavailable = EditError{Code: CodeCaptureUnavailable}
	ErrMissingCredential  = EditError{Code: CodeMissingCredential}
	ErrNetworkFailure     = EditError{Code: CodeNetworkFailure}
	ErrBackendError       = EditError{Code: CodeBackendError}
	ErrMalformedResponse  = EditError{Code: CodeMalformedResponse}
	ErrNoImageReturned    = EditError{Code: CodeNoImageReturned}
	ErrDecodeError        = EditError{Code: CodeDecodeError}
	ErrUploadFailed       = EditError{Code: CodeUploadFailed}
	ErrNoActiveTarget     = EditError{Code: CodeNoActiveTarget}
	ErrInvalidParameters  = EditError{Code: CodeInvalidParameters}
	ErrInProgress         = EditError{Code: CodeInProgress}
)

// EditError represents a typed failure anywhere in the capture/edit/place pipeline
type EditError struct {
	Code    string
	Message string
	Status  int // HTTP status for backend_error
	Details map[string]interface{}
	Err     error
}

func (e EditError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e EditError) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code
func (e EditError) Is(target error) bool {
	t, ok := target.(EditError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError builds an EditError with a formatted message
func NewError(code string, format string, args ...interface{}) EditError {
	return EditError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError builds an EditError that keeps the underlying cause
func WrapError(code string, err error, format string, args ...interface{}) EditError {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return EditError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// BackendError builds a backend_error carrying the HTTP status and response body
func BackendError(status int, detail string) EditError {
	return EditError{
		Code:    CodeBackendError,
		Message: fmt.Sprintf("backend returned %d %s: %s", status, http.StatusText(status), detail),
		Status:  status,
		Details: map[string]interface{}{
			"status": status,
			"detail": detail,
		},
	}
}

// CodeOf returns the error code of err, or "" when err is not an EditError
func CodeOf(err error) string {
	var e EditError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
