package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput      = "ITRP_BAD_INPUT"
	ErrorClient        = "ITRP_CLIENT_ERROR"
	ErrorUploadFailed  = "ITRP_UPLOAD_FAILED"
	ErrorMonitorFailed = "ITRP_MONITOR_FAILED"
	ErrorRateLimited   = "ITRP_RATE_LIMITED"
	ErrorInternal      = "ITRP_INTERNAL_ERROR"
)

// NewClientError reports a protocol or validation failure surfaced by the
// remote service, such as an invalid page during enumeration.
func NewClientError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorClient)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewUploadFailed reports a failed attachment upload or job initiation.
func NewUploadFailed(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorUploadFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewMonitorFailed(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorMonitorFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewBadInput(message string, field string) *goerrors.Error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

func NewInternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func configError(message string, field string) *goerrors.Error {
	return NewBadInput(message, field)
}

// IsClientError reports whether err, or anything it wraps, is a client error.
// Upload and monitor failures are client errors as well.
func IsClientError(err error) bool {
	return hasTextCode(err, ErrorClient, ErrorUploadFailed, ErrorMonitorFailed)
}

func IsUploadFailed(err error) bool {
	return hasTextCode(err, ErrorUploadFailed)
}

func IsMonitorFailed(err error) bool {
	return hasTextCode(err, ErrorMonitorFailed)
}

func IsBadInput(err error) bool {
	return hasTextCode(err, ErrorBadInput)
}

func hasTextCode(err error, codes ...string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	code := strings.TrimSpace(richErr.TextCode)
	for _, candidate := range codes {
		if code == candidate {
			return true
		}
	}
	return false
}

// ErrorMessage returns the human message of err without category decoration.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if richErr.Source != nil {
			return ErrorMessage(richErr.Source)
		}
		return richErr.Message
	}
	return err.Error()
}
