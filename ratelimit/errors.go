package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-itrp/core"
)

type ThrottledError struct {
	Path    string
	Message string
}

func (e ThrottledError) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "Too Many Requests"
	}
	return fmt.Sprintf("ratelimit: %s throttled: %s", strings.TrimSpace(e.Path), message)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{}
	if path := strings.TrimSpace(e.Path); path != "" {
		metadata["path"] = path
	}
	err := goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorRateLimited)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// CheckThrottled maps a throttled response to a rate-limit error and
// returns nil for everything else.
func CheckThrottled(response *core.Response) error {
	if response == nil || !response.Throttled() {
		return nil
	}
	return ThrottledError{Path: response.Request().Path, Message: response.Message()}.ToServiceError()
}

func IsRateLimited(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == core.ErrorRateLimited
}
