package jobs

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-itrp/core"
)

func monitorError(kind Kind, recordType string, token string, response *core.Response) error {
	return core.NewMonitorFailed(
		fmt.Sprintf("Unable to monitor progress for %s. %s", subject(kind, recordType), response.Message()),
		map[string]any{
			"kind":   string(kind),
			"token":  token,
			"status": response.StatusCode(),
		},
	)
}

func initiationError(kind Kind, recordType string, response *core.Response) error {
	return core.NewUploadFailed(
		fmt.Sprintf("Failed to queue %s. %s", subject(kind, recordType), response.Message()),
		map[string]any{
			"kind":   string(kind),
			"type":   recordType,
			"status": response.StatusCode(),
		},
	)
}

// IsMonitorFailure reports a poll that returned an invalid response.
func IsMonitorFailure(err error) bool {
	return core.IsMonitorFailed(err)
}

func subject(kind Kind, recordType string) string {
	return strings.TrimSpace(recordType + " " + string(kind))
}
