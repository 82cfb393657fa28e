package jobs

import (
	"strings"

	"github.com/goliatone/go-itrp/core"
)

type Kind string

const (
	KindImport Kind = "import"
	KindExport Kind = "export"
)

const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateDone       = "done"
	StateError      = "error"
	StateNoContent  = "no-content"
)

// Handle is the last observed state of one server-side job.
type Handle struct {
	Kind       Kind
	Token      string
	RecordType string
	State      string
	Response   *core.Response
}

// Busy is true while the server still works on the job.
func (h Handle) Busy() bool {
	return Busy(h.State)
}

func (h Handle) Done() bool {
	return h.State == StateDone
}

// Detail is the download url of a finished export, if any.
func (h Handle) Detail() string {
	if h.Response == nil || !h.Response.Valid() {
		return ""
	}
	return h.Response.GetString("url")
}

func (h Handle) NoContent() bool {
	return h.State == StateNoContent
}

func Busy(state string) bool {
	switch strings.TrimSpace(state) {
	case StateQueued, StateProcessing:
		return true
	default:
		return false
	}
}

func handleFrom(kind Kind, recordType string, response *core.Response) Handle {
	return Handle{
		Kind:       kind,
		Token:      response.GetString("token"),
		RecordType: recordType,
		State:      response.GetString("state"),
		Response:   response,
	}
}
