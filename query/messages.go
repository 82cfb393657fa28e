package query

import (
	"strings"

	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
)

const (
	TypeGetJob      = "itrp.query.job.get"
	TypeListJobs    = "itrp.query.job.list"
	TypeListRecords = "itrp.query.records.list"
)

type GetJobMessage struct {
	Kind  jobs.Kind
	Token string
}

func (GetJobMessage) Type() string { return TypeGetJob }

func (m GetJobMessage) Validate() error {
	if err := validateKind(m.Kind, false); err != nil {
		return err
	}
	if strings.TrimSpace(m.Token) == "" {
		return queryValidationError("token", "job token is required")
	}
	return nil
}

// ListJobsMessage lists recorded jobs, newest first. An empty Kind lists
// imports and exports together.
type ListJobsMessage struct {
	Kind  jobs.Kind
	Limit int
}

func (ListJobsMessage) Type() string { return TypeListJobs }

func (m ListJobsMessage) Validate() error {
	if err := validateKind(m.Kind, true); err != nil {
		return err
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

// ListRecordsMessage walks every page of Path. Limit stops the walk early
// once that many records were collected; zero means no limit.
type ListRecordsMessage struct {
	Path   string
	Params core.Params
	Limit  int
}

func (ListRecordsMessage) Type() string { return TypeListRecords }

func (m ListRecordsMessage) Validate() error {
	if strings.TrimSpace(m.Path) == "" {
		return queryValidationError("path", "collection path is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

func validateKind(kind jobs.Kind, allowEmpty bool) error {
	switch kind {
	case jobs.KindImport, jobs.KindExport:
		return nil
	case "":
		if allowEmpty {
			return nil
		}
	}
	return queryValidationError("kind", "kind must be import or export")
}
