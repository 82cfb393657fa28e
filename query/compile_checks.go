package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
)

var (
	_ gocmd.Querier[GetJobMessage, jobs.Entry]         = (*GetJobQuery)(nil)
	_ gocmd.Querier[ListJobsMessage, []jobs.Entry]     = (*ListJobsQuery)(nil)
	_ gocmd.Querier[ListRecordsMessage, []core.Record] = (*ListRecordsQuery)(nil)
)
