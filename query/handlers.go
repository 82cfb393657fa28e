package query

import (
	"context"
	"errors"

	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
)

type RecordWalker interface {
	Each(ctx context.Context, path string, params core.Params, visit core.Visitor) (int, error)
}

type GetJobQuery struct {
	reader jobs.Reader
}

func NewGetJobQuery(reader jobs.Reader) *GetJobQuery {
	return &GetJobQuery{reader: reader}
}

func (q *GetJobQuery) Query(ctx context.Context, msg GetJobMessage) (jobs.Entry, error) {
	if q == nil || q.reader == nil {
		return jobs.Entry{}, queryDependencyError("query: job reader is required")
	}
	return q.reader.Get(ctx, msg.Kind, msg.Token)
}

type ListJobsQuery struct {
	reader jobs.Reader
}

func NewListJobsQuery(reader jobs.Reader) *ListJobsQuery {
	return &ListJobsQuery{reader: reader}
}

func (q *ListJobsQuery) Query(ctx context.Context, msg ListJobsMessage) ([]jobs.Entry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: job reader is required")
	}
	return q.reader.List(ctx, msg.Kind, msg.Limit)
}

var errLimitReached = errors.New("query: record limit reached")

type ListRecordsQuery struct {
	walker RecordWalker
}

func NewListRecordsQuery(walker RecordWalker) *ListRecordsQuery {
	return &ListRecordsQuery{walker: walker}
}

func (q *ListRecordsQuery) Query(ctx context.Context, msg ListRecordsMessage) ([]core.Record, error) {
	if q == nil || q.walker == nil {
		return nil, queryDependencyError("query: record walker is required")
	}
	records := make([]core.Record, 0)
	_, err := q.walker.Each(ctx, msg.Path, msg.Params, func(record core.Record) error {
		records = append(records, record)
		if msg.Limit > 0 && len(records) >= msg.Limit {
			return errLimitReached
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, err
	}
	return records, nil
}
