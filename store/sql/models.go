package sqlstore

import (
	"time"

	"github.com/goliatone/go-itrp/jobs"
	"github.com/uptrace/bun"
)

type jobRecord struct {
	bun.BaseModel `bun:"table:itrp_jobs,alias:ij"`

	ID         string    `bun:"id,pk"`
	Kind       string    `bun:"kind,notnull"`
	Token      string    `bun:"token,notnull"`
	RecordType string    `bun:"record_type"`
	State      string    `bun:"state,notnull"`
	Detail     string    `bun:"detail"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type checkpointRecord struct {
	bun.BaseModel `bun:"table:itrp_export_checkpoints,alias:iec"`

	ID         string    `bun:"id,pk"`
	Types      string    `bun:"types,notnull"`
	ExportedAt time.Time `bun:"exported_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newJobRecord(entry jobs.Entry, now time.Time) *jobRecord {
	return &jobRecord{
		Kind:       string(entry.Kind),
		Token:      entry.Token,
		RecordType: entry.RecordType,
		State:      entry.State,
		Detail:     entry.Detail,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (r *jobRecord) toEntry() jobs.Entry {
	if r == nil {
		return jobs.Entry{}
	}
	return jobs.Entry{
		Kind:       jobs.Kind(r.Kind),
		Token:      r.Token,
		RecordType: r.RecordType,
		State:      r.State,
		Detail:     r.Detail,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
