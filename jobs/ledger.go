package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-itrp/core"
)

var ErrEntryNotFound = errors.New("jobs: entry not found")

// Entry is one job as kept by a Ledger. Detail holds the download url of a
// finished export.
type Entry struct {
	Kind       Kind
	Token      string
	RecordType string
	State      string
	Detail     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Ledger keeps a record of started jobs and their observed states.
type Ledger interface {
	Record(ctx context.Context, entry Entry) error
	UpdateState(ctx context.Context, kind Kind, token string, state string, detail string) error
}

// Reader looks up recorded jobs. Get returns ErrEntryNotFound for unknown
// tokens.
type Reader interface {
	Get(ctx context.Context, kind Kind, token string) (Entry, error)
	List(ctx context.Context, kind Kind, limit int) ([]Entry, error)
}

// CheckpointStore remembers when an export of a type set last completed.
type CheckpointStore interface {
	LastExport(ctx context.Context, types string) (time.Time, bool, error)
	SaveExport(ctx context.Context, types string, at time.Time) error
}

func recordState(ctx context.Context, ledger Ledger, logger core.Logger, handle Handle) {
	if ledger == nil || handle.Token == "" {
		return
	}
	if err := ledger.UpdateState(ctx, handle.Kind, handle.Token, handle.State, handle.Detail()); err != nil {
		core.LogWithLevel(ctx, logger, "warn", "job ledger update failed", map[string]any{
			"kind":  string(handle.Kind),
			"token": handle.Token,
			"error": err.Error(),
		})
	}
}

func recordStart(ctx context.Context, ledger Ledger, logger core.Logger, handle Handle) {
	if ledger == nil || handle.Token == "" {
		return
	}
	if err := ledger.Record(ctx, Entry{
		Kind:       handle.Kind,
		Token:      handle.Token,
		RecordType: handle.RecordType,
		State:      handle.State,
	}); err != nil {
		core.LogWithLevel(ctx, logger, "warn", "job ledger record failed", map[string]any{
			"kind":  string(handle.Kind),
			"token": handle.Token,
			"error": err.Error(),
		})
	}
}
