package sqlstore

import "github.com/goliatone/go-itrp/jobs"

var (
	_ jobs.Ledger          = (*JobStore)(nil)
	_ jobs.Reader          = (*JobStore)(nil)
	_ jobs.CheckpointStore = (*CheckpointStore)(nil)
	_ jobs.CheckpointStore = (*CachedCheckpointStore)(nil)
)
