package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CheckpointStore keeps the start time of the last completed export per
// record type set.
type CheckpointStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewCheckpointStore(db *bun.DB) (*CheckpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &CheckpointStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *CheckpointStore) LastExport(ctx context.Context, types string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, fmt.Errorf("sqlstore: checkpoint store is not configured")
	}
	key := NormalizeTypes(types)
	if key == "" {
		return time.Time{}, false, fmt.Errorf("sqlstore: export types are required")
	}
	record, err := findCheckpoint(ctx, s.db, key)
	if err != nil {
		return time.Time{}, false, err
	}
	if record == nil {
		return time.Time{}, false, nil
	}
	return record.ExportedAt.UTC(), true, nil
}

func (s *CheckpointStore) SaveExport(ctx context.Context, types string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: checkpoint store is not configured")
	}
	key := NormalizeTypes(types)
	if key == "" {
		return fmt.Errorf("sqlstore: export types are required")
	}
	at = at.UTC()
	now := s.now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findCheckpoint(ctx, tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			record = &checkpointRecord{
				ID:         uuid.NewString(),
				Types:      key,
				ExportedAt: at,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			if insertErr == nil || !isUniqueViolation(insertErr) {
				return insertErr
			}
			record, err = findCheckpoint(ctx, tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return insertErr
			}
		}
		if !at.After(record.ExportedAt) {
			return nil
		}
		record.ExportedAt = at
		record.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(record).
			Column("exported_at", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

// NormalizeTypes sorts a comma separated record type list without blanks or
// duplicates, so "sites, people" and "people,sites" share a checkpoint.
func NormalizeTypes(types string) string {
	parts := strings.Split(types, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	slices.Sort(out)
	return strings.Join(out, ",")
}

func findCheckpoint(ctx context.Context, db bun.IDB, types string) (*checkpointRecord, error) {
	record := &checkpointRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.types = ?", types).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
