package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-itrp/jobs"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultJobListLimit = 50

// JobStore keeps import and export jobs in itrp_jobs, keyed by kind and token.
type JobStore struct {
	db   *bun.DB
	repo repository.Repository[*jobRecord]
	now  func() time.Time
}

func NewJobStore(db *bun.DB) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*jobRecord](db, jobHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid job repository wiring: %w", err)
		}
	}
	return &JobStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *JobStore) Record(ctx context.Context, entry jobs.Entry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: job store is not configured")
	}
	entry.Token = strings.TrimSpace(entry.Token)
	if strings.TrimSpace(string(entry.Kind)) == "" || entry.Token == "" {
		return fmt.Errorf("sqlstore: job kind and token are required")
	}

	record := newJobRecord(entry, s.now())
	record.ID = uuid.NewString()
	if _, err := s.repo.Create(ctx, record); err != nil {
		if !isUniqueViolation(err) {
			existing, findErr := s.find(ctx, entry.Kind, entry.Token)
			if findErr != nil || existing == nil {
				return err
			}
		}
		return s.UpdateState(ctx, entry.Kind, entry.Token, entry.State, entry.Detail)
	}
	return nil
}

// UpdateState stores the observed state. Jobs that were never recorded are
// inserted so that polling a token started elsewhere is still tracked.
func (s *JobStore) UpdateState(ctx context.Context, kind jobs.Kind, token string, state string, detail string) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: job store is not configured")
	}
	token = strings.TrimSpace(token)
	if strings.TrimSpace(string(kind)) == "" || token == "" {
		return fmt.Errorf("sqlstore: job kind and token are required")
	}

	record, err := s.find(ctx, kind, token)
	if err != nil {
		return err
	}
	now := s.now()
	if record == nil {
		record = newJobRecord(jobs.Entry{Kind: kind, Token: token, State: state, Detail: detail}, now)
		record.ID = uuid.NewString()
		_, err = s.repo.Create(ctx, record)
		return err
	}

	record.State = strings.TrimSpace(state)
	if detail != "" {
		record.Detail = detail
	}
	record.UpdatedAt = now
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

func (s *JobStore) Get(ctx context.Context, kind jobs.Kind, token string) (jobs.Entry, error) {
	if s == nil || s.db == nil {
		return jobs.Entry{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	record, err := s.find(ctx, kind, strings.TrimSpace(token))
	if err != nil {
		return jobs.Entry{}, err
	}
	if record == nil {
		return jobs.Entry{}, fmt.Errorf("%w: %s %q", jobs.ErrEntryNotFound, kind, token)
	}
	return record.toEntry(), nil
}

// List returns the most recent jobs first. An empty kind lists both kinds.
func (s *JobStore) List(ctx context.Context, kind jobs.Kind, limit int) ([]jobs.Entry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: job store is not configured")
	}
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if kind = jobs.Kind(strings.TrimSpace(string(kind))); kind != "" {
		selectors = append(selectors, repository.SelectBy("kind", "=", string(kind)))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]jobs.Entry, 0, len(records))
	for _, record := range records {
		out = append(out, record.toEntry())
	}
	return out, nil
}

func (s *JobStore) find(ctx context.Context, kind jobs.Kind, token string) (*jobRecord, error) {
	record := &jobRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.kind = ?", string(kind)).
		Where("?TableAlias.token = ?", token).
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
