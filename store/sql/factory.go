package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-itrp/jobs"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the job ledger and checkpoint stores over one bun
// database.
type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	jobStore        *JobStore
	checkpointStore jobs.CheckpointStore
}

type FactoryOption func(*RepositoryFactory)

// WithCheckpointCache wraps the checkpoint store in a CachedCheckpointStore.
func WithCheckpointCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.jobStore != nil && f.checkpointStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) JobStore() *JobStore {
	if f == nil {
		return nil
	}
	return f.jobStore
}

func (f *RepositoryFactory) CheckpointStore() jobs.CheckpointStore {
	if f == nil {
		return nil
	}
	return f.checkpointStore
}

func (f *RepositoryFactory) initStores() error {
	jobStore, err := NewJobStore(f.db)
	if err != nil {
		return err
	}
	checkpointStore, err := NewCheckpointStore(f.db)
	if err != nil {
		return err
	}

	f.jobStore = jobStore
	f.checkpointStore = checkpointStore
	if f.cache != nil {
		cached, cacheErr := NewCachedCheckpointStore(checkpointStore, f.cache)
		if cacheErr != nil {
			return cacheErr
		}
		f.checkpointStore = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
