package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strconv"
	"strings"

	itrp "github.com/goliatone/go-itrp"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-itrp"

	rootPath = "data/sql/migrations"
)

// Migration is one numbered up/down pair, e.g. 00001_itrp_jobs.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// FilesystemSpec is the migration tree of one dialect. Postgres files live
// at the root of the tree, SQLite files under sqlite/.
type FilesystemSpec struct {
	Dialect    string
	Path       string
	FS         fs.FS
	Migrations []Migration
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// DialectForDriver maps a database/sql driver name to its migration tree.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite3":
		return DialectSQLite, nil
	case "postgres":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: no migrations for driver %q", driver)
	}
}

// Filesystems returns the postgres and sqlite trees of source, or of the
// embedded tree when no source is given. Every up file needs a numeric
// version prefix and a matching down file.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := itrp.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	filesystems := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range filesystems {
		migrations, err := scan(filesystems[i].FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s %s: %w", filesystems[i].Dialect, filesystems[i].Path, err)
		}
		filesystems[i].Migrations = migrations
	}
	return filesystems, nil
}

// Register hands every targeted dialect tree to registerFn, in the order
// postgres, sqlite.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       DefaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, fsys := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, fsys.Dialect) {
			continue
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}
	return reg, nil
}

func scan(fsys fs.FS) ([]Migration, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}

	migrations := make([]Migration, 0, len(ups))
	seen := map[int]string{}
	for _, up := range ups {
		base := strings.TrimSuffix(up, ".up.sql")
		prefix, name, ok := strings.Cut(base, "_")
		version, convErr := strconv.Atoi(prefix)
		if !ok || convErr != nil || name == "" {
			return nil, fmt.Errorf("%s has no numeric version prefix", up)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("%s and %s share version %d", other, up, version)
		}
		seen[version] = up

		down := base + ".down.sql"
		if _, err := fs.Stat(fsys, down); err != nil {
			return nil, fmt.Errorf("%s has no %s", up, down)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, Up: up, Down: down})
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
