package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	itrp "github.com/goliatone/go-itrp"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsOrderedPairsForBothDialects(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}
	if filesystems[0].Dialect != DialectPostgres || filesystems[1].Dialect != DialectSQLite {
		t.Fatalf("expected postgres then sqlite, got %q %q", filesystems[0].Dialect, filesystems[1].Dialect)
	}

	for _, entry := range filesystems {
		if len(entry.Migrations) != 2 {
			t.Fatalf("expected 2 %s migrations, got %d", entry.Dialect, len(entry.Migrations))
		}
		first, second := entry.Migrations[0], entry.Migrations[1]
		if first.Version != 1 || first.Name != "itrp_jobs" || first.Down != "00001_itrp_jobs.down.sql" {
			t.Fatalf("unexpected first %s migration %#v", entry.Dialect, first)
		}
		if second.Version != 2 || second.Name != "itrp_export_checkpoints" {
			t.Fatalf("unexpected second %s migration %#v", entry.Dialect, second)
		}
		if _, err := fs.Stat(entry.FS, first.Up); err != nil {
			t.Fatalf("expected %s to exist in %s tree: %v", first.Up, entry.Dialect, err)
		}
	}
}

func TestFilesystems_RejectsBrokenTrees(t *testing.T) {
	stmt := &fstest.MapFile{Data: []byte("SELECT 1;")}
	tests := []struct {
		name string
		root fstest.MapFS
	}{
		{
			name: "no up migrations",
			root: fstest.MapFS{
				"data/sql/migrations/README":        &fstest.MapFile{Data: []byte("empty")},
				"data/sql/migrations/sqlite/README": &fstest.MapFile{Data: []byte("empty")},
			},
		},
		{
			name: "missing down migration",
			root: fstest.MapFS{
				"data/sql/migrations/00001_jobs.up.sql":          stmt,
				"data/sql/migrations/sqlite/00001_jobs.up.sql":   stmt,
				"data/sql/migrations/sqlite/00001_jobs.down.sql": stmt,
			},
		},
		{
			name: "version prefix is not numeric",
			root: fstest.MapFS{
				"data/sql/migrations/first_jobs.up.sql":          stmt,
				"data/sql/migrations/first_jobs.down.sql":        stmt,
				"data/sql/migrations/sqlite/00001_jobs.up.sql":   stmt,
				"data/sql/migrations/sqlite/00001_jobs.down.sql": stmt,
			},
		},
		{
			name: "duplicate version",
			root: fstest.MapFS{
				"data/sql/migrations/00001_jobs.up.sql":          stmt,
				"data/sql/migrations/00001_jobs.down.sql":        stmt,
				"data/sql/migrations/0001_other.up.sql":          stmt,
				"data/sql/migrations/0001_other.down.sql":        stmt,
				"data/sql/migrations/sqlite/00001_jobs.up.sql":   stmt,
				"data/sql/migrations/sqlite/00001_jobs.down.sql": stmt,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Filesystems(tt.root); err == nil {
				t.Fatalf("expected broken tree to be rejected")
			}
		})
	}
}

func TestDialectForDriver(t *testing.T) {
	tests := []struct {
		driver  string
		dialect string
		wantErr bool
	}{
		{driver: "sqlite3", dialect: DialectSQLite},
		{driver: " Postgres ", dialect: DialectPostgres},
		{driver: "mysql", wantErr: true},
	}
	for _, tt := range tests {
		dialect, err := DialectForDriver(tt.driver)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected %q to be rejected", tt.driver)
			}
			continue
		}
		if err != nil {
			t.Fatalf("dialect for %q: %v", tt.driver, err)
		}
		if dialect != tt.dialect {
			t.Fatalf("expected %q for %q, got %q", tt.dialect, tt.driver, dialect)
		}
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_DefaultsAndSourceLabel(t *testing.T) {
	var labels []string
	reg, err := Register(context.Background(), func(_ context.Context, _ string, label string, _ fs.FS) error {
		labels = append(labels, label)
		return nil
	}, WithDialectSourceLabel(" custom "))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("expected both dialects registered, got %d", len(labels))
	}
	if reg.SourceLabel != "custom" || labels[0] != "custom" {
		t.Fatalf("expected trimmed source label, got %q / %q", reg.SourceLabel, labels[0])
	}
}

func TestRegister_PropagatesRegisterError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped register error, got %v", err)
	}
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
}

func TestJobLedgerMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := itrp.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_itrp_jobs.up.sql",
		"data/sql/migrations/00001_itrp_jobs.down.sql",
		"data/sql/migrations/00002_itrp_export_checkpoints.up.sql",
		"data/sql/migrations/00002_itrp_export_checkpoints.down.sql",
		"data/sql/migrations/sqlite/00001_itrp_jobs.up.sql",
		"data/sql/migrations/sqlite/00001_itrp_jobs.down.sql",
		"data/sql/migrations/sqlite/00002_itrp_export_checkpoints.up.sql",
		"data/sql/migrations/sqlite/00002_itrp_export_checkpoints.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteJobLedgerMigrations_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-job-ledger?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(itrp.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	ctx := context.Background()
	for _, migration := range []string{"00001_itrp_jobs.up.sql", "00002_itrp_export_checkpoints.up.sql"} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply migration %s: %v", migration, err)
		}
	}

	insertJob := `INSERT INTO itrp_jobs (id, kind, token, state) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertJob, "job-1", "import", "tok-1", "queued"); err != nil {
		t.Fatalf("insert job: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertJob, "job-2", "import", "tok-1", "queued"); err == nil {
		t.Fatalf("expected unique violation for repeated kind/token")
	}
	if _, err := db.ExecContext(ctx, insertJob, "job-3", "export", "tok-1", "queued"); err != nil {
		t.Fatalf("expected same token under another kind to insert: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertJob, "job-4", "sync", "tok-4", "queued"); err == nil {
		t.Fatalf("expected kind check constraint violation")
	}

	for _, migration := range []string{"00002_itrp_export_checkpoints.down.sql", "00001_itrp_jobs.down.sql"} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply migration %s: %v", migration, err)
		}
	}

	var count int
	if err := db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('itrp_jobs', 'itrp_export_checkpoints')`,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migrations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected job ledger tables dropped, got %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
