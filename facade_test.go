package itrp_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	itrp "github.com/goliatone/go-itrp"
	itrpcommand "github.com/goliatone/go-itrp/command"
	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/devkit"
	"github.com/goliatone/go-itrp/jobs"
	itrpquery "github.com/goliatone/go-itrp/query"
	sqlstore "github.com/goliatone/go-itrp/store/sql"
)

type stubJobReader struct{}

func (stubJobReader) Get(context.Context, jobs.Kind, string) (jobs.Entry, error) {
	return jobs.Entry{}, jobs.ErrEntryNotFound
}

func (stubJobReader) List(context.Context, jobs.Kind, int) ([]jobs.Entry, error) {
	return nil, nil
}

func TestNewFacadeRequiresClient(t *testing.T) {
	if _, err := itrp.NewFacade(nil); err == nil {
		t.Fatalf("expected nil client to fail")
	}
}

func TestFacadeJobQueriesNeedReader(t *testing.T) {
	h := newHarness(t, core.Config{}, nil)

	facade, err := itrp.NewFacade(h.client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Queries().GetJob != nil || facade.Queries().ListJobs != nil {
		t.Fatalf("expected job queries to stay nil without a reader")
	}
	if facade.Queries().ListRecords == nil {
		t.Fatalf("expected list records query")
	}

	facade, err = itrp.NewFacade(h.client, itrp.WithJobReader(stubJobReader{}))
	if err != nil {
		t.Fatalf("new facade with reader: %v", err)
	}
	if facade.Queries().GetJob == nil || facade.Queries().ListJobs == nil {
		t.Fatalf("expected job queries with an explicit reader")
	}
	if facade.Client() != h.client {
		t.Fatalf("expected facade to expose its client")
	}
}

func TestFacadeSaveRecordStoresResponse(t *testing.T) {
	h := newHarness(t, core.Config{}, nil,
		devkit.JSON(201, `{"id":9,"subject":"Printer down"}`),
	)
	facade, err := itrp.NewFacade(h.client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[*core.Response]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().SaveRecord.Execute(ctx, itrpcommand.SaveRecordMessage{
		Path:   "requests",
		Fields: core.Fields{"subject": core.String("Printer down")},
		Create: true,
	}); err != nil {
		t.Fatalf("save record: %v", err)
	}
	response, ok := collector.Load()
	if !ok || response == nil {
		t.Fatalf("expected stored response")
	}
	if id, _ := response.Get("id").(float64); id != 9 {
		t.Fatalf("expected created record id 9, got %v", response.Get("id"))
	}
	if call := h.transport.Calls()[0]; call.Method != "POST" {
		t.Fatalf("expected POST, got %s", call.Method)
	}
}

func TestFacadeListRecordsStopsAtLimit(t *testing.T) {
	h := newHarness(t, core.Config{}, nil,
		devkit.JSON(200, `[{"id":1},{"id":2},{"id":3}]`),
	)
	facade, err := itrp.NewFacade(h.client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	records, err := facade.Queries().ListRecords.Query(context.Background(), itrpquery.ListRecordsMessage{
		Path:  "people",
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestFacadeImportRecordedInSQLLedger(t *testing.T) {
	ctx := context.Background()
	persistence, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    fmt.Sprintf("file:itrp-facade-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer persistence.Close()
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(persistence)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}

	h := newHarness(t, core.Config{}, []itrp.Option{itrp.WithJobLedger(factory.JobStore())},
		devkit.JSON(200, `{"token":"imp-1","state":"queued"}`),
	)
	facade, err := itrp.NewFacade(h.client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Queries().GetJob == nil {
		t.Fatalf("expected job queries resolved from the SQL ledger")
	}

	path := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(path, []byte("name\nEllen\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := facade.Commands().StartImport.Execute(ctx, itrpcommand.StartImportMessage{Request: jobs.ImportRequest{
		File:       core.FilePath(path),
		RecordType: "people",
	}}); err != nil {
		t.Fatalf("start import: %v", err)
	}

	entry, err := facade.Queries().GetJob.Query(ctx, itrpquery.GetJobMessage{Kind: jobs.KindImport, Token: "imp-1"})
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if entry.State != jobs.StateQueued || entry.RecordType != "people" {
		t.Fatalf("unexpected ledger entry %#v", entry)
	}
}
