package jobs

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-itrp/attachments"
	"github.com/goliatone/go-itrp/core"
	glog "github.com/goliatone/go-logger/glog"
)

// ImportRequest uploads a CSV file of RecordType records.
type ImportRequest struct {
	File       core.FileSource
	RecordType string
	Block      bool
}

// ExportRequest asks for the records of Types changed since Since. A zero
// Since exports everything.
type ExportRequest struct {
	Types []string
	Since time.Time
	Block bool
}

func (r ExportRequest) TypeList() string {
	types := make([]string, 0, len(r.Types))
	for _, recordType := range r.Types {
		if trimmed := strings.TrimSpace(recordType); trimmed != "" {
			types = append(types, trimmed)
		}
	}
	return strings.Join(types, ",")
}

// Workflow starts import and export jobs and, when asked to block, follows
// them to a terminal state.
type Workflow struct {
	requester   core.Requester
	poller      *Poller
	ledger      Ledger
	checkpoints CheckpointStore
	now         core.Clock
	logger      core.Logger
}

type WorkflowOption func(*Workflow)

func WithPoller(poller *Poller) WorkflowOption {
	return func(w *Workflow) {
		if poller != nil {
			w.poller = poller
		}
	}
}

func WithLedger(ledger Ledger) WorkflowOption {
	return func(w *Workflow) {
		w.ledger = ledger
	}
}

func WithCheckpoints(store CheckpointStore) WorkflowOption {
	return func(w *Workflow) {
		w.checkpoints = store
	}
}

func WithClock(now core.Clock) WorkflowOption {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

func NewWorkflow(requester core.Requester, logger core.Logger, opts ...WorkflowOption) *Workflow {
	workflow := &Workflow{
		requester: requester,
		now:       time.Now,
		logger:    glog.Ensure(logger),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(workflow)
		}
	}
	if workflow.poller == nil {
		workflow.poller = NewPoller(requester, workflow.logger, WithPollLedger(workflow.ledger))
	} else if workflow.poller.ledger == nil {
		workflow.poller.ledger = workflow.ledger
	}
	return workflow
}

func (w *Workflow) Poller() *Poller {
	return w.poller
}

// Ledger returns the configured ledger, or nil.
func (w *Workflow) Ledger() Ledger {
	return w.ledger
}

// Import posts the file to /import. Without Block the initiating response
// is returned as is, valid or not.
func (w *Workflow) Import(ctx context.Context, req ImportRequest) (Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	recordType := strings.TrimSpace(req.RecordType)
	if req.File == nil {
		return Handle{}, core.NewBadInput("import requires a file", "file")
	}
	if recordType == "" {
		return Handle{}, core.NewBadInput("import requires a record type", "type")
	}
	file, err := req.File.Open()
	if err != nil {
		return Handle{}, core.NewUploadFailed("Failed to queue "+recordType+" import. "+err.Error(), map[string]any{
			"kind": string(KindImport),
			"type": recordType,
		})
	}
	defer file.Close()

	name := req.File.Name()
	response := w.requester.Send(ctx, w.requester.Builder().Multipart("/import", []core.MultipartPart{
		core.FormValue("type", recordType),
		core.FormFile("file", name, attachments.ContentTypeFor(name), file),
	}, nil))

	handle := handleFrom(KindImport, recordType, response)
	if response.Valid() {
		core.LogWithLevel(ctx, w.logger, "info", "import queued", map[string]any{
			"file":  name,
			"type":  recordType,
			"token": handle.Token,
		})
		recordStart(ctx, w.ledger, w.logger, handle)
	}
	return w.follow(ctx, handle, req.Block)
}

// Export posts to /export. A 204 answer means nothing changed since Since
// and yields the no-content state without polling.
func (w *Workflow) Export(ctx context.Context, req ExportRequest) (Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	types := req.TypeList()
	if types == "" {
		return Handle{}, core.NewBadInput("export requires at least one record type", "type")
	}
	fields := core.Fields{"type": core.String(types)}
	if !req.Since.IsZero() {
		fields["from"] = core.DateTime(req.Since)
	}
	response := w.requester.Send(ctx, w.requester.Builder().JSON(http.MethodPost, "/export", fields, nil))

	if response.StatusCode() == http.StatusNoContent {
		core.LogWithLevel(ctx, w.logger, "info", "export has no changed records", map[string]any{
			"type": types,
			"from": core.Cast(fields["from"], false),
		})
		return Handle{Kind: KindExport, RecordType: types, State: StateNoContent, Response: response}, nil
	}

	handle := handleFrom(KindExport, types, response)
	if response.Valid() {
		core.LogWithLevel(ctx, w.logger, "info", "export queued", map[string]any{
			"type":  types,
			"token": handle.Token,
		})
		recordStart(ctx, w.ledger, w.logger, handle)
	}
	return w.follow(ctx, handle, req.Block)
}

// ExportSince exports the changes since the last completed export of the
// same type set and moves the checkpoint once the job is finished.
func (w *Workflow) ExportSince(ctx context.Context, types []string) (Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req := ExportRequest{Types: types, Block: true}
	key := req.TypeList()
	if w.checkpoints != nil && key != "" {
		since, found, err := w.checkpoints.LastExport(ctx, key)
		if err != nil {
			return Handle{}, err
		}
		if found {
			req.Since = since
		}
	}
	started := w.now().UTC()
	handle, err := w.Export(ctx, req)
	if err != nil {
		return handle, err
	}
	if w.checkpoints != nil && (handle.Done() || handle.NoContent()) {
		if err := w.checkpoints.SaveExport(ctx, key, started); err != nil {
			return handle, err
		}
	}
	return handle, nil
}

func (w *Workflow) follow(ctx context.Context, handle Handle, block bool) (Handle, error) {
	if !block {
		return handle, nil
	}
	if !handle.Response.Valid() {
		return handle, initiationError(handle.Kind, handle.RecordType, handle.Response)
	}
	return w.poller.await(ctx, handle.Kind, handle.RecordType, handle.Token)
}
