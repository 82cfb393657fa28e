package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
	"github.com/goliatone/go-itrp/ratelimit"
)

type JobService interface {
	Import(ctx context.Context, req jobs.ImportRequest) (jobs.Handle, error)
	Export(ctx context.Context, req jobs.ExportRequest) (jobs.Handle, error)
}

type AttachmentService interface {
	Upload(ctx context.Context, path string, fields core.Fields) error
}

type RecordWriter interface {
	Put(ctx context.Context, path string, fields core.Fields, headers map[string]string) (*core.Response, error)
	Post(ctx context.Context, path string, fields core.Fields, headers map[string]string) (*core.Response, error)
}

type StartImportCommand struct {
	service JobService
}

func NewStartImportCommand(service JobService) *StartImportCommand {
	return &StartImportCommand{service: service}
}

func (c *StartImportCommand) Execute(ctx context.Context, msg StartImportMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: import service is required")
	}
	out, err := c.service.Import(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StartExportCommand struct {
	service JobService
}

func NewStartExportCommand(service JobService) *StartExportCommand {
	return &StartExportCommand{service: service}
}

func (c *StartExportCommand) Execute(ctx context.Context, msg StartExportMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: export service is required")
	}
	out, err := c.service.Export(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UploadAttachmentsCommand struct {
	service AttachmentService
}

func NewUploadAttachmentsCommand(service AttachmentService) *UploadAttachmentsCommand {
	return &UploadAttachmentsCommand{service: service}
}

func (c *UploadAttachmentsCommand) Execute(ctx context.Context, msg UploadAttachmentsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: attachment service is required")
	}
	if err := c.service.Upload(ctx, msg.Path, msg.Fields); err != nil {
		return err
	}
	storeResult(ctx, msg.Fields)
	return nil
}

// SaveRecordCommand stores the Response of a successful save. Throttled and
// invalid responses become errors.
type SaveRecordCommand struct {
	writer RecordWriter
}

func NewSaveRecordCommand(writer RecordWriter) *SaveRecordCommand {
	return &SaveRecordCommand{writer: writer}
}

func (c *SaveRecordCommand) Execute(ctx context.Context, msg SaveRecordMessage) error {
	if c == nil || c.writer == nil {
		return commandDependencyError("command: record writer is required")
	}
	save := c.writer.Put
	if msg.Create {
		save = c.writer.Post
	}
	response, err := save(ctx, msg.Path, msg.Fields, msg.Headers)
	if err != nil {
		return err
	}
	if err := ratelimit.CheckThrottled(response); err != nil {
		return err
	}
	if !response.Valid() {
		return core.NewClientError(response.Message(), map[string]any{
			"path":   msg.Path,
			"status": response.StatusCode(),
		})
	}
	storeResult(ctx, response)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
