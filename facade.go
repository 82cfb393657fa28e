package itrp

import (
	"fmt"

	itrpcommand "github.com/goliatone/go-itrp/command"
	"github.com/goliatone/go-itrp/jobs"
	itrpquery "github.com/goliatone/go-itrp/query"
)

type Commands struct {
	StartImport       *itrpcommand.StartImportCommand
	StartExport       *itrpcommand.StartExportCommand
	UploadAttachments *itrpcommand.UploadAttachmentsCommand
	SaveRecord        *itrpcommand.SaveRecordCommand
}

// Queries leaves GetJob and ListJobs nil when no job reader is known.
type Queries struct {
	GetJob      *itrpquery.GetJobQuery
	ListJobs    *itrpquery.ListJobsQuery
	ListRecords *itrpquery.ListRecordsQuery
}

type Facade struct {
	client   *Client
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	jobReader jobs.Reader
}

func WithJobReader(reader jobs.Reader) FacadeOption {
	return func(options *facadeOptions) {
		options.jobReader = reader
	}
}

func NewFacade(client *Client, opts ...FacadeOption) (*Facade, error) {
	if client == nil {
		return nil, fmt.Errorf("itrp: client is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.jobReader
	if reader == nil {
		reader = resolveJobReader(client)
	}

	facade := &Facade{client: client}
	facade.commands = Commands{
		StartImport:       itrpcommand.NewStartImportCommand(client),
		StartExport:       itrpcommand.NewStartExportCommand(client),
		UploadAttachments: itrpcommand.NewUploadAttachmentsCommand(client),
		SaveRecord:        itrpcommand.NewSaveRecordCommand(client),
	}
	facade.queries = Queries{
		ListRecords: itrpquery.NewListRecordsQuery(client),
	}
	if reader != nil {
		facade.queries.GetJob = itrpquery.NewGetJobQuery(reader)
		facade.queries.ListJobs = itrpquery.NewListJobsQuery(reader)
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Client() *Client {
	if f == nil {
		return nil
	}
	return f.client
}

// resolveJobReader uses the job ledger when it can also be read back, as
// the SQL job store can.
func resolveJobReader(client *Client) jobs.Reader {
	if client == nil || client.workflow == nil {
		return nil
	}
	reader, ok := client.workflow.Ledger().(jobs.Reader)
	if !ok {
		return nil
	}
	return reader
}
