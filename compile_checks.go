package itrp

import (
	"github.com/goliatone/go-itrp/adapters/gojob"
	itrpcommand "github.com/goliatone/go-itrp/command"
	"github.com/goliatone/go-itrp/core"
	itrpquery "github.com/goliatone/go-itrp/query"
)

var (
	_ core.Requester                = (*Client)(nil)
	_ itrpcommand.JobService        = (*Client)(nil)
	_ itrpcommand.AttachmentService = (*Client)(nil)
	_ itrpcommand.RecordWriter      = (*Client)(nil)
	_ itrpquery.RecordWalker        = (*Client)(nil)
	_ gojob.WorkflowService         = (*Client)(nil)
)
