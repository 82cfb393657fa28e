package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StartImportMessage]       = (*StartImportCommand)(nil)
	_ gocmd.Commander[StartExportMessage]       = (*StartExportCommand)(nil)
	_ gocmd.Commander[UploadAttachmentsMessage] = (*UploadAttachmentsCommand)(nil)
	_ gocmd.Commander[SaveRecordMessage]        = (*SaveRecordCommand)(nil)
)
