package command

import (
	"strings"

	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
)

const (
	TypeStartImport       = "itrp.command.import.start"
	TypeStartExport       = "itrp.command.export.start"
	TypeUploadAttachments = "itrp.command.attachments.upload"
	TypeSaveRecord        = "itrp.command.record.save"
)

type StartImportMessage struct {
	Request jobs.ImportRequest
}

func (StartImportMessage) Type() string { return TypeStartImport }

func (m StartImportMessage) Validate() error {
	if m.Request.File == nil {
		return commandValidationError("file", "import file is required")
	}
	if strings.TrimSpace(m.Request.RecordType) == "" {
		return commandValidationError("type", "record type is required")
	}
	return nil
}

type StartExportMessage struct {
	Request jobs.ExportRequest
}

func (StartExportMessage) Type() string { return TypeStartExport }

func (m StartExportMessage) Validate() error {
	if strings.TrimSpace(m.Request.TypeList()) == "" {
		return commandValidationError("type", "at least one record type is required")
	}
	return nil
}

// UploadAttachmentsMessage uploads the attachments field of Fields for the
// record at Path. Fields is rewritten in place.
type UploadAttachmentsMessage struct {
	Path   string
	Fields core.Fields
}

func (UploadAttachmentsMessage) Type() string { return TypeUploadAttachments }

func (m UploadAttachmentsMessage) Validate() error {
	if strings.TrimSpace(m.Path) == "" {
		return commandValidationError("path", "record path is required")
	}
	if m.Fields == nil {
		return commandValidationError("fields", "fields are required")
	}
	return nil
}

// SaveRecordMessage creates (POST) or updates (PUT) the record at Path.
type SaveRecordMessage struct {
	Path    string
	Fields  core.Fields
	Headers map[string]string
	Create  bool
}

func (SaveRecordMessage) Type() string { return TypeSaveRecord }

func (m SaveRecordMessage) Validate() error {
	if strings.TrimSpace(m.Path) == "" {
		return commandValidationError("path", "record path is required")
	}
	return nil
}
