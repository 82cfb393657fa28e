package attachments

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-itrp/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	FieldAttachments          = "attachments"
	FieldAttachmentsException = "attachments_exception"
	FieldNoteAttachments      = "note_attachments"
)

// Uploaded is one entry of the note_attachments field.
type Uploaded struct {
	Key      string `json:"key"`
	FileSize int64  `json:"filesize"`
}

// Uploader replaces the attachments field of a request body with the keys
// of the uploaded files.
type Uploader struct {
	requester core.Requester
	logger    core.Logger
}

func NewUploader(requester core.Requester, logger core.Logger) *Uploader {
	return &Uploader{requester: requester, logger: glog.Ensure(logger)}
}

// Upload consumes the attachments and attachments_exception fields. Failed
// files are logged and skipped unless attachments_exception is set, in
// which case the first failure is returned as an upload error.
func (u *Uploader) Upload(ctx context.Context, path string, fields core.Fields) error {
	if fields == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raise := core.BoolOf(fields[FieldAttachmentsException])
	value, present := fields[FieldAttachments]
	delete(fields, FieldAttachmentsException)
	delete(fields, FieldAttachments)
	if !present {
		return nil
	}
	sources := presentSources(value)
	if len(sources) == 0 {
		return nil
	}
	if u == nil || u.requester == nil {
		return core.NewInternalError("attachments: uploader requires a requester")
	}

	grant, ok := FetchGrant(ctx, u.requester, path)
	if !ok {
		return u.report(ctx, "Attachments not allowed for "+path, raise, nil, map[string]any{"path": path})
	}

	strategy := strategyFor(u.requester, grant)
	uploaded := make([]Uploaded, 0, len(sources))
	for _, source := range sources {
		entry, err := u.uploadOne(ctx, strategy, grant, source)
		if err != nil {
			if reportErr := u.report(ctx, "Attachment upload failed: "+err.Error(), raise, err, map[string]any{
				"path": path,
				"file": source.Name(),
			}); reportErr != nil {
				return reportErr
			}
			continue
		}
		uploaded = append(uploaded, entry)
	}

	encoded, err := json.Marshal(uploaded)
	if err != nil {
		return core.NewInternalError("attachments: encode note attachments: " + err.Error())
	}
	fields[FieldNoteAttachments] = core.String(string(encoded))
	return nil
}

func (u *Uploader) uploadOne(ctx context.Context, strategy Strategy, grant StorageGrant, source core.FileSource) (Uploaded, error) {
	file, err := source.Open()
	if err != nil {
		return Uploaded{}, err
	}
	defer file.Close()

	name := source.Name()
	key := grant.Key(name)
	if err := strategy.Upload(ctx, grant, key, name, file); err != nil {
		return Uploaded{}, err
	}
	return Uploaded{Key: key, FileSize: file.Size}, nil
}

func (u *Uploader) report(ctx context.Context, message string, raise bool, source error, metadata map[string]any) error {
	if raise {
		if source != nil {
			metadata["cause"] = source.Error()
		}
		return core.NewUploadFailed(message, metadata)
	}
	core.LogWithLevel(ctx, u.logger, "error", message, metadata)
	return nil
}

func presentSources(value core.Value) []core.FileSource {
	files, ok := core.FilesOf(value)
	if !ok {
		return nil
	}
	out := make([]core.FileSource, 0, len(files))
	for _, source := range files {
		if source != nil {
			out = append(out, source)
		}
	}
	return out
}
