package attachments

import (
	"context"
	"regexp"
	"strings"

	"github.com/goliatone/go-itrp/core"
)

const (
	ProviderAWS      = "aws"
	FilenameTemplate = "${filename}"

	grantKey        = "storage_upload"
	grantTokenParam = "attachment_upload_token"
)

var recordPathPattern = regexp.MustCompile(`\d+$`)

// StorageGrant is the upload configuration the service hands out for one
// record.
type StorageGrant struct {
	Provider   string
	UploadURI  string
	UploadPath string
	AccessKey  string
	SuccessURL string
	Policy     string
	Signature  string
}

func (g StorageGrant) AWS() bool {
	return g.Provider == ProviderAWS
}

// KeyTemplate is the storage key with the filename placeholder left in.
func (g StorageGrant) KeyTemplate() string {
	return g.UploadPath + FilenameTemplate
}

func (g StorageGrant) Key(fileName string) string {
	return strings.ReplaceAll(g.KeyTemplate(), FilenameTemplate, fileName)
}

// grantPath asks for the grant of an existing record, or of a new record
// when path does not end in an id.
func grantPath(path string) string {
	if recordPathPattern.MatchString(path) {
		return path
	}
	return strings.TrimRight(path, "/") + "/new"
}

// FetchGrant returns false when the record type takes no attachments or the
// grant could not be read.
func FetchGrant(ctx context.Context, requester core.Requester, path string) (StorageGrant, bool) {
	response := requester.Get(ctx, grantPath(path), core.Params{
		{Key: grantTokenParam, Value: core.Bool(true)},
	}, nil)
	if !response.Valid() {
		return StorageGrant{}, false
	}
	raw, ok := response.Get(grantKey).(map[string]any)
	if !ok {
		return StorageGrant{}, false
	}
	text := func(key string) string {
		value, _ := raw[key].(string)
		return value
	}
	return StorageGrant{
		Provider:   text("provider"),
		UploadURI:  text("upload_uri"),
		UploadPath: text("upload_path"),
		AccessKey:  text("access_key"),
		SuccessURL: text("success_url"),
		Policy:     text("policy"),
		Signature:  text("signature"),
	}, true
}
