package attachments

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goliatone/go-itrp/core"
)

const defaultContentType = "application/octet-stream"

var storageErrorPattern = regexp.MustCompile(`<Error>.*<Message>(.*)</Message>.*</Error>`)

// Strategy sends one opened file to the storage named by a grant.
type Strategy interface {
	Upload(ctx context.Context, grant StorageGrant, key string, name string, file *core.OpenedFile) error
}

func strategyFor(requester core.Requester, grant StorageGrant) Strategy {
	if grant.AWS() {
		return objectStorageStrategy{requester: requester}
	}
	return serviceStorageStrategy{requester: requester}
}

// objectStorageStrategy posts a signed form to the object store and then
// confirms the upload with the service.
type objectStorageStrategy struct {
	requester core.Requester
}

func (s objectStorageStrategy) Upload(ctx context.Context, grant StorageGrant, key string, name string, file *core.OpenedFile) error {
	response, err := sendFile(ctx, s.requester, grant.UploadURI, grant.KeyTemplate(), []core.MultipartPart{
		core.FormValue("key", grant.KeyTemplate()),
		core.FormValue("AWSAccessKeyId", grant.AccessKey),
		core.FormValue("acl", "private"),
		core.FormValue("signature", grant.Signature),
		core.FormValue("success_action_redirect", grant.SuccessURL),
		core.FormValue("policy", grant.Policy),
		core.FormFile("file", name, ContentTypeFor(name), file),
	})
	if err != nil {
		return err
	}
	if match := storageErrorPattern.FindSubmatch(response.Body()); match != nil {
		return fmt.Errorf("AWS upload to %s for %s failed: %s", grant.UploadURI, key, string(match[1]))
	}

	confirmation := lastSegment(grant.SuccessURL)
	confirmed := s.requester.Get(ctx, confirmation, core.Params{{Key: "key", Value: core.String(key)}}, nil)
	if !confirmed.Valid() {
		return fmt.Errorf("ITRP confirmation %s for %s failed: %s", confirmation, key, confirmed.Message())
	}
	return nil
}

// serviceStorageStrategy posts the file straight to the service.
type serviceStorageStrategy struct {
	requester core.Requester
}

func (s serviceStorageStrategy) Upload(ctx context.Context, grant StorageGrant, key string, name string, file *core.OpenedFile) error {
	response, err := sendFile(ctx, s.requester, grant.UploadURI, grant.KeyTemplate(), []core.MultipartPart{
		core.FormFile("file", name, ContentTypeFor(name), file),
		core.FormValue("key", grant.KeyTemplate()),
	})
	if err != nil {
		return err
	}
	if !response.Valid() {
		return fmt.Errorf("ITRP upload to %s for %s failed: %s", grant.UploadURI, key, response.Message())
	}
	return nil
}

// sendFile prepends the Content-Type form value derived from the key
// template and posts the form without service credentials.
func sendFile(ctx context.Context, requester core.Requester, uri string, keyTemplate string, parts []core.MultipartPart) (*core.Response, error) {
	form := append([]core.MultipartPart{core.FormValue("Content-Type", ContentTypeFor(keyTemplate))}, parts...)
	req, err := core.Upload(uri, form)
	if err != nil {
		return nil, err
	}
	return requester.Send(ctx, req), nil
}

// ContentTypeFor maps a file name to its MIME type, falling back to
// application/octet-stream.
func ContentTypeFor(name string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(name)); contentType != "" {
		return contentType
	}
	return defaultContentType
}

func lastSegment(uri string) string {
	trimmed := strings.TrimSpace(uri)
	if index := strings.LastIndex(trimmed, "/"); index >= 0 {
		return trimmed[index+1:]
	}
	return trimmed
}
