package attachments_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-itrp/attachments"
	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/devkit"
)

const (
	awsGrant = `{"storage_upload":{
		"provider":"aws",
		"upload_uri":"https://itrp.s3.amazonaws.com/",
		"access_key":"AKIA6RYQ",
		"success_url":"https://mycompany.itrp.com/s3_success?sig=99e82e8a046",
		"policy":"eydlgIH0=",
		"signature":"nbhdec4k=",
		"upload_path":"attachments/5/reqs/000/070/451/zxxb4ot60xfd6sjg/"}}`
	localGrant = `{"storage_upload":{
		"provider":"local",
		"upload_uri":"https://api.itrp.com/attachments",
		"upload_path":"attachments/5/reqs/000/070/451/zxxb4ot60xfd6sjg/"}}`
	uploadKey = "attachments/5/reqs/000/070/451/zxxb4ot60xfd6sjg/upload.txt"
)

func newUploader(t *testing.T, transport core.Transport) (*attachments.Uploader, *devkit.CaptureLogger) {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.APIToken = "secret"
	cfg.MaxRetryTime = core.NeverRetry
	config, err := core.NewClientConfig(cfg)
	if err != nil {
		t.Fatalf("new client config: %v", err)
	}
	logger := devkit.NewCaptureLogger()
	client := core.NewClient(config, core.NewTransportSender(config, transport, nil), logger)
	return attachments.NewUploader(client, logger), logger
}

func writeFixture(t *testing.T) core.FilePath {
	t.Helper()
	return writeNamedFixture(t, "upload.txt", "content")
}

func writeNamedFixture(t *testing.T, name, content string) core.FilePath {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return core.FilePath(path)
}

func partNames(call devkit.Call) []string {
	names := make([]string, 0, len(call.Parts))
	for _, part := range call.Parts {
		names = append(names, part.Name)
	}
	return names
}

func TestUpload_NothingToDo(t *testing.T) {
	cases := map[string]core.Fields{
		"absent": {"status": core.String("in_progress")},
		"null":   {"attachments": core.Null()},
		"empty":  {"attachments": core.Files()},
		"nil":    {"attachments": core.Files(nil)},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			transport := devkit.NewFakeTransport()
			uploader, _ := newUploader(t, transport)
			fields[attachments.FieldAttachmentsException] = core.Bool(true)

			if err := uploader.Upload(context.Background(), "/requests", fields); err != nil {
				t.Fatalf("upload: %v", err)
			}
			if transport.CallCount() != 0 {
				t.Fatalf("expected no requests, got %d", transport.CallCount())
			}
			if _, ok := fields[attachments.FieldNoteAttachments]; ok {
				t.Fatalf("expected no note attachments")
			}
			if _, ok := fields[attachments.FieldAttachmentsException]; ok {
				t.Fatalf("expected exception flag to be removed")
			}
		})
	}
}

func TestUpload_GrantMissing(t *testing.T) {
	transport := devkit.NewFakeTransport(devkit.JSON(200, `{"name":"site 1"}`))
	uploader, logger := newUploader(t, transport)
	fields := core.Fields{"attachments": core.Files(core.FilePath("file1.png"))}

	if err := uploader.Upload(context.Background(), "/sites/1", fields); err != nil {
		t.Fatalf("expected logged error only, got %v", err)
	}
	if got := transport.Calls()[0].Path; got != "/v1/sites/1?attachment_upload_token=true" {
		t.Fatalf("unexpected grant path %q", got)
	}
	if _, ok := logger.Find("error", "Attachments not allowed for /sites/1"); !ok {
		t.Fatalf("expected error log, got %+v", logger.Entries())
	}
	if _, ok := fields[attachments.FieldAttachments]; ok {
		t.Fatalf("expected attachments field to be removed")
	}

	raising, _ := newUploader(t, devkit.NewFakeTransport(devkit.JSON(200, `{"missing":"storage"}`)))
	err := raising.Upload(context.Background(), "/sites", core.Fields{
		"attachments":           core.Files(core.FilePath("file1.png")),
		"attachments_exception": core.Bool(true),
	})
	if !core.IsUploadFailed(err) || core.ErrorMessage(err) != "Attachments not allowed for /sites" {
		t.Fatalf("expected upload failure, got %v", err)
	}
}

func TestUpload_NewRecordGrantPath(t *testing.T) {
	transport := devkit.NewFakeTransport(devkit.JSON(200, `{}`))
	uploader, _ := newUploader(t, transport)
	_ = uploader.Upload(context.Background(), "/sites", core.Fields{"attachments": core.Files(core.FilePath("a.png"))})
	if got := transport.Calls()[0].Path; got != "/v1/sites/new?attachment_upload_token=true" {
		t.Fatalf("unexpected grant path %q", got)
	}
}

func TestUpload_ObjectStorage(t *testing.T) {
	redirect := devkit.Script{Result: core.RawResult{
		StatusCode: http.StatusSeeOther,
		Header:     http.Header{"Location": []string{"https://mycompany.itrp.com/s3_success?sig=99e82e8a046"}},
		Body:       []byte("OK"),
	}}
	transport := devkit.NewFakeTransport(
		devkit.JSON(200, awsGrant),
		redirect,
		devkit.JSON(200, `{}`),
	)
	uploader, _ := newUploader(t, transport)
	fields := core.Fields{
		"leave":       core.String("me alone"),
		"attachments": core.Files(writeFixture(t)),
	}

	if err := uploader.Upload(context.Background(), "/requests", fields); err != nil {
		t.Fatalf("upload: %v", err)
	}
	want := `[{"key":"` + uploadKey + `","filesize":7}]`
	if got := core.Cast(fields[attachments.FieldNoteAttachments], false); got != want {
		t.Fatalf("expected note attachments %s, got %s", want, got)
	}
	if core.Cast(fields["leave"], false) != "me alone" {
		t.Fatalf("expected other fields untouched")
	}

	calls := transport.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected grant, upload and confirmation, got %d calls", len(calls))
	}
	upload := calls[1]
	if upload.Endpoint.Host != "itrp.s3.amazonaws.com" || upload.Path != "/" {
		t.Fatalf("unexpected upload target %+v %q", upload.Endpoint, upload.Path)
	}
	if _, ok := upload.Headers[core.HeaderAuth]; ok {
		t.Fatalf("expected no service credentials on storage upload")
	}
	order := strings.Join(partNames(upload), ",")
	if order != "Content-Type,key,AWSAccessKeyId,acl,signature,success_action_redirect,policy,file" {
		t.Fatalf("unexpected part order %s", order)
	}
	if upload.Parts[0].Value != "application/octet-stream" || upload.Parts[1].Value != "attachments/5/reqs/000/070/451/zxxb4ot60xfd6sjg/${filename}" {
		t.Fatalf("unexpected leading parts %+v", upload.Parts[:2])
	}
	if string(upload.Parts[7].Content) != "content" || upload.Parts[7].FileName != "upload.txt" {
		t.Fatalf("unexpected file part %+v", upload.Parts[7])
	}
	wantConfirm := "/v1/s3_success?sig=99e82e8a046&key=attachments%2F5%2Freqs%2F000%2F070%2F451%2Fzxxb4ot60xfd6sjg%2Fupload.txt"
	if calls[2].Path != wantConfirm {
		t.Fatalf("expected confirmation %q, got %q", wantConfirm, calls[2].Path)
	}
}

func TestUpload_ObjectStorageErrorRaises(t *testing.T) {
	failure := devkit.Script{Result: core.RawResult{
		StatusCode: http.StatusSeeOther,
		Body:       []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<Error><Code>AccessDenied</Code><Message>Invalid according to Policy</Message><RequestId>1FECC4B719E426B1</RequestId></Error>`),
	}}
	transport := devkit.NewFakeTransport(devkit.JSON(200, awsGrant), failure)
	uploader, _ := newUploader(t, transport)

	err := uploader.Upload(context.Background(), "/requests", core.Fields{
		"attachments":           core.Files(writeFixture(t)),
		"attachments_exception": core.Bool(true),
	})
	want := "Attachment upload failed: AWS upload to https://itrp.s3.amazonaws.com/ for " + uploadKey + " failed: Invalid according to Policy"
	if !core.IsUploadFailed(err) || core.ErrorMessage(err) != want {
		t.Fatalf("expected %q, got %v", want, err)
	}
	if transport.CallCount() != 2 {
		t.Fatalf("expected no confirmation after a storage error, got %d calls", transport.CallCount())
	}
}

func TestUpload_ConfirmationFailureIsLogged(t *testing.T) {
	transport := devkit.NewFakeTransport(
		devkit.JSON(200, awsGrant),
		devkit.Script{Result: core.RawResult{StatusCode: http.StatusSeeOther, Body: []byte("OK")}},
		devkit.JSON(200, `{"message":"oops!"}`),
	)
	uploader, logger := newUploader(t, transport)
	fields := core.Fields{"attachments": core.Files(writeFixture(t))}

	if err := uploader.Upload(context.Background(), "/requests", fields); err != nil {
		t.Fatalf("expected logged failure, got %v", err)
	}
	want := "Attachment upload failed: ITRP confirmation s3_success?sig=99e82e8a046 for " + uploadKey + " failed: oops!"
	if _, ok := logger.Find("error", want); !ok {
		t.Fatalf("expected %q to be logged, got %+v", want, logger.Entries())
	}
	if got := core.Cast(fields[attachments.FieldNoteAttachments], false); got != "[]" {
		t.Fatalf("expected empty note attachments, got %s", got)
	}
}

func TestUpload_ServiceStorage(t *testing.T) {
	transport := devkit.NewFakeTransport(devkit.JSON(200, localGrant), devkit.JSON(200, `{}`))
	uploader, _ := newUploader(t, transport)
	fields := core.Fields{"attachments": core.Files(writeFixture(t))}

	if err := uploader.Upload(context.Background(), "/requests/12", fields); err != nil {
		t.Fatalf("upload: %v", err)
	}
	upload := transport.Calls()[1]
	if upload.Endpoint.Host != "api.itrp.com" || upload.Path != "/attachments" {
		t.Fatalf("unexpected upload target %+v %q", upload.Endpoint, upload.Path)
	}
	if order := strings.Join(partNames(upload), ","); order != "Content-Type,file,key" {
		t.Fatalf("unexpected part order %s", order)
	}
	if upload.Parts[1].Name != "file" || upload.Parts[1].FileName != "upload.txt" {
		t.Fatalf("unexpected file part %+v", upload.Parts[1])
	}
	want := `[{"key":"` + uploadKey + `","filesize":7}]`
	if got := core.Cast(fields[attachments.FieldNoteAttachments], false); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestUpload_ServiceStorageFailureRaises(t *testing.T) {
	transport := devkit.NewFakeTransport(devkit.JSON(200, localGrant), devkit.JSON(200, `{"message":"oops!"}`))
	uploader, _ := newUploader(t, transport)

	err := uploader.Upload(context.Background(), "/requests", core.Fields{
		"attachments":           core.Files(writeFixture(t)),
		"attachments_exception": core.Bool(true),
	})
	want := "Attachment upload failed: ITRP upload to https://api.itrp.com/attachments for " + uploadKey + " failed: oops!"
	if core.ErrorMessage(err) != want {
		t.Fatalf("expected %q, got %v", want, err)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	transport := devkit.NewFakeTransport(devkit.JSON(200, localGrant))
	uploader, logger := newUploader(t, transport)

	err := uploader.Upload(context.Background(), "/requests", core.Fields{
		"attachments": core.Files(core.FilePath("unknown_file"), writeFixture(t)),
	})
	if err != nil {
		t.Fatalf("expected logged failure, got %v", err)
	}
	if _, ok := logger.Find("error", "Attachment upload failed: file does not exist: unknown_file"); !ok {
		t.Fatalf("expected missing file to be logged, got %+v", logger.Entries())
	}

	raising, _ := newUploader(t, devkit.NewFakeTransport(devkit.JSON(200, localGrant)))
	err = raising.Upload(context.Background(), "/requests", core.Fields{
		"attachments":           core.Files(core.FilePath("unknown_file")),
		"attachments_exception": core.Bool(true),
	})
	if core.ErrorMessage(err) != "Attachment upload failed: file does not exist: unknown_file" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestUpload_SeveralFilesKeepOrder(t *testing.T) {
	transport := devkit.NewFakeTransport(
		devkit.JSON(200, localGrant),
		devkit.JSON(200, `{}`),
		devkit.JSON(200, `{}`),
	)
	uploader, _ := newUploader(t, transport)
	fields := core.Fields{
		"subject":     core.String("Printer down"),
		"attachments": core.Files(writeNamedFixture(t, "first.txt", "one"), writeNamedFixture(t, "second.txt", "second")),
	}

	if err := uploader.Upload(context.Background(), "/requests", fields); err != nil {
		t.Fatalf("upload: %v", err)
	}
	prefix := "attachments/5/reqs/000/070/451/zxxb4ot60xfd6sjg/"
	want := `[{"key":"` + prefix + `first.txt","filesize":3},{"key":"` + prefix + `second.txt","filesize":6}]`
	if got := core.Cast(fields[attachments.FieldNoteAttachments], false); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if _, ok := fields[attachments.FieldAttachments]; ok {
		t.Fatalf("expected attachments field to be removed")
	}
	if core.Cast(fields["subject"], false) != "Printer down" {
		t.Fatalf("expected other fields untouched")
	}

	calls := transport.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected grant and two uploads, got %d calls", len(calls))
	}
	for i, name := range []string{"first.txt", "second.txt"} {
		upload := calls[i+1]
		if upload.Parts[1].FileName != name || upload.Parts[2].Value != prefix+"${filename}" {
			t.Fatalf("upload %d: unexpected parts %+v", i, upload.Parts)
		}
	}
}

func TestUpload_MissingFileSkipsOnlyThatFile(t *testing.T) {
	transport := devkit.NewFakeTransport(devkit.JSON(200, localGrant), devkit.JSON(200, `{}`))
	uploader, _ := newUploader(t, transport)
	fields := core.Fields{
		"attachments": core.Files(core.FilePath("unknown_file"), writeFixture(t)),
	}

	if err := uploader.Upload(context.Background(), "/requests", fields); err != nil {
		t.Fatalf("expected logged failure, got %v", err)
	}
	want := `[{"key":"` + uploadKey + `","filesize":7}]`
	if got := core.Cast(fields[attachments.FieldNoteAttachments], false); got != want {
		t.Fatalf("expected only the readable file, got %s", got)
	}
	if transport.CallCount() != 2 {
		t.Fatalf("expected grant and one upload, got %d calls", transport.CallCount())
	}
}

func TestUpload_FileHandleStaysOpen(t *testing.T) {
	path := writeFixture(t)
	file, err := os.Open(string(path))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer file.Close()
	if _, err := file.Seek(3, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}

	transport := devkit.NewFakeTransport(devkit.JSON(200, localGrant), devkit.JSON(200, `{}`))
	uploader, _ := newUploader(t, transport)
	fields := core.Fields{"attachments": core.Files(core.FileHandle{File: file})}

	if err := uploader.Upload(context.Background(), "/requests", fields); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got := string(transport.Calls()[1].Parts[1].Content); got != "tent" {
		t.Fatalf("expected content from the current offset, got %q", got)
	}
	want := `[{"key":"` + uploadKey + `","filesize":7}]`
	if got := core.Cast(fields[attachments.FieldNoteAttachments], false); got != want {
		t.Fatalf("expected full file size, got %s", got)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("expected handle to stay open, got %v", err)
	}
	if offset != 3 {
		t.Fatalf("expected offset to stay at 3, got %d", offset)
	}
}
