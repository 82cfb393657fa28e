package gojob

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
)

const (
	JobIDImport = "itrp.import"
	JobIDExport = "itrp.export"
)

const (
	paramFile  = "file"
	paramType  = "type"
	paramTypes = "types"
	paramSince = "since"
	paramBlock = "block"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ImportMessage maps an import request to a go-job message. Only path based
// file sources can cross a queue.
func ImportMessage(req jobs.ImportRequest, idempotencyKey string) (*job.ExecutionMessage, error) {
	path, ok := req.File.(core.FilePath)
	if !ok || strings.TrimSpace(string(path)) == "" {
		return nil, core.NewBadInput("gojob: import file must be a file path", paramFile)
	}
	if strings.TrimSpace(req.RecordType) == "" {
		return nil, core.NewBadInput("gojob: import record type is required", paramType)
	}
	return &job.ExecutionMessage{
		JobID:      JobIDImport,
		ScriptPath: JobIDImport,
		Parameters: map[string]any{
			paramFile:  string(path),
			paramType:  strings.TrimSpace(req.RecordType),
			paramBlock: req.Block,
		},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}, nil
}

func ExportMessage(req jobs.ExportRequest, idempotencyKey string) (*job.ExecutionMessage, error) {
	if req.TypeList() == "" {
		return nil, core.NewBadInput("gojob: export types are required", paramTypes)
	}
	params := map[string]any{
		paramTypes: req.TypeList(),
		paramBlock: req.Block,
	}
	if !req.Since.IsZero() {
		params[paramSince] = req.Since.UTC().Format(time.RFC3339)
	}
	return &job.ExecutionMessage{
		JobID:          JobIDExport,
		ScriptPath:     JobIDExport,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}, nil
}

func ParseImport(msg *job.ExecutionMessage) (jobs.ImportRequest, error) {
	if msg == nil || msg.JobID != JobIDImport {
		return jobs.ImportRequest{}, core.NewBadInput("gojob: not an import message", "job_id")
	}
	path := stringParam(msg.Parameters, paramFile)
	if path == "" {
		return jobs.ImportRequest{}, core.NewBadInput("gojob: import file is required", paramFile)
	}
	recordType := stringParam(msg.Parameters, paramType)
	if recordType == "" {
		return jobs.ImportRequest{}, core.NewBadInput("gojob: import record type is required", paramType)
	}
	return jobs.ImportRequest{
		File:       core.FilePath(path),
		RecordType: recordType,
		Block:      boolParam(msg.Parameters, paramBlock),
	}, nil
}

func ParseExport(msg *job.ExecutionMessage) (jobs.ExportRequest, error) {
	if msg == nil || msg.JobID != JobIDExport {
		return jobs.ExportRequest{}, core.NewBadInput("gojob: not an export message", "job_id")
	}
	types := listParam(msg.Parameters, paramTypes)
	if len(types) == 0 {
		return jobs.ExportRequest{}, core.NewBadInput("gojob: export types are required", paramTypes)
	}
	req := jobs.ExportRequest{
		Types: types,
		Block: boolParam(msg.Parameters, paramBlock),
	}
	if raw := stringParam(msg.Parameters, paramSince); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return jobs.ExportRequest{}, core.NewBadInput(fmt.Sprintf("gojob: invalid since %q", raw), paramSince)
		}
		req.Since = since
	}
	return req, nil
}

func stringParam(params map[string]any, key string) string {
	switch typed := params[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

// boolParam accepts booleans and their string forms.
func boolParam(params map[string]any, key string) bool {
	switch typed := params[key].(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	default:
		return false
	}
}

func listParam(params map[string]any, key string) []string {
	var raw []string
	switch typed := params[key].(type) {
	case string:
		raw = strings.Split(typed, ",")
	case []string:
		raw = typed
	case []any:
		for _, item := range typed {
			if value, ok := item.(string); ok {
				raw = append(raw, value)
			}
		}
	}
	out := make([]string, 0, len(raw))
	for _, value := range raw {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
