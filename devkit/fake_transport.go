package devkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/goliatone/go-itrp/core"
)

// Script is one scripted transport outcome. A non-nil Err means no response.
type Script struct {
	Result core.RawResult
	Err    error
}

// JSON scripts a response with a JSON body.
func JSON(status int, body string) Script {
	return Script{Result: core.RawResult{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}}
}

// Unreachable scripts a connection failure.
func Unreachable(message string) Script {
	return Script{Err: fmt.Errorf("%s", message)}
}

// Call is what the fake observed for one Do invocation.
type Call struct {
	Endpoint core.Endpoint
	Method   string
	Path     string
	Headers  map[string]string
	Body     []byte
	Parts    []RecordedPart
}

type RecordedPart struct {
	Name     string
	Value    string
	FileName string
	Content  []byte
}

// FakeTransport replays scripts in order and repeats the last one once they
// run out.
type FakeTransport struct {
	mu      sync.Mutex
	scripts []Script
	calls   []Call
}

func NewFakeTransport(scripts ...Script) *FakeTransport {
	return &FakeTransport{scripts: append([]Script(nil), scripts...)}
}

func (f *FakeTransport) Push(scripts ...Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, scripts...)
}

func (f *FakeTransport) Do(_ context.Context, endpoint core.Endpoint, req core.RequestSpec) (core.RawResult, error) {
	if f == nil {
		return core.RawResult{}, fmt.Errorf("devkit: fake transport is nil")
	}
	call, err := recordCall(endpoint, req)
	if err != nil {
		return core.RawResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	index := len(f.calls) - 1
	switch {
	case index < len(f.scripts):
		return cloneResult(f.scripts[index].Result), f.scripts[index].Err
	case len(f.scripts) > 0:
		last := f.scripts[len(f.scripts)-1]
		return cloneResult(last.Result), last.Err
	default:
		return core.RawResult{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte("{}")}, nil
	}
}

func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeTransport) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func recordCall(endpoint core.Endpoint, req core.RequestSpec) (Call, error) {
	call := Call{
		Endpoint: endpoint,
		Method:   req.Method,
		Path:     req.Path,
		Headers:  map[string]string{},
		Body:     append([]byte(nil), req.Body...),
	}
	for key, value := range req.Headers {
		call.Headers[key] = value
	}
	for _, part := range req.Parts {
		recorded := RecordedPart{Name: part.Name, Value: part.Value, FileName: part.FileName}
		if part.File != nil && part.File.Reader != nil {
			content, err := io.ReadAll(part.File.Reader)
			if err != nil {
				return Call{}, err
			}
			recorded.Content = content
		}
		call.Parts = append(call.Parts, recorded)
	}
	return call, nil
}

func cloneResult(in core.RawResult) core.RawResult {
	out := in
	out.Header = in.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	if in.Body != nil {
		out.Body = append([]byte(nil), in.Body...)
	}
	return out
}

var _ core.Transport = (*FakeTransport)(nil)
