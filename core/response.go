package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

const (
	HeaderPerPage      = "X-Pagination-Per-Page"
	HeaderCurrentPage  = "X-Pagination-Current-Page"
	HeaderTotalPages   = "X-Pagination-Total-Pages"
	HeaderTotalPage    = "X-Pagination-Total-Page"
	HeaderTotalEntries = "X-Pagination-Total-Entries"
	HeaderLink         = "Link"

	messageKey = "message"
)

var (
	linkSplitPattern     = regexp.MustCompile(`,\s*<?`)
	linkEntryPattern     = regexp.MustCompile(`^\s*<?(.*?)>?;\s*rel="([^"]*)"\s*$`)
	relativeLinkPattern  = regexp.MustCompile(`^https?://[^/]*(.*)`)
	tooManyRequestsMatch = regexp.MustCompile(`Too Many Requests`)
)

// RawResult is the outcome of one transport attempt. Failure is set when
// the server could not be reached at all.
type RawResult struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Failure    string
}

// Record is one JSON object of a list payload.
type Record = map[string]any

// Response is a read-only view over one RawResult. Everything is derived at
// construction so a Response is safe to share.
type Response struct {
	request    RequestSpec
	raw        RawResult
	payload    any
	message    string
	hasMessage bool
	valid      bool
	links      map[string]string
}

func NewResponse(request RequestSpec, raw RawResult) *Response {
	if raw.Header == nil {
		raw.Header = http.Header{}
	}
	if strings.TrimSpace(raw.Status) == "" {
		raw.Status = http.StatusText(raw.StatusCode)
	}
	r := &Response{request: request, raw: raw}
	r.evaluate()
	r.links = parseLinks(raw.Header.Get(HeaderLink))
	return r
}

// FailureResponse is the synthetic result for a request that never got an
// answer: status 500, no body, and the failure as message.
func FailureResponse(request RequestSpec, failure string) *Response {
	return NewResponse(request, RawResult{
		StatusCode: http.StatusInternalServerError,
		Failure:    failure,
	})
}

func (r *Response) evaluate() {
	success := r.raw.StatusCode >= 200 && r.raw.StatusCode < 300
	statusLine := fmt.Sprintf("%d: %s", r.raw.StatusCode, r.raw.Status)

	if r.Empty() {
		message := r.raw.Failure
		if message == "" {
			message = statusLine
		}
		r.setMessage(message, true)
		return
	}

	parsed, err := decodeJSON(r.raw.Body)
	if err != nil {
		switch {
		case success:
			r.setMessage(fmt.Sprintf("Invalid JSON - %s for:\n%s", err.Error(), string(r.raw.Body)), true)
		case len(r.raw.Body) > 0:
			r.setMessage(string(r.raw.Body), true)
		default:
			r.setMessage(statusLine, true)
		}
		return
	}

	r.payload = parsed
	if object, ok := parsed.(map[string]any); ok {
		if value, found := object[messageKey]; found {
			r.setMessage(messageText(value), false)
			return
		}
	}
	if !success {
		r.setMessage(statusLine, false)
		return
	}
	r.valid = true
}

func (r *Response) setMessage(message string, synthesize bool) {
	r.message = message
	r.hasMessage = true
	if synthesize {
		r.payload = map[string]any{messageKey: message}
	}
}

func decodeJSON(body []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return out, nil
}

func messageText(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

// Valid is true when the status is 2xx, the body is JSON, and that JSON has
// no top-level message.
func (r *Response) Valid() bool {
	return r.valid
}

// JSON is the parsed payload: an object, a list, or a synthesized
// {"message": ...} object when the body could not be used.
func (r *Response) JSON() any {
	return r.payload
}

// Message is empty for valid responses.
func (r *Response) Message() string {
	if r.valid {
		return ""
	}
	return r.message
}

func (r *Response) HasMessage() bool {
	return !r.valid && r.hasMessage
}

func (r *Response) Size() int {
	if !r.valid {
		return 0
	}
	if list, ok := r.payload.([]any); ok {
		return len(list)
	}
	return 1
}

func (r *Response) Count() int {
	return r.Size()
}

// Get walks nested keys. A list payload yields a list with the walk applied
// to every element; missing keys yield nil.
func (r *Response) Get(keys ...string) any {
	list, isList := r.payload.([]any)
	values := list
	if !isList {
		values = []any{r.payload}
	}
	walked := make([]any, len(values))
	copy(walked, values)
	for _, key := range keys {
		for i, value := range walked {
			object, ok := value.(map[string]any)
			if !ok {
				walked[i] = nil
				continue
			}
			walked[i] = object[key]
		}
	}
	if isList {
		return walked
	}
	return walked[0]
}

// GetString is Get for single-object payloads holding a string-like value.
func (r *Response) GetString(keys ...string) string {
	value := r.Get(keys...)
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []any:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

// Records returns a list payload as JSON objects.
func (r *Response) Records() ([]Record, error) {
	list, ok := r.payload.([]any)
	if !ok {
		if object, isObject := r.payload.(map[string]any); isObject && r.valid {
			return []Record{object}, nil
		}
		return nil, NewClientError("response payload is not a list", map[string]any{"path": r.request.Path})
	}
	out := make([]Record, 0, len(list))
	for i, item := range list {
		object, isObject := item.(map[string]any)
		if !isObject {
			return nil, NewClientError(fmt.Sprintf("element %d of %s is not an object", i, r.request.Path), map[string]any{"path": r.request.Path})
		}
		out = append(out, object)
	}
	return out, nil
}

// Throttled is true on 429 or when the message reports too many requests.
func (r *Response) Throttled() bool {
	if r.raw.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return r.HasMessage() && tooManyRequestsMatch.MatchString(r.message)
}

// Empty is true when no body arrived because the transport failed.
func (r *Response) Empty() bool {
	return r.raw.Failure != ""
}

func (r *Response) PerPage() int {
	return headerInt(r.raw.Header, HeaderPerPage)
}

func (r *Response) CurrentPage() int {
	return headerInt(r.raw.Header, HeaderCurrentPage)
}

func (r *Response) TotalPages() int {
	if r.raw.Header.Get(HeaderTotalPages) != "" {
		return headerInt(r.raw.Header, HeaderTotalPages)
	}
	return headerInt(r.raw.Header, HeaderTotalPage)
}

func (r *Response) TotalEntries() int {
	return headerInt(r.raw.Header, HeaderTotalEntries)
}

// PaginationLink returns the full URL for a relation such as "next".
func (r *Response) PaginationLink(rel string) string {
	return r.links[rel]
}

// PaginationRelativeLink strips scheme and host from PaginationLink.
func (r *Response) PaginationRelativeLink(rel string) string {
	link := r.PaginationLink(rel)
	if link == "" {
		return ""
	}
	match := relativeLinkPattern.FindStringSubmatch(link)
	if match == nil {
		return ""
	}
	return match[1]
}

func (r *Response) StatusCode() int {
	return r.raw.StatusCode
}

func (r *Response) Status() string {
	return r.raw.Status
}

func (r *Response) Header(name string) string {
	return r.raw.Header.Get(name)
}

func (r *Response) Body() []byte {
	return r.raw.Body
}

func (r *Response) Request() RequestSpec {
	return r.request
}

func (r *Response) String() string {
	if r.valid {
		encoded, err := json.Marshal(r.payload)
		if err == nil {
			return string(encoded)
		}
	}
	return fmt.Sprintf("%d: %s", r.raw.StatusCode, r.Message())
}

func headerInt(header http.Header, name string) int {
	value, err := strconv.Atoi(strings.TrimSpace(header.Get(name)))
	if err != nil {
		return 0
	}
	return value
}

func parseLinks(header string) map[string]string {
	links := map[string]string{}
	if strings.TrimSpace(header) == "" {
		return links
	}
	for _, entry := range linkSplitPattern.Split(header, -1) {
		match := linkEntryPattern.FindStringSubmatch(entry)
		if match == nil {
			continue
		}
		if _, seen := links[match[2]]; !seen {
			links[match[2]] = match[1]
		}
	}
	return links
}
