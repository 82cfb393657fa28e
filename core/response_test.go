package core

import (
	"net/http"
	"strings"
	"testing"
)

func rawJSON(status int, body string) RawResult {
	return RawResult{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

func TestResponse_ValidObject(t *testing.T) {
	response := NewResponse(RequestSpec{Path: "/v1/people/1"}, rawJSON(200, `{"id":1,"name":"Ellen","organization":{"name":"Widget"}}`))
	if !response.Valid() {
		t.Fatalf("expected valid response, message=%q", response.Message())
	}
	if response.Message() != "" || response.HasMessage() {
		t.Fatalf("expected no message on valid response")
	}
	if response.Size() != 1 || response.Count() != 1 {
		t.Fatalf("expected size 1, got %d", response.Size())
	}
	if got := response.GetString("organization", "name"); got != "Widget" {
		t.Fatalf("expected nested lookup, got %q", got)
	}
	if got := response.Get("organization", "missing", "deeper"); got != nil {
		t.Fatalf("expected nil for missing keys, got %#v", got)
	}
	if got := response.GetString("id"); got != "1" {
		t.Fatalf("expected numeric id as text, got %q", got)
	}
}

func TestResponse_ListLookupNeverCollapses(t *testing.T) {
	response := NewResponse(RequestSpec{}, rawJSON(200, `[{"id":1,"name":"a"},{"id":2},{"id":3,"name":"c"}]`))
	if response.Size() != 3 {
		t.Fatalf("expected size 3, got %d", response.Size())
	}
	names, ok := response.Get("name").([]any)
	if !ok || len(names) != 3 {
		t.Fatalf("expected list lookup, got %#v", response.Get("name"))
	}
	if names[0] != "a" || names[1] != nil || names[2] != "c" {
		t.Fatalf("unexpected list lookup values %#v", names)
	}
	single := NewResponse(RequestSpec{}, rawJSON(200, `[{"id":1}]`))
	if _, ok := single.Get("id").([]any); !ok {
		t.Fatalf("expected single element list to stay a list")
	}
	records, err := response.Records()
	if err != nil || len(records) != 3 {
		t.Fatalf("expected three records, got %d (%v)", len(records), err)
	}
}

func TestResponse_MessageRules(t *testing.T) {
	cases := []struct {
		name    string
		raw     RawResult
		message string
	}{
		{
			name:    "vendor message on error",
			raw:     rawJSON(404, `{"message":"Not found"}`),
			message: "Not found",
		},
		{
			name:    "message on success status",
			raw:     rawJSON(200, `{"message":"Too Many Requests"}`),
			message: "Too Many Requests",
		},
		{
			name:    "error without json message",
			raw:     RawResult{StatusCode: 422, Status: "Unprocessable Entity", Body: []byte(`{"errors":[]}`)},
			message: "422: Unprocessable Entity",
		},
		{
			name:    "error with plain body",
			raw:     RawResult{StatusCode: 500, Body: []byte("Internal failure")},
			message: "Internal failure",
		},
		{
			name:    "error without body",
			raw:     RawResult{StatusCode: 404},
			message: "404: Not Found",
		},
		{
			name:    "connection failure",
			raw:     RawResult{StatusCode: 500, Failure: "No Response from Server - refused"},
			message: "No Response from Server - refused",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			response := NewResponse(RequestSpec{}, tc.raw)
			if response.Valid() {
				t.Fatalf("expected invalid response")
			}
			if response.Message() != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, response.Message())
			}
			if response.Size() != 0 {
				t.Fatalf("expected size 0 for invalid response")
			}
		})
	}
}

func TestResponse_InvalidJSONOnSuccess(t *testing.T) {
	response := NewResponse(RequestSpec{}, RawResult{StatusCode: 200, Body: []byte("<html>oops</html>")})
	if response.Valid() {
		t.Fatalf("expected invalid response for non-json success body")
	}
	if !strings.HasPrefix(response.Message(), "Invalid JSON - ") || !strings.HasSuffix(response.Message(), "for:\n<html>oops</html>") {
		t.Fatalf("unexpected message %q", response.Message())
	}
	object := response.JSON().(map[string]any)
	if object["message"] != response.Message() {
		t.Fatalf("expected json to carry the synthesized message")
	}
}

func TestResponse_ThrottledAndEmpty(t *testing.T) {
	throttled := NewResponse(RequestSpec{}, rawJSON(429, `{"message":"slow down"}`))
	if !throttled.Throttled() {
		t.Fatalf("expected 429 to be throttled regardless of message")
	}
	if throttled.Empty() {
		t.Fatalf("expected 429 with a body not to be empty")
	}

	byMessage := NewResponse(RequestSpec{}, rawJSON(500, `{"message":"Too Many Requests"}`))
	if !byMessage.Throttled() {
		t.Fatalf("expected message pattern to mark throttling")
	}

	notThrottled := NewResponse(RequestSpec{}, rawJSON(500, `{"message":"boom"}`))
	if notThrottled.Throttled() {
		t.Fatalf("expected plain server error not to be throttled")
	}

	bare429 := NewResponse(RequestSpec{}, RawResult{StatusCode: 429})
	if bare429.Empty() || !bare429.Throttled() {
		t.Fatalf("expected bodiless 429 to be throttled but not empty")
	}

	bare503 := NewResponse(RequestSpec{}, RawResult{StatusCode: 503})
	if bare503.Empty() {
		t.Fatalf("expected bodiless 503 to count as an answer")
	}

	failure := FailureResponse(RequestSpec{}, "No Response from Server - timeout")
	if !failure.Empty() || failure.StatusCode() != 500 || failure.Valid() {
		t.Fatalf("expected synthetic failure to be an empty invalid 500")
	}

	noContent := NewResponse(RequestSpec{}, RawResult{StatusCode: 204})
	if noContent.Empty() {
		t.Fatalf("expected 204 to count as an answer")
	}
}

func TestResponse_Pagination(t *testing.T) {
	raw := rawJSON(200, `[]`)
	raw.Header.Set(HeaderPerPage, "25")
	raw.Header.Set(HeaderCurrentPage, "2")
	raw.Header.Set(HeaderTotalPage, "4")
	raw.Header.Set(HeaderTotalEntries, "88")
	raw.Header.Set(HeaderLink, `<https://api.itrp.com/v1/requests?page=1&per_page=25>; rel="first", <https://api.itrp.com/v1/requests?page=1&per_page=25>; rel="prev", <https://api.itrp.com/v1/requests?page=3&per_page=25>; rel="next", <https://api.itrp.com/v1/requests?page=4&per_page=25>; rel="last"`)
	response := NewResponse(RequestSpec{}, raw)

	if response.PerPage() != 25 || response.CurrentPage() != 2 || response.TotalPages() != 4 || response.TotalEntries() != 88 {
		t.Fatalf("unexpected pagination headers %d %d %d %d",
			response.PerPage(), response.CurrentPage(), response.TotalPages(), response.TotalEntries())
	}
	if got := response.PaginationLink("next"); got != "https://api.itrp.com/v1/requests?page=3&per_page=25" {
		t.Fatalf("unexpected next link %q", got)
	}
	if got := response.PaginationRelativeLink("last"); got != "/v1/requests?page=4&per_page=25" {
		t.Fatalf("unexpected relative last link %q", got)
	}
	if got := response.PaginationLink("missing"); got != "" {
		t.Fatalf("expected no link for unknown relation, got %q", got)
	}

	plural := rawJSON(200, `[]`)
	plural.Header.Set(HeaderTotalPages, "7")
	plural.Header.Set(HeaderTotalPage, "3")
	if got := NewResponse(RequestSpec{}, plural).TotalPages(); got != 7 {
		t.Fatalf("expected plural header to take precedence, got %d", got)
	}
}

func TestResponse_String(t *testing.T) {
	valid := NewResponse(RequestSpec{}, rawJSON(200, `{"id":1}`))
	if valid.String() != `{"id":1}` {
		t.Fatalf("unexpected valid string %q", valid.String())
	}
	invalid := NewResponse(RequestSpec{}, rawJSON(404, `{"message":"Not found"}`))
	if invalid.String() != "404: Not found" {
		t.Fatalf("unexpected invalid string %q", invalid.String())
	}
}
