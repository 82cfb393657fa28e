package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/devkit"
)

func pagedScript(body string, next string) devkit.Script {
	script := devkit.JSON(200, body)
	if next != "" {
		script.Result.Header.Set(core.HeaderLink, `<https://api.itrp.com`+next+`>; rel="next"`)
	}
	return script
}

func newTestClient(t *testing.T, transport core.Transport) *core.Client {
	t.Helper()
	config := newClientConfig(t, func(cfg *core.Config) { cfg.MaxRetryTime = core.NeverRetry })
	return core.NewClient(config, core.NewTransportSender(config, transport, nil), nil)
}

func TestClientEach_FollowsNextLinks(t *testing.T) {
	transport := devkit.NewFakeTransport(
		pagedScript(`[{"id":1},{"id":2}]`, "/v1/people?page=2&per_page=100"),
		pagedScript(`[{"id":3}]`, ""),
	)
	client := newTestClient(t, transport)

	var ids []string
	count, err := client.Each(context.Background(), "people", nil, func(record core.Record) error {
		ids = append(ids, record["id"].(interface{ String() string }).String())
		return nil
	})
	if err != nil {
		t.Fatalf("each: %v", err)
	}
	if count != 3 || len(ids) != 3 || ids[0] != "1" || ids[2] != "3" {
		t.Fatalf("expected ids 1..3, got count=%d ids=%v", count, ids)
	}
	calls := transport.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected two page requests, got %d", len(calls))
	}
	if calls[0].Path != "/v1/people?per_page=100&page=1" {
		t.Fatalf("unexpected first page path %q", calls[0].Path)
	}
	if calls[1].Path != "/v1/people?page=2&per_page=100" {
		t.Fatalf("unexpected second page path %q", calls[1].Path)
	}
}

func TestClientEach_CallerParamsOverrideSeeds(t *testing.T) {
	transport := devkit.NewFakeTransport(pagedScript(`[]`, ""))
	client := newTestClient(t, transport)

	_, err := client.Each(context.Background(), "requests", core.Params{
		{Key: "per_page", Value: core.Int(10)},
		{Key: "status", Value: core.String("assigned")},
	}, nil)
	if err != nil {
		t.Fatalf("each: %v", err)
	}
	if got := transport.Calls()[0].Path; got != "/v1/requests?per_page=10&page=1&status=assigned" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestClientEach_InvalidPageIsClientError(t *testing.T) {
	transport := devkit.NewFakeTransport(
		pagedScript(`[{"id":1}]`, "/v1/people?page=2&per_page=100"),
		devkit.JSON(401, `{"message":"Unauthorized"}`),
	)
	client := newTestClient(t, transport)

	count, err := client.Each(context.Background(), "people", nil, nil)
	if err == nil || !core.IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
	if core.ErrorMessage(err) != "Unauthorized" {
		t.Fatalf("expected server message, got %q", core.ErrorMessage(err))
	}
	if count != 1 {
		t.Fatalf("expected records before the failure to count, got %d", count)
	}
}

func TestClientEach_VisitorErrorStops(t *testing.T) {
	transport := devkit.NewFakeTransport(
		pagedScript(`[{"id":1},{"id":2}]`, "/v1/people?page=2&per_page=100"),
	)
	client := newTestClient(t, transport)
	stop := errors.New("stop")

	count, err := client.Each(context.Background(), "people", nil, func(core.Record) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected visitor error, got %v", err)
	}
	if count != 0 || transport.CallCount() != 1 {
		t.Fatalf("expected enumeration to stop at once, count=%d calls=%d", count, transport.CallCount())
	}
}

func TestClient_PostSendsJSONWithAuth(t *testing.T) {
	transport := devkit.NewFakeTransport(devkit.JSON(201, `{"id":9}`))
	client := newTestClient(t, transport)

	response := client.Post(context.Background(), "notes", core.Fields{"text": core.String("hi")}, nil)
	if !response.Valid() || response.GetString("id") != "9" {
		t.Fatalf("unexpected response %s", response)
	}
	call := transport.Calls()[0]
	if call.Method != "POST" || call.Path != "/v1/notes" {
		t.Fatalf("unexpected call %s %s", call.Method, call.Path)
	}
	if call.Headers[core.HeaderAuth] != "Basic c2VjcmV0Og==" {
		t.Fatalf("expected basic auth header, got %q", call.Headers[core.HeaderAuth])
	}
	if string(call.Body) != `{"text":"hi"}` {
		t.Fatalf("unexpected body %s", call.Body)
	}
}
