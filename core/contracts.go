package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Transport performs exactly one network call. It never retries and returns
// an error only when no response was received.
type Transport interface {
	Do(ctx context.Context, endpoint Endpoint, req RequestSpec) (RawResult, error)
}

// Sender turns a prepared request into a Response. Senders never fail: a
// request that could not be completed yields an invalid Response.
type Sender interface {
	Send(ctx context.Context, req RequestSpec) *Response
}

type SenderFunc func(ctx context.Context, req RequestSpec) *Response

func (f SenderFunc) Send(ctx context.Context, req RequestSpec) *Response {
	return f(ctx, req)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Clock func() time.Time

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Requester is the request surface shared by the client and the workflows
// built on top of it.
type Requester interface {
	Builder() *Builder
	Send(ctx context.Context, req RequestSpec) *Response
	Get(ctx context.Context, path string, params Params, headers map[string]string) *Response
}
