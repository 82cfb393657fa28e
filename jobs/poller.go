package jobs

import (
	"context"
	"time"

	"github.com/goliatone/go-itrp/core"
	glog "github.com/goliatone/go-logger/glog"
)

const DefaultPollInterval = 30 * time.Second

// Poller follows a job until it leaves the queued and processing states.
// There is no attempt limit; each poll is bounded by the send chain only.
type Poller struct {
	requester core.Requester
	interval  time.Duration
	sleep     core.Sleeper
	ledger    Ledger
	logger    core.Logger
}

type PollerOption func(*Poller)

func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func WithPollSleeper(sleep core.Sleeper) PollerOption {
	return func(p *Poller) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

func WithPollLedger(ledger Ledger) PollerOption {
	return func(p *Poller) {
		p.ledger = ledger
	}
}

func NewPoller(requester core.Requester, logger core.Logger, opts ...PollerOption) *Poller {
	poller := &Poller{
		requester: requester,
		interval:  DefaultPollInterval,
		sleep:     core.Sleep,
		logger:    glog.Ensure(logger),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(poller)
		}
	}
	return poller
}

// Await polls GET /{kind}/{token}. An invalid poll fails at once with a
// monitor error; a cancelled context returns the last handle with the
// context error.
func (p *Poller) Await(ctx context.Context, kind Kind, token string) (Handle, error) {
	return p.await(ctx, kind, "", token)
}

func (p *Poller) await(ctx context.Context, kind Kind, recordType string, token string) (Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path := "/" + string(kind) + "/" + token
	previous := ""
	for {
		response := p.requester.Get(ctx, path, nil, nil)
		if !response.Valid() {
			return Handle{Kind: kind, Token: token, RecordType: recordType, Response: response}, monitorError(kind, recordType, token, response)
		}
		handle := handleFrom(kind, recordType, response)
		handle.Token = token
		if handle.State != previous {
			core.LogWithLevel(ctx, p.logger, "info", "job state changed", map[string]any{
				"kind":  string(kind),
				"type":  recordType,
				"token": token,
				"state": handle.State,
			})
			recordState(ctx, p.ledger, p.logger, handle)
			previous = handle.State
		}
		if !handle.Busy() {
			return handle, nil
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return handle, err
		}
	}
}
