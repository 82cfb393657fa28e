package itrp

import (
	"context"
	"time"

	"github.com/goliatone/go-itrp/adapters/gologger"
	"github.com/goliatone/go-itrp/attachments"
	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
	"github.com/goliatone/go-itrp/ratelimit"
	"github.com/goliatone/go-itrp/transport"
)

// Client talks to the ITRP API for one tenant account. Reads return a
// Response that is never nil; writes run the attachment upload first and
// return an error only when that upload fails.
type Client struct {
	api      *core.Client
	uploader *attachments.Uploader
	workflow *jobs.Workflow
	logger   core.Logger
}

// New resolves the configuration and builds the send chain:
// rate-limit block, retry, optional pacing, raw transport.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	cfg, err := core.ResolveConfig(ctx, s.config, s.configProvider, s.resolver)
	if err != nil {
		return nil, err
	}
	clientConfig, err := core.NewClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	provider, logger := gologger.Resolve(gologger.DefaultName, s.loggerProvider, s.logger)
	httpLogger := gologger.Component(provider, logger, "http")

	raw := s.transport
	if raw == nil {
		adapter, err := transport.NewRESTAdapter(clientConfig)
		if err != nil {
			return nil, err
		}
		raw = adapter
	}

	now := s.now
	if now == nil {
		now = time.Now
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = core.Sleep
	}

	var sender core.Sender = core.NewTransportSender(clientConfig, raw, httpLogger)
	sender = ratelimit.WithPacing(sender, ratelimit.NewLimiter(s.requestRate, s.requestBurst))

	retry := core.RetryPolicyFromConfig(clientConfig, httpLogger)
	retry.Sleep = sleep
	retry.MaxDelay = s.maxRetryDelay
	sender = core.WithRetry(sender, retry)

	block := ratelimit.BlockPolicyFromConfig(clientConfig, httpLogger)
	block.Sleep = sleep
	block.Now = now
	sender = ratelimit.WithBlock(sender, block)

	api := core.NewClient(clientConfig, sender, logger)
	jobsLogger := gologger.Component(provider, logger, "jobs")
	poller := jobs.NewPoller(api, jobsLogger,
		jobs.WithPollInterval(s.pollInterval),
		jobs.WithPollSleeper(sleep),
	)

	return &Client{
		api:      api,
		uploader: attachments.NewUploader(api, gologger.Component(provider, logger, "attachments")),
		workflow: jobs.NewWorkflow(api, jobsLogger,
			jobs.WithPoller(poller),
			jobs.WithLedger(s.ledger),
			jobs.WithCheckpoints(s.checkpoints),
			jobs.WithClock(now),
		),
		logger: logger,
	}, nil
}

func (c *Client) Config() core.ClientConfig {
	return c.api.Config()
}

func (c *Client) Logger() core.Logger {
	return c.logger
}

func (c *Client) Builder() *core.Builder {
	return c.api.Builder()
}

func (c *Client) Send(ctx context.Context, req core.RequestSpec) *core.Response {
	return c.api.Send(ctx, req)
}

func (c *Client) Get(ctx context.Context, path string, params core.Params, headers map[string]string) *core.Response {
	return c.api.Get(ctx, path, params, headers)
}

func (c *Client) Delete(ctx context.Context, path string, params core.Params, headers map[string]string) *core.Response {
	return c.api.Delete(ctx, path, params, headers)
}

// Put uploads any attachments in fields, then sends the remaining fields.
// fields is rewritten in place by the upload.
func (c *Client) Put(ctx context.Context, path string, fields core.Fields, headers map[string]string) (*core.Response, error) {
	if err := c.uploader.Upload(ctx, path, fields); err != nil {
		return nil, err
	}
	return c.api.Put(ctx, path, fields, headers), nil
}

// Post uploads any attachments in fields, then sends the remaining fields.
func (c *Client) Post(ctx context.Context, path string, fields core.Fields, headers map[string]string) (*core.Response, error) {
	if err := c.uploader.Upload(ctx, path, fields); err != nil {
		return nil, err
	}
	return c.api.Post(ctx, path, fields, headers), nil
}

func (c *Client) Upload(ctx context.Context, path string, fields core.Fields) error {
	return c.uploader.Upload(ctx, path, fields)
}

func (c *Client) Each(ctx context.Context, path string, params core.Params, visit core.Visitor) (int, error) {
	return c.api.Each(ctx, path, params, visit)
}

func (c *Client) Import(ctx context.Context, req jobs.ImportRequest) (jobs.Handle, error) {
	return c.workflow.Import(ctx, req)
}

func (c *Client) Export(ctx context.Context, req jobs.ExportRequest) (jobs.Handle, error) {
	return c.workflow.Export(ctx, req)
}

// ExportSince needs a checkpoint store; without one it exports everything.
func (c *Client) ExportSince(ctx context.Context, types []string) (jobs.Handle, error) {
	return c.workflow.ExportSince(ctx, types)
}

// Await polls an existing job until it is no longer queued or processing.
func (c *Client) Await(ctx context.Context, kind jobs.Kind, token string) (jobs.Handle, error) {
	return c.workflow.Poller().Await(ctx, kind, token)
}
