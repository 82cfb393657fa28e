package core

import (
	"context"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
)

// Client issues requests for one tenant account through a composed Sender.
type Client struct {
	config  ClientConfig
	builder *Builder
	sender  Sender
	logger  Logger
}

func NewClient(config ClientConfig, sender Sender, logger Logger) *Client {
	return &Client{
		config:  config,
		builder: NewBuilder(config),
		sender:  sender,
		logger:  glog.Ensure(logger),
	}
}

func (c *Client) Config() ClientConfig {
	return c.config
}

func (c *Client) Builder() *Builder {
	return c.builder
}

func (c *Client) Logger() Logger {
	return c.logger
}

// Send never returns nil.
func (c *Client) Send(ctx context.Context, req RequestSpec) *Response {
	if c.sender == nil {
		return FailureResponse(req, "No Response from Server - sender is not configured for '"+c.config.Endpoint().Address()+req.Path+"'")
	}
	return c.sender.Send(ctx, req)
}

func (c *Client) Get(ctx context.Context, path string, params Params, headers map[string]string) *Response {
	return c.Send(ctx, c.builder.Get(path, params, headers))
}

func (c *Client) Delete(ctx context.Context, path string, params Params, headers map[string]string) *Response {
	return c.Send(ctx, c.builder.Delete(path, params, headers))
}

func (c *Client) Put(ctx context.Context, path string, fields Fields, headers map[string]string) *Response {
	return c.Send(ctx, c.builder.JSON(http.MethodPut, path, fields, headers))
}

func (c *Client) Post(ctx context.Context, path string, fields Fields, headers map[string]string) *Response {
	return c.Send(ctx, c.builder.JSON(http.MethodPost, path, fields, headers))
}

// Visitor receives records in server order. Returning an error stops the
// enumeration.
type Visitor func(record Record) error

// Each walks every page of a list endpoint, starting at page 1 with the
// maximum page size, and returns the number of records visited. Caller
// params override the seeded paging params.
func (c *Client) Each(ctx context.Context, path string, params Params, visit Visitor) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	seeded := Params{
		{Key: "per_page", Value: Int(MaxPageSize)},
		{Key: "page", Value: Int(1)},
	}
	for _, param := range params {
		seeded = seeded.Set(param.Key, param.Value)
	}

	count := 0
	next := c.builder.Path(path, seeded)
	for next != "" {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		response := c.Get(ctx, next, nil, nil)
		if !response.Valid() {
			return count, NewClientError(response.Message(), map[string]any{
				"path":   next,
				"status": response.StatusCode(),
			})
		}
		records, err := response.Records()
		if err != nil {
			return count, err
		}
		for _, record := range records {
			if visit != nil {
				if err := visit(record); err != nil {
					return count, err
				}
			}
			count++
		}
		next = response.PaginationRelativeLink("next")
	}
	return count, nil
}
