package core

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// TransportSender is the raw send: one transport call per Send, with
// transport errors folded into a synthetic failure Response.
type TransportSender struct {
	config    ClientConfig
	transport Transport
	logger    Logger
}

func NewTransportSender(config ClientConfig, transport Transport, logger Logger) *TransportSender {
	return &TransportSender{
		config:    config,
		transport: transport,
		logger:    glog.Ensure(logger),
	}
}

func (s *TransportSender) Send(ctx context.Context, req RequestSpec) *Response {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := s.config.Endpoint()
	if req.Endpoint != nil {
		endpoint = *req.Endpoint
	}
	requestID := uuid.NewString()
	LogWithLevel(ctx, s.logger, "debug", "sending request", map[string]any{
		"request_id": requestID,
		"method":     req.Method,
		"host":       endpoint.Host,
		"port":       endpoint.Port,
		"path":       req.Path,
	})

	response := s.do(ctx, endpoint, req)
	if response.Valid() {
		LogWithLevel(ctx, s.logger, "debug", "response received", map[string]any{
			"request_id": requestID,
			"status":     response.StatusCode(),
			"size":       response.Size(),
			"path":       req.Path,
		})
	} else {
		LogWithLevel(ctx, s.logger, "error", "request failed", map[string]any{
			"request_id": requestID,
			"status":     response.StatusCode(),
			"message":    response.Message(),
			"path":       req.Path,
		})
	}
	return response
}

func (s *TransportSender) do(ctx context.Context, endpoint Endpoint, req RequestSpec) *Response {
	failure := func(cause string) *Response {
		return FailureResponse(req, fmt.Sprintf("No Response from Server - %s for '%s%s'", cause, endpoint.Address(), req.Path))
	}
	if s.transport == nil {
		return failure("transport is not configured")
	}
	for _, part := range req.Parts {
		if err := part.File.Rewind(); err != nil {
			return failure(err.Error())
		}
	}
	raw, err := s.transport.Do(ctx, endpoint, req)
	if err != nil {
		return failure(ErrorMessage(err))
	}
	return NewResponse(req, raw)
}
