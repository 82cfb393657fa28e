package ratelimit

import (
	"context"
	"fmt"

	"github.com/goliatone/go-itrp/core"
	"golang.org/x/time/rate"
)

// WithPacing spaces out raw sends with a token bucket. A nil limiter
// disables pacing.
func WithPacing(next core.Sender, limiter *rate.Limiter) core.Sender {
	if limiter == nil {
		return next
	}
	return core.SenderFunc(func(ctx context.Context, req core.RequestSpec) *core.Response {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := limiter.Wait(ctx); err != nil {
			return core.FailureResponse(req, fmt.Sprintf("No Response from Server - %s for '%s'", err.Error(), req.Path))
		}
		return next.Send(ctx, req)
	})
}

// NewLimiter allows perSecond requests per second with the given burst.
// A non-positive rate yields nil.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
