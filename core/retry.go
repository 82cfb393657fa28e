package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const DefaultRetryDelay = 2 * time.Second

// RetryPolicy retries requests that got no answer at all. Delays start at
// InitialDelay and double; MaxDelay caps a single delay when set. Retrying
// stops once the slept total would reach MaxRetryTime.
type RetryPolicy struct {
	MaxRetryTime time.Duration
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Sleep        Sleeper
	Logger       Logger
}

func RetryPolicyFromConfig(config ClientConfig, logger Logger) RetryPolicy {
	policy := RetryPolicy{
		InitialDelay: DefaultRetryDelay,
		Logger:       logger,
	}
	if !config.RetriesDisabled() {
		policy.MaxRetryTime = config.MaxRetryTime()
	}
	return policy
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultRetryDelay
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}
	p.Logger = glog.Ensure(p.Logger)
	return p
}

// WithRetry always sends once; further attempts happen only for empty
// responses within the budget. The last response is returned.
func WithRetry(next Sender, policy RetryPolicy) Sender {
	policy = policy.normalize()
	return SenderFunc(func(ctx context.Context, req RequestSpec) *Response {
		if ctx == nil {
			ctx = context.Background()
		}
		delay := policy.InitialDelay
		var slept time.Duration
		for attempt := 1; ; attempt++ {
			response := next.Send(ctx, req)
			if !response.Empty() || policy.MaxRetryTime <= 0 {
				return response
			}
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
			if slept+delay >= policy.MaxRetryTime {
				return response
			}
			LogWithLevel(ctx, policy.Logger, "warn", "request failed, retrying", map[string]any{
				"attempt": attempt,
				"delay":   delay.String(),
				"message": response.Message(),
				"path":    req.Path,
			})
			if err := policy.Sleep(ctx, delay); err != nil {
				return response
			}
			slept += delay
			delay *= 2
		}
	})
}
