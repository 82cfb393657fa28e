package ratelimit

import (
	"context"
	"time"

	"github.com/goliatone/go-itrp/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultWait    = 300 * time.Second
	DefaultCeiling = 3660 * time.Second
)

// BlockPolicy waits out throttled responses. Ceiling bounds the total time
// spent, measured from the first attempt.
type BlockPolicy struct {
	Enabled bool
	Wait    time.Duration
	Ceiling time.Duration
	Sleep   core.Sleeper
	Now     core.Clock
	Logger  core.Logger
}

func BlockPolicyFromConfig(config core.ClientConfig, logger core.Logger) BlockPolicy {
	return BlockPolicy{
		Enabled: config.BlockAtRateLimit(),
		Logger:  logger,
	}
}

func (p BlockPolicy) normalize() BlockPolicy {
	if p.Wait <= 0 {
		p.Wait = DefaultWait
	}
	if p.Ceiling <= 0 {
		p.Ceiling = DefaultCeiling
	}
	if p.Sleep == nil {
		p.Sleep = core.Sleep
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	p.Logger = glog.Ensure(p.Logger)
	return p
}

// WithBlock is a pass-through unless the policy is enabled.
func WithBlock(next core.Sender, policy BlockPolicy) core.Sender {
	if !policy.Enabled {
		return next
	}
	policy = policy.normalize()
	return core.SenderFunc(func(ctx context.Context, req core.RequestSpec) *core.Response {
		if ctx == nil {
			ctx = context.Background()
		}
		started := policy.Now()
		for attempt := 1; ; attempt++ {
			response := next.Send(ctx, req)
			if !response.Throttled() {
				return response
			}
			if policy.Now().Sub(started)+policy.Wait >= policy.Ceiling {
				return response
			}
			core.LogWithLevel(ctx, policy.Logger, "warn", "request throttled, waiting", map[string]any{
				"attempt": attempt,
				"wait":    policy.Wait.String(),
				"path":    req.Path,
			})
			if err := policy.Sleep(ctx, policy.Wait); err != nil {
				return response
			}
		}
	})
}
