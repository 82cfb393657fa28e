package itrp

import (
	"time"

	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
)

type Option func(*settings)

type settings struct {
	config         core.Config
	configProvider core.ConfigProvider
	resolver       core.OptionsResolver
	logger         core.Logger
	loggerProvider core.LoggerProvider
	transport      core.Transport
	sleep          core.Sleeper
	now            core.Clock
	ledger         jobs.Ledger
	checkpoints    jobs.CheckpointStore
	requestRate    float64
	requestBurst   int
	pollInterval   time.Duration
	maxRetryDelay  time.Duration
}

// WithConfig sets runtime overrides. Only non-zero values take effect;
// they win over loaded configuration and defaults.
func WithConfig(cfg core.Config) Option {
	return func(s *settings) {
		s.config = cfg
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(s *settings) {
		s.configProvider = provider
	}
}

// WithEnv loads ITRP_* environment variables below the runtime overrides.
func WithEnv() Option {
	return WithConfigProvider(core.NewCfgxConfigProvider(core.NewEnvConfigLoader()))
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(s *settings) {
		s.resolver = resolver
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(s *settings) {
		s.loggerProvider = provider
	}
}

// WithTransport replaces the resty transport, e.g. with devkit.FakeTransport.
func WithTransport(transport core.Transport) Option {
	return func(s *settings) {
		s.transport = transport
	}
}

// WithSleeper replaces the sleeper used by retries, rate-limit blocking and
// job polling.
func WithSleeper(sleep core.Sleeper) Option {
	return func(s *settings) {
		s.sleep = sleep
	}
}

func WithClock(now core.Clock) Option {
	return func(s *settings) {
		s.now = now
	}
}

func WithJobLedger(ledger jobs.Ledger) Option {
	return func(s *settings) {
		s.ledger = ledger
	}
}

func WithCheckpointStore(store jobs.CheckpointStore) Option {
	return func(s *settings) {
		s.checkpoints = store
	}
}

// WithRequestRate paces raw sends to perSecond requests with the given
// burst. Zero disables pacing.
func WithRequestRate(perSecond float64, burst int) Option {
	return func(s *settings) {
		s.requestRate = perSecond
		s.requestBurst = burst
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) {
		s.pollInterval = interval
	}
}

// WithMaxRetryDelay caps a single retry delay. Zero leaves the doubling
// uncapped.
func WithMaxRetryDelay(delay time.Duration) Option {
	return func(s *settings) {
		s.maxRetryDelay = delay
	}
}
