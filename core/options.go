package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

const EnvPrefix = "ITRP_"

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// ResolveConfig layers defaults, loaded configuration, and runtime
// overrides, in increasing precedence, into one validated Config.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type StaticConfigLoader struct {
	Values map[string]any
}

func (l StaticConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// EnvConfigLoader reads ITRP_* variables, e.g. ITRP_API_TOKEN and
// ITRP_PROXY_HOST.
type EnvConfigLoader struct {
	Prefix string
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader() EnvConfigLoader {
	return EnvConfigLoader{Prefix: EnvPrefix, Lookup: os.LookupEnv}
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := l.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		value, ok := lookup(prefix + name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(value), true
	}

	raw := map[string]any{}
	for _, key := range []string{"host", "api_version", "api_token", "account", "source", "ca_file"} {
		if value, ok := get(strings.ToUpper(key)); ok {
			raw[key] = value
		}
	}
	for _, key := range []string{"max_retry_time", "read_timeout"} {
		if value, ok := get(strings.ToUpper(key)); ok {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return nil, configError(fmt.Sprintf("%s%s must be a number of seconds", prefix, strings.ToUpper(key)), key)
			}
			raw[key] = parsed
		}
	}
	if value, ok := get("BLOCK_AT_RATE_LIMIT"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, configError(prefix+"BLOCK_AT_RATE_LIMIT must be a boolean", "block_at_rate_limit")
		}
		raw["block_at_rate_limit"] = parsed
	}

	proxy := map[string]any{}
	for _, key := range []string{"host", "user", "password"} {
		if value, ok := get("PROXY_" + strings.ToUpper(key)); ok {
			proxy[key] = value
		}
	}
	if value, ok := get("PROXY_PORT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, configError(prefix+"PROXY_PORT must be a number", "proxy.port")
		}
		proxy["port"] = parsed
	}
	if len(proxy) > 0 {
		raw["proxy"] = proxy
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load does not validate: required values may still arrive as runtime
// overrides.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	return cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// configToLayerMap keeps only set values unless includeZero is true, so an
// empty runtime Config overrides nothing.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setInt := func(target map[string]any, key string, value int) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}

	setString("host", cfg.Host)
	setString("api_version", cfg.APIVersion)
	setString("api_token", cfg.APIToken)
	setString("account", cfg.Account)
	setString("source", cfg.Source)
	setString("ca_file", cfg.CAFile)
	setInt(layer, "max_retry_time", cfg.MaxRetryTime)
	setInt(layer, "read_timeout", cfg.ReadTimeout)
	if includeZero || cfg.BlockAtRateLimit {
		layer["block_at_rate_limit"] = cfg.BlockAtRateLimit
	}

	proxy := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Proxy.Host) != "" {
		proxy["host"] = cfg.Proxy.Host
	}
	setInt(proxy, "port", cfg.Proxy.Port)
	if includeZero || cfg.Proxy.User != "" {
		proxy["user"] = cfg.Proxy.User
	}
	if includeZero || cfg.Proxy.Password != "" {
		proxy["password"] = cfg.Proxy.Password
	}
	if len(proxy) > 0 {
		layer["proxy"] = proxy
	}
	return layer
}
