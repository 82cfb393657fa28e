package core

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost           = "https://api.itrp.com"
	DefaultAPIVersion     = "v1"
	DefaultMaxRetryTime   = 5400
	DefaultReadTimeout    = 25
	DefaultProxyPort      = 8080
	MaxPageSize           = 100
	NeverRetry            = -1
	defaultHTTPSPort      = 443
	defaultHTTPPort       = 80
	configRequiredMessage = "Missing required configuration option %s"
)

type ProxyConfig struct {
	Host     string `koanf:"host" mapstructure:"host"`
	Port     int    `koanf:"port" mapstructure:"port"`
	User     string `koanf:"user" mapstructure:"user"`
	Password string `koanf:"password" mapstructure:"password"`
}

// Config is the loadable form of the client settings. Durations are whole
// seconds; MaxRetryTime of -1 disables retries.
type Config struct {
	Host             string      `koanf:"host" mapstructure:"host"`
	APIVersion       string      `koanf:"api_version" mapstructure:"api_version"`
	APIToken         string      `koanf:"api_token" mapstructure:"api_token"`
	Account          string      `koanf:"account" mapstructure:"account"`
	Source           string      `koanf:"source" mapstructure:"source"`
	MaxRetryTime     int         `koanf:"max_retry_time" mapstructure:"max_retry_time"`
	ReadTimeout      int         `koanf:"read_timeout" mapstructure:"read_timeout"`
	BlockAtRateLimit bool        `koanf:"block_at_rate_limit" mapstructure:"block_at_rate_limit"`
	Proxy            ProxyConfig `koanf:"proxy" mapstructure:"proxy"`
	CAFile           string      `koanf:"ca_file" mapstructure:"ca_file"`
}

func DefaultConfig() Config {
	return Config{
		Host:         DefaultHost,
		APIVersion:   DefaultAPIVersion,
		MaxRetryTime: DefaultMaxRetryTime,
		ReadTimeout:  DefaultReadTimeout,
		Proxy: ProxyConfig{
			Port: DefaultProxyPort,
		},
	}
}

func (c Config) Validate() error {
	for _, required := range []struct {
		name  string
		value string
	}{
		{name: "host", value: c.Host},
		{name: "api_version", value: c.APIVersion},
		{name: "api_token", value: c.APIToken},
	} {
		if strings.TrimSpace(required.value) == "" {
			return configError(fmt.Sprintf(configRequiredMessage, required.name), required.name)
		}
	}
	if _, err := ParseEndpoint(c.Host); err != nil {
		return err
	}
	if c.MaxRetryTime < NeverRetry {
		return configError("max_retry_time must be -1 or a positive number of seconds", "max_retry_time")
	}
	if c.ReadTimeout < 0 {
		return configError("read_timeout must not be negative", "read_timeout")
	}
	return nil
}

// Endpoint is a scheme/host/port triple split out of a configured base URL.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// ParseEndpoint splits a base URL. A missing port defaults to 443 for https
// and 80 for http.
func ParseEndpoint(raw string) (Endpoint, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return Endpoint{}, configError(fmt.Sprintf("invalid host %q", trimmed), "host")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "https" && scheme != "http" {
		return Endpoint{}, configError(fmt.Sprintf("unsupported scheme %q in host %q", parsed.Scheme, trimmed), "host")
	}
	endpoint := Endpoint{Scheme: scheme, Host: parsed.Hostname()}
	if port := parsed.Port(); port != "" {
		value, convErr := strconv.Atoi(port)
		if convErr != nil || value <= 0 {
			return Endpoint{}, configError(fmt.Sprintf("invalid port in host %q", trimmed), "host")
		}
		endpoint.Port = value
	} else if scheme == "https" {
		endpoint.Port = defaultHTTPSPort
	} else {
		endpoint.Port = defaultHTTPPort
	}
	return endpoint, nil
}

func (e Endpoint) SSL() bool {
	return e.Scheme == "https"
}

// Address renders host:port as used in log lines and failure messages.
func (e Endpoint) Address() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// URL joins the endpoint with a path that may carry a query string.
func (e Endpoint) URL(path string) string {
	host := e.Host
	if (e.SSL() && e.Port != defaultHTTPSPort) || (!e.SSL() && e.Port != defaultHTTPPort) {
		host = net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return e.Scheme + "://" + host + path
}

// ClientConfig is the immutable snapshot a client is built with.
type ClientConfig struct {
	endpoint         Endpoint
	apiVersion       string
	apiToken         string
	account          string
	source           string
	maxRetryTime     time.Duration
	retriesDisabled  bool
	readTimeout      time.Duration
	blockAtRateLimit bool
	proxy            ProxyConfig
	caFile           string
}

func NewClientConfig(cfg Config) (ClientConfig, error) {
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	endpoint, err := ParseEndpoint(cfg.Host)
	if err != nil {
		return ClientConfig{}, err
	}
	out := ClientConfig{
		endpoint:         endpoint,
		apiVersion:       strings.TrimSpace(cfg.APIVersion),
		apiToken:         strings.TrimSpace(cfg.APIToken),
		account:          strings.TrimSpace(cfg.Account),
		source:           strings.TrimSpace(cfg.Source),
		readTimeout:      time.Duration(cfg.ReadTimeout) * time.Second,
		blockAtRateLimit: cfg.BlockAtRateLimit,
		proxy:            cfg.Proxy,
		caFile:           strings.TrimSpace(cfg.CAFile),
	}
	if cfg.MaxRetryTime <= 0 {
		out.retriesDisabled = true
	} else {
		out.maxRetryTime = time.Duration(cfg.MaxRetryTime) * time.Second
	}
	out.proxy.Host = strings.TrimSpace(out.proxy.Host)
	if out.proxy.Host != "" && out.proxy.Port <= 0 {
		out.proxy.Port = DefaultProxyPort
	}
	return out, nil
}

func (c ClientConfig) Endpoint() Endpoint          { return c.endpoint }
func (c ClientConfig) APIVersion() string          { return c.apiVersion }
func (c ClientConfig) APIToken() string            { return c.apiToken }
func (c ClientConfig) Account() string             { return c.account }
func (c ClientConfig) Source() string              { return c.source }
func (c ClientConfig) ReadTimeout() time.Duration  { return c.readTimeout }
func (c ClientConfig) BlockAtRateLimit() bool      { return c.blockAtRateLimit }
func (c ClientConfig) Proxy() ProxyConfig          { return c.proxy }
func (c ClientConfig) CAFile() string              { return c.caFile }
func (c ClientConfig) MaxRetryTime() time.Duration { return c.maxRetryTime }
func (c ClientConfig) RetriesDisabled() bool       { return c.retriesDisabled }

// WithAccount returns a copy of the snapshot bound to another tenant account.
func (c ClientConfig) WithAccount(account string) ClientConfig {
	c.account = strings.TrimSpace(account)
	return c
}
