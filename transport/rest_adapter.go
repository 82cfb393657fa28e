package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-itrp/core"
	"golang.org/x/net/http2"
)

const KindREST = "rest"

const defaultResponseBodyLimit int64 = 64 << 20

// RESTAdapter performs one HTTP exchange per Do. Redirects are not
// followed: a 303 from object storage is returned as the response.
//
// ReadTimeout bounds each wait for response data, not the exchange: a body
// that keeps streaming is read to the end however long it takes.
type RESTAdapter struct {
	client               *resty.Client
	MaxResponseBodyBytes int64
	ReadTimeout          time.Duration
}

// NewRESTAdapter builds the HTTP client from the proxy, CA bundle, and read
// timeout settings of config.
func NewRESTAdapter(config core.ClientConfig) (*RESTAdapter, error) {
	httpTransport, err := newHTTPTransport(config)
	if err != nil {
		return nil, err
	}
	adapter := NewRESTAdapterWithClient(&http.Client{Transport: httpTransport})
	adapter.ReadTimeout = config.ReadTimeout()
	return adapter, nil
}

// NewRESTAdapterWithClient wraps a caller-supplied client, e.g. an
// httptest server client.
func NewRESTAdapterWithClient(httpClient *http.Client) *RESTAdapter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &RESTAdapter{
		client:               resty.NewWithClient(httpClient),
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, endpoint core.Endpoint, req core.RequestSpec) (core.RawResult, error) {
	if a == nil || a.client == nil {
		return core.RawResult{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := endpoint.URL(req.Path)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	request := a.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		request.SetHeader(strings.TrimSpace(key), value)
	}
	if req.Multipart() {
		request.SetMultipartFields(multipartFields(req.Parts)...)
	} else if len(req.Body) > 0 {
		request.SetBody(req.Body)
	}

	response, err := request.Execute(method, target)
	if err != nil {
		return core.RawResult{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "method": method, "host": endpoint.Host},
		)
	}
	rawBody := response.RawBody()
	if rawBody == nil {
		return a.result(response, nil), nil
	}
	defer rawBody.Close()

	limit := a.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	reader := io.Reader(rawBody)
	var idle *idleReader
	if a.ReadTimeout > 0 {
		idle = newIdleReader(rawBody, a.ReadTimeout, cancel)
		defer idle.stop()
		reader = idle
	}
	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		message := "transport: read response body"
		if idle != nil && idle.expired.Load() {
			message = fmt.Sprintf("transport: no response data for %s", a.ReadTimeout)
		}
		return core.RawResult{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			message,
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": response.StatusCode()},
		)
	}
	if int64(len(body)) > limit {
		return a.result(response, oversizedBody(limit)), nil
	}
	return a.result(response, body), nil
}

// oversizedBody replaces a body over the limit with a message, so the
// response is an invalid answer rather than a missing one.
func oversizedBody(limit int64) []byte {
	body, _ := json.Marshal(map[string]string{
		"message": fmt.Sprintf("Response body exceeds limit of %d bytes", limit),
	})
	return body
}

// idleReader cancels the exchange when a single Read waits longer than
// timeout.
type idleReader struct {
	reader  io.Reader
	timeout time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newIdleReader(reader io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	r := &idleReader{reader: reader, timeout: timeout}
	r.timer = time.AfterFunc(timeout, func() {
		r.expired.Store(true)
		cancel()
	})
	return r
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if !r.expired.Load() {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) stop() {
	r.timer.Stop()
}

func (a *RESTAdapter) result(response *resty.Response, body []byte) core.RawResult {
	return core.RawResult{
		StatusCode: response.StatusCode(),
		Status:     statusReason(response.StatusCode(), response.Status()),
		Header:     response.Header().Clone(),
		Body:       body,
	}
}

// multipartFields keeps the part order of the request; resty writes
// MultipartFields after plain form data, so values go through here too.
func multipartFields(parts []core.MultipartPart) []*resty.MultipartField {
	fields := make([]*resty.MultipartField, 0, len(parts))
	for _, part := range parts {
		field := &resty.MultipartField{
			Param:       part.Name,
			FileName:    part.FileName,
			ContentType: part.ContentType,
		}
		if part.File != nil && part.File.Reader != nil {
			field.Reader = part.File.Reader
		} else {
			field.Reader = strings.NewReader(part.Value)
		}
		fields = append(fields, field)
	}
	return fields
}

// statusReason drops the numeric prefix of "200 OK".
func statusReason(code int, status string) string {
	reason := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(status), strconv.Itoa(code)))
	if reason == "" {
		reason = http.StatusText(code)
	}
	return reason
}

func newHTTPTransport(config core.ClientConfig) (*http.Transport, error) {
	httpTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: config.ReadTimeout(),
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if proxy := config.Proxy(); strings.TrimSpace(proxy.Host) != "" {
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(proxy.Host, strconv.Itoa(proxy.Port)),
		}
		if proxy.User != "" {
			proxyURL.User = url.UserPassword(proxy.User, proxy.Password)
		}
		httpTransport.Proxy = http.ProxyURL(proxyURL)
	}

	if caFile := config.CAFile(); caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, transportWrapError(err, goerrors.CategoryBadInput, "transport: read ca file", http.StatusBadRequest,
				map[string]any{"ca_file": caFile})
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, transportError("transport: ca file holds no certificates", goerrors.CategoryBadInput, http.StatusBadRequest,
				map[string]any{"ca_file": caFile})
		}
		httpTransport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	if config.Endpoint().SSL() {
		if err := http2.ConfigureTransport(httpTransport); err != nil {
			return nil, transportWrapError(err, goerrors.CategoryInternal, "transport: configure http2", http.StatusInternalServerError, nil)
		}
	}
	return httpTransport, nil
}

var _ core.Transport = (*RESTAdapter)(nil)
