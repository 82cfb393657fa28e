package core

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	HeaderContentType = "Content-Type"
	HeaderAccount     = "X-ITRP-Account"
	HeaderSource      = "X-ITRP-Source"
	HeaderUserAgent   = "User-Agent"
	HeaderAuth        = "Authorization"

	contentTypeJSON = "application/json"
	upperHex        = "0123456789ABCDEF"
)

var versionedPathPattern = regexp.MustCompile(`^/v\d[\d.]*/`)

// RequestSpec is a fully prepared request. Path is version-prefixed and
// carries the encoded query string. Endpoint overrides the configured
// service endpoint for absolute targets such as storage uploads.
type RequestSpec struct {
	Method   string
	Path     string
	Headers  map[string]string
	Body     []byte
	Parts    []MultipartPart
	Endpoint *Endpoint
}

func (r RequestSpec) Multipart() bool {
	return len(r.Parts) > 0
}

// MultipartPart is a form value, or a file when File is set. Parts are sent
// in order.
type MultipartPart struct {
	Name        string
	Value       string
	FileName    string
	ContentType string
	File        *OpenedFile
}

func FormValue(name string, value string) MultipartPart {
	return MultipartPart{Name: name, Value: value}
}

func FormFile(name string, fileName string, contentType string, file *OpenedFile) MultipartPart {
	return MultipartPart{Name: name, FileName: fileName, ContentType: contentType, File: file}
}

type Builder struct {
	config ClientConfig
}

func NewBuilder(config ClientConfig) *Builder {
	return &Builder{config: config}
}

func (b *Builder) Config() ClientConfig {
	return b.config
}

// Path prefixes the API version unless the path is already versioned and
// appends params in order.
func (b *Builder) Path(path string, params Params) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !versionedPathPattern.MatchString(path) {
		path = "/" + b.config.APIVersion() + path
	}
	var out strings.Builder
	out.WriteString(path)
	hasQuery := strings.Contains(path, "?")
	for _, param := range params {
		if hasQuery {
			out.WriteByte('&')
		} else {
			out.WriteByte('?')
			hasQuery = true
		}
		out.WriteString(expandParam(param))
	}
	return out.String()
}

func expandParam(param Param) string {
	key := EscapeKey(param.Key)
	if !strings.Contains(param.Key, "=") {
		key += "="
	}
	return key + Cast(param.Value, true)
}

// Headers merges the default and configured headers with caller overrides.
// Overrides win.
func (b *Builder) Headers(overrides map[string]string) map[string]string {
	headers := map[string]string{
		HeaderContentType: contentTypeJSON,
		HeaderAuth:        basicAuth(b.config.APIToken()),
	}
	if account := b.config.Account(); account != "" {
		headers[HeaderAccount] = account
	}
	if source := b.config.Source(); source != "" {
		headers[HeaderSource] = source
		headers[HeaderUserAgent] = source
	}
	for key, value := range overrides {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		deleteHeader(headers, key)
		headers[key] = value
	}
	return headers
}

func (b *Builder) Get(path string, params Params, headers map[string]string) RequestSpec {
	return RequestSpec{
		Method:  http.MethodGet,
		Path:    b.Path(path, params),
		Headers: b.Headers(headers),
	}
}

func (b *Builder) Delete(path string, params Params, headers map[string]string) RequestSpec {
	return RequestSpec{
		Method:  http.MethodDelete,
		Path:    b.Path(path, params),
		Headers: b.Headers(headers),
	}
}

// JSON encodes fields as an object of strings, each cast without escaping.
func (b *Builder) JSON(method string, path string, fields Fields, headers map[string]string) RequestSpec {
	body := make(map[string]string, len(fields))
	for key, value := range fields {
		body[key] = Cast(value, false)
	}
	encoded, _ := json.Marshal(body)
	return RequestSpec{
		Method:  method,
		Path:    b.Path(path, nil),
		Headers: b.Headers(headers),
		Body:    encoded,
	}
}

// Multipart prepares an authenticated form POST to the service. The
// transport sets the multipart content type.
func (b *Builder) Multipart(path string, parts []MultipartPart, headers map[string]string) RequestSpec {
	merged := b.Headers(headers)
	deleteHeader(merged, HeaderContentType)
	return RequestSpec{
		Method:  http.MethodPost,
		Path:    b.Path(path, nil),
		Headers: merged,
		Parts:   append([]MultipartPart(nil), parts...),
	}
}

// Upload prepares an unauthenticated form POST to an absolute URI such as a
// storage grant target.
func Upload(uri string, parts []MultipartPart) (RequestSpec, error) {
	endpoint, path, err := SplitURI(uri)
	if err != nil {
		return RequestSpec{}, err
	}
	return RequestSpec{
		Method:   http.MethodPost,
		Path:     path,
		Headers:  map[string]string{},
		Parts:    append([]MultipartPart(nil), parts...),
		Endpoint: &endpoint,
	}, nil
}

// SplitURI separates an absolute URI into its endpoint and path plus query.
func SplitURI(uri string) (Endpoint, string, error) {
	endpoint, err := ParseEndpoint(uri)
	if err != nil {
		return Endpoint{}, "", err
	}
	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return Endpoint{}, "", NewBadInput("invalid uri "+uri, "uri")
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return endpoint, path, nil
}

func deleteHeader(headers map[string]string, name string) {
	for existing := range headers {
		if strings.EqualFold(existing, name) {
			delete(headers, existing)
		}
	}
}

func basicAuth(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token+":"))
}

// EscapeKey percent-escapes a query key. Unreserved characters pass
// through except '.', and '=', '<', '>' stay literal so comparison
// operators such as "created_at=>" survive.
func EscapeKey(key string) string {
	return escape(key, func(c byte) bool {
		return c != '.' && (isUnreserved(c) || c == '=' || c == '<' || c == '>')
	})
}

// EscapeValue percent-escapes everything but unreserved characters.
func EscapeValue(value string) string {
	return escape(value, isUnreserved)
}

func escape(value string, keep func(byte) bool) string {
	var out strings.Builder
	out.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if keep(c) {
			out.WriteByte(c)
			continue
		}
		out.WriteByte('%')
		out.WriteByte(upperHex[c>>4])
		out.WriteByte(upperHex[c&0x0f])
	}
	return out.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
