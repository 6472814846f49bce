// Package http provides a remote byte source for archives served over HTTP.
//
// A Source can be loaded with ustar.LoadSource or added to a Writer with
// ustar.FromByteSource. Whole-content reads use a single GET; random
// access uses range requests.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/meigma/ustar/internal/layout"
)

// ErrContentChanged is returned when the remote content no longer matches
// the size observed when the Source was created.
var ErrContentChanged = errors.New("http: remote content changed")

// errRangeUnsupported is returned when the server ignores Range headers.
var errRangeUnsupported = errors.New("range requests not supported")

// Source reads remote content over HTTP.
// It satisfies ustar.ByteSource and ustar.Source.
type Source struct {
	url                   string
	client                *nethttp.Client
	headers               nethttp.Header
	size                  int64
	etag                  string
	lastModified          string
	sourceID              string
	useConditionalHeaders bool
	logger                *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identifier derived from the URL and validators.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithConditionalHeaders sends If-Match or If-Unmodified-Since with content
// requests so a changed remote fails instead of returning mixed data.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.useConditionalHeaders = true
	}
}

// WithLogger sets the logger for requests.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a Source for url. It probes the remote with a HEAD and
// a one-byte range request to learn the content size and validators.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	size, etag, lastModified, err := s.fetchMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("http source %s: %w", url, err)
	}
	s.size = size
	s.etag = etag
	s.lastModified = lastModified
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	s.log().Debug("http source ready", "url", url, "size", size, "source_id", s.sourceID)
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Source) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the remote content.
func (s *Source) SourceID() string {
	return s.sourceID
}

// Resolve fetches the whole content with a single GET.
// It fails with ErrContentChanged if the length differs from Size.
func (s *Source) Resolve(ctx context.Context) ([]byte, error) {
	resp, err := s.get(ctx, "")
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusOK:
		// ok
	case nethttp.StatusPreconditionFailed:
		return nil, fmt.Errorf("get %s: %w", s.url, ErrContentChanged)
	default:
		return nil, fmt.Errorf("get %s: %s", s.url, resp.Status)
	}

	data, err := layout.ReadAllWithLimit(resp.Body, s.size, ErrContentChanged)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	if int64(len(data)) != s.size {
		return nil, fmt.Errorf("get %s: %w: read %d of %d bytes", s.url, ErrContentChanged, len(data), s.size)
	}
	s.log().Debug("http source resolved", "url", s.url, "size", len(data))
	return data, nil
}

// ReadAt reads len(p) bytes at off with a range request. It implements
// [io.ReaderAt]. If fewer bytes are available than requested, it returns
// the number of bytes read along with io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	expected := len(p)
	if end >= s.size {
		end = s.size - 1
		expected = int(end - off + 1)
	}

	resp, err := s.get(context.Background(), fmt.Sprintf("bytes=%d-%d", off, end))
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		// ok
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case nethttp.StatusPreconditionFailed:
		return 0, ErrContentChanged
	case nethttp.StatusOK:
		return 0, errRangeUnsupported
	default:
		return 0, fmt.Errorf("range request failed: %s", resp.Status)
	}

	n, err := io.ReadFull(resp.Body, p[:expected])
	if err != nil {
		return n, err
	}
	if expected < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// defaultSourceID builds a source identifier from the URL and available metadata.
func (s *Source) defaultSourceID() string {
	if s.etag != "" {
		return fmt.Sprintf("url:%s|etag:%s", s.url, s.etag)
	}
	if s.lastModified != "" {
		return fmt.Sprintf("url:%s|mod:%s|size:%d", s.url, s.lastModified, s.size)
	}
	return fmt.Sprintf("url:%s|size:%d", s.url, s.size)
}

// fetchMetadata retrieves content size and cache validators from the remote server.
// It first attempts a HEAD request, then verifies with a range probe.
func (s *Source) fetchMetadata(ctx context.Context) (size int64, etag, lastModified string, err error) {
	size = -1

	if resp, headErr := s.do(ctx, nethttp.MethodHead, "", false); headErr == nil {
		if resp.StatusCode == nethttp.StatusOK {
			size = resp.ContentLength
			etag = resp.Header.Get("ETag")
			lastModified = resp.Header.Get("Last-Modified")
		}
		resp.Body.Close()
	}

	rangeSize, rangeETag, rangeLastModified, err := s.rangeProbe(ctx, size)
	if err != nil {
		return 0, "", "", err
	}
	if size > 0 && size != rangeSize {
		return 0, "", "", fmt.Errorf("content size mismatch: head=%d range=%d", size, rangeSize)
	}
	if etag == "" {
		etag = rangeETag
	}
	if lastModified == "" {
		lastModified = rangeLastModified
	}
	return rangeSize, etag, lastModified, nil
}

// rangeProbe verifies range request support and extracts content size from Content-Range.
// headSize is the length reported by HEAD, or -1.
func (s *Source) rangeProbe(ctx context.Context, headSize int64) (size int64, etag, lastModified string, err error) {
	resp, err := s.do(ctx, nethttp.MethodGet, "bytes=0-0", false)
	if err != nil {
		return 0, "", "", err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		// ok
	case nethttp.StatusRequestedRangeNotSatisfiable:
		// An empty resource cannot satisfy bytes=0-0.
		if crange := resp.Header.Get("Content-Range"); crange != "" {
			size, err = parseContentRange(crange)
			return size, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), err
		}
		return 0, "", "", fmt.Errorf("range probe failed: %s", resp.Status)
	case nethttp.StatusOK:
		// Servers may ignore Range for an empty resource.
		if resp.ContentLength == 0 || (headSize == 0 && resp.ContentLength < 0) {
			return 0, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
		}
		return 0, "", "", errRangeUnsupported
	default:
		return 0, "", "", fmt.Errorf("range probe failed: %s", resp.Status)
	}

	crange := resp.Header.Get("Content-Range")
	if crange == "" {
		return 0, "", "", errors.New("range probe missing Content-Range")
	}
	size, err = parseContentRange(crange)
	if err != nil {
		return 0, "", "", err
	}
	return size, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

// get performs a content GET, adding validators when conditional headers
// are enabled.
func (s *Source) get(ctx context.Context, byteRange string) (*nethttp.Response, error) {
	return s.do(ctx, nethttp.MethodGet, byteRange, s.hasConditionalHeaders())
}

// do sends a request with the configured headers. byteRange, when set, is
// sent as the Range header.
func (s *Source) do(ctx context.Context, method, byteRange string, withConditions bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	if withConditions {
		if s.etag != "" && req.Header.Get("If-Match") == "" {
			req.Header.Set("If-Match", s.etag)
		}
		if s.lastModified != "" && req.Header.Get("If-Unmodified-Since") == "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return s.client.Do(req)
}

// hasConditionalHeaders reports whether conditional headers are enabled and available.
func (s *Source) hasConditionalHeaders() bool {
	if !s.useConditionalHeaders {
		return false
	}
	return s.etag != "" || s.lastModified != ""
}

// drain discards the rest of the body and closes it for connection reuse.
func drain(resp *nethttp.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
	_ = resp.Body.Close()
}

// parseContentRange extracts the total size from a Content-Range header value.
// It accepts "bytes start-end/size" and "bytes */size".
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 || parts[1] == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
