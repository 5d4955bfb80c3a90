package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope of fetch spans.
const TracerName = "github.com/statbridge/statbridge/internal/fetcher"

// OutcomeOK labels a successful fetch. Failures are labelled with their ErrorKind.
const OutcomeOK = "ok"

const (
	// Placeholder is replaced by the escaped identifier in the path template.
	Placeholder = "{id}"

	DefaultTimeout     = 10 * time.Second
	DefaultMaxBodySize = 8 << 20
)

var errNilFailure = errors.New("failure without error")

// Transport is the shared HTTP client the fetcher sends requests through.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
	BaseURL() *url.URL
}

// Recorder receives one observation per fetch.
type Recorder interface {
	ObserveFetch(outcome string, elapsed time.Duration)
}

type Config struct {
	PathTemplate string
	Timeout      time.Duration
	MaxBodySize  int64
}

type Fetcher struct {
	logger       *zap.Logger
	transport    Transport
	recorder     Recorder
	tracer       trace.Tracer
	pathTemplate string
	timeout      time.Duration
	maxBodySize  int64
}

type Option func(*Fetcher)

func WithTracer(tracer trace.Tracer) Option {
	return func(f *Fetcher) {
		f.tracer = tracer
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(f *Fetcher) {
		f.recorder = recorder
	}
}

func New(logger *zap.Logger, transport Transport, cfg Config, opts ...Option) (*Fetcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	if !strings.Contains(cfg.PathTemplate, Placeholder) {
		return nil, fmt.Errorf("path template '%s' must contain %s", cfg.PathTemplate, Placeholder)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Fetcher{
		logger:       logger,
		transport:    transport,
		tracer:       otel.Tracer(TracerName),
		pathTemplate: cfg.PathTemplate,
		timeout:      cfg.Timeout,
		maxBodySize:  cfg.MaxBodySize,
	}

	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = DefaultMaxBodySize
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Fetch retrieves the statistics for identifier. It never panics and every path
// ends in either Ok or Fail.
func (f *Fetcher) Fetch(ctx context.Context, identifier string) (result Result) {
	start := time.Now()
	callID := uuid.NewString()
	logger := f.logger.With(zap.String("identifier", identifier), zap.String("call_id", callID))

	ctx, span := f.tracer.Start(ctx, "fetcher.Fetch", trace.WithAttributes(
		attribute.String("statbridge.identifier", identifier),
		attribute.String("statbridge.call_id", callID),
	))

	defer func() {
		if r := recover(); r != nil {
			result = Fail(&Error{Kind: InternalError, Identifier: identifier, Err: fmt.Errorf("panic: %v", r)})
		}
		f.finish(logger, span, result, time.Since(start))
	}()

	logger.Info("fetching player statistics")

	target, err := f.buildURL(identifier)
	if err != nil {
		return Fail(&Error{Kind: InternalError, Identifier: identifier, Err: err})
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Fail(&Error{Kind: InternalError, Identifier: identifier, Err: fmt.Errorf("failed to create request: %w", err)})
	}

	resp, err := f.transport.Do(req)
	if err != nil {
		return Fail(classifyDoError(identifier, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Fail(&Error{
			Kind:       RemoteError,
			Identifier: identifier,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return Fail(&Error{
			Kind:       TransportError,
			Identifier: identifier,
			Timeout:    isTimeout(err),
			Err:        fmt.Errorf("failed to read response body: %w", err),
		})
	}

	if int64(len(raw)) > f.maxBodySize {
		return Fail(&Error{
			Kind:       MalformedResponse,
			Identifier: identifier,
			Err:        fmt.Errorf("response body exceeds %d bytes", f.maxBodySize),
		})
	}

	payload, err := f.decodeBody(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return Fail(&Error{Kind: MalformedResponse, Identifier: identifier, Err: err})
	}

	return Ok(payload)
}

func (f *Fetcher) finish(logger *zap.Logger, span trace.Span, result Result, elapsed time.Duration) {
	defer span.End()

	outcome := OutcomeOK

	if result.IsOk() {
		logger.Info("successfully fetched player statistics", zap.Duration("elapsed", elapsed))
	} else {
		fetchErr := result.Err()
		outcome = fetchErr.Kind.String()

		fields := []zap.Field{
			zap.String("error_kind", outcome),
			zap.Duration("elapsed", elapsed),
			zap.Error(fetchErr),
		}
		if fetchErr.StatusCode != 0 {
			fields = append(fields, zap.Int("status_code", fetchErr.StatusCode))
		}
		if fetchErr.Timeout {
			fields = append(fields, zap.Bool("timeout", true))
		}
		if fetchErr.Err != nil {
			fields = append(fields, zap.NamedError("cause", fetchErr.Err))
		}

		logger.Error("failed to fetch player statistics", fields...)

		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, fetchErr.Error())
	}

	span.SetAttributes(attribute.String("statbridge.outcome", outcome))

	if f.recorder != nil {
		f.recorder.ObserveFetch(outcome, elapsed)
	}
}

func (f *Fetcher) buildURL(identifier string) (*url.URL, error) {
	path := strings.ReplaceAll(f.pathTemplate, Placeholder, escapeSegment(identifier))

	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to build request URL for path '%s': %w", path, err)
	}

	base := f.transport.BaseURL()
	if base == nil {
		return nil, fmt.Errorf("transport has no base URL")
	}

	return base.ResolveReference(ref), nil
}

// escapeSegment path-escapes identifier and keeps dot segments from being
// resolved away.
func escapeSegment(identifier string) string {
	switch identifier {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	default:
		return url.PathEscape(identifier)
	}
}

// decodeBody applies the body size limit again after decompression.
func (f *Fetcher) decodeBody(contentEncoding string, raw []byte) (any, error) {
	if strings.EqualFold(contentEncoding, "gzip") {
		gzipReader, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() { _ = gzipReader.Close() }()

		raw, err = io.ReadAll(io.LimitReader(gzipReader, f.maxBodySize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress response body: %w", err)
		}
		if int64(len(raw)) > f.maxBodySize {
			return nil, fmt.Errorf("decompressed response body exceeds %d bytes", f.maxBodySize)
		}
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return data, nil
}

// classifyDoError separates network failures, which net/http reports as
// *url.Error, from everything else the transport may return.
func classifyDoError(identifier string, err error) *Error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: TransportError, Identifier: identifier, Timeout: isTimeout(err), Err: err}
	}

	return &Error{Kind: InternalError, Identifier: identifier, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
