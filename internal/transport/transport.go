package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	Kind           = "http"
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrClosed is returned by Do once the transport has been closed.
	ErrClosed = errors.New("transport is closed")

	UserAgent = "statbridge/dev"

	defaultHeaders = map[string]string{
		"Accept":          "application/json",
		"Accept-Encoding": "gzip",
	}
)

type Config struct {
	BaseURL  string
	Headers  map[string]string
	Timeout  time.Duration
	Insecure bool
}

// Transport is the process-wide HTTP client shared by every fetch. It is safe
// for concurrent use and must be closed exactly once at shutdown.
type Transport struct {
	logger     *zap.Logger
	baseURL    *url.URL
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
}

type Option func(*Transport)

// WithHTTPClient replaces the pooled client, typically with an httptest client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(t *Transport) {
		t.httpClient = httpClient
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(cfg Config, opts ...Option) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base_url '%s': %w", cfg.BaseURL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("base_url must use http or https scheme, got: %s", parsedURL.Scheme)
	}

	headers := lo.Assign(defaultHeaders, map[string]string{"User-Agent": UserAgent}, cfg.Headers)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	t := &Transport{
		logger:  zap.NewNop(),
		baseURL: parsedURL,
		headers: headers,
		timeout: timeout,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.httpClient == nil {
		pooled := cleanhttp.DefaultPooledTransport()
		if cfg.Insecure {
			if pooled.TLSClientConfig == nil {
				pooled.TLSClientConfig = &tls.Config{}
			}

			pooled.TLSClientConfig.InsecureSkipVerify = true
		}

		t.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(pooled),
			Timeout:   timeout,
		}
	}

	return t, nil
}

func (t *Transport) Name() string {
	return fmt.Sprintf("%s(%s)", Kind, t.baseURL.Host)
}

// Do sends req with the default headers filled in where req has none.
// Callers must not start requests concurrently with Close.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	return t.httpClient.Do(req)
}

func (t *Transport) BaseURL() *url.URL {
	return t.baseURL
}

// Timeout reports the configured round-trip bound. A client passed with
// WithHTTPClient keeps its own timeout.
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// Close releases pooled connections. Only the first call has an effect.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.httpClient.CloseIdleConnections()
		t.logger.Debug("transport closed", zap.String("transport", t.Name()))
	})
	return nil
}
