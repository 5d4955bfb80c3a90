package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/samber/do/v2"
	v1 "github.com/statbridge/statbridge/apis/v1"
	"github.com/statbridge/statbridge/internal/fetcher"
	"github.com/statbridge/statbridge/internal/metrics"
	"go.uber.org/zap"
)

// ErrNotReady is returned for calls made outside the Ready state.
var ErrNotReady = errors.New("plugin is not ready")

type options struct {
	httpClient *http.Client
	metrics    *metrics.Metrics
}

type Option func(*options)

// WithHTTPClient makes the transport use httpClient instead of a pooled client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

type closer struct {
	name  string
	close func(context.Context) error
}

// Plugin is the host-facing bridge. It owns every process-wide resource and
// exposes GetData only while Ready.
type Plugin struct {
	logger *zap.Logger
	cfg    v1.BridgeConfig
	opts   options

	mu       sync.RWMutex
	state    State
	fetcher  *fetcher.Fetcher
	metrics  *metrics.Metrics
	inflight sync.WaitGroup

	closersMu sync.Mutex
	closers   []closer
}

func New(logger *zap.Logger, cfg v1.BridgeConfig, opts ...Option) *Plugin {
	p := &Plugin{
		logger: logger,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(&p.opts)
	}
	return p
}

func (p *Plugin) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Metrics is nil until Load succeeds.
func (p *Plugin) Metrics() *metrics.Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

// Load acquires the transport and its collaborators and moves to Ready. If any
// of them fails, whatever was already acquired is released and the plugin ends
// up Stopped.
func (p *Plugin) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Uninitialized {
		return fmt.Errorf("cannot load plugin in state %s", p.state)
	}

	p.logger.Info("starting plugin initialization", zap.String("bridge", p.cfg.Metadata.Name))

	injector := p.buildContainer(ctx)

	f, err := do.Invoke[*fetcher.Fetcher](injector)
	if err != nil {
		p.logger.Error("failed to load plugin", zap.Error(err))
		p.state = Stopped
		return errors.Join(fmt.Errorf("failed to load plugin: %w", err), p.release(ctx))
	}

	m, err := do.Invoke[*metrics.Metrics](injector)
	if err != nil {
		p.state = Stopped
		return errors.Join(fmt.Errorf("failed to load plugin: %w", err), p.release(ctx))
	}

	p.fetcher = f
	p.metrics = m
	p.state = Ready

	p.logger.Info("plugin loaded successfully",
		zap.String("base_url", p.cfg.Spec.Remote.BaseURL),
		zap.String("path_template", p.cfg.Spec.Remote.PathTemplate),
	)

	return nil
}

// FrontEndLoaded is called by the host once the front-end has attached.
func (p *Plugin) FrontEndLoaded() {
	if state := p.State(); state != Ready {
		p.logger.Error("frontend loaded before plugin was ready", zap.Stringer("state", state))
		return
	}
	p.logger.Info("frontend loaded successfully")
}

// Fetch runs the fetcher for identifier. It returns ErrNotReady outside Ready.
func (p *Plugin) Fetch(ctx context.Context, identifier string) (fetcher.Result, error) {
	p.mu.RLock()
	if p.state != Ready {
		state := p.state
		p.mu.RUnlock()
		return fetcher.Result{}, fmt.Errorf("%w (state: %s)", ErrNotReady, state)
	}
	f := p.fetcher
	p.inflight.Add(1)
	p.mu.RUnlock()

	defer p.inflight.Done()

	return f.Fetch(ctx, identifier), nil
}

// GetData is the inbound get_data operation. It always returns a well-formed
// envelope.
func (p *Plugin) GetData(ctx context.Context, identifier string) fetcher.Envelope {
	result, err := p.Fetch(ctx, identifier)
	if err != nil {
		p.logger.Error("rejected get_data call", zap.String("identifier", identifier), zap.Error(err))
		return fetcher.Failure(err.Error())
	}
	return result.Envelope()
}

// Unload waits for in-flight calls, then releases every resource exactly once.
// It is safe to call in any state and more than once.
func (p *Plugin) Unload(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case ShuttingDown, Stopped:
		p.mu.Unlock()
		return nil
	case Uninitialized:
		p.state = Stopped
		p.mu.Unlock()
		p.logger.Info("plugin unloaded before initialization")
		return nil
	}
	p.state = ShuttingDown
	p.mu.Unlock()

	p.logger.Info("plugin unloading...")

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("unloading with calls still in flight", zap.Error(ctx.Err()))
	}

	err := p.release(ctx)

	p.mu.Lock()
	p.state = Stopped
	p.fetcher = nil
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("error during plugin unload", zap.Error(err))
		return fmt.Errorf("failed to unload plugin: %w", err)
	}

	p.logger.Info("plugin unloaded successfully")
	return nil
}

func (p *Plugin) track(name string, fn func(context.Context) error) {
	p.closersMu.Lock()
	defer p.closersMu.Unlock()
	p.closers = append(p.closers, closer{name: name, close: fn})
}

// release runs the tracked closers in reverse acquisition order and forgets them.
func (p *Plugin) release(ctx context.Context) error {
	p.closersMu.Lock()
	closers := p.closers
	p.closers = nil
	p.closersMu.Unlock()

	var errs error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.close(ctx); err != nil {
			p.logger.Error("failed to release resource", zap.String("resource", c.name), zap.Error(err))
			errs = errors.Join(errs, fmt.Errorf("failed to release %s: %w", c.name, err))
			continue
		}
		p.logger.Debug("released resource", zap.String("resource", c.name))
	}

	return errs
}
