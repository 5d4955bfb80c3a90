package plugin

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
	v1 "github.com/statbridge/statbridge/apis/v1"
	"github.com/statbridge/statbridge/internal/config"
	"github.com/statbridge/statbridge/internal/fetcher"
	"github.com/statbridge/statbridge/internal/metrics"
	"github.com/statbridge/statbridge/internal/tracing"
	"github.com/statbridge/statbridge/internal/transport"
	"go.uber.org/zap"
)

// buildContainer registers every bridge service. Services are built lazily on
// first Invoke; each one that holds a resource registers its release with
// p.track as soon as it is constructed.
func (p *Plugin) buildContainer(ctx context.Context) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, p.logger)
	do.ProvideValue(injector, p.cfg)

	do.Provide(injector, func(i do.Injector) (*metrics.Metrics, error) {
		if p.opts.metrics != nil {
			return p.opts.metrics, nil
		}
		return metrics.New(), nil
	})

	do.Provide(injector, func(i do.Injector) (*tracing.Provider, error) {
		logger, err := do.Invoke[*zap.Logger](i)
		if err != nil {
			return nil, err
		}
		cfg, err := do.Invoke[v1.BridgeConfig](i)
		if err != nil {
			return nil, err
		}

		provider, err := tracing.New(ctx, logger.Named("tracing"), cfg.Spec.Tracing)
		if err != nil {
			return nil, err
		}
		p.track("tracing", provider.Shutdown)
		return provider, nil
	})

	do.Provide(injector, func(i do.Injector) (*transport.Transport, error) {
		if _, err := do.Invoke[*tracing.Provider](i); err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}

		logger, err := do.Invoke[*zap.Logger](i)
		if err != nil {
			return nil, err
		}
		cfg, err := do.Invoke[v1.BridgeConfig](i)
		if err != nil {
			return nil, err
		}

		opts := []transport.Option{transport.WithLogger(logger.Named("transport"))}
		if p.opts.httpClient != nil {
			opts = append(opts, transport.WithHTTPClient(p.opts.httpClient))
		}

		tr, err := transport.New(transport.Config{
			BaseURL:  cfg.Spec.Remote.BaseURL,
			Headers:  cfg.Spec.Remote.Headers,
			Timeout:  config.Timeout(cfg.Spec.Remote),
			Insecure: cfg.Spec.Remote.Insecure,
		}, opts...)
		if err != nil {
			return nil, err
		}
		p.track("transport", func(context.Context) error { return tr.Close() })

		logger.Debug("transport ready",
			zap.String("transport", tr.Name()),
			zap.Duration("timeout", tr.Timeout()),
		)
		return tr, nil
	})

	do.Provide(injector, func(i do.Injector) (*fetcher.Fetcher, error) {
		logger, err := do.Invoke[*zap.Logger](i)
		if err != nil {
			return nil, err
		}
		cfg, err := do.Invoke[v1.BridgeConfig](i)
		if err != nil {
			return nil, err
		}
		tr, err := do.Invoke[*transport.Transport](i)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		m, err := do.Invoke[*metrics.Metrics](i)
		if err != nil {
			return nil, err
		}
		tp, err := do.Invoke[*tracing.Provider](i)
		if err != nil {
			return nil, err
		}

		return fetcher.New(logger.Named("fetcher"), tr, fetcher.Config{
			PathTemplate: cfg.Spec.Remote.PathTemplate,
			Timeout:      config.Timeout(cfg.Spec.Remote),
		},
			fetcher.WithRecorder(m),
			fetcher.WithTracer(tp.TracerProvider().Tracer(fetcher.TracerName)),
		)
	})

	return injector
}
