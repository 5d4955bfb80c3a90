package tracing

import (
	"context"
	"testing"

	v1 "github.com/statbridge/statbridge/apis/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("without tracing config", func(t *testing.T) {
		p, err := New(t.Context(), zap.NewNop(), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

		assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())
	})

	t.Run("with endpoint", func(t *testing.T) {
		p, err := New(t.Context(), zap.NewNop(), &v1.TracingSpec{
			Endpoint:    "127.0.0.1:4318",
			Insecure:    true,
			ServiceName: "bridge-test",
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

		assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())
	})
}

func TestProvider_Shutdown(t *testing.T) {
	p, err := New(t.Context(), zap.NewNop(), nil)
	require.NoError(t, err)

	require.NoError(t, p.Shutdown(t.Context()))
	// A second shutdown is reported by the sdk but must not panic.
	assert.NotPanics(t, func() { _ = p.Shutdown(t.Context()) })
}
