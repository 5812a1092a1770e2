package tracing_test

import (
	"context"
	"testing"

	"carbon_dashboard/internal/config"
	"carbon_dashboard/internal/tracing"

	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := tracing.Setup(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := tracing.Tracer("test").Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestSetup_EnabledWithEndpoint(t *testing.T) {
	shutdown, err := tracing.Setup(context.Background(), config.TracingConfig{
		Endpoint:    "localhost:4318",
		ServiceName: "carbon-dashboard-test",
	})
	require.NoError(t, err)

	_, span := tracing.Tracer("test").Start(context.Background(), "cycle")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing listens on the endpoint; shutdown must not hang
	_ = shutdown(ctx)
}
