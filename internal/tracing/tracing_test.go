package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auspex/internal/config"
)

func TestDisabledProviderIsUsable(t *testing.T) {
	p, err := New(config.TracingConfig{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer("test"))
	assert.NoError(t, p.Start(context.Background()))
	assert.NoError(t, p.Stop(context.Background()))
}

func TestEnabledRequiresEndpoint(t *testing.T) {
	_, err := New(config.TracingConfig{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint not configured")
}

func TestEnabledInsecureProvider(t *testing.T) {
	// The OTLP gRPC exporter connects lazily, so construction succeeds
	// without a collector listening.
	p, err := New(config.TracingConfig{
		Enabled:  true,
		Endpoint: "localhost:4317",
		Insecure: true,
	})
	require.NoError(t, err)

	assert.True(t, p.Enabled())
	assert.Equal(t, "tracing", p.Name())
	assert.NoError(t, p.Start(context.Background()))

	// No spans were recorded; shutdown flushes nothing and returns.
	assert.NoError(t, p.Stop(context.Background()))
}
