package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	tp, err := Init(context.Background(), Config{Enabled: false, OTLPEndpoint: "localhost:4318"})
	require.NoError(t, err)
	require.NotNil(t, tp.Tracer())

	_, span := tp.Tracer().Start(context.Background(), "noop")
	span.End()

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestInit_EnabledWithoutEndpointIsNoop(t *testing.T) {
	tp, err := Init(context.Background(), Config{Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, tp.provider)
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1.5).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
