package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/corpusd/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: false}

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)
	assert.False(t, tel.Health().Degraded)

	// Tracer and Meter still hand out usable no-op instruments
	_, span := tel.Tracer("test").Start(context.Background(), "noop-span")
	span.End()

	counter, err := tel.Meter("test").Int64Counter("noop.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestShutdown_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}
