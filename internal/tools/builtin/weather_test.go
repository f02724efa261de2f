package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

func netContext(t *testing.T) *ports.ToolContext {
	t.Helper()
	return ports.NewToolContext("trn_1", "u1", t.TempDir(), t.TempDir(), 1<<20, models.CapabilitiesFor(models.SideEffectNetwork))
}

func TestWeatherHappyPath(t *testing.T) {
	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "London", r.URL.Query().Get("name"))
		fmt.Fprint(w, `{"results":[{"name":"London","latitude":51.5,"longitude":-0.12,"country":"United Kingdom"}]}`)
	}))
	defer geocode.Close()
	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"current":{"temperature_2m":14.5,"weather_code":2}}`)
	}))
	defer forecast.Close()

	tool := NewWeatherTool()
	tool.geocodeURL = geocode.URL
	tool.forecastURL = forecast.URL

	tc := netContext(t)
	result, err := tool.Run(context.Background(), map[string]any{"location": "London"}, tc)
	require.NoError(t, err)
	require.True(t, result.Success)

	payload := result.Value.(map[string]any)
	assert.Equal(t, "London, United Kingdom", payload["location"])
	assert.Equal(t, 14.5, payload["temperature"])
	assert.Equal(t, "partly cloudy", payload["condition"])
	assert.Contains(t, result.Output, "London")

	effects := tc.SideEffects()
	assert.Len(t, effects.URLsFetched, 2)
	assert.Equal(t, []int{200, 200}, effects.HTTPStatuses)
}

func TestWeatherOfflineFallbackKeepsShape(t *testing.T) {
	tool := NewWeatherTool()
	tool.geocodeURL = "http://127.0.0.1:1/geocode" // nothing listens here

	result, err := tool.Run(context.Background(), map[string]any{"location": "London"}, netContext(t))
	require.NoError(t, err)
	require.True(t, result.Success)

	payload := result.Value.(map[string]any)
	for _, key := range []string{"location", "temperature", "condition"} {
		_, ok := payload[key]
		assert.True(t, ok, "missing %q", key)
	}
	assert.Equal(t, "unavailable", payload["condition"])
	assert.Equal(t, true, result.Meta["degraded"])
}

func TestWeatherRequiresNetworkCapability(t *testing.T) {
	tool := NewWeatherTool()
	tc := ports.NewToolContext("trn_1", "u1", t.TempDir(), t.TempDir(), 1<<20, models.CapabilitiesFor(models.SideEffectReadOnly))

	result, err := tool.Run(context.Background(), map[string]any{"location": "London"}, tc)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindCapabilityDenied, result.ErrorKind)
}

func TestConditionForCode(t *testing.T) {
	assert.Equal(t, "clear", conditionForCode(0))
	assert.Equal(t, "partly cloudy", conditionForCode(2))
	assert.Equal(t, "rain", conditionForCode(63))
	assert.Equal(t, "snow", conditionForCode(73))
	assert.Equal(t, "thunderstorm", conditionForCode(95))
}
