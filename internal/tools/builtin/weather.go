package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

const (
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	weatherTimeout     = 10 * time.Second
)

// WeatherTool resolves a location name to coordinates and fetches the
// current conditions. When the network is unavailable it degrades to a
// payload with the same shape so downstream checks stay uniform.
type WeatherTool struct {
	client      *http.Client
	geocodeURL  string
	forecastURL string
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		client:      &http.Client{Timeout: weatherTimeout},
		geocodeURL:  defaultGeocodeURL,
		forecastURL: defaultForecastURL,
	}
}

func (t *WeatherTool) Run(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	location, ok := args["location"].(string)
	if !ok || location == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "location must be a non-empty string"), nil
	}
	if err := tc.Require(models.CapNetwork); err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}

	lat, lon, resolved, err := t.geocode(ctx, location, tc)
	if err != nil {
		return t.offlineResult(location, err), nil
	}
	temp, condition, err := t.forecast(ctx, lat, lon, tc)
	if err != nil {
		return t.offlineResult(resolved, err), nil
	}

	payload := map[string]any{
		"location":    resolved,
		"temperature": temp,
		"condition":   condition,
	}
	return &models.ExecutionResult{
		Success: true,
		Value:   payload,
		Output:  fmt.Sprintf("Weather in %s: %.1f°C, %s", resolved, temp, condition),
	}, nil
}

// offlineResult keeps the payload shape when the upstream API is down.
func (t *WeatherTool) offlineResult(location string, cause error) *models.ExecutionResult {
	payload := map[string]any{
		"location":    location,
		"temperature": nil,
		"condition":   "unavailable",
	}
	return &models.ExecutionResult{
		Success: true,
		Value:   payload,
		Output:  fmt.Sprintf("Weather for %s is unavailable right now.", location),
		Meta:    map[string]any{"degraded": true, "cause": cause.Error()},
	}
}

func (t *WeatherTool) geocode(ctx context.Context, location string, tc *ports.ToolContext) (lat, lon float64, name string, err error) {
	q := url.Values{}
	q.Set("name", location)
	q.Set("count", "1")
	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Country   string  `json:"country"`
		} `json:"results"`
	}
	if err := t.getJSON(ctx, t.geocodeURL+"?"+q.Encode(), &payload, tc); err != nil {
		return 0, 0, "", err
	}
	if len(payload.Results) == 0 {
		return 0, 0, "", fmt.Errorf("location %q not found", location)
	}
	r := payload.Results[0]
	name = r.Name
	if r.Country != "" {
		name = r.Name + ", " + r.Country
	}
	return r.Latitude, r.Longitude, name, nil
}

func (t *WeatherTool) forecast(ctx context.Context, lat, lon float64, tc *ports.ToolContext) (float64, string, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("current", "temperature_2m,weather_code")
	var payload struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := t.getJSON(ctx, t.forecastURL+"?"+q.Encode(), &payload, tc); err != nil {
		return 0, "", err
	}
	return payload.Current.Temperature, conditionForCode(payload.Current.WeatherCode), nil
}

func (t *WeatherTool) getJSON(ctx context.Context, rawURL string, out any, tc *ports.ToolContext) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.RecordFetch(rawURL, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// conditionForCode maps WMO weather codes to short descriptions.
func conditionForCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "foggy"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
