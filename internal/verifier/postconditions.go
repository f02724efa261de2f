package verifier

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/longregen/cogito/internal/domain/models"
)

// PostCondition is a tool-specific predicate over an execution result. A nil
// return means the condition holds.
type PostCondition func(plan *models.ActionPlan, result *models.ExecutionResult) error

// Post-condition ids referenced by tool specs.
const (
	PostFileExistsAfterWrite = "file_exists_after_write"
	PostWeatherPayloadShape  = "weather_payload_shape"
	PostHTTPStatus2xx        = "http_status_2xx"
	PostNumericResult        = "numeric_result"
	PostMemoryWritten        = "memory_written"
)

// postConditions is the built-in predicate table. Unknown ids are treated as
// vacuously true so a tool without a post-condition never blocks.
var postConditions = map[string]PostCondition{
	PostFileExistsAfterWrite: fileExistsAfterWrite,
	PostWeatherPayloadShape:  weatherPayloadShape,
	PostHTTPStatus2xx:        httpStatus2xx,
	PostNumericResult:        numericResult,
	PostMemoryWritten:        memoryWritten,
}

func fileExistsAfterWrite(plan *models.ActionPlan, result *models.ExecutionResult) error {
	if len(result.SideEffects.FilesWritten) == 0 {
		return fmt.Errorf("no file writes recorded")
	}
	for _, path := range result.SideEffects.FilesWritten {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("written file %s not found: %w", path, err)
		}
	}
	return nil
}

func weatherPayloadShape(plan *models.ActionPlan, result *models.ExecutionResult) error {
	payload, ok := result.Value.(map[string]any)
	if !ok {
		return fmt.Errorf("weather value is not a mapping")
	}
	for _, key := range []string{"location", "condition"} {
		v, ok := payload[key]
		if !ok {
			return fmt.Errorf("weather payload missing %q", key)
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return fmt.Errorf("weather payload %q must be a non-empty string, got %T", key, v)
		}
	}
	switch temp := payload["temperature"].(type) {
	case float64, float32, int, int64:
		return nil
	case string:
		if strings.TrimSpace(temp) == "" {
			return fmt.Errorf("weather payload temperature is empty")
		}
		return nil
	default:
		return fmt.Errorf("weather payload temperature must be numeric or a non-empty string, got %T", temp)
	}
}

func httpStatus2xx(plan *models.ActionPlan, result *models.ExecutionResult) error {
	statuses := result.SideEffects.HTTPStatuses
	if len(statuses) == 0 {
		return fmt.Errorf("no HTTP fetches recorded")
	}
	for _, s := range statuses {
		if s < 200 || s > 299 {
			return fmt.Errorf("non-2xx status %d", s)
		}
	}
	return nil
}

func numericResult(plan *models.ActionPlan, result *models.ExecutionResult) error {
	switch v := result.Value.(type) {
	case int, int64, float32, float64:
		return nil
	case string:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("value %q is not numeric", v)
		}
		return nil
	default:
		return fmt.Errorf("value of type %T is not numeric", result.Value)
	}
}

func memoryWritten(plan *models.ActionPlan, result *models.ExecutionResult) error {
	if len(result.SideEffects.MemoryWrites) == 0 {
		return fmt.Errorf("no memory writes recorded")
	}
	return nil
}
