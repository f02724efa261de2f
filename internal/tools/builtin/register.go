package builtin

import (
	"fmt"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/memory"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

// Deps are the shared services the built-in tools close over.
type Deps struct {
	Memory    *memory.Service
	Citations ports.CitationStore
}

// NetworkTools lists the built-ins that need a side-effect policy entry in
// the wall.
func NetworkTools() []string {
	return []string{"get_weather", "web_search"}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func objectSchema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// RegisterAll registers the built-in tool set. The registry stays unsealed
// so callers can add their own tools before sealing.
func RegisterAll(reg *registry.Registry, deps Deps) error {
	memTools := NewMemoryTools(deps.Memory, deps.Citations)
	weather := NewWeatherTool()
	search := NewWebSearchTool(deps.Citations)

	entries := []struct {
		spec    *models.ToolSpec
		handler ports.ToolHandler
	}{
		{
			spec: &models.ToolSpec{
				Name:        "respond",
				Description: "Replies to the user in plain conversation without invoking any capability.",
				ArgSchema: objectSchema([]string{"text"}, map[string]any{
					"text": stringProp("The reply text to speak to the user"),
				}),
				Risk:       models.RiskSafe,
				RateClass:  "safe",
				SideEffect: models.SideEffectReadOnly,
			},
			handler: ports.ToolHandlerFunc(Respond),
		},
		{
			spec: &models.ToolSpec{
				Name:        "calculate",
				Description: "Evaluates arithmetic expressions with +, -, *, /, ^, parentheses, and functions like sqrt, sin, cos, log.",
				ArgSchema: objectSchema([]string{"expression"}, map[string]any{
					"expression": stringProp("The mathematical expression to evaluate, e.g. '25 * 47 + 183'"),
				}),
				Risk:            models.RiskSafe,
				RateClass:       "safe",
				PostConditionID: "numeric_result",
				SideEffect:      models.SideEffectReadOnly,
			},
			handler: ports.ToolHandlerFunc(Calculate),
		},
		{
			spec: &models.ToolSpec{
				Name:        "get_weather",
				Description: "Fetches current weather conditions for a named location.",
				ArgSchema: objectSchema([]string{"location"}, map[string]any{
					"location": stringProp("City or place name, e.g. 'London'"),
				}),
				Risk:            models.RiskSafe,
				RateClass:       "safe",
				PostConditionID: "weather_payload_shape",
				SideEffect:      models.SideEffectNetwork,
			},
			handler: weather,
		},
		{
			spec: &models.ToolSpec{
				Name:        "recall_memory",
				Description: "Searches stored memories about the user and past conversations.",
				ArgSchema: objectSchema([]string{"query"}, map[string]any{
					"query": stringProp("What to look for in memory"),
				}),
				Risk:       models.RiskSafe,
				RateClass:  "safe",
				SideEffect: models.SideEffectReadOnly,
			},
			handler: ports.ToolHandlerFunc(memTools.RecallMemory),
		},
		{
			spec: &models.ToolSpec{
				Name:        "remember",
				Description: "Stores an explicit fact about the user for later recall.",
				ArgSchema: objectSchema([]string{"content"}, map[string]any{
					"content": stringProp("The fact to remember"),
				}),
				Risk:            models.RiskSafe,
				RateClass:       "safe",
				PostConditionID: "memory_written",
				SideEffect:      models.SideEffectMemoryWrite,
			},
			handler: ports.ToolHandlerFunc(memTools.Remember),
		},
		{
			spec: &models.ToolSpec{
				Name:        "read_file",
				Description: "Reads a text file inside the assistant's file area.",
				ArgSchema: objectSchema([]string{"path"}, map[string]any{
					"path": stringProp("Path relative to the file root"),
				}),
				Risk:       models.RiskReview,
				RateClass:  "review",
				SideEffect: models.SideEffectReadOnly,
			},
			handler: ports.ToolHandlerFunc(ReadFile),
		},
		{
			spec: &models.ToolSpec{
				Name:        "write_file",
				Description: "Writes a text file inside the assistant's file area.",
				ArgSchema: objectSchema([]string{"path", "content"}, map[string]any{
					"path":    stringProp("Path relative to the file root"),
					"content": stringProp("The content to write"),
				}),
				Risk:            models.RiskConfirm,
				RateClass:       "confirm",
				PostConditionID: "file_exists_after_write",
				SideEffect:      models.SideEffectWritesFS,
			},
			handler: ports.ToolHandlerFunc(WriteFile),
		},
		{
			spec: &models.ToolSpec{
				Name:        "list_files",
				Description: "Lists files in a directory inside the assistant's file area.",
				ArgSchema: objectSchema(nil, map[string]any{
					"path": stringProp("Directory path relative to the file root, defaults to '.'"),
				}),
				Risk:       models.RiskReview,
				RateClass:  "review",
				SideEffect: models.SideEffectReadOnly,
			},
			handler: ports.ToolHandlerFunc(ListFiles),
		},
		{
			spec: &models.ToolSpec{
				Name:        "delete_file",
				Description: "Deletes a file inside the assistant's file area.",
				ArgSchema: objectSchema([]string{"path"}, map[string]any{
					"path": stringProp("Path relative to the file root"),
				}),
				Risk:       models.RiskConfirm,
				RateClass:  "confirm",
				SideEffect: models.SideEffectWritesFS,
			},
			handler: ports.ToolHandlerFunc(DeleteFile),
		},
		{
			spec: &models.ToolSpec{
				Name:        "system_info",
				Description: "Answers time, date, host, and runtime questions locally.",
				ArgSchema: objectSchema(nil, map[string]any{
					"query": map[string]any{
						"type": "string",
						"enum": []string{"time_date", "host", "runtime"},
					},
				}),
				Risk:       models.RiskSafe,
				RateClass:  "safe",
				SideEffect: models.SideEffectReadOnly,
			},
			handler: ports.ToolHandlerFunc(SystemInfo),
		},
		{
			spec: &models.ToolSpec{
				Name:        "web_search",
				Description: "Searches the web and reads top results, returning an answer with citations.",
				ArgSchema: objectSchema([]string{"query"}, map[string]any{
					"query": stringProp("The search query"),
				}),
				Risk:            models.RiskReview,
				RateClass:       "review",
				PostConditionID: "http_status_2xx",
				SideEffect:      models.SideEffectNetwork,
				DeadlineMs:      120_000,
			},
			handler: search,
		},
	}

	for _, e := range entries {
		if err := reg.Register(e.spec, e.handler); err != nil {
			return fmt.Errorf("register %s: %w", e.spec.Name, err)
		}
	}
	return nil
}
