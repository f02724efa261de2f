package builtin

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// SystemInfo answers time/date, host, and runtime questions locally.
func SystemInfo(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	query, _ := args["query"].(string)
	if query == "" {
		query = "time_date"
	}

	now := time.Now()
	switch query {
	case "time_date":
		return &models.ExecutionResult{
			Success: true,
			Value: map[string]any{
				"time": now.Format("15:04"),
				"date": now.Format("Monday, January 2, 2006"),
			},
			Output: fmt.Sprintf("It's %s on %s.", now.Format("15:04"), now.Format("Monday, January 2, 2006")),
		}, nil
	case "host":
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		return &models.ExecutionResult{
			Success: true,
			Value:   map[string]any{"hostname": hostname, "os": runtime.GOOS, "arch": runtime.GOARCH},
			Output:  fmt.Sprintf("Host %s (%s/%s)", hostname, runtime.GOOS, runtime.GOARCH),
		}, nil
	case "runtime":
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return &models.ExecutionResult{
			Success: true,
			Value: map[string]any{
				"goroutines": runtime.NumGoroutine(),
				"heap_bytes": mem.HeapAlloc,
				"go_version": runtime.Version(),
			},
			Output: fmt.Sprintf("%d goroutines, %d MiB heap, %s", runtime.NumGoroutine(), mem.HeapAlloc/1024/1024, runtime.Version()),
		}, nil
	default:
		return models.FailedResult(models.ErrorKindToolInternal, "unknown system query: "+query), nil
	}
}

// Respond is the plain conversational reply carrier: the planner routes
// non-tool utterances here and the text passes through untouched.
func Respond(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	text, _ := args["text"].(string)
	if text == "" {
		text = "I'm not sure how to help with that."
	}
	return &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"text": text},
		Output:  text,
	}, nil
}
