package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// resolvePath confines a user-supplied path to the turn's filesystem root.
// The wall checks this too; the handlers re-check so a registry mistake can
// never reach outside the root.
func resolvePath(tc *ports.ToolContext, raw string) (string, error) {
	root := filepath.Clean(tc.FSRoot)
	resolved := filepath.Clean(raw)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the filesystem root", raw)
	}
	return resolved, nil
}

func ReadFile(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	raw, ok := args["path"].(string)
	if !ok || raw == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "path must be a non-empty string"), nil
	}
	if err := tc.Require(models.CapFSRead); err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}
	path, err := resolvePath(tc, raw)
	if err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, err.Error()), nil
	}
	tc.RecordFileRead(path)

	return &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"path": raw, "size": len(content)},
		Output:  string(content),
	}, nil
}

func WriteFile(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	raw, ok := args["path"].(string)
	if !ok || raw == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "path must be a non-empty string"), nil
	}
	content, ok := args["content"].(string)
	if !ok {
		return models.FailedResult(models.ErrorKindToolInternal, "content must be a string"), nil
	}
	if err := tc.Require(models.CapFSWrite); err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}
	path, err := resolvePath(tc, raw)
	if err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, err.Error()), nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, err.Error()), nil
	}
	tc.RecordFileWrite(path)

	return &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"path": raw, "bytes_written": len(content)},
		Output:  fmt.Sprintf("Wrote %d bytes to %s", len(content), raw),
	}, nil
}

func ListFiles(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	raw, _ := args["path"].(string)
	if raw == "" {
		raw = "."
	}
	if err := tc.Require(models.CapFSRead); err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}
	path, err := resolvePath(tc, raw)
	if err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, err.Error()), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	tc.RecordFileRead(path)

	return &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"path": raw, "files": names},
		Output:  strings.Join(names, "\n"),
	}, nil
}

func DeleteFile(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	raw, ok := args["path"].(string)
	if !ok || raw == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "path must be a non-empty string"), nil
	}
	if err := tc.Require(models.CapFSWrite); err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}
	path, err := resolvePath(tc, raw)
	if err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}

	if err := os.Remove(path); err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, err.Error()), nil
	}
	tc.RecordFileWrite(path)

	return &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"path": raw, "deleted": true},
		Output:  "Deleted " + raw,
	}, nil
}
