package ports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/longregen/cogito/internal/domain/models"
)

// ToolContext is the per-invocation environment a handler runs in. The
// executor constructs it from the tool's side-effect descriptor and the
// turn's resource caps. MaxScratchBytes bounds the total bytes a handler may
// spool through WriteScratch; zero means unbounded.
type ToolContext struct {
	TurnID          string
	UserID          string
	ScratchDir      string
	FSRoot          string
	MaxOutputBytes  int
	MaxScratchBytes int64

	caps map[models.Capability]bool

	mu          sync.Mutex
	scratchUsed int64
	sideEffects models.SideEffectLog
}

func NewToolContext(turnID, userID, scratchDir, fsRoot string, maxOutputBytes int, caps []models.Capability) *ToolContext {
	m := make(map[models.Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return &ToolContext{
		TurnID:         turnID,
		UserID:         userID,
		ScratchDir:     scratchDir,
		FSRoot:         fsRoot,
		MaxOutputBytes: maxOutputBytes,
		caps:           m,
	}
}

// Require returns ErrCapabilityDenied-shaped error when the capability was
// not granted for this invocation.
func (tc *ToolContext) Require(cap models.Capability) error {
	if !tc.caps[cap] {
		return fmt.Errorf("capability %s not granted", cap)
	}
	return nil
}

func (tc *ToolContext) Has(cap models.Capability) bool {
	return tc.caps[cap]
}

// WriteScratch spools data into the turn's scratch directory and returns the
// written path. Writes beyond the scratch byte budget are refused.
func (tc *ToolContext) WriteScratch(name string, data []byte) (string, error) {
	if tc.ScratchDir == "" {
		return "", fmt.Errorf("no scratch directory for this invocation")
	}

	tc.mu.Lock()
	if tc.MaxScratchBytes > 0 && tc.scratchUsed+int64(len(data)) > tc.MaxScratchBytes {
		used := tc.scratchUsed
		tc.mu.Unlock()
		return "", fmt.Errorf("scratch budget exhausted: %d of %d bytes used, %d requested",
			used, tc.MaxScratchBytes, len(data))
	}
	tc.scratchUsed += int64(len(data))
	tc.mu.Unlock()

	path := filepath.Join(tc.ScratchDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// ScratchUsed reports the bytes written through WriteScratch so far.
func (tc *ToolContext) ScratchUsed() int64 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.scratchUsed
}

func (tc *ToolContext) RecordFileWrite(path string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.sideEffects.FilesWritten = append(tc.sideEffects.FilesWritten, path)
}

func (tc *ToolContext) RecordFileRead(path string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.sideEffects.FilesRead = append(tc.sideEffects.FilesRead, path)
}

func (tc *ToolContext) RecordFetch(url string, status int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.sideEffects.URLsFetched = append(tc.sideEffects.URLsFetched, url)
	tc.sideEffects.HTTPStatuses = append(tc.sideEffects.HTTPStatuses, status)
}

func (tc *ToolContext) RecordProcess(name string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.sideEffects.Processes = append(tc.sideEffects.Processes, name)
}

func (tc *ToolContext) RecordMemoryWrite(id string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.sideEffects.MemoryWrites = append(tc.sideEffects.MemoryWrites, id)
}

// SideEffects returns a copy of the accumulated side-effect log.
func (tc *ToolContext) SideEffects() models.SideEffectLog {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := tc.sideEffects
	out.FilesWritten = append([]string(nil), tc.sideEffects.FilesWritten...)
	out.FilesRead = append([]string(nil), tc.sideEffects.FilesRead...)
	out.URLsFetched = append([]string(nil), tc.sideEffects.URLsFetched...)
	out.HTTPStatuses = append([]int(nil), tc.sideEffects.HTTPStatuses...)
	out.Processes = append([]string(nil), tc.sideEffects.Processes...)
	out.MemoryWrites = append([]string(nil), tc.sideEffects.MemoryWrites...)
	return out
}

// ToolHandler runs one tool invocation. Handlers must honor ctx cancellation
// and touch only capabilities granted in the ToolContext.
type ToolHandler interface {
	Run(ctx context.Context, args map[string]any, tc *ToolContext) (*models.ExecutionResult, error)
}

// ToolHandlerFunc adapts a function to the ToolHandler interface.
type ToolHandlerFunc func(ctx context.Context, args map[string]any, tc *ToolContext) (*models.ExecutionResult, error)

func (f ToolHandlerFunc) Run(ctx context.Context, args map[string]any, tc *ToolContext) (*models.ExecutionResult, error) {
	return f(ctx, args, tc)
}

// PlanStrategy produces one ActionPlan from an utterance and its assembled
// context. Strategies return a descriptive name for fallback logging.
type PlanStrategy interface {
	Name() string
	Plan(ctx context.Context, utterance string, bundle *models.ContextBundle) (*models.ActionPlan, error)
}
