package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

// grace is how long past the deadline a handler gets before the executor
// abandons it and synthesizes a timeout result.
const grace = 500 * time.Millisecond

// Executor runs approved plans in a constrained environment: capability set
// derived from the tool's side-effect descriptor, per-turn scratch directory,
// absolute deadline, output cap. Executions are serialized per user and
// bounded globally.
type Executor struct {
	reg         *registry.Registry
	cfg         config.ExecutorConfig
	scratchRoot string
	fsRoot      string
	logger      *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	global    chan struct{}
}

func New(reg *registry.Registry, cfg config.ExecutorConfig, scratchRoot, fsRoot string, logger *slog.Logger) *Executor {
	parallelism := cfg.GlobalParallelism
	if parallelism <= 0 {
		parallelism = 32
	}
	return &Executor{
		reg:         reg,
		cfg:         cfg,
		scratchRoot: scratchRoot,
		fsRoot:      fsRoot,
		logger:      logger,
		userLocks:   make(map[string]*sync.Mutex),
		global:      make(chan struct{}, parallelism),
	}
}

// Execute runs one approved plan. It always returns a structured result;
// failures are encoded as result.Success=false with an error kind, never as
// a panic or a Go error to the caller.
func (e *Executor) Execute(ctx context.Context, turnID, userID string, plan *models.ActionPlan) *models.ExecutionResult {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return finish(models.FailedResult(models.ErrorKindCancelled, err.Error()), start)
	}

	spec, err := e.reg.Lookup(plan.ToolName)
	if err != nil {
		return finish(models.FailedResult(models.ErrorKindToolInternal, "tool not registered: "+plan.ToolName), start)
	}
	handler, err := e.reg.Handler(plan.ToolName)
	if err != nil {
		return finish(models.FailedResult(models.ErrorKindToolInternal, "handler missing: "+plan.ToolName), start)
	}

	select {
	case e.global <- struct{}{}:
		defer func() { <-e.global }()
	case <-ctx.Done():
		return finish(models.FailedResult(models.ErrorKindCancelled, ctx.Err().Error()), start)
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	scratch, err := e.makeScratch(turnID)
	if err != nil {
		return finish(models.FailedResult(models.ErrorKindToolInternal, "scratch dir: "+err.Error()), start)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			e.logger.Warn("scratch cleanup failed", "dir", scratch, "error", rmErr)
		}
	}()

	deadline := e.deadline(spec)
	execCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	tc := ports.NewToolContext(turnID, userID, scratch, e.fsRoot, e.cfg.MaxOutputBytes,
		models.CapabilitiesFor(spec.SideEffect))
	tc.MaxScratchBytes = e.cfg.MaxScratchBytes

	result := e.run(execCtx, handler, plan, tc, deadline)
	result.SideEffects = tc.SideEffects()
	result = capOutput(result, e.cfg.MaxOutputBytes)
	result = finish(result, start)

	status := "ok"
	if !result.Success {
		status = result.ErrorKind
	}
	metrics.ToolExecutionsTotal.WithLabelValues(plan.ToolName, status).Inc()
	metrics.ToolExecutionDuration.WithLabelValues(plan.ToolName).Observe(result.Duration.Seconds())
	e.logger.Info("tool executed",
		"turn_id", turnID, "tool", plan.ToolName, "success", result.Success,
		"duration_ms", result.Duration.Milliseconds())
	return result
}

// run invokes the handler in its own goroutine so a stuck tool cannot hold
// the turn past deadline+grace. An abandoned handler keeps its goroutine; it
// is expected to unwind when it next observes ctx.
func (e *Executor) run(ctx context.Context, handler ports.ToolHandler, plan *models.ActionPlan, tc *ports.ToolContext, deadline time.Duration) *models.ExecutionResult {
	type outcome struct {
		result *models.ExecutionResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		result, err := handler.Run(ctx, plan.Args, tc)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return timeoutResult(deadline)
			}
			return models.FailedResult(models.ErrorKindToolInternal, out.err.Error())
		}
		if out.result == nil {
			return models.FailedResult(models.ErrorKindToolInternal, "tool returned no result")
		}
		return out.result
	case <-time.After(deadline + grace):
		e.logger.Warn("tool abandoned past deadline", "tool", plan.ToolName, "deadline", deadline)
		return timeoutResult(deadline)
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			// let the handler observe cancellation within the grace window
			select {
			case out := <-done:
				if out.err == nil && out.result != nil && out.result.Success {
					return out.result
				}
			case <-time.After(grace):
			}
			return timeoutResult(deadline)
		}
		return models.FailedResult(models.ErrorKindCancelled, ctx.Err().Error())
	}
}

func timeoutResult(deadline time.Duration) *models.ExecutionResult {
	r := models.FailedResult(models.ErrorKindTimeout, fmt.Sprintf("deadline %s exceeded", deadline))
	r.Timeout = true
	return r
}

// deadline resolves the tool's execution deadline: the tool spec's override when
// set, the configured default otherwise, both clamped to the maximum.
func (e *Executor) deadline(spec *models.ToolSpec) time.Duration {
	ms := e.cfg.DefaultDeadlineMs
	if spec != nil && spec.DeadlineMs > 0 {
		ms = spec.DeadlineMs
	}
	if e.cfg.MaxDeadlineMs > 0 && ms > e.cfg.MaxDeadlineMs {
		ms = e.cfg.MaxDeadlineMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (e *Executor) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

func (e *Executor) makeScratch(turnID string) (string, error) {
	dir := filepath.Join(e.scratchRoot, turnID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// capOutput truncates oversized textual output in place. Structured values
// are kept; only Output is subject to the byte cap.
func capOutput(r *models.ExecutionResult, maxBytes int) *models.ExecutionResult {
	if maxBytes > 0 && len(r.Output) > maxBytes {
		r.Output = r.Output[:maxBytes]
		r.Truncated = true
	}
	return r
}

func finish(r *models.ExecutionResult, start time.Time) *models.ExecutionResult {
	r.Duration = time.Since(start)
	return r
}
