package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/longregen/cogito/internal/adapters/citation"
	"github.com/longregen/cogito/internal/adapters/embedding"
	"github.com/longregen/cogito/internal/adapters/entailment"
	"github.com/longregen/cogito/internal/adapters/id"
	"github.com/longregen/cogito/internal/adapters/llm"
	"github.com/longregen/cogito/internal/adapters/memstore"
	"github.com/longregen/cogito/internal/adapters/postgres"
	"github.com/longregen/cogito/internal/audit"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/executor"
	"github.com/longregen/cogito/internal/memory"
	"github.com/longregen/cogito/internal/pipeline"
	"github.com/longregen/cogito/internal/planner"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
	"github.com/longregen/cogito/internal/tools/builtin"
	"github.com/longregen/cogito/internal/verifier"
	"github.com/longregen/cogito/internal/wall"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// cfg is loaded by the root command before any subcommand runs.
var cfg *config.Config

// stack is the fully wired pipeline shared by serve and chat.
type stack struct {
	orch      *pipeline.Orchestrator
	memorySvc *memory.Service
	reg       *registry.Registry
	wall      *wall.Wall
	auditLog  *audit.Log
	wal       *memory.WAL
	walStop   context.CancelFunc
	pool      *pgxpool.Pool
}

// Close releases the stack's resources in reverse construction order. The
// WAL replay loop is stopped first so nothing touches the backend while the
// pool shuts down.
func (s *stack) Close() {
	if s.walStop != nil {
		s.walStop()
		s.wal.Wait()
	}
	if s.auditLog != nil {
		s.auditLog.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildStack wires the pipeline. With COGITO_POSTGRES_URL set, memories and
// turns persist in PostgreSQL; otherwise the in-process backend is used and
// nothing survives a restart.
func buildStack(ctx context.Context, logger *slog.Logger, notifier ports.TurnNotifier) (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, dir := range []string{cfg.Wall.FSRoot, cfg.ScratchRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	ids := id.New()

	var (
		backend ports.MemoryBackend
		turns   ports.TurnRepository
		pool    *pgxpool.Pool
	)
	if cfg.Database.PostgresURL != "" {
		var err error
		pool, err = postgres.NewPool(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		backend = postgres.NewMemoryBackend(pool)
		turns = postgres.NewTurnRepository(pool)
		logger.Info("using PostgreSQL memory backend")
	} else {
		backend = memstore.New()
		logger.Info("using in-process memory backend; memories will not survive restart")
	}

	embedder := embedding.NewClient(
		cfg.Embedding.URL,
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
		logger,
	)

	wal, err := memory.NewWAL(cfg.WALPath(), backend, logger)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("open memory WAL: %w", err)
	}

	reg := registry.New()
	riskOf := func(toolName string) models.RiskTier {
		if spec, err := reg.Lookup(toolName); err == nil {
			return spec.Risk
		}
		return models.RiskSafe
	}
	memorySvc := memory.NewService(backend, embedder, ids, riskOf, wal, cfg.Memory, logger)

	citations, err := citation.NewStore(cfg.Citations.Dir)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("open citation store: %w", err)
	}

	if err := builtin.RegisterAll(reg, builtin.Deps{Memory: memorySvc, Citations: citations}); err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("register tools: %w", err)
	}
	reg.Seal()

	auditLog, err := audit.NewLog(cfg.Audit.Path, cfg.Audit.RotateBytes, ids, logger)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	w := wall.New(cfg.Wall, reg, auditLog, logger,
		wall.AllowSideEffect(builtin.NetworkTools()...))

	exec := executor.New(reg, cfg.Executor, cfg.ScratchRoot(), cfg.Wall.FSRoot, logger)

	var entailmentSvc ports.EntailmentService
	if cfg.IsEntailmentConfigured() {
		entailmentSvc = entailment.NewClient(cfg.Entailment.URL, logger)
	}
	ver := verifier.New(reg, entailmentSvc, citations, cfg.Verifier, logger)

	ruleStrategy := planner.NewRuleStrategy(ids)
	var primary, secondary ports.PlanStrategy = ruleStrategy, nil
	if cfg.LLM.URL != "" {
		llmClient := llm.NewClient(
			cfg.LLM.URL,
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.MaxTokens,
			cfg.LLM.Temperature,
			logger,
		)
		primary = planner.NewModelStrategy(llmClient, reg, ids, cfg.Planner.MaxRetries, logger)
		secondary = ruleStrategy
	}
	pl := planner.New(primary, secondary, reg, cfg.Planner, logger)

	orch := pipeline.NewOrchestrator(
		memorySvc, pl, w, exec, ver, turns, auditLog, notifier, ids, cfg.Memory, logger)

	// replay spooled memory commits in the background; Close stops the loop
	walCtx, walStop := context.WithCancel(context.Background())
	go wal.Run(walCtx)

	return &stack{
		orch:      orch,
		memorySvc: memorySvc,
		reg:       reg,
		wall:      w,
		auditLog:  auditLog,
		wal:       wal,
		walStop:   walStop,
		pool:      pool,
	}, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// boolStatus returns a status string for a boolean
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}
