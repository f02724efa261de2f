package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cogitohttp "github.com/longregen/cogito/internal/adapters/http"
	"github.com/longregen/cogito/internal/adapters/http/handlers"
	"github.com/longregen/cogito/internal/adapters/tracing"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Cogito HTTP API server.

The server exposes turns, memory recall and search, the tool registry,
the operator policy surface, and a WebSocket event stream.

Required configuration:
  - LLM endpoint (COGITO_LLM_URL) for model-driven planning
  - Embedding endpoint (COGITO_EMBEDDING_URL) for memory recall

Optional:
  - PostgreSQL (COGITO_POSTGRES_URL); without it memories are in-process
  - Entailment scoring (COGITO_ENTAILMENT_URL); without it the verifier
    degrades to keyword overlap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	logger := newLogger()
	logger.Info("starting Cogito API server",
		"host", cfg.Server.Host, "port", cfg.Server.Port, "llm", cfg.LLM.URL)

	shutdown, err := tracing.InitTracer("cogito-api")
	if err != nil {
		logger.Warn("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				logger.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	broadcaster := handlers.NewEventBroadcaster(cfg.Server.CORSOrigins, logger)

	st, err := buildStack(ctx, logger, broadcaster)
	if err != nil {
		return err
	}
	defer st.Close()

	server := cogitohttp.NewServer(
		cfg, st.orch, st.memorySvc, st.reg, st.wall, st.auditLog, broadcaster, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
