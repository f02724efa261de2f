package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/longregen/cogito/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cogito",
		Short: "Cogito - cognitive execution pipeline CLI",
		Long: `Cogito plans, validates, executes, and verifies tool calls for a
voice-first assistant. This CLI runs the pipeline locally or serves it
over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		chatCmd(),
		toolsCmd(),
		auditCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("LLM:")
			fmt.Printf("  URL:         %s\n", cfg.LLM.URL)
			fmt.Printf("  Model:       %s\n", cfg.LLM.Model)
			fmt.Printf("  Max Tokens:  %d\n", cfg.LLM.MaxTokens)
			fmt.Printf("  Temperature: %.2f\n", cfg.LLM.Temperature)
			fmt.Printf("  API Key:     %s\n", maskSecret(cfg.LLM.APIKey))
			fmt.Println()

			fmt.Println("Embedding:")
			fmt.Printf("  URL:        %s\n", cfg.Embedding.URL)
			fmt.Printf("  Model:      %s\n", cfg.Embedding.Model)
			fmt.Printf("  Dimensions: %d\n", cfg.Embedding.Dimensions)
			fmt.Printf("  Status:     %s\n", boolStatus(cfg.IsEmbeddingConfigured()))
			fmt.Println()

			fmt.Println("Entailment:")
			fmt.Printf("  URL:    %s\n", cfg.Entailment.URL)
			fmt.Printf("  Model:  %s\n", cfg.Entailment.Model)
			fmt.Printf("  Status: %s\n", boolStatus(cfg.IsEntailmentConfigured()))
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Printf("  Data Dir:   %s\n", cfg.Database.DataDir)
			fmt.Println()

			fmt.Println("Wall:")
			fmt.Printf("  FS Root:     %s\n", cfg.Wall.FSRoot)
			fmt.Printf("  Allowlist:   %v\n", cfg.Wall.AllowlistDomains)
			fmt.Printf("  Denied Exts: %v\n", cfg.Wall.FSDeniedExts)
			fmt.Println()

			fmt.Println("Audit:")
			fmt.Printf("  Path:         %s\n", cfg.Audit.Path)
			fmt.Printf("  Rotate Bytes: %d\n", cfg.Audit.RotateBytes)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  COGITO_LLM_URL, COGITO_LLM_API_KEY, COGITO_LLM_MODEL")
			fmt.Println("  COGITO_EMBEDDING_URL, COGITO_EMBEDDING_MODEL, COGITO_EMBEDDING_DIMENSIONS")
			fmt.Println("  COGITO_ENTAILMENT_URL, COGITO_ENTAILMENT_MODEL")
			fmt.Println("  COGITO_POSTGRES_URL, COGITO_DATA_DIR")
			fmt.Println("  COGITO_SERVER_HOST, COGITO_SERVER_PORT")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Cogito %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
