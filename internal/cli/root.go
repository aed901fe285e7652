package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"review-rag-be/internal/bootstrap"
	"review-rag-be/internal/config"
	"review-rag-be/internal/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	envFile string
	logFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reviewrag",
	Short: "Ask questions about product reviews from the terminal",
	Long: `reviewrag loads product reviews from CSV into the configured vector store
and answers questions about them, remembering earlier turns of a session.

Example usage:
  reviewrag ingest                          # Embed and upload the configured CSV
  reviewrag ingest --load-existing          # Reuse an already populated collection
  reviewrag ask "Is the blender loud?"      # One question, new session
  reviewrag chat --session kitchen          # Interactive session`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if envFile != "" {
			cfg, err = config.LoadFile(envFile)
		} else {
			cfg = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return cfg.Validate()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "logs/cli.log", "where diagnostic logs go")
}

// openCore keeps logs out of the terminal; the CLI prints its own output.
func openCore(opts ...bootstrap.CoreOption) (*bootstrap.Core, error) {
	return bootstrap.NewCore(cfg, logger.NewIsolatedLogger(logFile), opts...)
}
