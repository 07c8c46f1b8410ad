// Package cli implements the ragchat command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/liliang-cn/ragchat/internal/app"
	"github.com/liliang-cn/ragchat/internal/config"
	"github.com/liliang-cn/ragchat/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Chat with your documents through a local language model",
	Long: `ragchat loads a directory of documents into a local vector store and
answers questions about them through a language model reached via the
ragchat middleware.

Example usage:
  ragchat ingest data          # Load ./data into the collection
  ragchat chat                 # Start the interactive chat
  ragchat ask "what is X?"     # Ask a single question
  ragchat info                 # Show what the collection holds`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return nil
	},
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

// newLogger builds the command logger. fallbackFile is used when the
// configuration names no log file and stderr must stay clean.
func newLogger(fallbackFile string) (*zap.Logger, error) {
	file := cfg.Log.File
	if file == "" {
		file = fallbackFile
	}
	if file == "" {
		return logging.New(cfg.Log.Level, cfg.Log.Format)
	}
	return logging.New(cfg.Log.Level, cfg.Log.Format, file)
}

// openApp builds the application context for a command
func openApp(ctx context.Context, fallbackLogFile string) (*app.App, func(), error) {
	logger, err := newLogger(fallbackLogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		a.Close()
		logger.Sync()
	}
	return a, cleanup, nil
}
