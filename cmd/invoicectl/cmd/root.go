package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

var (
	logLevel string
	cfg      *common.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "Extract structured fields from French invoices",
	Long: `invoicectl runs the invoice extractor from the command line.

Configuration comes from the same environment variables as invoiced
(a .env file in the working directory is honoured).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = common.LoadConfig()
		// stdout carries command output, logs go to stderr
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: common.ParseLevel(logLevel),
		}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		if _, werr := fmt.Fprintln(os.Stderr, "Error:", err); werr != nil {
			fmt.Println("Error:", err)
		}
		os.Exit(1)
	}
}
