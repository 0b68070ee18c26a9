package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/insightwire/pulse/pkg/pulse/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [config-files-or-directories...]",
	Short: "Run pulse from HCL configuration",
	Long: `Run pulse with the specified configuration files or directories.

Configuration files declare endpoints to connect to, channel
subscriptions with actions to evaluate on inbound envelopes, and
cron-style triggers for scheduled outbound envelopes.

Examples:
  pulse run pulse.hcl
  pulse run ./configs/
  pulse run base.hcl overrides.hcl ./more-configs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting pulse",
		zap.Strings("config-paths", args),
	)

	cfg, diags := config.NewConfig().
		WithLogger(logger).
		WithSources(stringSliceToAnySlice(args)...).
		Build()

	if diags.HasErrors() {
		logger.Error("Failed to build config", zap.Any("diags", diags))
		return diags
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger.Info("Signal received, shutting down", zap.String("signal", sig.String()))

	cfg.Stop()
	logger.Info("Shutdown complete")

	return nil
}

// Helper to convert []string to []any
func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
