package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hrmap/internal/config"
	"github.com/sells-group/hrmap/internal/pipeline"
	"github.com/sells-group/hrmap/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hrmap",
	Short: "Health-region attribution and population-weighted summaries",
	Long: "Attributes point records to health regions and disaggregates FSA surveillance counts " +
		"to dissemination areas by population share, then reaggregates and suppresses them per health region.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens and migrates the configured result store. It returns nil
// when no store driver is configured.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Driver == "" {
		return nil, nil
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// logFailure records the failing pipeline stage before the error reaches cobra.
func logFailure(err error) error {
	if err != nil {
		zap.L().Error("run failed",
			zap.String("stage", pipeline.StageOf(err)),
			zap.Error(err),
		)
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
