package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/theirongolddev/restock/internal/archive"
	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/notify"
	"github.com/theirongolddev/restock/internal/pipeline"
	"github.com/theirongolddev/restock/internal/store"
	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/spf13/cobra"
)

var (
	flagQuiet       bool
	flagStoreDriver string
	flagStoreDSN    string
	flagJSON        bool
)

var rootCmd = &cobra.Command{
	Use:   "restock",
	Short: "Household inventory depletion and replenishment",
	Long:  "Track what you have, learn how fast you use it, and know what to buy before it runs out.",
	RunE:  runSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagStoreDriver, "store-driver", "", "Store driver: memory, sqlite, mysql or postgres (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagStoreDSN, "store-dsn", "", "Store DSN or sqlite path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print machine-readable JSON")
}

// loadConfig applies the persistent store flags on top of the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagStoreDriver != "" {
		cfg.Store.Driver = flagStoreDriver
	}
	if flagStoreDSN != "" {
		cfg.Store.DSN = flagStoreDSN
	}
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, nil
}

// openEngine is the shared setup path used by all commands. The returned
// close func releases the store.
func openEngine(ctx context.Context, opts ...pipeline.Option) (*pipeline.Engine, config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, nil, err
	}

	s, err := store.Open(cfg.Store.Driver, config.StoreDSN(cfg))
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	if cfg.Notify.Enabled {
		n, err := notify.FromConfig(cfg.Notify)
		if err != nil {
			warnf("Notifications disabled: %v", err)
		} else {
			opts = append(opts, pipeline.WithListener(n))
		}
	}
	if cfg.Archive.Enabled {
		a, err := archive.FromConfig(ctx, cfg.Archive)
		if err != nil {
			warnf("Receipt archive disabled: %v", err)
		} else {
			opts = append(opts, pipeline.WithListener(a))
		}
	}

	eng := pipeline.New(s, cfg.Engine, opts...)
	closeFn := func() {
		if err := s.Close(); err != nil {
			warnf("Closing store: %v", err)
		}
	}
	return eng, cfg, closeFn, nil
}

// withEngine opens the engine for the duration of fn.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, eng *pipeline.Engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng, _, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, eng)
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s\n", cli.RenderWarning(fmt.Sprintf(format, args...)))
}

func progressf(format string, args ...any) {
	if flagQuiet {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
