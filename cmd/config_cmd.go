// Package cmd implements the restock CLI commands.
package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/restock/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	e := cfg.Engine
	fmt.Println("  [Engine]")
	fmt.Printf("    EWMA window:         %d observations\n", e.EWMAWindow)
	fmt.Printf("    EWMA decay:          %g\n", e.EWMADecay)
	fmt.Printf("    Critical within:     %g days\n", e.CriticalDays)
	fmt.Printf("    Low within:          %g days\n", e.LowDays)
	fmt.Printf("    Default reorder:     %g days\n", e.DefaultReorderDays)
	fmt.Printf("    Plan ahead:          %g days\n", e.LookaheadDays)
	fmt.Printf("    Fuzzy match:         %g\n", e.FuzzyThreshold)
	fmt.Printf("    New item location:   %s\n", e.DefaultLocation)
	fmt.Printf("    New item category:   %s\n", e.DefaultCategory)
	fmt.Println()

	fmt.Println("  [Store]")
	fmt.Printf("    Driver: %s\n", cfg.Store.Driver)
	if dsn := config.StoreDSN(cfg); dsn != "" {
		fmt.Printf("    DSN:    %s\n", maskDSN(dsn))
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:  %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Interval: %ds\n", cfg.Daemon.IntervalSec)
	fmt.Println()

	fmt.Println("  [Notify]")
	if cfg.Notify.Enabled {
		fmt.Printf("    SMTP:     %s:%d\n", cfg.Notify.SMTPHost, cfg.Notify.SMTPPort)
		fmt.Printf("    From:     %s\n", cfg.Notify.From)
		fmt.Printf("    To:       %s\n", strings.Join(cfg.Notify.To, ", "))
		if cfg.Notify.Password != "" {
			fmt.Printf("    Password: %s\n", maskAPIKey(cfg.Notify.Password))
		}
	} else {
		fmt.Println("    Disabled")
	}
	fmt.Println()

	fmt.Println("  [Archive]")
	if cfg.Archive.Enabled {
		fmt.Printf("    Bucket: s3://%s/%s\n", cfg.Archive.Bucket, cfg.Archive.Prefix)
		if cfg.Archive.Region != "" {
			fmt.Printf("    Region: %s\n", cfg.Archive.Region)
		}
		if cfg.Archive.Endpoint != "" {
			fmt.Printf("    Endpoint: %s\n", cfg.Archive.Endpoint)
		}
		if cfg.Archive.AccessKey != "" {
			fmt.Printf("    Access key: %s\n", maskAPIKey(cfg.Archive.AccessKey))
		}
	} else {
		fmt.Println("    Disabled")
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `restock setup` to reconfigure.")
	return nil
}

func maskAPIKey(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}

// maskDSN hides the password in user:pass@host style DSNs.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	creds := dsn[:at]
	start := 0
	if i := strings.Index(creds, "//"); i >= 0 {
		start = i + 2
	}
	colon := strings.LastIndex(creds[start:], ":")
	if colon < 0 {
		return dsn
	}
	return creds[:start+colon+1] + "****" + dsn[at:]
}
