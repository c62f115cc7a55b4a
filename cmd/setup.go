package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/store"
	"github.com/theirongolddev/restock/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		warnf("Ignoring unreadable config: %v", err)
		cfg = config.DefaultConfig()
	}

	intro := "Track what you have and know what to buy before it runs out."
	if config.Exists() {
		intro = "Updating " + config.ConfigPath() + "."
	}

	vals := tui.SetupValuesFrom(cfg)
	if err := tui.NewSetupForm(intro, &vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}
	tui.ApplySetup(&cfg, vals)

	// Opening the store proves the DSN before it is saved.
	s, err := store.Open(cfg.Store.Driver, config.StoreDSN(cfg))
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	_ = s.Close()

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Printf("  Store: %s\n", storeDescription(cfg))
	fmt.Println()
	fmt.Println("  Next: restock add <item>, restock receipt <file>, restock tui")
	fmt.Println()
	return nil
}
