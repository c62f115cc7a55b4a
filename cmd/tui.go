package cmd

import (
	"fmt"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"dash"},
	Short:   "Launch interactive TUI dashboard",
	RunE:    runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	eng, cfg, closeFn, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(eng, storeDescription(cfg))
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// storeDescription names the backend with any password masked.
func storeDescription(cfg config.Config) string {
	if cfg.Store.Driver == "memory" {
		return "memory"
	}
	return fmt.Sprintf("%s (%s)", cfg.Store.Driver, maskDSN(config.StoreDSN(cfg)))
}
