package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/tui/components"
	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	settingsFieldTheme = iota
	settingsFieldAutoRefresh
	settingsFieldRefreshInterval
	settingsFieldLookahead
	settingsFieldReorderDays
	settingsFieldFuzzy
	settingsFieldCount // sentinel
)

// settingsState tracks the settings tab state.
type settingsState struct {
	cursor  int
	editing bool
	input   textinput.Model
	saved   bool  // flash "saved" message briefly
	saveErr error // non-nil if last save failed
}

func newSettingsInput() textinput.Model {
	ti := textinput.New()
	ti.CharLimit = 64
	ti.Width = 40
	return ti
}

func (a App) settingsKey(key string) (App, tea.Cmd, bool) {
	switch key {
	case "j", "down":
		if a.settings.cursor < settingsFieldCount-1 {
			a.settings.cursor++
		}
		return a, nil, true
	case "k", "up":
		if a.settings.cursor > 0 {
			a.settings.cursor--
		}
		return a, nil, true
	case "enter":
		m, cmd := a.settingsStartEdit()
		return m, cmd, true
	}
	return a, nil, false
}

func (a App) settingsStartEdit() (App, tea.Cmd) {
	cfg := loadConfigOrDefault()
	a.settings.editing = true
	a.settings.saved = false

	ti := newSettingsInput()

	switch a.settings.cursor {
	case settingsFieldTheme:
		ti.Placeholder = strings.Join(theme.Names(), ", ")
		ti.SetValue(cfg.Appearance.Theme)
	case settingsFieldAutoRefresh:
		ti.Placeholder = "true or false"
		ti.SetValue(strconv.FormatBool(a.autoRefresh))
	case settingsFieldRefreshInterval:
		ti.Placeholder = "30 (seconds, minimum 10)"
		ti.SetValue(strconv.Itoa(int(a.refreshInterval.Seconds())))
	case settingsFieldLookahead:
		ti.Placeholder = "14 (days)"
		ti.SetValue(formatFloat(cfg.Engine.LookaheadDays))
	case settingsFieldReorderDays:
		ti.Placeholder = "5 (days)"
		ti.SetValue(formatFloat(cfg.Engine.DefaultReorderDays))
	case settingsFieldFuzzy:
		ti.Placeholder = "0.3 (0 to 1)"
		ti.SetValue(formatFloat(cfg.Engine.FuzzyThreshold))
	}

	ti.Focus()
	a.settings.input = ti
	return a, ti.Cursor.BlinkCmd()
}

func (a App) updateSettingsInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.settingsSave()
		a.settings.editing = false
		a.settings.saved = a.settings.saveErr == nil
		return a, nil
	case "esc":
		a.settings.editing = false
		return a, nil
	}

	var cmd tea.Cmd
	a.settings.input, cmd = a.settings.input.Update(msg)
	return a, cmd
}

func (a *App) settingsSave() {
	cfg := loadConfigOrDefault()
	val := strings.TrimSpace(a.settings.input.Value())

	a.settings.saveErr = nil
	switch a.settings.cursor {
	case settingsFieldTheme:
		if !themeExists(val) {
			a.settings.saveErr = fmt.Errorf("unknown theme %q", val)
			return
		}
		cfg.Appearance.Theme = val
		theme.SetActive(val)
	case settingsFieldAutoRefresh:
		b, err := strconv.ParseBool(val)
		if err != nil {
			a.settings.saveErr = errors.New("auto refresh must be true or false")
			return
		}
		cfg.TUI.AutoRefresh = b
		a.autoRefresh = b
	case settingsFieldRefreshInterval:
		n, err := strconv.Atoi(val)
		if err != nil || n < 10 {
			a.settings.saveErr = errors.New("refresh interval must be at least 10 seconds")
			return
		}
		cfg.TUI.RefreshIntervalSec = n
		a.refreshInterval = time.Duration(n) * time.Second
	case settingsFieldLookahead:
		f, err := parsePositive(val)
		if err != nil {
			a.settings.saveErr = err
			return
		}
		cfg.Engine.LookaheadDays = f
	case settingsFieldReorderDays:
		f, err := parsePositive(val)
		if err != nil {
			a.settings.saveErr = err
			return
		}
		cfg.Engine.DefaultReorderDays = f
	case settingsFieldFuzzy:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 1 {
			a.settings.saveErr = errors.New("fuzzy threshold must be between 0 and 1")
			return
		}
		cfg.Engine.FuzzyThreshold = f
	}

	a.settings.saveErr = config.Save(cfg)
}

func themeExists(name string) bool {
	for _, n := range theme.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func parsePositive(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, errors.New("value must be a positive number")
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (a App) renderSettingsTab(cw int) string {
	t := theme.Active
	cfg := loadConfigOrDefault()

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selectedStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceBright).Bold(true)
	selectedLabelStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.SurfaceBright).Bold(true)
	accentStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface)
	greenStyle := lipgloss.NewStyle().Foreground(t.Fresh).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	markerStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceBright)

	type field struct {
		label string
		value string
	}

	// Engine values come from the file; the running engine picks them up on
	// the next start.
	live := a.engine.Config()
	engineValue := func(saved, running float64, unit string) string {
		v := formatFloat(saved) + unit
		if saved != running {
			v += dimStyle.Render("  (running: " + formatFloat(running) + unit + ")")
		}
		return v
	}

	fields := []field{
		{"Theme", cfg.Appearance.Theme},
		{"Auto Refresh", strconv.FormatBool(a.autoRefresh)},
		{"Refresh Interval", fmt.Sprintf("%ds", int(a.refreshInterval.Seconds()))},
		{"Plan Ahead", engineValue(cfg.Engine.LookaheadDays, live.LookaheadDays, "d")},
		{"Reorder Days", engineValue(cfg.Engine.DefaultReorderDays, live.DefaultReorderDays, "d")},
		{"Fuzzy Threshold", engineValue(cfg.Engine.FuzzyThreshold, live.FuzzyThreshold, "")},
	}

	var formBody strings.Builder
	for i, f := range fields {
		if a.settings.editing && i == a.settings.cursor {
			formBody.WriteString(markerStyle.Render("▸ "))
			formBody.WriteString(accentStyle.Render(fmt.Sprintf("%-18s ", f.label)))
			formBody.WriteString(a.settings.input.View())
			formBody.WriteString("\n")
			continue
		}

		if i == a.settings.cursor {
			marker := markerStyle.Render("▸ ")
			label := selectedLabelStyle.Render(fmt.Sprintf("%-18s ", f.label+":"))
			value := selectedStyle.Render(f.value)
			formBody.WriteString(marker + label + value)
			usedWidth := lipgloss.Width(marker) + lipgloss.Width(label) + lipgloss.Width(value)
			if padLen := components.CardInnerWidth(cw) - usedWidth; padLen > 0 {
				formBody.WriteString(lipgloss.NewStyle().Background(t.SurfaceBright).Render(strings.Repeat(" ", padLen)))
			}
		} else {
			formBody.WriteString(lipgloss.NewStyle().Background(t.Surface).Render("  "))
			formBody.WriteString(labelStyle.Render(fmt.Sprintf("%-18s ", f.label+":")))
			formBody.WriteString(valueStyle.Render(f.value))
		}
		formBody.WriteString("\n")
	}

	if a.settings.saveErr != nil {
		warnStyle := lipgloss.NewStyle().Foreground(t.Warn).Background(t.Surface)
		formBody.WriteString("\n")
		formBody.WriteString(warnStyle.Render(fmt.Sprintf("Save failed: %s", a.settings.saveErr)))
	} else if a.settings.saved {
		formBody.WriteString("\n")
		formBody.WriteString(greenStyle.Render("Saved!"))
	}

	formBody.WriteString("\n")
	formBody.WriteString(labelStyle.Render("[j/k] navigate  [Enter] edit  [Esc] cancel"))

	var infoBody strings.Builder
	infoBody.WriteString(labelStyle.Render("Store:        ") + valueStyle.Render(a.storeDesc) + "\n")
	infoBody.WriteString(labelStyle.Render("Items:        ") + valueStyle.Render(cli.FormatNumber(int64(len(a.views)))) + "\n")
	infoBody.WriteString(labelStyle.Render("Receipts:     ") + valueStyle.Render(cli.FormatNumber(int64(len(a.receipts)))) + "\n")
	infoBody.WriteString(labelStyle.Render("Load time:    ") + valueStyle.Render(fmt.Sprintf("%dms", a.loadTime.Milliseconds())) + "\n")
	infoBody.WriteString(labelStyle.Render("Config file:  ") + valueStyle.Render(config.ConfigPath()))

	var b strings.Builder
	b.WriteString(components.ContentCard("Settings", formBody.String(), cw))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("General", infoBody.String(), cw))

	return b.String()
}
