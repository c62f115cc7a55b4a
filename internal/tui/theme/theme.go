// Package theme holds the color palettes for the restock dashboard.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme maps UI roles to colors. Stock roles follow item status so every
// view colors "critical" the same way.
type Theme struct {
	Name string

	Background    lipgloss.Color
	Surface       lipgloss.Color // cards and panels
	SurfaceBright lipgloss.Color // selected rows
	Border        lipgloss.Color
	BorderAccent  lipgloss.Color // focused cards

	TextDim     lipgloss.Color
	TextMuted   lipgloss.Color
	TextPrimary lipgloss.Color

	Accent       lipgloss.Color
	AccentBright lipgloss.Color

	Good     lipgloss.Color // well stocked
	Fresh    lipgloss.Color // confirmations
	Low      lipgloss.Color
	Critical lipgloss.Color
	Planned  lipgloss.Color // medium-priority entries
	Warn     lipgloss.Color
	Info     lipgloss.Color
}

// Pantry is the default: warm shelf wood with jar-label accents.
var Pantry = Theme{
	Name:          "pantry",
	Background:    lipgloss.Color("#15110D"),
	Surface:       lipgloss.Color("#211B15"),
	SurfaceBright: lipgloss.Color("#3A2F24"),
	Border:        lipgloss.Color("#4A3D2F"),
	BorderAccent:  lipgloss.Color("#C8943E"),
	TextDim:       lipgloss.Color("#5E5142"),
	TextMuted:     lipgloss.Color("#9C8B76"),
	TextPrimary:   lipgloss.Color("#F3E9DA"),
	Accent:        lipgloss.Color("#C8943E"),
	AccentBright:  lipgloss.Color("#E6B865"),
	Good:          lipgloss.Color("#8FA65A"),
	Fresh:         lipgloss.Color("#B5CC7A"),
	Low:           lipgloss.Color("#E0B03C"),
	Critical:      lipgloss.Color("#D2573F"),
	Planned:       lipgloss.Color("#6F9BC2"),
	Warn:          lipgloss.Color("#DE8236"),
	Info:          lipgloss.Color("#5FB3A6"),
}

// Larder is a cool stone-cellar palette.
var Larder = Theme{
	Name:          "larder",
	Background:    lipgloss.Color("#0F1417"),
	Surface:       lipgloss.Color("#182126"),
	SurfaceBright: lipgloss.Color("#2A3840"),
	Border:        lipgloss.Color("#34444D"),
	BorderAccent:  lipgloss.Color("#6CB4C9"),
	TextDim:       lipgloss.Color("#4C5F69"),
	TextMuted:     lipgloss.Color("#8DA3AE"),
	TextPrimary:   lipgloss.Color("#E4EEF2"),
	Accent:        lipgloss.Color("#6CB4C9"),
	AccentBright:  lipgloss.Color("#9AD4E4"),
	Good:          lipgloss.Color("#7FC28E"),
	Fresh:         lipgloss.Color("#A8E0B3"),
	Low:           lipgloss.Color("#E8C66A"),
	Critical:      lipgloss.Color("#E56F6F"),
	Planned:       lipgloss.Color("#8F9FE0"),
	Warn:          lipgloss.Color("#F0A05A"),
	Info:          lipgloss.Color("#6CB4C9"),
}

// Market is a bright greengrocer palette on deep green.
var Market = Theme{
	Name:          "market",
	Background:    lipgloss.Color("#0E1710"),
	Surface:       lipgloss.Color("#16241A"),
	SurfaceBright: lipgloss.Color("#24392A"),
	Border:        lipgloss.Color("#2F4A36"),
	BorderAccent:  lipgloss.Color("#E58F5B"),
	TextDim:       lipgloss.Color("#4B6652"),
	TextMuted:     lipgloss.Color("#93AE98"),
	TextPrimary:   lipgloss.Color("#EEF5E9"),
	Accent:        lipgloss.Color("#E58F5B"),
	AccentBright:  lipgloss.Color("#F5B187"),
	Good:          lipgloss.Color("#7DCB5E"),
	Fresh:         lipgloss.Color("#A6E887"),
	Low:           lipgloss.Color("#F2CF4A"),
	Critical:      lipgloss.Color("#EF5B5B"),
	Planned:       lipgloss.Color("#B48EDC"),
	Warn:          lipgloss.Color("#E58F5B"),
	Info:          lipgloss.Color("#5FC7C0"),
}

// Terminal sticks to the 16 ANSI colors.
var Terminal = Theme{
	Name:          "terminal",
	Background:    lipgloss.Color("0"),
	Surface:       lipgloss.Color("0"),
	SurfaceBright: lipgloss.Color("8"),
	Border:        lipgloss.Color("8"),
	BorderAccent:  lipgloss.Color("3"),
	TextDim:       lipgloss.Color("8"),
	TextMuted:     lipgloss.Color("7"),
	TextPrimary:   lipgloss.Color("15"),
	Accent:        lipgloss.Color("3"),
	AccentBright:  lipgloss.Color("11"),
	Good:          lipgloss.Color("2"),
	Fresh:         lipgloss.Color("10"),
	Low:           lipgloss.Color("11"),
	Critical:      lipgloss.Color("9"),
	Planned:       lipgloss.Color("4"),
	Warn:          lipgloss.Color("3"),
	Info:          lipgloss.Color("6"),
}

// All lists the palettes in display order.
var All = []Theme{Pantry, Larder, Market, Terminal}

// Active is the palette every view renders with.
var Active = Pantry

// ByName falls back to Pantry for unknown names.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return Pantry
}

func SetActive(name string) {
	Active = ByName(name)
}

// Names lists the theme names in display order.
func Names() []string {
	names := make([]string, len(All))
	for i, t := range All {
		names[i] = t.Name
	}
	return names
}

// Status returns the color for an item status or shopping priority.
// A high-priority entry shares the low-stock color; unknown names render muted.
func (t Theme) Status(name string) lipgloss.Color {
	switch name {
	case "good":
		return t.Good
	case "low", "high":
		return t.Low
	case "critical":
		return t.Critical
	case "medium":
		return t.Planned
	default:
		return t.TextMuted
	}
}
