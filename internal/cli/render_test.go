package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestRenderTableAlignsNumericColumns(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	out := RenderTable(Table{
		Headers: []string{"Item", "Left", "Status"},
		Rows: [][]string{
			{"Milk", "2.5", "low"},
			SeparatorRow,
			{"Rice", "14", "good"},
		},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("lines = %d, want 7:\n%s", len(lines), out)
	}
	for _, l := range lines[1:] {
		if lipgloss.Width(l) != lipgloss.Width(lines[0]) {
			t.Fatalf("ragged table:\n%s", out)
		}
	}
	if !strings.Contains(out, "│   14 │") {
		t.Fatalf("numeric column not right-aligned:\n%s", out)
	}
	if !strings.Contains(out, "│ low    │") {
		t.Fatalf("text column not left-aligned:\n%s", out)
	}
	if !strings.HasPrefix(lines[4], "├") {
		t.Fatalf("separator row = %q", lines[4])
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{0, 4, 8}); got != "▁▄█" {
		t.Fatalf("RenderSparkline = %q, want ▁▄█", got)
	}
	if got := RenderSparkline(nil); got != "" {
		t.Fatalf("RenderSparkline(nil) = %q", got)
	}
}
