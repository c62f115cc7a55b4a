package theme

import "testing"

func TestByNameFallsBackToPantry(t *testing.T) {
	if got := ByName("no-such-theme").Name; got != "pantry" {
		t.Fatalf("ByName(unknown) = %q, want pantry", got)
	}
	for _, name := range Names() {
		if got := ByName(name).Name; got != name {
			t.Fatalf("ByName(%q) = %q", name, got)
		}
	}
}

func TestStatusColors(t *testing.T) {
	th := Larder
	cases := map[string]string{
		"good":     string(th.Good),
		"low":      string(th.Low),
		"high":     string(th.Low),
		"critical": string(th.Critical),
		"medium":   string(th.Planned),
		"":         string(th.TextMuted),
	}
	for name, want := range cases {
		if got := string(th.Status(name)); got != want {
			t.Fatalf("Status(%q) = %s, want %s", name, got, want)
		}
	}
}
