package generate

import (
	"strings"
	"testing"

	"github.com/hpungsan/muse/internal/creation"
)

func TestPortraitPrompt_StyleNarrowsRequest(t *testing.T) {
	s := Subject{Name: "Ada", Designation: "Engineer"}
	seen := map[string]creation.Style{}

	for _, style := range creation.AllStyles() {
		p := PortraitPrompt(s, style, 0)
		if !strings.Contains(p, "Ada") || !strings.Contains(p, "Engineer") {
			t.Errorf("%s prompt missing subject: %s", style, p)
		}
		if !strings.Contains(p, styleDirections[style]) {
			t.Errorf("%s prompt missing style direction", style)
		}
		if other, dup := seen[p]; dup {
			t.Errorf("%s and %s produce the same prompt", style, other)
		}
		seen[p] = style

		if PortraitPrompt(s, style, 0) != p {
			t.Errorf("%s prompt is not deterministic", style)
		}
	}
}

func TestPortraitPrompt_AuxiliaryNote(t *testing.T) {
	s := Subject{Name: "Ada", Designation: "Engineer"}

	if p := PortraitPrompt(s, creation.StyleProfessional, 0); strings.Contains(p, "additional reference") {
		t.Errorf("no-auxiliary prompt mentions references: %s", p)
	}
	if p := PortraitPrompt(s, creation.StyleProfessional, 1); !strings.Contains(p, "1 additional reference photo(s)") {
		t.Errorf("prompt missing note: %s", p)
	}
}

func TestPoemPrompt(t *testing.T) {
	got := PoemPrompt(Subject{Name: "Ada", Designation: "Engineer", Company: "Acme"})
	want := "Write a beautiful, inspiring 4-line poem for Ada, who works as a Engineer at Acme."
	if !strings.HasPrefix(got, want) {
		t.Errorf("PoemPrompt() = %q, want prefix %q", got, want)
	}
}
