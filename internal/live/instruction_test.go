package live

import (
	"strings"
	"testing"
	"time"
)

func TestBuildInstruction_StampsISTClock(t *testing.T) {
	// 06:30 UTC is exactly noon in IST.
	now := time.Date(2026, 3, 14, 6, 30, 0, 0, time.UTC)
	got := BuildInstruction(now, Personalization{})

	for _, want := range []string{
		"Saturday, 14 March 2026",
		"12:00:00 PM",
		"Indian Standard Time (IST)",
		"Zara",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Instruction missing %q:\n%s", want, got)
		}
	}
}

func TestBuildInstruction_PersonalizationSections(t *testing.T) {
	now := time.Date(2026, 3, 14, 6, 30, 0, 0, time.UTC)
	got := BuildInstruction(now, Personalization{
		Nickname: "Sam",
		Memory:   "Prefers short answers.",
		Persona:  &Persona{Name: "Pirate", Prompt: "Speak like a pirate."},
	})

	for _, want := range []string{
		"**USER:** Sam.",
		"Prefers short answers.",
		"ROLEPLAY: Pirate. Speak like a pirate.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Instruction missing %q", want)
		}
	}
}

func TestBuildInstruction_OmitsEmptySections(t *testing.T) {
	now := time.Date(2026, 3, 14, 6, 30, 0, 0, time.UTC)
	got := BuildInstruction(now, Personalization{})

	for _, absent := range []string{"ROLEPLAY", "**MEMORY:**", "**USER:**"} {
		if strings.Contains(got, absent) {
			t.Errorf("Instruction unexpectedly contains %q", absent)
		}
	}
}
