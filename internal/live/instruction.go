package live

import (
	"fmt"
	"strings"
	"time"
)

// ist pins the wall clock stamped into the instruction. The product serves an
// India-based audience, so "what time is it" must answer in IST regardless of
// where the gateway runs.
var ist = time.FixedZone("IST", 5*3600+30*60)

// Persona is an optional roleplay overlay on the core identity.
type Persona struct {
	Name   string
	Prompt string
}

// Personalization carries the user-specific context folded into the prompt.
type Personalization struct {
	Nickname string
	Memory   string
	Persona  *Persona
}

// BuildInstruction assembles the system instruction for a live session: core
// identity, optional persona, the current IST wall clock, and per-user
// context. The model has no clock of its own; stale time here means wrong
// answers for the whole session.
func BuildInstruction(now time.Time, p Personalization) string {
	local := now.In(ist)

	var b strings.Builder
	b.WriteString("**IDENTITY: Zara AI**\n")
	b.WriteString("You are Zara, a highly advanced, empathetic AI companion. Maintain fluent, native-like conversation.\n")

	if p.Persona != nil {
		fmt.Fprintf(&b, "\nROLEPLAY: %s. %s\n", p.Persona.Name, p.Persona.Prompt)
	}

	b.WriteString("\n**REAL-TIME SYSTEM CLOCK:**\n")
	fmt.Fprintf(&b, "- **Current Date**: %s\n", local.Format("Monday, 2 January 2006"))
	fmt.Fprintf(&b, "- **Current Time**: %s\n", local.Format("03:04:05 PM"))
	b.WriteString("- **Timezone**: Indian Standard Time (IST)\n")
	b.WriteString("\n**UP-TO-DATE CONTEXT (CRITICAL):**\n")
	b.WriteString("1. The user is in India.\n")
	b.WriteString("2. If the user asks for the date, day, or time, use the clock above exactly.\n")

	if p.Memory != "" {
		fmt.Fprintf(&b, "\n**MEMORY:**\n%s\n", p.Memory)
	}
	if p.Nickname != "" {
		fmt.Fprintf(&b, "\n**USER:** %s.\n", p.Nickname)
	}

	return b.String()
}
