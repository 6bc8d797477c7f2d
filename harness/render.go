package harness

import (
	"fmt"
	"strings"

	"github.com/llxisdsh/bakery"
)

// Render draws a snapshot of the ticket store, one line per participant.
func Render(slots []bakery.SlotState) string {
	var b strings.Builder
	b.WriteString("\nSystem State:\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "Participant %d: %-19s", i, describe(s.Phase))
		if s.Ticket != 0 {
			fmt.Fprintf(&b, " ticket=%d", s.Ticket)
		}
		if s.Choosing {
			b.WriteString(" choosing")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func describe(p bakery.Phase) string {
	switch p {
	case bakery.PhaseChoosing, bakery.PhaseWaiting:
		return "Requesting"
	case bakery.PhaseCritical:
		return "In Critical Section"
	default:
		return "Idle"
	}
}
