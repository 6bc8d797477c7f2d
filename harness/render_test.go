package harness

import (
	"strings"
	"testing"

	"github.com/llxisdsh/bakery"
)

func TestRender(t *testing.T) {
	out := Render([]bakery.SlotState{
		{},
		{Choosing: true, Phase: bakery.PhaseChoosing},
		{Ticket: 3, Phase: bakery.PhaseWaiting},
		{Ticket: 2, Phase: bakery.PhaseCritical},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 || lines[0] != "System State:" {
		t.Fatalf("unexpected output:\n%s", out)
	}
	want := []struct {
		prefix string
		suffix string
	}{
		{"Participant 0: Idle", "Idle"},
		{"Participant 1: Requesting", "choosing"},
		{"Participant 2: Requesting", "ticket=3"},
		{"Participant 3: In Critical Section", "ticket=2"},
	}
	for i, w := range want {
		line := lines[i+1]
		if !strings.HasPrefix(line, w.prefix) || !strings.HasSuffix(strings.TrimSpace(line), w.suffix) {
			t.Errorf("line %d = %q, want prefix %q and suffix %q", i+1, line, w.prefix, w.suffix)
		}
	}
}
