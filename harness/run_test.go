package harness

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/llxisdsh/bakery"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		Participants:  4,
		Iterations:    25,
		DoorwayDelay:  50 * time.Microsecond,
		CriticalDelay: 100 * time.Microsecond,
		Timeout:       time.Minute,
	}
}

func checkClean(t *testing.T, r *Report) {
	t.Helper()
	if r.Violations != 0 {
		t.Fatalf("violations = %d", r.Violations)
	}
	if r.Counter != r.Expected {
		t.Fatalf("counter = %d, want %d", r.Counter, r.Expected)
	}
	for id, n := range r.Entries {
		if n != int64(r.Iterations) {
			t.Errorf("participant %d entered %d times, want %d", id, n, r.Iterations)
		}
	}
	for id, s := range r.Final {
		if s != (bakery.SlotState{}) {
			t.Errorf("final slot %d = %+v, want idle", id, s)
		}
	}
}

func TestRun(t *testing.T) {
	r, err := Run(context.Background(), fastConfig(), WithLogger(discard()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkClean(t, r)
}

func TestRunStaleReads(t *testing.T) {
	cfg := fastConfig()
	cfg.Participants = 3
	cfg.CompareDelay = 20 * time.Microsecond
	r, err := Run(context.Background(), cfg, WithLogger(discard()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkClean(t, r)
}

func TestRunExtraHook(t *testing.T) {
	var steps [5]atomic.Int64
	cfg := fastConfig()
	cfg.Participants = 2
	cfg.Iterations = 5
	_, err := Run(context.Background(), cfg,
		WithLogger(discard()),
		WithHook(func(_ int, step bakery.Step) {
			steps[step].Add(1)
		}),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range []bakery.Step{bakery.StepDoorway, bakery.StepPublish, bakery.StepPublished, bakery.StepWait} {
		if got := steps[s].Load(); got != 10 {
			t.Errorf("step %v ran %d times, want 10", s, got)
		}
	}
	if steps[bakery.StepCompare].Load() < 10 {
		t.Errorf("compare step ran %d times, want >= 10", steps[bakery.StepCompare].Load())
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunShowState(t *testing.T) {
	cfg := fastConfig()
	cfg.Participants = 2
	cfg.Iterations = 3
	cfg.ShowState = true
	var out lockedBuffer
	if _, err := Run(context.Background(), cfg, WithLogger(discard()), WithStateWriter(&out)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := out.String()
	// One state on entry and one after release, per round.
	if got := strings.Count(s, "System State:"); got != 12 {
		t.Fatalf("rendered %d states, want 12", got)
	}
	// Entry states always show the entrant; a release state may show the
	// next participant already inside.
	if got := strings.Count(s, "In Critical Section"); got < 6 || got > 12 {
		t.Fatalf("%d participants shown in the critical section, want 6..12", got)
	}
}

func TestRunSpinLimit(t *testing.T) {
	cfg := fastConfig()
	cfg.Participants = 3
	cfg.Iterations = 5
	cfg.DoorwayDelay = 0
	cfg.CriticalDelay = 20 * time.Millisecond
	cfg.MaxSpins = 1
	r, err := Run(context.Background(), cfg, WithLogger(discard()))
	if !errors.Is(err, bakery.ErrSpinLimit) {
		t.Fatalf("err = %v, want %v", err, bakery.ErrSpinLimit)
	}
	if r.Aborts == 0 {
		t.Fatal("no aborted acquisitions recorded")
	}
	if r.Violations != 0 {
		t.Fatalf("violations = %d", r.Violations)
	}
}

func TestRunTimeoutReportsStarvation(t *testing.T) {
	cfg := fastConfig()
	cfg.Participants = 3
	cfg.Iterations = 1000
	cfg.CriticalDelay = 10 * time.Millisecond
	cfg.Timeout = 30 * time.Millisecond
	r, err := Run(context.Background(), cfg, WithLogger(discard()))
	if !errors.Is(err, ErrStarvation) {
		t.Fatalf("err = %v, want %v", err, ErrStarvation)
	}
	if r.Violations != 0 {
		t.Fatalf("violations = %d", r.Violations)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, fastConfig(), WithLogger(discard()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want %v", err, context.Canceled)
	}
}

func TestRunCanceledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.Iterations = 1000
	cfg.CriticalDelay = time.Millisecond
	time.AfterFunc(20*time.Millisecond, cancel)
	r, err := Run(ctx, cfg, WithLogger(discard()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want %v", err, context.Canceled)
	}
	if r.Violations != 0 {
		t.Fatalf("violations = %d", r.Violations)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	r, err := Run(context.Background(), Config{}, WithLogger(discard()))
	if err == nil || r != nil {
		t.Fatalf("Run(Config{}) = %v, %v", r, err)
	}
}

func TestRunTracing(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	cfg := fastConfig()
	cfg.Participants = 2
	cfg.Iterations = 4
	if _, err := Run(context.Background(), cfg, WithLogger(discard()), WithTracer(tp.Tracer("test"))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	spans := exp.GetSpans()
	if len(spans) != 8 {
		t.Fatalf("recorded %d spans, want 8", len(spans))
	}
	for _, s := range spans {
		if s.Name != "bakery.critical_section" {
			t.Fatalf("span name = %q", s.Name)
		}
	}
}
