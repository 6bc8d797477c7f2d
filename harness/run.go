package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/bakery"
	"github.com/llxisdsh/bakery/internal/gate"
)

const tracerName = "github.com/llxisdsh/bakery/harness"

// Report summarizes a finished run.
type Report struct {
	Participants int
	Iterations   int
	// Counter is the shared counter incremented inside the critical section.
	Counter int64
	// Expected is Participants * Iterations.
	Expected   int64
	Entries    []int64
	Aborts     int64
	MaxWait    time.Duration
	Violations int64
	Elapsed    time.Duration
	// Final is the ticket store after every participant stopped.
	Final []bakery.SlotState
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	state  io.Writer
	hook   bakery.Hook
}

// WithLogger sets the logger for participant events and the run summary.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracer sets the tracer used for critical section spans. The default
// is the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithStateWriter receives a rendered store snapshot on every entry when
// Config.ShowState is set. w must be safe for concurrent use.
func WithStateWriter(w io.Writer) Option {
	return func(o *options) {
		o.state = w
	}
}

// WithHook adds a hook that runs after the configured delay injection.
func WithHook(h bakery.Hook) Option {
	return func(o *options) {
		o.hook = h
	}
}

// Run drives cfg.Participants goroutines through cfg.Iterations critical
// sections each and reports what the recorder observed. The returned report
// is non-nil whenever the configuration is valid, including on error.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := bakery.NewStore(cfg.Participants)
	lock := bakery.NewLock(store,
		bakery.WithHook(injector(cfg, o.hook)),
		bakery.WithMaxSpins(cfg.MaxSpins),
	)
	rec := NewRecorder(cfg.Participants)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	start := time.Now()
	o.logger.Info("starting bakery run",
		"participants", cfg.Participants,
		"iterations", cfg.Iterations,
		"max_spins", cfg.MaxSpins,
	)
	// Participants park at the start gate so their first doorways overlap.
	var starting gate.Gate
	for id := range cfg.Participants {
		p := &worker{id: id, cfg: &cfg, lock: lock, rec: rec, opts: &o}
		g.Go(func() error {
			starting.Wait()
			return p.run(gctx)
		})
	}
	for starting.Waiting() < cfg.Participants {
		runtime.Gosched()
	}
	starting.Open()
	err := g.Wait()

	report := &Report{
		Participants: cfg.Participants,
		Iterations:   cfg.Iterations,
		Counter:      rec.Counter(),
		Expected:     int64(cfg.Participants) * int64(cfg.Iterations),
		Entries:      make([]int64, cfg.Participants),
		Violations:   rec.Violations(),
		Elapsed:      time.Since(start),
		Final:        store.Snapshot(),
	}
	for _, id := range rec.IDs() {
		st := rec.Participant(id)
		report.Entries[id] = st.Entries.Load()
		report.Aborts += st.Aborts.Load()
		report.MaxWait = max(report.MaxWait, time.Duration(st.MaxWait.Load()))
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		var behind []int
		for id, n := range report.Entries {
			if n < int64(cfg.Iterations) {
				behind = append(behind, id)
			}
		}
		err = fmt.Errorf("%w: participants %v unfinished after %v", ErrStarvation, behind, cfg.Timeout)
	}
	if err != nil {
		o.logger.Error("bakery run failed", "error", err, "violations", report.Violations)
		return report, err
	}
	if report.Counter != report.Expected {
		err = fmt.Errorf("%w: counter %d, want %d", ErrMutualExclusion, report.Counter, report.Expected)
		o.logger.Error("bakery run failed", "error", err)
		return report, err
	}
	o.logger.Info("bakery run finished",
		"counter", report.Counter,
		"elapsed", report.Elapsed,
		"max_wait", report.MaxWait,
	)
	return report, nil
}

// worker is one participant's loop.
type worker struct {
	id   int
	cfg  *Config
	lock *bakery.Lock
	rec  *Recorder
	opts *options
}

func (w *worker) run(ctx context.Context) error {
	log := w.opts.logger.With("participant", w.id)
	for iter := range w.cfg.Iterations {
		if err := w.round(ctx, log, iter); err != nil {
			return err
		}
		if err := sleep(ctx, jitter(w.cfg.Pause)); err != nil {
			return err
		}
	}
	log.Debug("participant done", "iterations", w.cfg.Iterations)
	return nil
}

func (w *worker) round(ctx context.Context, log *slog.Logger, iter int) error {
	store := w.lock.Store()
	begin := time.Now()
	if err := w.lock.AcquireContext(ctx, w.id); err != nil {
		w.rec.Abort(w.id)
		log.Warn("acquire withdrawn", "iteration", iter, "error", err)
		return fmt.Errorf("participant %d iteration %d: %w", w.id, iter, err)
	}
	wait := time.Since(begin)
	ticket := store.Ticket(w.id)

	_, span := w.opts.tracer.Start(ctx, "bakery.critical_section", trace.WithAttributes(
		attribute.Int("bakery.participant", w.id),
		attribute.Int("bakery.iteration", iter),
		attribute.Int64("bakery.ticket", int64(ticket)),
	))
	enterErr := w.rec.Enter(w.id, wait)
	log.Debug("entered critical section", "iteration", iter, "ticket", ticket, "wait", wait)
	w.showState(store)

	// The section runs to completion even if ctx ends; only its length is cut.
	_ = sleep(ctx, jitter(w.cfg.CriticalDelay))

	exitErr := w.rec.Exit(w.id)
	span.End()
	w.lock.Release(w.id)
	log.Debug("left critical section", "iteration", iter)
	w.showState(store)

	if err := errors.Join(enterErr, exitErr); err != nil {
		log.Error("overlap detected", "iteration", iter, "error", err)
		return err
	}
	return nil
}

func (w *worker) showState(store *bakery.Store) {
	if w.cfg.ShowState && w.opts.state != nil {
		_, _ = io.WriteString(w.opts.state, Render(store.Snapshot()))
	}
}

// injector turns the configured delays into a lock hook: random sleeps on
// both sides of the ticket write and between reading and comparing a peer's
// ticket.
func injector(cfg Config, extra bakery.Hook) bakery.Hook {
	return func(id int, step bakery.Step) {
		var d time.Duration
		switch step {
		case bakery.StepDoorway, bakery.StepPublished:
			d = jitter(cfg.DoorwayDelay)
		case bakery.StepCompare:
			d = jitter(cfg.CompareDelay)
		}
		if d > 0 {
			time.Sleep(d)
		}
		if extra != nil {
			extra(id, step)
		}
	}
}

// jitter returns a uniform random duration in [0, d).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
