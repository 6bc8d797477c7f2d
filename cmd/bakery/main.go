// bakery runs Lamport's bakery algorithm with a configurable number of
// goroutine participants and checks that no two of them ever share the
// critical section.
//
// Configuration comes from a YAML file (--config, or BAKERY_CONFIG) with
// flags taking precedence over file values. Random delays can be injected
// around the ticket scan (--doorway-delay) and between reading and comparing
// a peer's ticket (--compare-delay) to widen the races the algorithm
// tolerates.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/llxisdsh/bakery/harness"
	"github.com/llxisdsh/bakery/metrics"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, harness.ErrMutualExclusion) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		metricsAddr string
		traceOut    bool
		logLevel    string
		logFormat   string
	)
	cfg := harness.DefaultConfig()

	flagSet := pflag.NewFlagSet("bakery", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file (default: $BAKERY_CONFIG)")
	flagSet.IntVarP(&cfg.Participants, "participants", "n", cfg.Participants, "number of participants")
	flagSet.IntVarP(&cfg.Iterations, "iterations", "k", cfg.Iterations, "critical section entries per participant")
	flagSet.DurationVar(&cfg.DoorwayDelay, "doorway-delay", cfg.DoorwayDelay, "max random delay around the ticket scan")
	flagSet.DurationVar(&cfg.CompareDelay, "compare-delay", cfg.CompareDelay, "max random delay between reading and comparing a peer ticket")
	flagSet.DurationVar(&cfg.CriticalDelay, "critical-delay", cfg.CriticalDelay, "max random time spent in the critical section")
	flagSet.DurationVar(&cfg.Pause, "pause", cfg.Pause, "max random pause between iterations")
	flagSet.IntVar(&cfg.MaxSpins, "max-spins", cfg.MaxSpins, "abort an acquisition after this many spins (0 = unlimited)")
	flagSet.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "bound on the whole run")
	flagSet.BoolVar(&cfg.ShowState, "show-state", cfg.ShowState, "print every participant's state on each entry")
	flagSet.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	flagSet.BoolVar(&traceOut, "trace", false, "write critical section spans to stdout")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.StringVar(&logFormat, "log-format", "text", "log format: text or json")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	logger, err := newLogger(stderr, logLevel, logFormat)
	if err != nil {
		return err
	}

	// File values sit under flags: load the file, then re-apply every flag
	// the user set explicitly.
	if configPath == "" {
		configPath = os.Getenv(harness.ConfigEnv)
	}
	if configPath != "" {
		fileCfg, err := harness.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		overrideFromFlags(flagSet, &fileCfg, &cfg)
		cfg = fileCfg
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if traceOut {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stdout), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		otel.SetTracerProvider(tp)
	}

	if metricsAddr != "" {
		shutdown, err := serveMetrics(metricsAddr, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	report, err := harness.Run(ctx, cfg,
		harness.WithLogger(logger),
		harness.WithStateWriter(stdout),
	)
	if report != nil {
		fmt.Fprint(stdout, harness.Render(report.Final))
		fmt.Fprintf(stdout, "Final counter value: %d (expected %d)\n", report.Counter, report.Expected)
	}
	return err
}

// overrideFromFlags copies explicitly set flag values from flagged into dst.
func overrideFromFlags(flagSet *pflag.FlagSet, dst, flagged *harness.Config) {
	flagSet.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "participants":
			dst.Participants = flagged.Participants
		case "iterations":
			dst.Iterations = flagged.Iterations
		case "doorway-delay":
			dst.DoorwayDelay = flagged.DoorwayDelay
		case "compare-delay":
			dst.CompareDelay = flagged.CompareDelay
		case "critical-delay":
			dst.CriticalDelay = flagged.CriticalDelay
		case "pause":
			dst.Pause = flagged.Pause
		case "max-spins":
			dst.MaxSpins = flagged.MaxSpins
		case "timeout":
			dst.Timeout = flagged.Timeout
		case "show-state":
			dst.ShowState = flagged.ShowState
		}
	})
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
}

func serveMetrics(addr string, logger *slog.Logger) (func(), error) {
	reg := metrics.NewRegistry()
	metrics.RegisterHarnessMetrics(reg)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())
	return func() { _ = server.Close() }, nil
}
