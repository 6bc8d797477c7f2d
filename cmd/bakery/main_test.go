package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/llxisdsh/bakery/harness"
)

var quick = []string{"--doorway-delay=0", "--critical-delay=0", "--pause=0", "--log-level=error"}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(harness.ConfigEnv, "")
	var stdout, stderr bytes.Buffer
	err := run(append(args, quick...), &stdout, &stderr)
	return stdout.String(), err
}

func TestRunFlags(t *testing.T) {
	out, err := runCLI(t, "-n", "2", "-k", "3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Final counter value: 6 (expected 6)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Count(out, "Participant ") != 2 {
		t.Fatalf("final state should list 2 participants:\n%s", out)
	}
}

func TestRunConfigFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bakery.yaml")
	if err := os.WriteFile(path, []byte("participants: 3\niterations: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "--config", path, "-k", "4")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Final counter value: 12 (expected 12)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"extra argument", []string{"extra"}, "unexpected argument"},
		{"log format", []string{"--log-format=xml"}, "invalid --log-format"},
		{"participants", []string{"-n", "0"}, "participants must be positive"},
		{"missing config", []string{"--config", "/nonexistent/bakery.yaml"}, "no such file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("run(%v) = %v, want error containing %q", tc.args, err, tc.want)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	_, err := runCLI(t, "--help")
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("err = %v, want %v", err, pflag.ErrHelp)
	}
}
