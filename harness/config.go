package harness

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable LoadConfig reads the config path from.
const ConfigEnv = "BAKERY_CONFIG"

// Config describes one demonstration run.
type Config struct {
	// Participants is the number of goroutines competing for the lock.
	Participants int `yaml:"participants"`

	// Iterations is how many times each participant enters the critical section.
	Iterations int `yaml:"iterations"`

	// DoorwayDelay bounds the random sleep injected on both sides of the
	// ticket scan. It widens the window in which participants pick equal
	// tickets.
	DoorwayDelay time.Duration `yaml:"doorway_delay"`

	// CompareDelay bounds the random sleep between reading a peer's ticket
	// and comparing it, so comparisons use stale values.
	CompareDelay time.Duration `yaml:"compare_delay"`

	// CriticalDelay bounds the random time spent inside the critical section.
	CriticalDelay time.Duration `yaml:"critical_delay"`

	// Pause bounds the random time between a release and the next request.
	Pause time.Duration `yaml:"pause"`

	// MaxSpins aborts an acquisition after this many busy-wait iterations.
	// Zero disables the limit.
	MaxSpins int `yaml:"max_spins"`

	// Timeout bounds the whole run. A participant still waiting when it
	// expires is reported as starved.
	Timeout time.Duration `yaml:"timeout"`

	// ShowState prints the state of every participant on each entry.
	ShowState bool `yaml:"show_state"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Participants:  5,
		Iterations:    10,
		DoorwayDelay:  2 * time.Millisecond,
		CriticalDelay: 5 * time.Millisecond,
		Pause:         5 * time.Millisecond,
		Timeout:       time.Minute,
	}
}

// LoadConfig loads the file named by BAKERY_CONFIG.
func LoadConfig() (Config, error) {
	path := os.Getenv(ConfigEnv)
	if path == "" {
		return Config{}, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a bakery.yaml config file, or use --config flag", ConfigEnv)
	}
	return LoadConfigFile(path)
}

// LoadConfigFile reads a YAML file on top of DefaultConfig. Keys missing
// from the file keep their default values.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Participants <= 0 {
		errs = append(errs, fmt.Errorf("participants must be positive, got %d", c.Participants))
	}
	if c.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("iterations must be positive, got %d", c.Iterations))
	}
	if c.MaxSpins < 0 {
		errs = append(errs, fmt.Errorf("max_spins must not be negative, got %d", c.MaxSpins))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.Timeout))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"doorway_delay", c.DoorwayDelay},
		{"compare_delay", c.CompareDelay},
		{"critical_delay", c.CriticalDelay},
		{"pause", c.Pause},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", d.name, d.value))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
