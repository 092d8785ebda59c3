package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config drives the command line sweep and the Slack bot.
type Config struct {
	Spot         float64 // LATTICE_SPOT
	Strike       float64 // LATTICE_STRIKE
	RiskFreeRate float64 // LATTICE_RATE, continuously compounded
	Volatility   float64 // LATTICE_VOLATILITY
	Maturity     float64 // LATTICE_MATURITY in years, also the lattice horizon

	// LowerBarrier and UpperBarrier bound the knock-out corridor. An
	// unset bound is infinite.
	LowerBarrier float64 // LATTICE_LOWER_BARRIER
	UpperBarrier float64 // LATTICE_UPPER_BARRIER

	// Steps lists the numbers of lattice times to sweep.
	Steps []int // LATTICE_STEPS, comma separated

	Simulations int    // LATTICE_SIMULATIONS, 0 skips the Monte Carlo comparison
	Seed        uint64 // LATTICE_SEED
	Workers     int    // LATTICE_WORKERS, 0 uses every core

	OutputFile string // LATTICE_OUTPUT
	LogLevel   string // LOG_LEVEL

	SlackAppToken string // SLACK_APP_TOKEN
	SlackBotToken string // SLACK_BOT_TOKEN
}

var DefaultConfig = Config{
	Spot:         100,
	Strike:       100,
	RiskFreeRate: 0.05,
	Volatility:   0.2,
	Maturity:     1,
	LowerBarrier: 90,
	UpperBarrier: math.Inf(1),
	Steps:        []int{25, 50, 100, 200, 400, 800},
	Simulations:  20000,
	Seed:         1,
	OutputFile:   "convergence.json",
	LogLevel:     "info",
}

// SlackEnabled reports whether both Slack tokens are present.
func (c Config) SlackEnabled() bool {
	return c.SlackAppToken != "" && c.SlackBotToken != ""
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv overlays DefaultConfig with the variables lookup finds.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig
	cfg.Steps = append([]int(nil), DefaultConfig.Steps...)

	floats := []struct {
		key string
		dst *float64
	}{
		{"LATTICE_SPOT", &cfg.Spot},
		{"LATTICE_STRIKE", &cfg.Strike},
		{"LATTICE_RATE", &cfg.RiskFreeRate},
		{"LATTICE_VOLATILITY", &cfg.Volatility},
		{"LATTICE_MATURITY", &cfg.Maturity},
		{"LATTICE_LOWER_BARRIER", &cfg.LowerBarrier},
		{"LATTICE_UPPER_BARRIER", &cfg.UpperBarrier},
	}
	for _, f := range floats {
		if v, ok := lookup(f.key); ok {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return Config{}, fmt.Errorf("%s=%q: %w", f.key, v, ErrInvalidConfig)
			}
			*f.dst = parsed
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"LATTICE_SIMULATIONS", &cfg.Simulations},
		{"LATTICE_WORKERS", &cfg.Workers},
	}
	for _, i := range ints {
		if v, ok := lookup(i.key); ok {
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return Config{}, fmt.Errorf("%s=%q: %w", i.key, v, ErrInvalidConfig)
			}
			*i.dst = parsed
		}
	}

	if v, ok := lookup("LATTICE_SEED"); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("LATTICE_SEED=%q: %w", v, ErrInvalidConfig)
		}
		cfg.Seed = seed
	}

	if v, ok := lookup("LATTICE_STEPS"); ok {
		steps, err := parseSteps(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Steps = steps
	}

	if v, ok := lookup("LATTICE_OUTPUT"); ok {
		cfg.OutputFile = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.SlackAppToken, _ = lookup("SLACK_APP_TOKEN")
	cfg.SlackBotToken, _ = lookup("SLACK_BOT_TOKEN")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case !(c.Spot > 0):
		return fmt.Errorf("spot %v: %w", c.Spot, ErrInvalidConfig)
	case !(c.Strike > 0):
		return fmt.Errorf("strike %v: %w", c.Strike, ErrInvalidConfig)
	case math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0):
		return fmt.Errorf("risk-free rate %v: %w", c.RiskFreeRate, ErrInvalidConfig)
	case !(c.Volatility > 0) || math.IsInf(c.Volatility, 0):
		return fmt.Errorf("volatility %v: %w", c.Volatility, ErrInvalidConfig)
	case !(c.Maturity > 0) || math.IsInf(c.Maturity, 0):
		return fmt.Errorf("maturity %v: %w", c.Maturity, ErrInvalidConfig)
	case math.IsNaN(c.LowerBarrier) || math.IsNaN(c.UpperBarrier) || c.LowerBarrier > c.UpperBarrier:
		return fmt.Errorf("barriers [%v, %v]: %w", c.LowerBarrier, c.UpperBarrier, ErrInvalidConfig)
	case len(c.Steps) == 0:
		return fmt.Errorf("no lattice sizes: %w", ErrInvalidConfig)
	case c.Simulations < 0 || c.Simulations == 1:
		return fmt.Errorf("simulations %d: %w", c.Simulations, ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("workers %d: %w", c.Workers, ErrInvalidConfig)
	case c.OutputFile == "":
		return fmt.Errorf("empty output file: %w", ErrInvalidConfig)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level %q: %w", c.LogLevel, ErrInvalidConfig)
	}
	return nil
}

func parseSteps(v string) ([]int, error) {
	var steps []int
	for _, field := range strings.Split(v, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("LATTICE_STEPS entry %q: %w", field, ErrInvalidConfig)
		}
		steps = append(steps, n)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("LATTICE_STEPS=%q: %w", v, ErrInvalidConfig)
	}
	return steps, nil
}
