// Package config handles yapko.toml engine configuration, with overrides from
// a .env file and YAPKO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alexander-drabik/Yapko/pkg/scope"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "yapko.toml"

// Config holds everything an engine run can be tuned with.
type Config struct {
	// Capture is "index" (closures read the frame at the recorded position)
	// or "frame" (closures keep the frame they were closed over).
	Capture string `toml:"capture"`
	// MaxSteps bounds executed instructions. 0 means unlimited.
	MaxSteps int `toml:"max_steps"`
	// Seed for the Random namespace. 0 seeds from the clock.
	Seed int64 `toml:"seed"`
	// Verbosity of the log. 0 is quiet.
	Verbosity int `toml:"verbosity"`
	// Prompt shown by IO.readLine on an interactive terminal.
	Prompt string `toml:"prompt"`
	// Color is "auto", "always" or "never" for CLI diagnostics.
	Color string `toml:"color"`
}

func Default() Config {
	return Config{
		Capture: "index",
		Prompt:  "",
		Color:   "auto",
	}
}

// Load reads a TOML file over the defaults. A missing file is not an error
// when path is empty; the default file name is tried instead.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Resolve loads the TOML file, then applies the .env file (if present) and
// finally the process environment. Later sources win.
func Resolve(configPath, envPath string) (Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return cfg, err
	}

	explicit := envPath != ""
	if !explicit {
		envPath = ".env"
	}
	if vars, err := godotenv.Read(envPath); err == nil {
		if err := cfg.Apply(func(k string) (string, bool) { v, ok := vars[k]; return v, ok }); err != nil {
			return cfg, fmt.Errorf("%s: %w", filepath.Base(envPath), err)
		}
	} else if explicit {
		return cfg, fmt.Errorf("cannot read %s: %w", envPath, err)
	}

	if err := cfg.Apply(os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Apply overrides fields from YAPKO_* variables found through lookup.
func (c *Config) Apply(lookup func(string) (string, bool)) error {
	if v, ok := lookup("YAPKO_CAPTURE"); ok {
		c.Capture = strings.TrimSpace(v)
	}
	if v, ok := lookup("YAPKO_PROMPT"); ok {
		c.Prompt = v
	}
	if v, ok := lookup("YAPKO_COLOR"); ok {
		c.Color = strings.TrimSpace(v)
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"YAPKO_MAX_STEPS", &c.MaxSteps},
		{"YAPKO_VERBOSITY", &c.Verbosity},
	}
	for _, in := range ints {
		v, ok := lookup(in.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", in.key, err)
		}
		*in.dst = n
	}
	if v, ok := lookup("YAPKO_SEED"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("YAPKO_SEED: %w", err)
		}
		c.Seed = n
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := scope.ParseMode(c.Capture); err != nil {
		return err
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	switch c.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("unknown color setting %q (want auto, always or never)", c.Color)
	}
	return nil
}

// CaptureMode returns the parsed capture mode. Validate reports bad values.
func (c Config) CaptureMode() scope.Mode {
	m, _ := scope.ParseMode(c.Capture)
	return m
}
