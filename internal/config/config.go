// Package config loads amti's settings once at startup.
//
// Settings come from built-in defaults, then an optional YAML file, then a
// .env file for AWS credentials. The resulting Config is never mutated
// afterwards; commands receive it explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/amti/internal/layout"
)

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "amti.yaml"

// MaxChunkSize is the most worker ids Mechanical Turk accepts in one
// NotifyWorkers call.
const MaxChunkSize = 100

// Environment names.
const (
	EnvLive    = "live"
	EnvSandbox = "sandbox"
)

// Environment describes one Mechanical Turk site.
type Environment struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	WorkerURL    string `yaml:"worker_url"`
	RequesterURL string `yaml:"requester_url"`
}

// PreviewURL returns the worker-facing preview link for a HIT group.
func (e Environment) PreviewURL(hitGroupID string) string {
	return e.WorkerURL + "mturk/preview?groupId=" + hitGroupID
}

// Config models amti.yaml.
type Config struct {
	Environments   map[string]Environment `yaml:"environments"`
	MaxAttempts    int                    `yaml:"max_attempts"`
	ChunkSize      int                    `yaml:"chunk_size"`
	OverheadFactor float64                `yaml:"overhead_factor"`
	Ledger         string                 `yaml:"ledger"`
	LogFile        string                 `yaml:"log_file"`

	Layout layout.Layout `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environments: map[string]Environment{
			EnvLive: {
				Region:       "us-east-1",
				Endpoint:     "https://mturk-requester.us-east-1.amazonaws.com",
				WorkerURL:    "https://www.mturk.com/",
				RequesterURL: "https://requester.mturk.com/",
			},
			EnvSandbox: {
				Region:       "us-east-1",
				Endpoint:     "https://mturk-requester-sandbox.us-east-1.amazonaws.com",
				WorkerURL:    "https://workersandbox.mturk.com/",
				RequesterURL: "https://requestersandbox.mturk.com/",
			},
		},
		MaxAttempts:    25,
		ChunkSize:      MaxChunkSize,
		OverheadFactor: 1.2,
		Layout:         layout.Default(),
	}
}

// Load builds the configuration. An explicit path must exist; when path is
// empty, DefaultFile is used if present. A .env file in the working
// directory, if any, is loaded into the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	// An explicit "environments: {}" or null must not drop live/sandbox.
	for name, env := range Default().Environments {
		if _, ok := cfg.Environments[name]; !ok {
			if cfg.Environments == nil {
				cfg.Environments = map[string]Environment{}
			}
			cfg.Environments[name] = env
		}
	}
	cfg.Layout = layout.Default()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	return cfg, nil
}

// Env returns the live environment when live is set, otherwise the sandbox.
func (c Config) Env(live bool) (Environment, string, error) {
	name := EnvSandbox
	if live {
		name = EnvLive
	}
	env, ok := c.Environments[name]
	if !ok {
		return Environment{}, name, fmt.Errorf("config: environment %q not defined", name)
	}
	return env, name, nil
}

func (c Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.ChunkSize < 1 || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("config: chunk_size must be between 1 and %d, got %d", MaxChunkSize, c.ChunkSize)
	}
	if c.OverheadFactor <= 0 {
		return fmt.Errorf("config: overhead_factor must be positive, got %v", c.OverheadFactor)
	}
	for name, env := range c.Environments {
		if env.Endpoint == "" || env.Region == "" {
			return fmt.Errorf("config: environment %q needs region and endpoint", name)
		}
	}
	return nil
}
