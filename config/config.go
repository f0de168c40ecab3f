// Package config loads wrapper policies from YAML.
//
// A document only needs the keys it changes; everything else keeps the value
// from Default. Unknown keys are rejected so typos fail loudly.
//
//	retry:
//	  maxAttempts: 3
//	  initialDelay: PT0.5S
//	  backoffFactor: 2
//	resilient:
//	  timeout: PT5S
//	  onExhaustion: suppress
//	executor:
//	  maxWorkers: 8
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/on-the-ground/wrapkit/memo"
	"github.com/on-the-ground/wrapkit/rangeexec"
	"github.com/on-the-ground/wrapkit/retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Retry     Retry     `yaml:"retry"`
	Resilient Resilient `yaml:"resilient"`
	Executor  Executor  `yaml:"executor"`
	Memo      Memo      `yaml:"memo"`
	Log       Log       `yaml:"log"`
}

type Retry struct {
	MaxAttempts   int      `yaml:"maxAttempts"`
	InitialDelay  Duration `yaml:"initialDelay"`
	BackoffFactor float64  `yaml:"backoffFactor"`
}

type Resilient struct {
	MaxAttempts   int      `yaml:"maxAttempts"`
	Timeout       Duration `yaml:"timeout"`
	Delay         Duration `yaml:"delay"`
	BackoffFactor float64  `yaml:"backoffFactor"`
	OnExhaustion  string   `yaml:"onExhaustion"`
}

type Executor struct {
	MaxWorkers           int `yaml:"maxWorkers"`
	MaxConcurrentWorkers int `yaml:"maxConcurrentWorkers"`
}

type Memo struct {
	// MaxEntries bounds the cache. 0 keeps every entry.
	MaxEntries int64 `yaml:"maxEntries"`
	// Eviction picks the bounded store: "admission" (ristretto, may refuse
	// entries) or "generational" (two rotating generations).
	Eviction string `yaml:"eviction"`
}

const (
	EvictionAdmission    = "admission"
	EvictionGenerational = "generational"
)

type Log struct {
	Level      string `yaml:"level"`
	BufferSize int    `yaml:"bufferSize"`
}

func Default() Config {
	return Config{
		Retry: Retry{
			MaxAttempts:   3,
			InitialDelay:  Duration(500 * time.Millisecond),
			BackoffFactor: 2,
		},
		Resilient: Resilient{
			MaxAttempts:   3,
			Timeout:       Duration(10 * time.Second),
			BackoffFactor: 2,
			OnExhaustion:  retry.Raise.String(),
		},
		Executor: Executor{
			MaxWorkers: 16,
		},
		Memo: Memo{
			Eviction: EvictionAdmission,
		},
		Log: Log{
			Level:      "info",
			BufferSize: 64,
		},
	}
}

// Load reads the YAML file at path over Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a YAML document over Default and validates the result.
// An empty document yields Default.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate builds every component once and reports all rejected parameters.
func (c Config) Validate() error {
	var errs error
	if _, err := c.RetryPolicy(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("retry: %w", err))
	}
	if _, err := c.ResilientPolicy(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("resilient: %w", err))
	}
	if _, err := c.NewExecutor(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("executor: %w", err))
	}
	if c.Memo.MaxEntries < 0 {
		errs = multierr.Append(errs, fmt.Errorf("memo: maxEntries must be 0 or greater, got %d", c.Memo.MaxEntries))
	}
	if c.Memo.Eviction != EvictionAdmission && c.Memo.Eviction != EvictionGenerational {
		errs = multierr.Append(errs, fmt.Errorf("memo: eviction must be %q or %q, got %q",
			EvictionAdmission, EvictionGenerational, c.Memo.Eviction))
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log: %w", err))
	}
	if c.Log.BufferSize < 0 {
		errs = multierr.Append(errs, fmt.Errorf("log: bufferSize must be 0 or greater, got %d", c.Log.BufferSize))
	}
	return errs
}

func (c Config) RetryPolicy(opts ...retry.PolicyOption) (*retry.Policy, error) {
	return retry.NewPolicy(retry.PolicyConfig{
		MaxAttempts:   c.Retry.MaxAttempts,
		InitialDelay:  c.Retry.InitialDelay.Std(),
		BackoffFactor: c.Retry.BackoffFactor,
	}, opts...)
}

func (c Config) ResilientPolicy() (*retry.Resilient, error) {
	mode, err := retry.ParseExhaustion(c.Resilient.OnExhaustion)
	if err != nil {
		return nil, err
	}
	return retry.NewResilient(retry.ResilientConfig{
		MaxAttempts:   c.Resilient.MaxAttempts,
		Timeout:       c.Resilient.Timeout.Std(),
		Delay:         c.Resilient.Delay.Std(),
		BackoffFactor: c.Resilient.BackoffFactor,
		OnExhaustion:  mode,
	})
}

func (c Config) NewExecutor() (*rangeexec.Executor, error) {
	return rangeexec.New(rangeexec.Config{
		MaxWorkers:           c.Executor.MaxWorkers,
		MaxConcurrentWorkers: c.Executor.MaxConcurrentWorkers,
	})
}

// NewCache returns an unbounded cache, or a bounded one when Memo.MaxEntries is set.
func (c Config) NewCache() (*memo.Cache, error) {
	if c.Memo.MaxEntries == 0 {
		return memo.New()
	}
	var (
		store memo.Store
		err   error
	)
	switch c.Memo.Eviction {
	case EvictionGenerational:
		store, err = memo.NewGenerationalStore(int(c.Memo.MaxEntries))
	default:
		store, err = memo.NewRistrettoStore(c.Memo.MaxEntries)
	}
	if err != nil {
		return nil, err
	}
	return memo.NewWithStore(store), nil
}

// NewLogger builds a production zap logger at Log.Level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}
