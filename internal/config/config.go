// Package config loads worker process settings from YAML or TOML files and
// SHIKIJIN_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. Nested fields are joined
// with "__", e.g. SHIKIJIN_STORE__REDIS__ADDR.
const EnvPrefix = "SHIKIJIN_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration written as "250ms" or "5s" in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Logger struct {
	// Type is fmt, json or auto.
	Type     string `yaml:"type" toml:"type"`
	Name     string `yaml:"name" toml:"name"`
	Level    string `yaml:"level" toml:"level"`
	FilePath string `yaml:"file_path" toml:"file_path"`
}

type Worker struct {
	// Type selects the worker variant; only basic exists.
	Type            string   `yaml:"type" toml:"type"`
	Name            string   `yaml:"name" toml:"name"`
	Capabilities    []string `yaml:"capabilities" toml:"capabilities"`
	Concurrency     int      `yaml:"concurrency" toml:"concurrency"`
	PollInterval    Duration `yaml:"poll_interval" toml:"poll_interval"`
	ReclaimInterval Duration `yaml:"reclaim_interval" toml:"reclaim_interval"`
}

type Redis struct {
	Addr      string `yaml:"addr" toml:"addr"`
	Password  string `yaml:"password" toml:"password"`
	DB        int    `yaml:"db" toml:"db"`
	Namespace string `yaml:"namespace" toml:"namespace"`
}

type Store struct {
	// Type is memory or redis.
	Type     string   `yaml:"type" toml:"type"`
	Name     string   `yaml:"name" toml:"name"`
	LeaseTTL Duration `yaml:"lease_ttl" toml:"lease_ttl"`
	Redis    Redis    `yaml:"redis" toml:"redis"`
}

type Config struct {
	Logger Logger `yaml:"logger" toml:"logger"`
	Worker Worker `yaml:"worker" toml:"worker"`
	Store  Store  `yaml:"store" toml:"store"`
}

// Default returns the settings used when no file or variable overrides them.
func Default() Config {
	return Config{
		Logger: Logger{Type: "auto", Name: "shikijin", Level: "info"},
		Worker: Worker{
			Type:            "basic",
			Name:            "worker",
			Concurrency:     1,
			PollInterval:    Duration(50 * time.Millisecond),
			ReclaimInterval: Duration(200 * time.Millisecond),
		},
		Store: Store{
			Type:     "memory",
			LeaseTTL: Duration(5 * time.Minute),
			Redis:    Redis{Addr: "127.0.0.1:6379", Namespace: "default"},
		},
	}
}

// Load reads path over the defaults, choosing the format by extension, then
// applies environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(path, b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decode(path string, b []byte, cfg *Config) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	case ".toml":
		err = toml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("%w: unsupported config format %q", ErrInvalid, ext)
	}
	if err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

type setter func(*Config, string) error

func str(f func(*Config) *string) setter {
	return func(c *Config, v string) error { *f(c) = v; return nil }
}

func integer(f func(*Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

func duration(f func(*Config) *Duration) setter {
	return func(c *Config, v string) error { return f(c).UnmarshalText([]byte(v)) }
}

var envSetters = map[string]setter{
	"LOGGER__TYPE":      str(func(c *Config) *string { return &c.Logger.Type }),
	"LOGGER__NAME":      str(func(c *Config) *string { return &c.Logger.Name }),
	"LOGGER__LEVEL":     str(func(c *Config) *string { return &c.Logger.Level }),
	"LOGGER__FILE_PATH": str(func(c *Config) *string { return &c.Logger.FilePath }),

	"WORKER__TYPE": str(func(c *Config) *string { return &c.Worker.Type }),
	"WORKER__NAME": str(func(c *Config) *string { return &c.Worker.Name }),
	"WORKER__CAPABILITIES": func(c *Config, v string) error {
		c.Worker.Capabilities = SplitList(v)
		return nil
	},
	"WORKER__CONCURRENCY":      integer(func(c *Config) *int { return &c.Worker.Concurrency }),
	"WORKER__POLL_INTERVAL":    duration(func(c *Config) *Duration { return &c.Worker.PollInterval }),
	"WORKER__RECLAIM_INTERVAL": duration(func(c *Config) *Duration { return &c.Worker.ReclaimInterval }),

	"STORE__TYPE":             str(func(c *Config) *string { return &c.Store.Type }),
	"STORE__NAME":             str(func(c *Config) *string { return &c.Store.Name }),
	"STORE__LEASE_TTL":        duration(func(c *Config) *Duration { return &c.Store.LeaseTTL }),
	"STORE__REDIS__ADDR":      str(func(c *Config) *string { return &c.Store.Redis.Addr }),
	"STORE__REDIS__PASSWORD":  str(func(c *Config) *string { return &c.Store.Redis.Password }),
	"STORE__REDIS__DB":        integer(func(c *Config) *int { return &c.Store.Redis.DB }),
	"STORE__REDIS__NAMESPACE": str(func(c *Config) *string { return &c.Store.Redis.Namespace }),
}

// ApplyEnv overrides fields from variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for key, set := range envSetters {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := set(c, v); err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalid, EnvPrefix, key, err)
		}
	}
	return nil
}

// Validate rejects unknown variant tags and impossible values.
func (c Config) Validate() error {
	var errs []error
	switch c.Logger.Type {
	case "fmt", "json", "auto":
	default:
		errs = append(errs, fmt.Errorf("%w: logger.type %q", ErrInvalid, c.Logger.Type))
	}
	if c.Worker.Type != "basic" {
		errs = append(errs, fmt.Errorf("%w: worker.type %q", ErrInvalid, c.Worker.Type))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: worker.concurrency must be >= 1", ErrInvalid))
	}
	switch c.Store.Type {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("%w: store.redis.addr is required", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: store.type %q", ErrInvalid, c.Store.Type))
	}
	if c.Store.LeaseTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: store.lease_ttl is negative", ErrInvalid))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
