// Package config loads the explorer's settings from defaults, an optional
// YAML file and the environment.
package config

import (
	"net/url"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Dataset backends
const (
	BackendAPI         = "api"
	BackendObjectStore = "objectstore"
)

type Config struct {
	Addr    string        `yaml:"addr"`
	Logging LoggingConfig `yaml:"logging"`
	// Backend selects how datasets are resolved and listed
	Backend     string            `yaml:"backend"`
	API         APIConfig         `yaml:"api"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	// SessionKey seals the form state cookie. Must be 32 bytes; anything
	// else falls back to a key generated at startup.
	SessionKey string `yaml:"session_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type APIConfig struct {
	Host string `yaml:"host"`
}

type ObjectStoreConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Bucket      string `yaml:"bucket"`
	STSEndpoint string `yaml:"sts_endpoint"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr: ":8080",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Backend: BackendAPI,
		API: APIConfig{
			Host: "http://localhost:8899",
		},
		ObjectStore: ObjectStoreConfig{
			Bucket: "datasets",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to read config")
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config")
			}
		}
	}

	cfg.applyEnvOverrides(getenv)
	return cfg, nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Addr, "EXPLORER_ADDR")
	set(&c.Logging.Level, "EXPLORER_LOG_LEVEL")
	set(&c.Logging.Format, "EXPLORER_LOG_FORMAT")
	set(&c.Backend, "DATASETS_BACKEND")
	set(&c.API.Host, "DOMINO_API_HOST")
	set(&c.ObjectStore.Endpoint, "DATASETS_S3_ENDPOINT")
	set(&c.ObjectStore.Bucket, "DATASETS_S3_BUCKET")
	set(&c.ObjectStore.STSEndpoint, "DATASETS_STS_ENDPOINT")
	set(&c.SessionKey, "EXPLORER_SESSION_KEY")
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}

	switch c.Backend {
	case BackendAPI:
		u, err := url.Parse(c.API.Host)
		if err != nil || !u.IsAbs() {
			return errors.Errorf("api host %q must be an absolute URL", c.API.Host)
		}
	case BackendObjectStore:
		if c.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is required")
		}
		if c.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is required")
		}
	default:
		return errors.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendAPI, BackendObjectStore)
	}
	return nil
}
