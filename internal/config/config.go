// Package config loads brokerd's runtime configuration from YAML using
// github.com/elastic/go-ucfg, following the confengine.Config wrapper
// pattern from packetd-packetd: a thin struct around *ucfg.Config with
// Unpack helpers, plus a top-level typed Config struct with
// `config:"..."` tags that Unpack populates directly.
package config

import (
	"time"

	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
)

// Config wraps ucfg.Config the way confengine.Config does, for callers
// that want to dig into a sub-tree before unpacking (e.g. admin-only
// overrides layered on top of defaults).
type Config struct {
	conf *ucfg.Config
}

func New(conf *ucfg.Config) *Config {
	return &Config{conf: conf}
}

func (c *Config) Unpack(to any) error {
	return c.conf.Unpack(to)
}

func (c *Config) Child(s string) (*Config, error) {
	content, err := c.conf.Child(s, -1)
	if err != nil {
		return nil, err
	}
	return &Config{conf: content}, nil
}

func LoadPath(path string) (*Config, error) {
	conf, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return nil, err
	}
	return New(conf), nil
}

func LoadContent(b []byte) (*Config, error) {
	conf, err := yaml.NewConfig(b)
	if err != nil {
		return nil, err
	}
	return New(conf), nil
}

// LogConfig mirrors internal/log.Options with config tags for YAML
// unpacking; cmd/brokerd copies its fields into a log.Options.
type LogConfig struct {
	Stdout     bool   `config:"stdout"`
	Level      string `config:"level"`
	Filename   string `config:"filename"`
	MaxSizeMB  int    `config:"maxSizeMB"`
	MaxAgeDays int    `config:"maxAgeDays"`
	MaxBackups int    `config:"maxBackups"`
}

// ListenerConfig controls the AMQP accept loop (C12's entry point).
type ListenerConfig struct {
	Address         string        `config:"address"`
	MaxFrameSize    uint32        `config:"maxFrameSize"`
	ChannelMax      uint16        `config:"channelMax"`
	IdleTimeout     time.Duration `config:"idleTimeout"`
	FrameQueueDepth int           `config:"frameQueueDepth"`
}

// AdminConfig controls the HTTP introspection surface (/healthz,
// /metrics, /connections).
type AdminConfig struct {
	Enabled bool   `config:"enabled"`
	Address string `config:"address"`
}

// BrokerConfig is the top-level document cmd/brokerd loads.
type BrokerConfig struct {
	Listener ListenerConfig `config:"listener"`
	Admin    AdminConfig    `config:"admin"`
	Log      LogConfig      `config:"log"`
}

// Defaults returns the configuration brokerd runs with when no file is
// supplied, or when a loaded document omits a section entirely — ucfg's
// Unpack only overwrites fields present in the document, so seeding
// this struct before Unpack gives YAML-optional-with-sane-defaults
// behavior for free.
func Defaults() BrokerConfig {
	return BrokerConfig{
		Listener: ListenerConfig{
			Address:         ":5672",
			MaxFrameSize:    65536,
			ChannelMax:      65535,
			IdleTimeout:     60 * time.Second,
			FrameQueueDepth: 1024,
		},
		Admin: AdminConfig{
			Enabled: true,
			Address: ":8080",
		},
		Log: LogConfig{
			Stdout: true,
			Level:  "info",
		},
	}
}

// Load reads path if non-empty and merges it over Defaults(); an empty
// path returns the defaults untouched.
func Load(path string) (BrokerConfig, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	c, err := LoadPath(path)
	if err != nil {
		return cfg, err
	}
	if err := c.Unpack(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
