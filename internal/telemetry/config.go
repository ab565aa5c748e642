package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SinkLog           = "log"
	SinkElasticsearch = "elasticsearch"
)

// Config selects span sinks and bounds delivery.
type Config struct {
	Sinks        []string `toml:"sinks"`
	Buffer       int      `toml:"buffer"`
	WriteTimeout string   `toml:"write_timeout"`
	Addresses    []string `toml:"addresses"`
	Index        string   `toml:"index"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Sinks        string
	Buffer       string
	WriteTimeout string
	Addresses    string
	Index        string
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (c *Config) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if len(overlay.Sinks) > 0 {
		c.Sinks = overlay.Sinks
	}
	if overlay.Buffer != 0 {
		c.Buffer = overlay.Buffer
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
	if len(overlay.Addresses) > 0 {
		c.Addresses = overlay.Addresses
	}
	if overlay.Index != "" {
		c.Index = overlay.Index
	}
}

func (c *Config) loadDefaults() {
	if len(c.Sinks) == 0 {
		c.Sinks = []string{SinkLog}
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = DefaultWriteTimeout.String()
	}
	if c.Index == "" {
		c.Index = "docintel-spans"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Sinks != "" {
		if v := os.Getenv(env.Sinks); v != "" {
			c.Sinks = splitList(v)
		}
	}
	if env.Buffer != "" {
		if v := os.Getenv(env.Buffer); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Buffer = n
			}
		}
	}
	if env.WriteTimeout != "" {
		if v := os.Getenv(env.WriteTimeout); v != "" {
			c.WriteTimeout = v
		}
	}
	if env.Addresses != "" {
		if v := os.Getenv(env.Addresses); v != "" {
			c.Addresses = splitList(v)
		}
	}
	if env.Index != "" {
		if v := os.Getenv(env.Index); v != "" {
			c.Index = v
		}
	}
}

func (c *Config) validate() error {
	for _, s := range c.Sinks {
		switch s {
		case SinkLog:
		case SinkElasticsearch:
			if len(c.Addresses) == 0 {
				return fmt.Errorf("addresses required for elasticsearch sink")
			}
		default:
			return fmt.Errorf("unknown telemetry sink %q", s)
		}
	}
	if d, err := time.ParseDuration(c.WriteTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid write_timeout %q", c.WriteTimeout)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// New builds an Emitter with the sinks selected by cfg.
func New(cfg *Config, logger *slog.Logger) (*Emitter, error) {
	sinks := make([]Sink, 0, len(cfg.Sinks))
	for _, name := range cfg.Sinks {
		switch name {
		case SinkLog:
			sinks = append(sinks, NewLogSink(logger))
		case SinkElasticsearch:
			es, err := NewElasticsearchSink(cfg.Addresses, cfg.Index)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, es)
		}
	}
	return NewEmitter(cfg.Buffer, cfg.WriteTimeoutDuration(), logger, sinks...), nil
}
