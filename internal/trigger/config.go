package trigger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the non-HTTP trigger sources.
type Config struct {
	Kafka   KafkaConfig   `toml:"kafka"`
	Watcher WatcherConfig `toml:"watcher"`
}

// KafkaConfig configures the Kafka consumer and its dead-letter topic.
// DLQTopic defaults to Topic + "_dlq".
type KafkaConfig struct {
	Enabled     bool     `toml:"enabled"`
	Brokers     []string `toml:"brokers"`
	Topic       string   `toml:"topic"`
	GroupID     string   `toml:"group_id"`
	DLQTopic    string   `toml:"dlq_topic"`
	DLQAttempts int      `toml:"dlq_attempts"`
	DLQBackoff  string   `toml:"dlq_backoff"`
}

// WatcherConfig configures the intake directory watcher. It only applies
// to the filesystem storage backend.
type WatcherConfig struct {
	Enabled     bool   `toml:"enabled"`
	Debounce    string `toml:"debounce"`
	Workers     int    `toml:"workers"`
	InitialScan bool   `toml:"initial_scan"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	KafkaEnabled   string
	KafkaBrokers   string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaDLQTopic  string
	WatcherEnabled string
	WatcherWorkers string
}

// DLQBackoffDuration returns the base delay between dead-letter writes.
func (c *KafkaConfig) DLQBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.DLQBackoff)
	return d
}

// DebounceDuration returns the quiet period before a written file is processed.
func (c *WatcherConfig) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(c.Debounce)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}
	c.loadDefaults()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	k, o := &c.Kafka, &overlay.Kafka
	if o.Enabled {
		k.Enabled = true
	}
	if len(o.Brokers) > 0 {
		k.Brokers = o.Brokers
	}
	if o.Topic != "" {
		k.Topic = o.Topic
	}
	if o.GroupID != "" {
		k.GroupID = o.GroupID
	}
	if o.DLQTopic != "" {
		k.DLQTopic = o.DLQTopic
	}
	if o.DLQAttempts != 0 {
		k.DLQAttempts = o.DLQAttempts
	}
	if o.DLQBackoff != "" {
		k.DLQBackoff = o.DLQBackoff
	}

	w, ow := &c.Watcher, &overlay.Watcher
	if ow.Enabled {
		w.Enabled = true
	}
	if ow.Debounce != "" {
		w.Debounce = ow.Debounce
	}
	if ow.Workers != 0 {
		w.Workers = ow.Workers
	}
	if ow.InitialScan {
		w.InitialScan = true
	}
}

func (c *Config) loadDefaults() {
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "docintel.intake"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "docintel"
	}
	if c.Kafka.DLQTopic == "" {
		c.Kafka.DLQTopic = c.Kafka.Topic + "_dlq"
	}
	if c.Kafka.DLQAttempts <= 0 {
		c.Kafka.DLQAttempts = 5
	}
	if c.Kafka.DLQBackoff == "" {
		c.Kafka.DLQBackoff = "1s"
	}
	if c.Watcher.Debounce == "" {
		c.Watcher.Debounce = "500ms"
	}
	if c.Watcher.Workers <= 0 {
		c.Watcher.Workers = 2
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := lookup(env.KafkaEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Kafka.Enabled = b
		}
	}
	if v := lookup(env.KafkaBrokers); v != "" {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}
	if v := lookup(env.KafkaTopic); v != "" {
		c.Kafka.Topic = v
	}
	if v := lookup(env.KafkaGroupID); v != "" {
		c.Kafka.GroupID = v
	}
	if v := lookup(env.KafkaDLQTopic); v != "" {
		c.Kafka.DLQTopic = v
	}
	if v := lookup(env.WatcherEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watcher.Enabled = b
		}
	}
	if v := lookup(env.WatcherWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Watcher.Workers = n
		}
	}
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func (c *Config) validate() error {
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka trigger requires brokers")
	}
	if c.Kafka.DLQTopic == c.Kafka.Topic {
		return fmt.Errorf("kafka dlq_topic must differ from topic")
	}
	if d, err := time.ParseDuration(c.Kafka.DLQBackoff); err != nil || d <= 0 {
		return fmt.Errorf("invalid kafka dlq_backoff %q", c.Kafka.DLQBackoff)
	}
	if d, err := time.ParseDuration(c.Watcher.Debounce); err != nil || d < 0 {
		return fmt.Errorf("invalid watcher debounce %q", c.Watcher.Debounce)
	}
	return nil
}
