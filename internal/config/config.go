// Package config loads the service configuration from config.toml, an
// optional environment overlay, and DOCINTEL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/docintel/internal/ocr"
	"github.com/JaimeStill/docintel/internal/reasoning"
	"github.com/JaimeStill/docintel/internal/telemetry"
	"github.com/JaimeStill/docintel/internal/trigger"
	"github.com/JaimeStill/docintel/pkg/database"
	"github.com/JaimeStill/docintel/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvDocintelEnv             = "DOCINTEL_ENV"
	EnvDocintelShutdownTimeout = "DOCINTEL_SHUTDOWN_TIMEOUT"
	EnvDocintelVersion         = "DOCINTEL_VERSION"
)

var databaseEnv = &database.Env{
	Driver:          "DOCINTEL_DB_DRIVER",
	Path:            "DOCINTEL_DB_PATH",
	Host:            "DOCINTEL_DB_HOST",
	Port:            "DOCINTEL_DB_PORT",
	Name:            "DOCINTEL_DB_NAME",
	User:            "DOCINTEL_DB_USER",
	Password:        "DOCINTEL_DB_PASSWORD",
	SSLMode:         "DOCINTEL_DB_SSL_MODE",
	MaxOpenConns:    "DOCINTEL_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "DOCINTEL_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "DOCINTEL_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "DOCINTEL_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Backend:          "DOCINTEL_STORAGE_BACKEND",
	ContainerName:    "DOCINTEL_STORAGE_CONTAINER_NAME",
	ConnectionString: "DOCINTEL_STORAGE_CONNECTION_STRING",
	ServiceURL:       "DOCINTEL_STORAGE_SERVICE_URL",
	Root:             "DOCINTEL_STORAGE_ROOT",
}

var reasoningEnv = &reasoning.Env{
	Provider:          "DOCINTEL_REASONING_PROVIDER",
	BaseURL:           "DOCINTEL_REASONING_BASE_URL",
	APIKey:            "DOCINTEL_REASONING_API_KEY",
	Model:             "DOCINTEL_REASONING_MODEL",
	Temperature:       "DOCINTEL_REASONING_TEMPERATURE",
	MaxTokens:         "DOCINTEL_REASONING_MAX_TOKENS",
	Timeout:           "DOCINTEL_REASONING_TIMEOUT",
	RequestsPerSecond: "DOCINTEL_REASONING_REQUESTS_PER_SECOND",
	Burst:             "DOCINTEL_REASONING_BURST",
}

var ocrEnv = &ocr.Env{
	Tesseract:   "DOCINTEL_OCR_TESSERACT",
	Language:    "DOCINTEL_OCR_LANGUAGE",
	TessdataDir: "DOCINTEL_OCR_TESSDATA_DIR",
	DPI:         "DOCINTEL_OCR_DPI",
	MaxPages:    "DOCINTEL_OCR_MAX_PAGES",
	Workers:     "DOCINTEL_OCR_WORKERS",
	Timeout:     "DOCINTEL_OCR_TIMEOUT",
}

var telemetryEnv = &telemetry.Env{
	Sinks:        "DOCINTEL_TELEMETRY_SINKS",
	Buffer:       "DOCINTEL_TELEMETRY_BUFFER",
	WriteTimeout: "DOCINTEL_TELEMETRY_WRITE_TIMEOUT",
	Addresses:    "DOCINTEL_TELEMETRY_ADDRESSES",
	Index:        "DOCINTEL_TELEMETRY_INDEX",
}

var triggerEnv = &trigger.Env{
	KafkaEnabled:   "DOCINTEL_KAFKA_ENABLED",
	KafkaBrokers:   "DOCINTEL_KAFKA_BROKERS",
	KafkaTopic:     "DOCINTEL_KAFKA_TOPIC",
	KafkaGroupID:   "DOCINTEL_KAFKA_GROUP_ID",
	KafkaDLQTopic:  "DOCINTEL_KAFKA_DLQ_TOPIC",
	WatcherEnabled: "DOCINTEL_WATCHER_ENABLED",
	WatcherWorkers: "DOCINTEL_WATCHER_WORKERS",
}

// Config is the root configuration for the docintel service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Logging         LoggingConfig    `toml:"logging"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Pipeline        PipelineConfig   `toml:"pipeline"`
	Reasoning       reasoning.Config `toml:"reasoning"`
	OCR             ocr.Config       `toml:"ocr"`
	Telemetry       telemetry.Config `toml:"telemetry"`
	Trigger         trigger.Config   `toml:"trigger"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the DOCINTEL_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvDocintelEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads config.toml from the working directory. See LoadFrom.
func Load() (*Config, error) {
	return LoadFrom(BaseConfigFile)
}

// LoadFrom reads the base config at path (if present), applies the
// environment overlay found next to it, and finalizes all values. If no base
// file exists, defaults and environment variables provide all configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(filepath.Dir(path)); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Logging.Merge(&overlay.Logging)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Reasoning.Merge(&overlay.Reasoning)
	c.OCR.Merge(&overlay.OCR)
	c.Telemetry.Merge(&overlay.Telemetry)
	c.Trigger.Merge(&overlay.Trigger)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Pipeline.Finalize(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Reasoning.Finalize(reasoningEnv); err != nil {
		return fmt.Errorf("reasoning: %w", err)
	}
	if err := c.OCR.Finalize(ocrEnv); err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	if err := c.Telemetry.Finalize(telemetryEnv); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Trigger.Finalize(triggerEnv); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	if c.Trigger.Watcher.Enabled && c.Storage.Backend != storage.BackendFilesystem {
		return fmt.Errorf("trigger: watcher requires the filesystem storage backend")
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvDocintelShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvDocintelVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvDocintelEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
