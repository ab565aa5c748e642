package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/docintel/pkg/formatting"
	"github.com/JaimeStill/docintel/pkg/retry"
)

const (
	EnvPipelineReplaceArtifacts = "DOCINTEL_PIPELINE_REPLACE_ARTIFACTS"
	EnvPipelineWriteResult      = "DOCINTEL_PIPELINE_WRITE_RESULT"
	EnvPipelinePromptsFile      = "DOCINTEL_PIPELINE_PROMPTS_FILE"
	EnvPipelineMaxObjectSize    = "DOCINTEL_PIPELINE_MAX_OBJECT_SIZE"
)

// RetryConfig is the TOML form of a retry.Policy.
type RetryConfig struct {
	MaxAttempts    int    `toml:"max_attempts"`
	Timeout        string `toml:"timeout"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxBackoff     string `toml:"max_backoff"`
}

// Policy converts the config to a retry.Policy.
func (c *RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    c.MaxAttempts,
		Timeout:        parseDuration(c.Timeout),
		InitialBackoff: parseDuration(c.InitialBackoff),
		MaxBackoff:     parseDuration(c.MaxBackoff),
	}
}

func (c *RetryConfig) merge(overlay *RetryConfig) {
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.InitialBackoff != "" {
		c.InitialBackoff = overlay.InitialBackoff
	}
	if overlay.MaxBackoff != "" {
		c.MaxBackoff = overlay.MaxBackoff
	}
}

func (c *RetryConfig) defaults(d RetryConfig) {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Timeout == "" {
		c.Timeout = d.Timeout
	}
	if c.InitialBackoff == "" {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff == "" {
		c.MaxBackoff = d.MaxBackoff
	}
}

func (c *RetryConfig) validate() error {
	for name, v := range map[string]string{
		"timeout":         c.Timeout,
		"initial_backoff": c.InitialBackoff,
		"max_backoff":     c.MaxBackoff,
	} {
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("invalid %s %q", name, v)
		}
	}
	return nil
}

// PipelineConfig tunes the stages and artifact persistence. Each retry
// section bounds one class of collaborator call: optical extraction,
// reasoning (classification and field extraction), and artifact writes.
type PipelineConfig struct {
	ReplaceArtifacts bool        `toml:"replace_artifacts"`
	WriteResult      bool        `toml:"write_result"`
	PromptsFile      string      `toml:"prompts_file"`
	MaxObjectSize    string      `toml:"max_object_size"`
	MaxPromptChars   int         `toml:"max_prompt_chars"`
	Extraction       RetryConfig `toml:"extraction"`
	Reasoning        RetryConfig `toml:"reasoning"`
	Persistence      RetryConfig `toml:"persistence"`
}

// MaxObjectSizeBytes returns MaxObjectSize in bytes.
func (c *PipelineConfig) MaxObjectSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxObjectSize)
	if err != nil {
		return 100 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.ReplaceArtifacts {
		c.ReplaceArtifacts = true
	}
	if overlay.WriteResult {
		c.WriteResult = true
	}
	if overlay.PromptsFile != "" {
		c.PromptsFile = overlay.PromptsFile
	}
	if overlay.MaxObjectSize != "" {
		c.MaxObjectSize = overlay.MaxObjectSize
	}
	if overlay.MaxPromptChars != 0 {
		c.MaxPromptChars = overlay.MaxPromptChars
	}
	c.Extraction.merge(&overlay.Extraction)
	c.Reasoning.merge(&overlay.Reasoning)
	c.Persistence.merge(&overlay.Persistence)
}

func (c *PipelineConfig) loadDefaults() {
	if c.MaxObjectSize == "" {
		c.MaxObjectSize = "100MB"
	}
	if c.MaxPromptChars == 0 {
		c.MaxPromptChars = 60000
	}
	c.Extraction.defaults(RetryConfig{MaxAttempts: 3, Timeout: "5m", InitialBackoff: "2s", MaxBackoff: "30s"})
	c.Reasoning.defaults(RetryConfig{MaxAttempts: 3, Timeout: "90s", InitialBackoff: "1s", MaxBackoff: "15s"})
	c.Persistence.defaults(RetryConfig{MaxAttempts: 3, Timeout: "30s", InitialBackoff: "500ms", MaxBackoff: "5s"})
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineReplaceArtifacts); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ReplaceArtifacts = b
		}
	}
	if v := os.Getenv(EnvPipelineWriteResult); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WriteResult = b
		}
	}
	if v := os.Getenv(EnvPipelinePromptsFile); v != "" {
		c.PromptsFile = v
	}
	if v := os.Getenv(EnvPipelineMaxObjectSize); v != "" {
		c.MaxObjectSize = v
	}
}

func (c *PipelineConfig) validate() error {
	if _, err := formatting.ParseBytes(c.MaxObjectSize); err != nil {
		return fmt.Errorf("invalid max_object_size: %w", err)
	}
	if c.MaxPromptChars < 0 {
		return fmt.Errorf("max_prompt_chars must not be negative")
	}
	if err := c.Extraction.validate(); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := c.Reasoning.validate(); err != nil {
		return fmt.Errorf("reasoning: %w", err)
	}
	if err := c.Persistence.validate(); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}
	return nil
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
