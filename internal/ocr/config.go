package ocr

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config controls the tesseract invocation and PDF rasterization.
type Config struct {
	Tesseract   string `toml:"tesseract"`
	Language    string `toml:"language"`
	TessdataDir string `toml:"tessdata_dir"`
	PSM         int    `toml:"psm"`
	DPI         int    `toml:"dpi"`
	MaxPages    int    `toml:"max_pages"`
	Workers     int    `toml:"workers"`
	Timeout     string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Tesseract   string
	Language    string
	TessdataDir string
	DPI         string
	MaxPages    string
	Workers     string
	Timeout     string
}

// TimeoutDuration returns the per-page tesseract timeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
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
	if overlay.Tesseract != "" {
		c.Tesseract = overlay.Tesseract
	}
	if overlay.Language != "" {
		c.Language = overlay.Language
	}
	if overlay.TessdataDir != "" {
		c.TessdataDir = overlay.TessdataDir
	}
	if overlay.PSM != 0 {
		c.PSM = overlay.PSM
	}
	if overlay.DPI != 0 {
		c.DPI = overlay.DPI
	}
	if overlay.MaxPages != 0 {
		c.MaxPages = overlay.MaxPages
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.PSM == 0 {
		c.PSM = 3
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.MaxPages == 0 {
		c.MaxPages = 50
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	str := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str(env.Tesseract, &c.Tesseract)
	str(env.Language, &c.Language)
	str(env.TessdataDir, &c.TessdataDir)
	num(env.DPI, &c.DPI)
	num(env.MaxPages, &c.MaxPages)
	num(env.Workers, &c.Workers)
	str(env.Timeout, &c.Timeout)
}

func (c *Config) validate() error {
	if c.PSM < 0 || c.PSM > 13 {
		return fmt.Errorf("psm must be between 0 and 13, got %d", c.PSM)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must not be negative")
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	return nil
}
