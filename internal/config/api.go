package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/docintel/pkg/middleware"
	"github.com/JaimeStill/docintel/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "DOCINTEL_CORS_ENABLED",
	Origins:          "DOCINTEL_CORS_ORIGINS",
	AllowedMethods:   "DOCINTEL_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "DOCINTEL_CORS_ALLOWED_HEADERS",
	AllowCredentials: "DOCINTEL_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "DOCINTEL_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "DOCINTEL_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "DOCINTEL_PAGINATION_MAX_PAGE_SIZE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:  "DOCINTEL_AUTH_ENABLED",
	Issuer:   "DOCINTEL_AUTH_ISSUER",
	ClientID: "DOCINTEL_AUTH_CLIENT_ID",
}

// APIConfig holds API routing, CORS, pagination, and auth settings.
// MCPPath mounts the streamable HTTP MCP endpoint when set.
type APIConfig struct {
	BasePath   string                `toml:"base_path"`
	MCPPath    string                `toml:"mcp_path"`
	CORS       middleware.CORSConfig `toml:"cors"`
	Pagination pagination.Config     `toml:"pagination"`
	Auth       middleware.AuthConfig `toml:"auth"`
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MCPPath != "" {
		c.MCPPath = overlay.MCPPath
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.Auth.Merge(&overlay.Auth)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("DOCINTEL_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("DOCINTEL_API_MCP_PATH"); v != "" {
		c.MCPPath = v
	}
}
