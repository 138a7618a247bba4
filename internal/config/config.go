// Package config loads the gateway's TOML configuration file (per
// spec.md §6) and layers environment-variable overrides and secrets on
// top of it, the way the teacher's services read a config file plus
// process environment rather than flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// StorageConfig is the §6 [storage] section.
type StorageConfig struct {
	DBType           string `toml:"db_type"` // "sqlite" or "postgresql"
	DBPath           string `toml:"db_path"`
	ConnectionString string `toml:"connection_string"`
	IndexPath        string `toml:"index_path"`
}

// RoutingConfig is the §6 [routing] section: the default tool and the
// per-class keyword/tool overrides layered on top of §4.F's built-in
// keyword lists.
type RoutingConfig struct {
	DefaultTool  string   `toml:"default_tool"`
	CodeEditing  []string `toml:"code_editing"`
	Research     []string `toml:"research"`
	GeneralChat  []string `toml:"general_chat"`
}

// CodebaseConfig is the §6 [codebase] section.
type CodebaseConfig struct {
	AutoIndex  bool     `toml:"auto_index"`
	WatchPaths []string `toml:"watch_paths"`
	IndexDepth int      `toml:"index_depth"`
}

// APIConfig is the §6 [api] section.
type APIConfig struct {
	EnableMobile      bool     `toml:"enable_mobile"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	RateLimitPerMin   int      `toml:"rate_limit_per_minute"`
}

// ToolConfig is one §6 [tools.<name>] section. Type selects the
// concrete adapter implementation ("openai" or "generic", default
// "openai"); Endpoint overrides the provider base URL, required for
// "generic" and optional for "openai"-compatible upstreams.
type ToolConfig struct {
	APIKeyEnv        string `toml:"api_key_env"`
	Enabled          bool   `toml:"enabled"`
	Model            string `toml:"model"`
	APIKey           string `toml:"api_key"`
	Type             string `toml:"type"`
	Endpoint         string `toml:"endpoint"`
	MaxContextWindow int    `toml:"max_context_window"`
}

// Config is the fully-loaded, environment-overridden gateway config.
type Config struct {
	Storage  StorageConfig          `toml:"storage"`
	Routing  RoutingConfig          `toml:"routing"`
	Codebase CodebaseConfig         `toml:"codebase"`
	API      APIConfig              `toml:"api"`
	Tools    map[string]ToolConfig  `toml:"tools"`

	// Populated from environment, never from the TOML file.
	JWTSecretKey   string
	EncryptionKey  string
	MobileAPIKey   string
	ValidAPIKey    string
	RedisURL       string
	EnableCSRF     bool
	Environment    string
	LogLevel       string
	LogFormat      string
}

// placeholderSecrets are values a developer might leave in a checked-in
// example config; Load refuses to start with one of these in production.
var placeholderSecrets = map[string]bool{
	"":                   true,
	"changeme":           true,
	"change-me":          true,
	"secret":             true,
	"your-secret-key":    true,
	"replace-me":         true,
}

// Load reads path as TOML, loads envPath (if present) into the process
// environment via godotenv, then layers environment variables on top.
// envPath may be empty to skip .env loading.
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("load env file: %w", err)
			}
		}
	}

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DBType: "sqlite",
			DBPath: "gateway.db",
		},
		Routing: RoutingConfig{
			DefaultTool: "general_chat",
		},
		Codebase: CodebaseConfig{
			IndexDepth: 3,
		},
		API: APIConfig{
			RateLimitPerMin: 60,
		},
		Tools:       map[string]ToolConfig{},
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

func applyEnv(cfg *Config) {
	cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	cfg.MobileAPIKey = os.Getenv("MOBILE_API_KEY")
	cfg.ValidAPIKey = os.Getenv("VALID_API_KEY")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	if v := os.Getenv("ENABLE_CSRF"); v != "" {
		cfg.EnableCSRF, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	for name, tool := range cfg.Tools {
		if tool.APIKeyEnv != "" {
			if key := os.Getenv(tool.APIKeyEnv); key != "" {
				tool.APIKey = key
			}
		} else {
			envName := strings.ToUpper(name) + "_API_KEY"
			if key := os.Getenv(envName); key != "" {
				tool.APIKey = key
			}
		}
		cfg.Tools[name] = tool
	}
}

// Validate rejects a config that would start the server in a visibly
// broken or insecure state: a missing/placeholder JWT secret, or an
// unknown storage engine.
func (c *Config) Validate() error {
	if placeholderSecrets[strings.ToLower(strings.TrimSpace(c.JWTSecretKey))] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a non-placeholder value")
	}
	switch c.Storage.DBType {
	case "sqlite", "postgresql":
	default:
		return fmt.Errorf("storage.db_type must be sqlite or postgresql, got %q", c.Storage.DBType)
	}
	if c.API.RateLimitPerMin <= 0 {
		c.API.RateLimitPerMin = 60
	}
	return nil
}

// ToolAPIKey returns the resolved API key for a configured tool, or ""
// if the tool is unknown or has no key.
func (c *Config) ToolAPIKey(name string) string {
	if t, ok := c.Tools[name]; ok {
		return t.APIKey
	}
	return ""
}

// EnabledTools returns the names of tools marked enabled in [tools.*].
func (c *Config) EnabledTools() []string {
	names := make([]string, 0, len(c.Tools))
	for name, tool := range c.Tools {
		if tool.Enabled {
			names = append(names, name)
		}
	}
	return names
}
