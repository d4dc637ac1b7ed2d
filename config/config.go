// Package config loads the server configuration from YAML with
// environment-variable overrides for deployment.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Approval ApprovalConfig `yaml:"approval"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// CORSOrigins are the allowed browser origins; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// Path to the SQLite file; ":memory:" keeps everything in RAM.
	Path string `yaml:"path"`
}

type ApprovalConfig struct {
	// Organization appears on rendered documents.
	Organization string `yaml:"organization"`

	// Overrides are admin principals accepted for stages with no
	// configured assignment.
	Overrides []string `yaml:"overrides"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // console writer instead of JSON
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{ListenAddr: ":8080", CORSOrigins: []string{"*"}},
		Database: DatabaseConfig{Path: "approval.db"},
		Approval: ApprovalConfig{Organization: "Intraflow"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads the config file at path, falling back to defaults for
// anything unset, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployments override the file without editing it.
func (c *Config) applyEnv() {
	if v := os.Getenv("APPROVAL_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("APPROVAL_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("APPROVAL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("APPROVAL_OVERRIDES"); v != "" {
		c.Approval.Overrides = splitAndTrim(v)
	}
}

func (c *Config) validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path must be set")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
