// Package config loads cursorfold's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/cursorfold/commands"
	cflog "github.com/odvcencio/cursorfold/internal/log"
	"github.com/odvcencio/cursorfold/lsp"
)

const (
	AppName  = "cursorfold"
	FileName = "config.yaml"
)

// Config is the on-disk configuration.
type Config struct {
	// Folding holds the command options under their editor setting names.
	Folding commands.Options `yaml:"folding"`

	Log LogConfig `yaml:"log"`

	// Servers adds or replaces language servers by language id.
	Servers map[string]lsp.ServerConfig `yaml:"servers,omitempty"`

	// Validate rejects folding ranges that are not sorted and laminar.
	Validate bool `yaml:"validate"`

	Serve ServeConfig `yaml:"serve"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServeConfig configures the websocket server.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: string(cflog.FormatText),
		},
		Serve: ServeConfig{Addr: "127.0.0.1:7357"},
	}
}

// Path returns the config file location: an existing cursorfold/config.yaml
// in the XDG config search path, else the one under XDG_CONFIG_HOME.
func Path() string {
	rel := filepath.Join(AppName, FileName)
	if path, err := xdg.SearchConfigFile(rel); err == nil {
		return path
	}
	return filepath.Join(xdg.ConfigHome, rel)
}

// Load reads the file at path, or at Path() when path is empty. A missing
// file yields the defaults. Environment variables override the file's log
// settings.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()
	if err := cfg.loadFromFile(path); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.loadFromEnv()
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = d.Serve.Addr
	}
}

func (c *Config) loadFromEnv() {
	logging := c.Logging()
	cflog.ApplyEnv(logging)
	c.Log.Level = logging.Level
	c.Log.Format = string(logging.Format)
}

// Check reports values a typo could silently break.
func (c *Config) Check() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch cflog.Format(strings.ToLower(c.Log.Format)) {
	case cflog.FormatText, cflog.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	langs := make([]string, 0, len(c.Servers))
	for lang := range c.Servers {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if c.Servers[lang].Command == "" {
			errs = append(errs, fmt.Errorf("servers.%s.command is required", lang))
		}
	}
	return errors.Join(errs...)
}

// Server returns the language server for a language id, configured ones
// taking precedence over the built-in table.
func (c *Config) Server(lang string) (lsp.ServerConfig, bool) {
	if s, ok := c.Servers[lang]; ok {
		return s, true
	}
	s, ok := lsp.DefaultServers()[lang]
	return s, ok
}

// AllServers merges the configured servers over the built-in table.
func (c *Config) AllServers() map[string]lsp.ServerConfig {
	servers := lsp.DefaultServers()
	for lang, s := range c.Servers {
		servers[lang] = s
	}
	return servers
}

// Logging returns the logger configuration.
func (c *Config) Logging() *cflog.Config {
	cfg := cflog.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = cflog.Format(strings.ToLower(c.Log.Format))
	cfg.AddSource = cfg.Level == "debug"
	return cfg
}
