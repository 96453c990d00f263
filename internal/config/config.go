// Package config loads application configuration by layering
// defaults < flags < secrets file < environment. The connection
// string is deliberately not a flag: it comes from the secrets file
// or the COSMOS_CONNECTION_STRING environment variable.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Host        string
	Port        int
	NoBrowser   bool
	SecretsPath string
	FixtureFile string

	ConnectionString string
	Database         string
	Collection       string

	CacheTTL     time.Duration
	WriteTimeout time.Duration
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("determining home directory: %w", err)
	}
	return Config{
		Host:         "127.0.0.1",
		Port:         8501,
		SecretsPath:  filepath.Join(home, ".shopview", "secrets.toml"),
		Database:     "ecommerce",
		Collection:   "sessions",
		CacheTTL:     5 * time.Minute,
		WriteTimeout: 30 * time.Second,
	}, nil
}

// Load builds a Config from defaults, the parsed FlagSet, the secrets
// file, and environment variables. Flags are applied before the
// secrets file is read so that -secrets takes effect.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)

	if err := cfg.loadSecrets(); err != nil {
		return cfg, fmt.Errorf("loading secrets: %w", err)
	}
	cfg.loadEnv()
	return cfg, nil
}

// loadSecrets reads the TOML secrets file. A missing file is not an
// error; the connection string may come from the environment instead.
func (c *Config) loadSecrets() error {
	if _, err := os.Stat(c.SecretsPath); os.IsNotExist(err) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(c.SecretsPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", c.SecretsPath, err)
	}

	if s := v.GetString("cosmos_db.connection_string"); s != "" {
		c.ConnectionString = s
	}
	if s := v.GetString("cosmos_db.database"); s != "" {
		c.Database = s
	}
	if s := v.GetString("cosmos_db.collection"); s != "" {
		c.Collection = s
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("COSMOS_CONNECTION_STRING"); v != "" {
		c.ConnectionString = v
	}
	if v := os.Getenv("SHOPVIEW_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("SHOPVIEW_COLLECTION"); v != "" {
		c.Collection = v
	}
	if v := os.Getenv("SHOPVIEW_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CacheTTL = d
		}
	}
}

// RegisterServeFlags registers serve-command flags on fs. The caller
// must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8501, "Port to listen on")
	fs.Bool("no-browser", false, "Don't open browser on startup")
	fs.String("secrets", "", "Path to the TOML secrets file")
	fs.String(
		"fixture", "",
		"Load sessions from a JSONL file instead of the database",
	)
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "no-browser":
			cfg.NoBrowser = f.Value.String() == "true"
		case "secrets":
			cfg.SecretsPath = f.Value.String()
		case "fixture":
			cfg.FixtureFile = f.Value.String()
		}
	})
}
