package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "atf.db"
	appDir                = "atf"
)

type Keymap struct {
	Quit   string `toml:"quit"`
	Undo   string `toml:"undo"`
	Redo   string `toml:"redo"`
	Up     string `toml:"up"`
	Down   string `toml:"down"`
	Submit string `toml:"submit"`
	Cancel string `toml:"cancel"`
}

type Config struct {
	DBPath        string `toml:"db_path"`
	DefaultFilter string `toml:"default_filter"`
	LogLevel      string `toml:"log_level"`
	LogFile       string `toml:"log_file"`
	HistoryLimit  int    `toml:"history_limit"`
	Timezone      string `toml:"timezone"`
	Addr          string `toml:"addr"`
	Keys          Keymap `toml:"keys"`
}

// ResolveConfigPath returns $ATF_CONFIG or <user config dir>/atf/config.toml.
func ResolveConfigPath() string {
	if p, ok := os.LookupEnv("ATF_CONFIG"); ok && p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, appDir, DefaultConfigFileName)
}

// LoadOrCreate reads the config at path, writing the defaults there first if
// the file does not exist. Environment variables (and .env files) override
// what the file says.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig(filepath.Dir(path))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	envFiles := []string{".env", filepath.Join(filepath.Dir(path), ".env")}
	for _, f := range envFiles {
		_ = godotenv.Load(f) // optional
	}
	applyEnv(&cfg)

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(path), DefaultDBName)
	}
	if cfg.DefaultFilter != "all" && cfg.DefaultFilter != "pending" {
		cfg.DefaultFilter = "all"
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DBPath = getEnvString("ATF_DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnvString("ATF_LOG_LEVEL", cfg.LogLevel)
	cfg.Timezone = getEnvString("ATF_TIMEZONE", cfg.Timezone)
	cfg.Addr = getEnvString("ATF_ADDR", cfg.Addr)
	cfg.HistoryLimit = getEnvInt("ATF_HISTORY_LIMIT", cfg.HistoryLimit)
}

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// Location resolves Timezone; empty means the system zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig(dir string) Config {
	return Config{
		DBPath:        filepath.Join(dir, DefaultDBName),
		DefaultFilter: "all",
		LogLevel:      "info",
		LogFile:       filepath.Join(dir, "atf.log"),
		HistoryLimit:  0,
		Addr:          "127.0.0.1:7080",
		Keys: Keymap{
			Quit:   "ctrl+c",
			Undo:   "ctrl+z",
			Redo:   "ctrl+y",
			Up:     "up",
			Down:   "down",
			Submit: "enter",
			Cancel: "esc",
		},
	}
}
