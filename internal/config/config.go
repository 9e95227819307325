package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the arcade configuration (excluding the arcade identity settings which are in the database).
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"ARCADE_"`
	Paths     PathsConfig     `yaml:"paths" envPrefix:"ARCADE_"`
	Admin     AdminConfig     `yaml:"admin" envPrefix:"ARCADE_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"ARCADE_REDIS_"`
	Reminders RemindersConfig `yaml:"reminders" envPrefix:"ARCADE_REMINDERS_"`
}

// ServerConfig holds network listener settings.
type ServerConfig struct {
	TelnetPort int `yaml:"telnet_port" env:"TELNET_PORT"`
	SSHPort    int `yaml:"ssh_port" env:"SSH_PORT"`
	HealthPort int `yaml:"health_port" env:"HEALTH_PORT"`
}

// PathsConfig holds filesystem paths for assets and data.
type PathsConfig struct {
	Scripts  string `yaml:"scripts" env:"SCRIPTS"`
	Data     string `yaml:"data" env:"DATA"`
	Database string `yaml:"database" env:"DATABASE"`
}

// AdminConfig holds the bootstrap administrators. These ids are always
// privileged regardless of the admins table.
type AdminConfig struct {
	BootstrapIDs []int64 `yaml:"bootstrap_ids" env:"ADMIN_IDS" envSeparator:","`
}

// RedisConfig enables distributed per-user locking when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// RemindersConfig controls reminder scheduling.
type RemindersConfig struct {
	// ResumePending re-arms timers for reminders still pending at startup.
	ResumePending bool `yaml:"resume_pending" env:"RESUME_PENDING"`
}

// Default returns the built-in configuration used before any file or
// environment overrides are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			TelnetPort: 2323,
			SSHPort:    2222,
			HealthPort: 2223,
		},
		Paths: PathsConfig{
			Scripts:  "./assets/scripts",
			Data:     "./data",
			Database: "./data/arcade.db",
		},
		Reminders: RemindersConfig{
			ResumePending: true,
		},
	}
}

// Load reads and parses a YAML config file, then applies ARCADE_*
// environment overrides. A .env file next to the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}
