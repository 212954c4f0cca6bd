package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable for the agent. Values come from an optional
// config.yaml overlaid by environment variables (env wins).
type Config struct {
	Token   string `yaml:"token"`
	OwnerID string `yaml:"owner_id"`
	GuildID string `yaml:"guild_id"`
	Prefix  string `yaml:"prefix"`

	BotName   string `yaml:"bot_name"`
	BotStatus string `yaml:"bot_status"`

	DMAlerts      bool `yaml:"dm_alerts"`
	CoverCommands bool `yaml:"cover_commands"`
	QuickActions  bool `yaml:"quick_actions"`
	EncryptStore  bool `yaml:"encrypt_store"`

	StorePath string `yaml:"store_path"`
	StoreKey  string `yaml:"store_key"`

	AlertCooldown      time.Duration `yaml:"alert_cooldown"`
	MaxAlertsPerMinute int           `yaml:"max_alerts_per_minute"`
	QuickActionTimeout time.Duration `yaml:"quick_action_timeout"`

	MetricsAddr string `yaml:"metrics_addr"`

	Redis    *RedisConfig    `yaml:"redis"`
	Postgres *PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds a lib/pq connection string.
func (p *PostgresConfig) DSN() string {
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, sslmode)
}

func defaults() Config {
	return Config{
		Prefix:             ".",
		BotName:            "Server Helper",
		BotStatus:          "🛠️ Server Helper",
		DMAlerts:           true,
		CoverCommands:      true,
		QuickActions:       true,
		EncryptStore:       true,
		StorePath:          "db.json",
		StoreKey:           "default-key-change-me",
		AlertCooldown:      2 * time.Second,
		MaxAlertsPerMinute: 30,
		QuickActionTimeout: 5 * time.Minute,
	}
}

// Load reads config.yaml if path is non-empty and the file exists, then
// applies environment overrides. A missing owner or guild id is not an
// error here; dependent features degrade at the call sites.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Token, "TOKEN")
	setStr(&cfg.OwnerID, "OWNER_ID")
	setStr(&cfg.GuildID, "GUILD_ID")
	setStr(&cfg.Prefix, "PREFIX")
	setStr(&cfg.BotName, "BOT_NAME")
	setStr(&cfg.BotStatus, "BOT_STATUS")
	setStr(&cfg.StorePath, "STORE_PATH")
	setStr(&cfg.StoreKey, "DB_KEY")
	setStr(&cfg.MetricsAddr, "METRICS_ADDR")

	setBool(&cfg.DMAlerts, "DM_ALERTS")
	setBool(&cfg.CoverCommands, "COVER_COMMANDS")
	setBool(&cfg.QuickActions, "QUICK_ACTIONS")
	setBool(&cfg.EncryptStore, "ENCRYPT_DB")

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if cfg.Redis == nil {
			cfg.Redis = &RedisConfig{}
		}
		cfg.Redis.Addr = v
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
