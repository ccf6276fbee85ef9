// Package config loads process configuration from the environment and an
// optional .env file. Business settings such as rates live in the database,
// not here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	DBPath          string        `mapstructure:"DB_PATH"`
	AdminIDsRaw     string        `mapstructure:"ADMIN_IDS"`
	AdminMagic      string        `mapstructure:"ADMIN_MAGIC"`
	AllowGroupsRaw  string        `mapstructure:"ALLOW_GROUPS"`
	BridgeURL       string        `mapstructure:"BRIDGE_URL"`
	BridgeToken     string        `mapstructure:"BRIDGE_TOKEN"`
	BridgeRPS       float64       `mapstructure:"BRIDGE_RPS"`
	RabbitMQURL     string        `mapstructure:"RABBITMQ_URL"`
	EventsExchange  string        `mapstructure:"EVENTS_EXCHANGE"`
	RateURL         string        `mapstructure:"RATE_URL"`
	RateTimeout     time.Duration `mapstructure:"RATE_TIMEOUT"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	JanitorSchedule string        `mapstructure:"JANITOR_SCHEDULE"`
	PromptDelayMin  time.Duration `mapstructure:"PROMPT_DELAY_MIN"`
	PromptDelayMax  time.Duration `mapstructure:"PROMPT_DELAY_MAX"`
	PacingRaw       string        `mapstructure:"PACING_ENABLED"`
	Signature       string        `mapstructure:"SIGNATURE"`
	ExplorerURL     string        `mapstructure:"EXPLORER_URL"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`

	AdminIDs      []int64 `mapstructure:"-"`
	AllowGroups   bool    `mapstructure:"-"`
	PacingEnabled bool    `mapstructure:"-"`
}

var keys = []string{
	"SERVER_PORT", "DB_PATH", "ADMIN_IDS", "ADMIN_MAGIC", "ALLOW_GROUPS",
	"BRIDGE_URL", "BRIDGE_TOKEN", "BRIDGE_RPS", "RABBITMQ_URL", "EVENTS_EXCHANGE",
	"RATE_URL", "RATE_TIMEOUT", "SESSION_TTL", "JANITOR_SCHEDULE",
	"PROMPT_DELAY_MIN", "PROMPT_DELAY_MAX", "PACING_ENABLED", "SIGNATURE",
	"EXPLORER_URL", "LOG_LEVEL",
}

// Load reads .env (when present; the environment wins) and then the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_PATH", "exchange.db")
	viper.SetDefault("ADMIN_MAGIC", "op:desk")
	viper.SetDefault("ALLOW_GROUPS", "false")
	viper.SetDefault("BRIDGE_RPS", 20)
	viper.SetDefault("EVENTS_EXCHANGE", "exchange.desk")
	viper.SetDefault("RATE_URL", "https://api.binance.com/api/v3/ticker/price?symbol=DASHUSDT")
	viper.SetDefault("RATE_TIMEOUT", "5s")
	viper.SetDefault("SESSION_TTL", "12h")
	viper.SetDefault("JANITOR_SCHEDULE", "@every 30m")
	viper.SetDefault("PROMPT_DELAY_MIN", "9s")
	viper.SetDefault("PROMPT_DELAY_MAX", "11s")
	viper.SetDefault("PACING_ENABLED", "true")
	viper.SetDefault("SIGNATURE", "@BitcoinOperator")
	viper.SetDefault("EXPLORER_URL", "https://blockchair.com/dash/transaction")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.AutomaticEnv()

	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var err error
	if cfg.AdminIDs, err = ParseAdminIDs(cfg.AdminIDsRaw); err != nil {
		return nil, err
	}
	if cfg.AllowGroups, err = parseSwitch("ALLOW_GROUPS", cfg.AllowGroupsRaw); err != nil {
		return nil, err
	}
	if cfg.PacingEnabled, err = parseSwitch("PACING_ENABLED", cfg.PacingRaw); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(c.AdminMagic) == "" {
		return errors.New("ADMIN_MAGIC must not be empty")
	}
	if c.BridgeRPS < 0 {
		return errors.New("BRIDGE_RPS must not be negative")
	}
	if c.RateTimeout <= 0 {
		return errors.New("RATE_TIMEOUT must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.PromptDelayMin <= 0 || c.PromptDelayMax < c.PromptDelayMin {
		return errors.New("PROMPT_DELAY_MIN must be positive and not above PROMPT_DELAY_MAX")
	}
	return nil
}

// ParseAdminIDs splits a comma or space separated list of numeric ids.
func ParseAdminIDs(raw string) ([]int64, error) {
	fields := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS: invalid id %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseSwitch(key, raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "", "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: invalid switch %q", key, raw)
}
