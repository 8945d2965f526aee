package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the service and the bot.
type Config struct {
	TelegramToken   string
	DatabaseURL     string
	HTTPAddr        string
	CheckInterval   time.Duration
	DailyCheckTime  string
	DispatchTimeout time.Duration
	Timezone        string
	Location        *time.Location
}

// BotEnabled reports whether a Telegram token was supplied.
func (c Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from an optional file at path, then from environment
// variables, with sane defaults. An empty path looks for config.{yaml,json,toml}
// in the working directory and tolerates its absence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", "task_reminder.db")
	v.SetDefault("telegram_token", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("check_interval", "15m")
	v.SetDefault("daily_check_time", "08:00")
	v.SetDefault("dispatch_timeout", "10s")
	v.SetDefault("timezone", "Local")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		TelegramToken:   strings.TrimSpace(v.GetString("telegram_token")),
		DatabaseURL:     strings.TrimSpace(v.GetString("database_url")),
		HTTPAddr:        strings.TrimSpace(v.GetString("http_addr")),
		CheckInterval:   v.GetDuration("check_interval"),
		DailyCheckTime:  strings.TrimSpace(v.GetString("daily_check_time")),
		DispatchTimeout: v.GetDuration("dispatch_timeout"),
		Timezone:        strings.TrimSpace(v.GetString("timezone")),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = "task_reminder.db"
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("dispatch_timeout must be positive")
	}
	if _, err := time.Parse("15:04", c.DailyCheckTime); err != nil {
		return fmt.Errorf("daily_check_time %q, expected HH:MM", c.DailyCheckTime)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}
