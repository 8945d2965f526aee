package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "TELEGRAM_TOKEN", "HTTP_ADDR", "CHECK_INTERVAL", "DAILY_CHECK_TIME", "DISPATCH_TIMEOUT", "TIMEZONE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "task_reminder.db", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.CheckInterval)
	assert.Equal(t, "08:00", cfg.DailyCheckTime)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, time.Local, cfg.Location)
	assert.False(t, cfg.BotEnabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "reminder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("check_interval: 1m\ntimezone: UTC\ntelegram_token: from-file\n"), 0o600))
	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("DATABASE_URL", "postgres://reminder@localhost/reminder")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, "from-env", cfg.TelegramToken)
	assert.Equal(t, "postgres://reminder@localhost/reminder", cfg.DatabaseURL)
	assert.True(t, cfg.BotEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"CHECK_INTERVAL":   "0s",
		"DISPATCH_TIMEOUT": "-1s",
		"DAILY_CHECK_TIME": "8am",
		"TIMEZONE":         "Mars/Olympus",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			chdir(t, t.TempDir())
			t.Setenv(key, value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
