package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development", DataPath: "/data"},
		Logger:   LoggerConfig{Level: "info"},
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "/data/campuslib.db", MaxConns: 10},
		Search:   SearchConfig{Path: "/data/search"},
		Mail:     MailConfig{Host: "smtp.example.com", Port: 587},
		Reminder: ReminderConfig{RatePerSecond: 1, Burst: 5},
	}
}

// isolateEnv clears every variable LoadConfig reads and moves into an empty
// directory so a developer's .env cannot leak into the test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "DATA_PATH", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "DB_MAX_CONNS",
		"SEARCH_PATH", "BACKUP_PATH", "SMTP_HOST", "SMTP_PORT", "EMAIL_USERNAME", "EMAIL_PASSWORD", "MAIL_FROM",
		"REMINDER_RATE", "REMINDER_BURST",
	} {
		t.Setenv(key, "") // restores the original value on cleanup
		os.Unsetenv(key)
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Database(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "database driver")

	cfg = validConfig()
	cfg.Database.Driver = DriverPostgres
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg.Database.DSN = "postgres://localhost/campuslib"
	assert.NoError(t, cfg.Validate())

	cfg.Database.MaxConns = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_MailNeedsHostWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Mail = MailConfig{Username: "library@example.com", Host: "", Port: 587}
	assert.Error(t, cfg.Validate())

	cfg.Mail.Host = "smtp.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateEnv(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, rest, err := LoadConfig([]string{"borrow", "-email", "a@x.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{"borrow", "-email", "a@x.com"}, rest)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, filepath.Join(home, ".campuslib"), cfg.App.DataPath)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, filepath.Join(home, ".campuslib", "campuslib.db"), cfg.Database.Path)
	assert.Equal(t, filepath.Join(home, ".campuslib", "search"), cfg.Search.Path)
	assert.Equal(t, filepath.Join(home, ".campuslib", "backups"), cfg.Backup.Path)
	assert.Equal(t, "smtp.gmail.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.False(t, cfg.Mail.Enabled())
	assert.Equal(t, 1.0, cfg.Reminder.RatePerSecond)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := isolateEnv(t)

	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# campuslib\nLOG_LEVEL=debug\nEMAIL_USERNAME=\"library@example.com\"\nDB_MAX_CONNS=3\nDATA_PATH=/from-file\n",
	), 0o600))
	t.Setenv("DATA_PATH", "/from-env")

	cfg, rest, err := LoadConfig([]string{"-env-file", envFile, "-data-path", "/from-flag", "overdue"})
	require.NoError(t, err)

	assert.Equal(t, []string{"overdue"}, rest)
	assert.Equal(t, "debug", cfg.Logger.Level, ".env fills unset variables")
	assert.Equal(t, "/from-flag", cfg.App.DataPath, "flags beat the environment")
	assert.Equal(t, "library@example.com", cfg.Mail.Username)
	assert.Equal(t, "library@example.com", cfg.Mail.From, "sender defaults to the SMTP user")
	assert.True(t, cfg.Mail.Enabled())
	assert.Equal(t, 3, cfg.Database.MaxConns)
}

func TestLoadConfig_EnvBeatsEnvFile(t *testing.T) {
	dir := isolateEnv(t)

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, _, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoadConfig_InvalidNumber(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SMTP_PORT", "not-a-port")

	_, _, err := LoadConfig(nil)
	assert.ErrorContains(t, err, "SMTP_PORT")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/lib", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "lib"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/a/../b", "")
	require.NoError(t, err)
	assert.Equal(t, "/b", got)
}
