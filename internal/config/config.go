// Package config loads campuslib settings from command-line flags, the
// environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Search   SearchConfig
	Backup   BackupConfig
	Mail     MailConfig
	Reminder ReminderConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataPath    string // Base directory for the SQLite file and search index
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string // sqlite or postgres
	Path     string // SQLite file (default: {data}/campuslib.db)
	DSN      string // PostgreSQL connection string
	MaxConns int    // PostgreSQL pool size
}

// SearchConfig holds catalog index configuration.
type SearchConfig struct {
	Path string // default: {data}/search
}

// BackupConfig holds the archive directory.
type BackupConfig struct {
	Path string // default: {data}/backups
}

// MailConfig holds outbound SMTP settings. Mail is disabled, and reminders
// are only logged, when Username is empty.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // default: Username
}

// Enabled reports whether reminders should go out over SMTP.
func (m MailConfig) Enabled() bool {
	return m.Username != ""
}

// ReminderConfig throttles reminder mail per recipient domain.
type ReminderConfig struct {
	RatePerSecond float64
	Burst         int
}

// LoadConfig parses global flags from args and resolves every setting with
// precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// Parsing stops at the first non-flag argument; the remaining arguments are
// returned for the subcommand.
func LoadConfig(args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet("campuslib", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base directory for local data")
	dbDriver := fs.String("db-driver", "", "Storage driver (sqlite, postgres)")
	dbPath := fs.String("db-path", "", "SQLite database file")
	dbDSN := fs.String("database-url", "", "PostgreSQL connection string")
	dbMaxConns := fs.String("db-max-conns", "", "PostgreSQL pool size (default: 10)")
	searchPath := fs.String("search-path", "", "Directory for the catalog search index")
	backupPath := fs.String("backup-path", "", "Directory for backup archives")
	smtpHost := fs.String("smtp-host", "", "SMTP server host (default: smtp.gmail.com)")
	smtpPort := fs.String("smtp-port", "", "SMTP server port (default: 587)")
	mailFrom := fs.String("mail-from", "", "Sender address for reminders")
	reminderRate := fs.String("reminder-rate", "", "Reminders per second per mail domain (default: 1)")
	reminderBurst := fs.String("reminder-burst", "", "Reminder burst per mail domain (default: 5)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// A missing .env file is fine; existing variables are never overridden.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getConfigValue(*dbDriver, "DB_DRIVER", DriverSQLite)),
			Path:   getConfigValue(*dbPath, "DB_PATH", ""),
			DSN:    getConfigValue(*dbDSN, "DATABASE_URL", ""),
		},
		Search: SearchConfig{
			Path: getConfigValue(*searchPath, "SEARCH_PATH", ""),
		},
		Backup: BackupConfig{
			Path: getConfigValue(*backupPath, "BACKUP_PATH", ""),
		},
		Mail: MailConfig{
			Host:     getConfigValue(*smtpHost, "SMTP_HOST", "smtp.gmail.com"),
			Username: getConfigValue("", "EMAIL_USERNAME", ""),
			Password: getConfigValue("", "EMAIL_PASSWORD", ""),
			From:     getConfigValue(*mailFrom, "MAIL_FROM", ""),
		},
	}

	var err error
	if cfg.Database.MaxConns, err = getIntConfigValue(*dbMaxConns, "DB_MAX_CONNS", 10); err != nil {
		return nil, nil, err
	}
	if cfg.Mail.Port, err = getIntConfigValue(*smtpPort, "SMTP_PORT", 587); err != nil {
		return nil, nil, err
	}
	if cfg.Reminder.RatePerSecond, err = getFloatConfigValue(*reminderRate, "REMINDER_RATE", 1); err != nil {
		return nil, nil, err
	}
	if cfg.Reminder.Burst, err = getIntConfigValue(*reminderBurst, "REMINDER_BURST", 5); err != nil {
		return nil, nil, err
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, fs.Args(), nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("sqlite database path cannot be empty")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("invalid pool size: %d", c.Database.MaxConns)
		}
	default:
		return fmt.Errorf("invalid database driver: %q (must be sqlite or postgres)", c.Database.Driver)
	}

	if c.Mail.Enabled() && (c.Mail.Host == "" || c.Mail.Port <= 0) {
		return errors.New("smtp host and port are required when EMAIL_USERNAME is set")
	}
	if c.Reminder.Burst < 1 {
		return fmt.Errorf("invalid reminder burst: %d", c.Reminder.Burst)
	}

	return nil
}

// expandPaths resolves the data directory and derives the defaults below it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.App.DataPath, err = expandPath(c.App.DataPath, filepath.Join(homeDir, ".campuslib")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Database.Path, err = expandPath(c.Database.Path, filepath.Join(c.App.DataPath, "campuslib.db")); err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}
	if c.Search.Path, err = expandPath(c.Search.Path, filepath.Join(c.App.DataPath, "search")); err != nil {
		return fmt.Errorf("invalid search path: %w", err)
	}
	if c.Backup.Path, err = expandPath(c.Backup.Path, filepath.Join(c.App.DataPath, "backups")); err != nil {
		return fmt.Errorf("invalid backup path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envKey != "" {
		if envValue := os.Getenv(envKey); envValue != "" {
			return envValue
		}
	}
	return defaultValue
}

// getIntConfigValue is getConfigValue for integers. A malformed value is an error.
func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return n, nil
}

// getFloatConfigValue is getConfigValue for floats. A malformed value is an error.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return f, nil
}
