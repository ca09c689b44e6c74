package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/kpi"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Accrual    AccrualConfig
	Attendance AttendanceConfig

	// AbsenceTypeMapping is the raw ABSENCE_TYPE_MAPPING, e.g. "RTT=RTT,VACATION=VAC".
	AbsenceTypeMapping string
	CORSOrigins        []string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	Path string
}

// AccrualConfig drives the background accrual scheduler.
type AccrualConfig struct {
	Enabled  bool
	Interval time.Duration
}

// AttendanceConfig is the default work schedule used by KPI punctuality.
type AttendanceConfig struct {
	Timezone     string
	DefaultStart string // HH:MM
	GraceMinutes int
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	config := &Config{}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	config.Database = DatabaseConfig{
		Path: getEnv("DB_PATH", "leave.db"),
	}

	interval, err := time.ParseDuration(getEnv("ACCRUAL_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCRUAL_INTERVAL: %w", err)
	}
	enabled, err := strconv.ParseBool(getEnv("ACCRUAL_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCRUAL_ENABLED: %w", err)
	}
	config.Accrual = AccrualConfig{Enabled: enabled, Interval: interval}

	grace, err := strconv.Atoi(getEnv("LATE_GRACE_MINUTES", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid LATE_GRACE_MINUTES: %w", err)
	}
	config.Attendance = AttendanceConfig{
		Timezone:     getEnv("TIMEZONE", "UTC"),
		DefaultStart: getEnv("SCHEDULE_DEFAULT_START", "09:00"),
		GraceMinutes: grace,
	}

	config.AbsenceTypeMapping = getEnv("ABSENCE_TYPE_MAPPING", "RTT=RTT,VACATION=VAC")
	config.CORSOrigins = getEnvSlice("CORS_ORIGINS")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT must be between 1 and 65535, got %d", c.App.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Accrual.Enabled && c.Accrual.Interval <= 0 {
		return fmt.Errorf("ACCRUAL_INTERVAL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.DefaultStartMinute(); err != nil {
		return err
	}
	if c.Attendance.GraceMinutes < 0 {
		return fmt.Errorf("LATE_GRACE_MINUTES must not be negative")
	}
	if _, err := c.TypeMapping(); err != nil {
		return fmt.Errorf("invalid ABSENCE_TYPE_MAPPING: %w", err)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.App.LogLevel)
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Attendance.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Attendance.Timezone, err)
	}
	return loc, nil
}

// DefaultStartMinute returns SCHEDULE_DEFAULT_START as minutes after midnight.
func (c *Config) DefaultStartMinute() (int, error) {
	t, err := time.Parse("15:04", c.Attendance.DefaultStart)
	if err != nil {
		return 0, fmt.Errorf("SCHEDULE_DEFAULT_START must be HH:MM, got %q", c.Attendance.DefaultStart)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DefaultSchedule is the Monday to Friday schedule for users without one.
func (c *Config) DefaultSchedule() ([]kpi.Slot, error) {
	start, err := c.DefaultStartMinute()
	if err != nil {
		return nil, err
	}
	return kpi.WeekdaySchedule(start, c.Attendance.GraceMinutes), nil
}

func (c *Config) TypeMapping() (absence.TypeMapping, error) {
	return absence.ParseTypeMapping(c.AbsenceTypeMapping)
}

// IsProduction selects the concise request log format.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
