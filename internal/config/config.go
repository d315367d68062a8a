package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Escalation   EscalationConfig
	Assignment   AssignmentConfig
	Sweep        SweepConfig
	SLA          SLAConfig
	Sentry       SentryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	ObjectiveCacheTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds notification sinks.
type NotificationConfig struct {
	EmailFrom     string
	WebhookURL    string
	NATSURL       string
	SubjectPrefix string

	QueueSize              int
	DeliveryWorkers        int
	DeliveryTimeoutSeconds int
}

// DeliveryTimeout bounds a single notification delivery.
func (n NotificationConfig) DeliveryTimeout() time.Duration {
	return time.Duration(n.DeliveryTimeoutSeconds) * time.Second
}

// AgeMode selects the reference point for age based escalation.
type AgeMode string

const (
	AgeSinceCreation       AgeMode = "since_creation"
	AgeSinceLastEscalation AgeMode = "since_last_escalation"
)

// EscalationConfig carries the per-level escalation requirements.
type EscalationConfig struct {
	DwellByLevel         map[int]time.Duration
	AgeMode              AgeMode
	RecurrenceMinOccurs  int
	RecurrenceWindowDays int
}

// AssignmentConfig carries per-level assignment quotas. Zero means unlimited.
type AssignmentConfig struct {
	MaxActiveByLevel map[int]int
}

// SweepConfig controls the periodic escalation sweep.
type SweepConfig struct {
	Enabled                   bool
	IntervalSeconds           int
	PerIncidentTimeoutSeconds int
	Concurrency               int
	LockKey                   string
	LockTTLSeconds            int
}

// SLAConfig controls SLA reporting.
type SLAConfig struct {
	TimeZone string
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ageMode := AgeMode(strings.ToLower(getEnv("ESCALATION_AGE_MODE", string(AgeSinceCreation))))
	if ageMode != AgeSinceCreation && ageMode != AgeSinceLastEscalation {
		return nil, fmt.Errorf("invalid ESCALATION_AGE_MODE: %q", ageMode)
	}

	tz := getEnv("SLA_TIMEZONE", "UTC")
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid SLA_TIMEZONE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "incident-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:              getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:          os.Getenv("REDIS_PASSWORD"),
			DB:                redisDB,
			ObjectiveCacheTTL: time.Duration(getEnvAsInt("REDIS_OBJECTIVE_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
			NATSURL:       getEnv("NOTIFY_NATS_URL", ""),
			SubjectPrefix: getEnv("NOTIFY_NATS_SUBJECT_PREFIX", "incidents.notifications"),

			QueueSize:              getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			DeliveryWorkers:        getEnvAsInt("NOTIFY_DELIVERY_WORKERS", 2),
			DeliveryTimeoutSeconds: getEnvAsInt("NOTIFY_DELIVERY_TIMEOUT_SECONDS", 5),
		},
		Escalation: EscalationConfig{
			DwellByLevel: map[int]time.Duration{
				1: time.Duration(getEnvAsInt("ESCALATION_LEVEL1_DWELL_HOURS", 24)) * time.Hour,
				2: time.Duration(getEnvAsInt("ESCALATION_LEVEL2_DWELL_HOURS", 48)) * time.Hour,
				3: time.Duration(getEnvAsInt("ESCALATION_LEVEL3_DWELL_HOURS", 72)) * time.Hour,
			},
			AgeMode:              ageMode,
			RecurrenceMinOccurs:  getEnvAsInt("ESCALATION_RECURRENCE_MIN_OCCURRENCES", 3),
			RecurrenceWindowDays: getEnvAsInt("ESCALATION_RECURRENCE_WINDOW_DAYS", 30),
		},
		Assignment: AssignmentConfig{
			MaxActiveByLevel: map[int]int{
				1: getEnvAsInt("ASSIGNMENT_LEVEL1_MAX_ACTIVE", 0),
				2: getEnvAsInt("ASSIGNMENT_LEVEL2_MAX_ACTIVE", 0),
				3: getEnvAsInt("ASSIGNMENT_LEVEL3_MAX_ACTIVE", 0),
			},
		},
		Sweep: SweepConfig{
			Enabled:                   getEnvAsBool("SWEEP_ENABLED", true),
			IntervalSeconds:           getEnvAsInt("SWEEP_INTERVAL_SECONDS", 300),
			PerIncidentTimeoutSeconds: getEnvAsInt("SWEEP_PER_INCIDENT_TIMEOUT_SECONDS", 10),
			Concurrency:               getEnvAsInt("SWEEP_CONCURRENCY", 4),
			LockKey:                   getEnv("SWEEP_LOCK_KEY", "incident-service:sweep-lock"),
			LockTTLSeconds:            getEnvAsInt("SWEEP_LOCK_TTL_SECONDS", 240),
		},
		SLA: SLAConfig{
			TimeZone: tz,
		},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the sweep period.
func (s SweepConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// PerIncidentTimeout bounds the work spent on a single incident during a sweep.
func (s SweepConfig) PerIncidentTimeout() time.Duration {
	if s.PerIncidentTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.PerIncidentTimeoutSeconds) * time.Second
}

// LockTTL returns how long a sweep lease is held.
func (s SweepConfig) LockTTL() time.Duration {
	if s.LockTTLSeconds <= 0 {
		return s.Interval()
	}
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// RecurrenceWindow returns the look-back window; zero means unbounded.
func (e EscalationConfig) RecurrenceWindow() time.Duration {
	if e.RecurrenceWindowDays <= 0 {
		return 0
	}
	return time.Duration(e.RecurrenceWindowDays) * 24 * time.Hour
}

// Location resolves the configured SLA time zone.
func (s SLAConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
