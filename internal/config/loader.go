package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Event sinks.
const (
	EventSinkLog  = "log"
	EventSinkNATS = "nats"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort          int
	SQLiteDSN         string
	Storage           string
	LogLevel          slog.Level
	LogFormat         string
	RetentionHorizon  time.Duration
	MaxOccurrences    int
	SlotMinMinutes    int
	SlotMaxMinutes    int
	WorkflowCatalog   string
	EventSink         string
	NATSURL           string
	NATSSubjectPrefix string
	Location          *time.Location
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// required values and reporting localized error messages for missing entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		SQLiteDSN:         "scheduler.db",
		Storage:           StorageSQLite,
		LogLevel:          slog.LevelInfo,
		LogFormat:         "json",
		RetentionHorizon:  90 * 24 * time.Hour,
		MaxOccurrences:    1000,
		SlotMinMinutes:    15,
		SlotMaxMinutes:    480,
		EventSink:         EventSinkLog,
		NATSSubjectPrefix: "meetings",
		Location:          time.UTC,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	positiveInt := func(key string, target *int) {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, key)
			return
		}
		*target = n
	}

	positiveInt("SCHEDULER_HTTP_PORT", &cfg.HTTPPort)
	positiveInt("SCHEDULER_MAX_OCCURRENCES", &cfg.MaxOccurrences)
	positiveInt("SCHEDULER_SLOT_MIN_MINUTES", &cfg.SlotMinMinutes)
	positiveInt("SCHEDULER_SLOT_MAX_MINUTES", &cfg.SlotMaxMinutes)
	if cfg.SlotMinMinutes > cfg.SlotMaxMinutes {
		invalid = append(invalid, "SCHEDULER_SLOT_MIN_MINUTES")
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if storage := strings.ToLower(strings.TrimSpace(os.Getenv("SCHEDULER_STORAGE"))); storage != "" {
		switch storage {
		case StorageSQLite, StorageMemory:
			cfg.Storage = storage
		default:
			invalid = append(invalid, "SCHEDULER_STORAGE")
		}
	}

	if level := strings.TrimSpace(os.Getenv("SCHEDULER_LOG_LEVEL")); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(strings.TrimSpace(os.Getenv("SCHEDULER_LOG_FORMAT"))); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			invalid = append(invalid, "SCHEDULER_LOG_FORMAT")
		}
	}

	if horizonValue := strings.TrimSpace(os.Getenv("SCHEDULER_RETENTION_HORIZON")); horizonValue != "" {
		horizon, err := time.ParseDuration(horizonValue)
		if err != nil || horizon <= 0 {
			invalid = append(invalid, "SCHEDULER_RETENTION_HORIZON")
		} else {
			cfg.RetentionHorizon = horizon
		}
	}

	cfg.WorkflowCatalog = strings.TrimSpace(os.Getenv("SCHEDULER_WORKFLOW_CATALOG"))

	if prefix := strings.TrimSpace(os.Getenv("SCHEDULER_NATS_SUBJECT_PREFIX")); prefix != "" {
		cfg.NATSSubjectPrefix = prefix
	}
	cfg.NATSURL = strings.TrimSpace(os.Getenv("SCHEDULER_NATS_URL"))

	if sink := strings.ToLower(strings.TrimSpace(os.Getenv("SCHEDULER_EVENT_SINK"))); sink != "" {
		switch sink {
		case EventSinkLog, EventSinkNATS:
			cfg.EventSink = sink
		default:
			invalid = append(invalid, "SCHEDULER_EVENT_SINK")
		}
	}
	if cfg.EventSink == EventSinkNATS && cfg.NATSURL == "" {
		missing = append(missing, "SCHEDULER_NATS_URL")
	}

	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
