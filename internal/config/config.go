package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and FEED_URL are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrationsPath string

	// Feed
	FeedURL      string
	FeedTimeout  time.Duration
	PollSchedule string
	PollOnStart  bool

	// Broadcast
	TemplateID    string
	SubscriberTag string
	// TargetTime overrides every subscriber's delivery time when set.
	TargetTime       *domain.TimeOfDay
	BroadcastTimeout time.Duration

	// Queue writes
	BatchSize        int
	BatchMaxAttempts int
	ScanPageSize     int
	// QueueWriteRate caps queue items written per second; 0 disables it.
	QueueWriteRate int
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	feedURL := os.Getenv("FEED_URL")
	if feedURL == "" {
		return nil, fmt.Errorf("FEED_URL is required")
	}

	targetTime, _ := ParseTargetTime(os.Getenv("TARGET_TIME"))

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL:    dbURL,
		DBMaxConns:     int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:     int32(getInt("DB_MIN_CONNS", 5)),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		FeedURL:      feedURL,
		FeedTimeout:  getDuration("FEED_TIMEOUT", 30*time.Second),
		PollSchedule: getEnv("POLL_SCHEDULE", "@every 6h"),
		PollOnStart:  getBool("POLL_ON_START", true),

		TemplateID:       getEnv("TEMPLATE_ID", "rss-item"),
		SubscriberTag:    os.Getenv("SUBSCRIBER_TAG"),
		TargetTime:       targetTime,
		BroadcastTimeout: getDuration("BROADCAST_TIMEOUT", 0),

		BatchSize:        getInt("BATCH_SIZE", 25),
		BatchMaxAttempts: getInt("BATCH_MAX_ATTEMPTS", 0),
		ScanPageSize:     getInt("SCAN_PAGE_SIZE", 1000),
		QueueWriteRate:   getInt("QUEUE_WRITE_RATE", 0),
	}, nil
}

// ParseTargetTime parses "HH:MM". Empty or invalid input yields no override.
func ParseTargetTime(s string) (*domain.TimeOfDay, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return nil, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return nil, false
	}
	t := domain.TimeOfDay{Hour: hour, Minute: minute}
	if t.Validate() != nil {
		return nil, false
	}
	return &t, true
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
