package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// TrackerConfig captures all tunable parameters for the tracker process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type TrackerConfig struct {
	// Ride API and realtime channel endpoints.
	APIBaseURL string
	ChannelURL string
	AuthToken  string
	RideID     string

	// Polling fallback.
	PollInterval      time.Duration
	StaleWhileTracked time.Duration
	StaleWhileIdle    time.Duration

	// Position smoothing window.
	SmoothDuration time.Duration

	// Durable cache.
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
	SnapshotEvery time.Duration

	// Connectivity probe.
	ProbeAddr     string
	ProbeInterval time.Duration

	// Transition telemetry.
	KafkaBrokers []string
	KafkaTopic   string

	// Completed-ride archive.
	PGDSN string

	// Ops server.
	HTTPAddr        string
	ShutdownTimeout time.Duration

	LogLevel string
}

func defaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		APIBaseURL:        "http://localhost:8080",
		PollInterval:      10 * time.Second,
		StaleWhileTracked: 10 * time.Second,
		StaleWhileIdle:    45 * time.Second,
		SmoothDuration:    2 * time.Second,
		CacheTTL:          24 * time.Hour,
		SnapshotEvery:     30 * time.Second,
		ProbeInterval:     5 * time.Second,
		KafkaTopic:        "ride-transitions",
		HTTPAddr:          ":8081",
		ShutdownTimeout:   15 * time.Second,
		LogLevel:          "info",
	}
}

func LoadTrackerConfig() (TrackerConfig, error) {
	cfg := defaultTrackerConfig()
	var errs []error

	setStringFromEnv(&cfg.APIBaseURL, "RIDE_API_BASE_URL")
	setStringFromEnv(&cfg.ChannelURL, "RIDE_CHANNEL_URL")
	cfg.AuthToken = os.Getenv("RIDE_AUTH_TOKEN")
	setStringFromEnv(&cfg.RideID, "RIDE_ID")

	setDurationFromEnv(&cfg.PollInterval, "POLL_INTERVAL", &errs)
	setDurationFromEnv(&cfg.StaleWhileTracked, "STALE_WHILE_TRACKED", &errs)
	setDurationFromEnv(&cfg.StaleWhileIdle, "STALE_WHILE_IDLE", &errs)
	setDurationFromEnv(&cfg.SmoothDuration, "SMOOTH_DURATION", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.CacheTTL, "CACHE_TTL", &errs)
	setDurationFromEnv(&cfg.SnapshotEvery, "CACHE_SNAPSHOT_EVERY", &errs)

	setStringFromEnv(&cfg.ProbeAddr, "CONNECTIVITY_PROBE_ADDR")
	setDurationFromEnv(&cfg.ProbeInterval, "CONNECTIVITY_PROBE_INTERVAL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be > 0"))
	}
	if cfg.SmoothDuration <= 0 {
		errs = append(errs, fmt.Errorf("SMOOTH_DURATION must be > 0"))
	}
	if cfg.StaleWhileTracked > cfg.StaleWhileIdle {
		errs = append(errs, fmt.Errorf("STALE_WHILE_TRACKED must not exceed STALE_WHILE_IDLE"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
