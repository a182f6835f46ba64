package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadTrackerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("bad default poll interval: %v", cfg.PollInterval)
	}
	if cfg.StaleWhileTracked != 10*time.Second || cfg.StaleWhileIdle != 45*time.Second {
		t.Fatalf("bad staleness defaults: %v / %v", cfg.StaleWhileTracked, cfg.StaleWhileIdle)
	}
	if cfg.SmoothDuration != 2*time.Second {
		t.Fatalf("bad smoothing default: %v", cfg.SmoothDuration)
	}
	if cfg.SnapshotEvery != 30*time.Second {
		t.Fatalf("bad snapshot default: %v", cfg.SnapshotEvery)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "7s")
	t.Setenv("RIDE_ID", "ride-42")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadTrackerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Fatalf("override ignored: %v", cfg.PollInterval)
	}
	if cfg.RideID != "ride-42" {
		t.Fatalf("ride id ignored")
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers not split: %v", cfg.KafkaBrokers)
	}
}

func TestInvalidDurationReported(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	if _, err := LoadTrackerConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestInconsistentThresholdsRejected(t *testing.T) {
	t.Setenv("STALE_WHILE_TRACKED", "2m")
	if _, err := LoadTrackerConfig(); err == nil {
		t.Fatalf("expected threshold validation error")
	}
}
