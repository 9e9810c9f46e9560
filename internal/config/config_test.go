package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-key-that-is-at-least-32-characters-long")
	t.Setenv("STRAVA_CLIENT_ID", "12345")
	t.Setenv("STRAVA_CLIENT_SECRET", "test-client-secret")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	ctx := context.Background()
	cfg, err := Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	// Test default values
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected Server.Port to be '8080', got '%s'", cfg.Server.Port)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected Server.Host to be '0.0.0.0', got '%s'", cfg.Server.Host)
	}

	if cfg.Postgres.Host != "localhost" {
		t.Errorf("Expected Postgres.Host to be 'localhost', got '%s'", cfg.Postgres.Host)
	}

	if cfg.Redis.Host != "localhost" {
		t.Errorf("Expected Redis.Host to be 'localhost', got '%s'", cfg.Redis.Host)
	}

	if cfg.Sync.BatchSize != 10 {
		t.Errorf("Expected Sync.BatchSize to be 10, got %d", cfg.Sync.BatchSize)
	}

	if cfg.Sync.BatchDelay.Duration != 5*time.Second {
		t.Errorf("Expected Sync.BatchDelay to be 5s, got %v", cfg.Sync.BatchDelay.Duration)
	}

	if cfg.Sync.Lookback.Duration != 7*24*time.Hour {
		t.Errorf("Expected Sync.Lookback to be 7d, got %v", cfg.Sync.Lookback.Duration)
	}

	if cfg.Sync.PageSize != 100 {
		t.Errorf("Expected Sync.PageSize to be 100, got %d", cfg.Sync.PageSize)
	}

	if cfg.Sync.MatchThreshold != 0.6 {
		t.Errorf("Expected Sync.MatchThreshold to be 0.6, got %v", cfg.Sync.MatchThreshold)
	}

	if cfg.Scheduler.Timezone != "UTC" {
		t.Errorf("Expected Scheduler.Timezone to be 'UTC', got '%s'", cfg.Scheduler.Timezone)
	}

	if cfg.Scheduler.ActivitySyncSpec != "0 6 * * *" {
		t.Errorf("Expected Scheduler.ActivitySyncSpec to be '0 6 * * *', got '%s'", cfg.Scheduler.ActivitySyncSpec)
	}

	if cfg.Strava.BaseURL != "https://www.strava.com/api/v3" {
		t.Errorf("Expected Strava.BaseURL to be the Strava v3 API, got '%s'", cfg.Strava.BaseURL)
	}

	if cfg.Strava.HTTPTimeout.Duration != 30*time.Second {
		t.Errorf("Expected Strava.HTTPTimeout to be 30s, got %v", cfg.Strava.HTTPTimeout.Duration)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be 'development', got '%s'", cfg.Env)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SYNC_BATCH_SIZE", "25")
	t.Setenv("SYNC_BATCH_DELAY", "2s")
	t.Setenv("SYNC_LOOKBACK", "14d")
	t.Setenv("SCHEDULER_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("ENV", "production")

	ctx := context.Background()
	cfg, err := Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected Server.Port to be '9090', got '%s'", cfg.Server.Port)
	}

	if cfg.Sync.BatchSize != 25 {
		t.Errorf("Expected Sync.BatchSize to be 25, got %d", cfg.Sync.BatchSize)
	}

	if cfg.Sync.BatchDelay.Duration != 2*time.Second {
		t.Errorf("Expected Sync.BatchDelay to be 2s, got %v", cfg.Sync.BatchDelay.Duration)
	}

	if cfg.Sync.Lookback.Duration != 14*24*time.Hour {
		t.Errorf("Expected Sync.Lookback to be 14d, got %v", cfg.Sync.Lookback.Duration)
	}

	if cfg.Scheduler.Timezone != "America/Sao_Paulo" {
		t.Errorf("Expected Scheduler.Timezone to be 'America/Sao_Paulo', got '%s'", cfg.Scheduler.Timezone)
	}

	if _, err := cfg.Scheduler.Location(); err != nil {
		t.Errorf("Expected Scheduler.Location to resolve, got error: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be 'production', got '%s'", cfg.Env)
	}
}

func TestLoadWithoutJWTSecret(t *testing.T) {
	os.Unsetenv("JWT_SECRET")
	t.Setenv("STRAVA_CLIENT_ID", "12345")
	t.Setenv("STRAVA_CLIENT_SECRET", "test-client-secret")

	ctx := context.Background()
	_, err := Load(ctx)
	if err == nil {
		t.Error("Expected error when JWT_SECRET is not set")
	}
}

func TestLoadRejectsInvalidTimezone(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCHEDULER_TIMEZONE", "Not/AZone")

	ctx := context.Background()
	_, err := Load(ctx)
	if err == nil {
		t.Error("Expected error for an invalid scheduler timezone")
	}
}

func TestLoadRejectsZeroBatchSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_BATCH_SIZE", "0")

	ctx := context.Background()
	_, err := Load(ctx)
	if err == nil {
		t.Error("Expected error for a zero batch size")
	}
}
