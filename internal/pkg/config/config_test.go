package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Session.Backend != BackendFile {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.API.Timeout != 30*time.Second || cfg.API.BootstrapTimeout != 15*time.Second {
		t.Fatalf("unexpected API timeouts %+v", cfg.API)
	}
	if cfg.DashboardRefresh != 2*time.Minute {
		t.Fatalf("unexpected dashboard refresh %v", cfg.DashboardRefresh)
	}
	if cfg.Session.Dir == "" {
		t.Fatalf("expected a default session dir")
	}
	if !cfg.Development() {
		t.Fatalf("default env should be development")
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":             "production",
		"SESSION_BACKEND": " Redis ",
		"SESSION_TTL":     "12h",
		"API_BASE_URL":    "http://localhost:5000/api",
		"MONGO_URI":       "mongodb://localhost:27017",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Backend != BackendRedis || cfg.Session.TTL != 12*time.Hour {
		t.Fatalf("unexpected session config %+v", cfg.Session)
	}
	if cfg.API.BaseURL != "http://localhost:5000/api" || cfg.Mongo.URI == "" || cfg.Development() {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFrom_RejectsUnknownBackend(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{"SESSION_BACKEND": "s3"}))
	if err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
