package bootstrap

import (
	"strings"
	"testing"
	"time"
)

func validConfig() AppConfig {
	return AppConfig{
		Env:            "dev",
		HTTPAddr:       ":0",
		LogLevel:       "info",
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "taskhub_test",
		StorageBackend: "memory",
		SessionKey:     "test-session-key-that-is-32-chars!!",
		SessionName:    "taskhub-session",
		SessionMaxAge:  time.Hour,
		BaseURL:        "http://localhost:8080",
		InvitationTTL:  time.Hour,
		RealtimeSource: "local",
		SweepInterval:  time.Minute,
		AuditLogAuth:   "log",
		AuditLogAdmin:  "db",

		SessionIdleTimeout: 30 * time.Minute,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Env != "dev" || cfg.HTTPAddr != ":8080" {
		t.Errorf("env/addr = %q/%q", cfg.Env, cfg.HTTPAddr)
	}
	if cfg.StorageBackend != "mongo" || cfg.RealtimeSource != "local" {
		t.Errorf("backend/realtime = %q/%q", cfg.StorageBackend, cfg.RealtimeSource)
	}
	if cfg.InvitationTTL != 7*24*time.Hour {
		t.Errorf("invitation_ttl = %v", cfg.InvitationTTL)
	}
	if cfg.MongoMaxPoolSize != 100 || cfg.MongoMinPoolSize != 10 {
		t.Errorf("pool = %d/%d", cfg.MongoMaxPoolSize, cfg.MongoMinPoolSize)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TASKHUB_STORAGE_BACKEND", "Memory")
	t.Setenv("TASKHUB_INVITATION_TTL", "48h")
	t.Setenv("TASKHUB_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("TASKHUB_BASE_URL", "https://taskhub.example/")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StorageBackend != "memory" {
		t.Errorf("storage_backend = %q", cfg.StorageBackend)
	}
	if cfg.InvitationTTL != 48*time.Hour {
		t.Errorf("invitation_ttl = %v", cfg.InvitationTTL)
	}
	if got := strings.Join(cfg.CORSAllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("cors_allowed_origins = %q", got)
	}
	if cfg.BaseURL != "https://taskhub.example" {
		t.Errorf("base_url = %q", cfg.BaseURL)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir() + "/nope.yaml"); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"bad env", func(c *AppConfig) { c.Env = "staging" }, "env must be"},
		{"bad backend", func(c *AppConfig) { c.StorageBackend = "postgres" }, "storage_backend"},
		{"memory in prod", func(c *AppConfig) { c.Env = "prod" }, "not allowed in prod"},
		{"bad mongo uri", func(c *AppConfig) { c.StorageBackend = "mongo"; c.MongoURI = "http://nope" }, "MongoDB URI"},
		{"changestream needs mongo", func(c *AppConfig) { c.RealtimeSource = "changestream" }, "requires storage_backend=mongo"},
		{"bad realtime", func(c *AppConfig) { c.RealtimeSource = "polling" }, "realtime_source"},
		{"short key in prod", func(c *AppConfig) {
			c.Env = "prod"
			c.StorageBackend = "mongo"
			c.SessionKey = "short"
		}, "session_key"},
		{"zero ttl", func(c *AppConfig) { c.InvitationTTL = 0 }, "invitation_ttl"},
		{"bad audit", func(c *AppConfig) { c.AuditLogAdmin = "verbose" }, "audit log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger_RejectsBadLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "loud"
	if _, err := NewLogger(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}
