// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/spf13/viper"
)

const envPrefix = "TASKHUB"

type appKey struct {
	Name    string
	Default any
	Desc    string
}

// appConfigKeys defines the configuration keys for TaskHub.
// These are loaded with support for:
//   - Config files: config.yaml with mongo_uri, session_name, etc.
//   - Environment variables: TASKHUB_MONGO_URI, TASKHUB_SESSION_NAME, etc.
var appConfigKeys = []appKey{
	{Name: "env", Default: "dev", Desc: "Runtime environment: dev, test or prod"},
	{Name: "http_addr", Default: ":8080", Desc: "HTTP listen address"},
	{Name: "log_level", Default: "info", Desc: "Log level: debug, info, warn, error"},

	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "storage_backend", Default: "mongo", Desc: "Document store: 'mongo' or 'memory'"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "taskhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},
	{Name: "session_idle_timeout", Default: "30m", Desc: "End live sessions without a heartbeat for this long"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL for invite links and OAuth callbacks"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "invitation_ttl", Default: "168h", Desc: "How long an invitation stays pending"},
	{Name: "realtime_source", Default: "local", Desc: "Where change events come from: 'local' or 'changestream'"},
	{Name: "sweep_interval", Default: "1m", Desc: "Interval of the invitation expiry and orphan sweep workers"},

	{Name: "cors_allowed_origins", Default: "", Desc: "Comma-separated origins allowed to call the API"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Workspace event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "timeout_short", Default: "2s", Desc: "Timeout for single-document store calls"},
	{Name: "timeout_medium", Default: "5s", Desc: "Timeout for request handlers"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for cascades and sweeps"},
}

// LoadConfig reads the configuration.
//
// Precedence is env > config file > defaults. The config file is optional;
// configFile may name one explicitly, otherwise ./config.yaml is tried.
func LoadConfig(configFile string) (AppConfig, error) {
	v := viper.New()
	for _, k := range appConfigKeys {
		v.SetDefault(k.Name, k.Default)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := AppConfig{
		Env:      strings.ToLower(v.GetString("env")),
		HTTPAddr: v.GetString("http_addr"),
		LogLevel: v.GetString("log_level"),

		MongoURI:         v.GetString("mongo_uri"),
		MongoDatabase:    v.GetString("mongo_database"),
		MongoMaxPoolSize: v.GetUint64("mongo_max_pool_size"),
		MongoMinPoolSize: v.GetUint64("mongo_min_pool_size"),
		StorageBackend:   strings.ToLower(v.GetString("storage_backend")),

		SessionKey:         v.GetString("session_key"),
		SessionName:        v.GetString("session_name"),
		SessionDomain:      v.GetString("session_domain"),
		SessionMaxAge:      v.GetDuration("session_max_age"),
		SessionIdleTimeout: v.GetDuration("session_idle_timeout"),

		BaseURL: strings.TrimRight(v.GetString("base_url"), "/"),

		GoogleClientID:     v.GetString("google_client_id"),
		GoogleClientSecret: v.GetString("google_client_secret"),

		InvitationTTL:  v.GetDuration("invitation_ttl"),
		RealtimeSource: strings.ToLower(v.GetString("realtime_source")),
		SweepInterval:  v.GetDuration("sweep_interval"),

		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),

		AuditLogAuth:  v.GetString("audit_log_auth"),
		AuditLogAdmin: v.GetString("audit_log_admin"),

		TimeoutShort:  v.GetDuration("timeout_short"),
		TimeoutMedium: v.GetDuration("timeout_medium"),
		TimeoutLong:   v.GetDuration("timeout_long"),
	}
	return cfg, nil
}

// ValidateConfig rejects configurations the service cannot start with.
//
// The MongoDB URI format is checked up front to catch configuration
// errors before attempting to connect.
func ValidateConfig(cfg AppConfig) error {
	switch cfg.Env {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("env must be dev, test or prod, got %q", cfg.Env)
	}

	switch cfg.StorageBackend {
	case "memory":
		if cfg.Env == "prod" {
			return errors.New("storage_backend=memory is not allowed in prod")
		}
	case "mongo":
		if err := wafflemongo.ValidateURI(cfg.MongoURI); err != nil {
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if cfg.MongoDatabase == "" {
			return errors.New("mongo_database must be set")
		}
	default:
		return fmt.Errorf("storage_backend must be mongo or memory, got %q", cfg.StorageBackend)
	}

	switch cfg.RealtimeSource {
	case "local":
	case "changestream":
		if cfg.StorageBackend != "mongo" {
			return errors.New("realtime_source=changestream requires storage_backend=mongo")
		}
	default:
		return fmt.Errorf("realtime_source must be local or changestream, got %q", cfg.RealtimeSource)
	}

	if cfg.Env == "prod" && len(cfg.SessionKey) < 32 {
		return errors.New("session_key must be at least 32 characters in prod")
	}
	if cfg.InvitationTTL <= 0 {
		return errors.New("invitation_ttl must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("sweep_interval must be positive")
	}
	for _, level := range []string{cfg.AuditLogAuth, cfg.AuditLogAdmin} {
		switch level {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("audit log setting must be all, db, log or off, got %q", level)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
