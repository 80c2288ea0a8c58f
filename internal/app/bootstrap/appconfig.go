// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds the service configuration.
//
// Values come from defaults, an optional config.yaml and TASKHUB_*
// environment variables (loaded in LoadConfig). Add fields here as the
// service grows; the struct is passed through every lifecycle step.
type AppConfig struct {
	Env      string // dev | test | prod
	HTTPAddr string // e.g. ":8080"
	LogLevel string // debug | info | warn | error

	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// StorageBackend selects the document store: "mongo" or "memory".
	StorageBackend string

	// Session management configuration
	SessionKey         string        // Secret key for signing session cookies (must be strong in production)
	SessionName        string        // Cookie name for sessions
	SessionDomain      string        // Cookie domain (blank means current host)
	SessionMaxAge      time.Duration // Cookie lifetime
	SessionIdleTimeout time.Duration // Live sessions without a heartbeat for this long are ended

	// BaseURL prefixes invite links and the OAuth callback.
	BaseURL string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Invitations and realtime
	InvitationTTL  time.Duration
	RealtimeSource string        // local | changestream
	SweepInterval  time.Duration // invitation expiry and orphan sweep

	CORSAllowedOrigins []string

	// Audit logging: all | db | log | off
	AuditLogAuth  string
	AuditLogAdmin string

	// Timeouts for store calls
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}

// Secure reports whether cookies must be marked Secure.
func (c AppConfig) Secure() bool { return c.Env == "prod" }

// Memory reports whether the in-process backend is selected.
func (c AppConfig) Memory() bool { return c.StorageBackend == "memory" }
