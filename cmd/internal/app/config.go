package app

import (
	"errors"
	"time"
)

// Config contains all runtime configuration loaded from environment
// variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	RedisURL string

	// SessionSecret verifies the public-tier bearer credentials issued by
	// the credential store.
	SessionSecret string
	// ServiceSecret is the privileged credential tier. It bypasses row
	// restrictions on the backend and must never reach a browser; the server
	// refuses to start in production without it.
	ServiceSecret string

	SessionCookieName string
	DeviceCookieName  string

	AdminEmails     []string
	AdminKey        string
	AdminCookieName string
	AdminCookieTTL  time.Duration

	WSOrigins []string

	Production bool

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("LUDO_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("LUDO_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("LUDO_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LUDO_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LUDO_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("LUDO_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("LUDO_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("LUDO_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("LUDO_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("LUDO_DB_MIN_CONNS", 0),

		RedisURL: EnvString("LUDO_REDIS_URL", ""),

		SessionSecret: EnvString("LUDO_SESSION_SECRET", ""),
		ServiceSecret: EnvString("LUDO_SERVICE_SECRET", ""),

		SessionCookieName: EnvString("LUDO_SESSION_COOKIE", "ludo_session"),
		DeviceCookieName:  EnvString("LUDO_DEVICE_COOKIE", "ludo_device_id"),

		AdminEmails:     EnvCSV("LUDO_ADMIN_EMAILS", ""),
		AdminKey:        EnvString("LUDO_ADMIN_KEY", ""),
		AdminCookieName: EnvString("LUDO_ADMIN_COOKIE", "ludo_admin"),
		AdminCookieTTL:  EnvDuration("LUDO_ADMIN_COOKIE_TTL", 24*time.Hour),

		WSOrigins: EnvCSV("LUDO_WS_ORIGINS", ""),

		Production:         EnvBool("LUDO_PRODUCTION", false),
		ReadinessRequireDB: EnvBool("LUDO_READINESS_REQUIRE_DB", false),
	}
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("LUDO_SESSION_SECRET is required")
	}
	if c.Production && c.ServiceSecret == "" {
		return errors.New("LUDO_SERVICE_SECRET is required in production")
	}
	return nil
}
