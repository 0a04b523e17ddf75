// Package config provides the runtime configuration for the chat server:
// defaults, environment loading and sanitizing of out-of-range values.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	defaultPort           = ":5000"
	defaultMaxMessageSize = 4096
	defaultBurst          = 10
	defaultRefillInterval = time.Second
	defaultQueryTimeout   = 5 * time.Second
	defaultTokenTTL       = 90 * 24 * time.Hour
	defaultCookieDays     = 90
	defaultBcryptCost     = 8
	defaultSecret         = "change-me-in-production"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// DatabaseConfig describes how to reach the credential store. URL, when set,
// takes precedence over the individual connection parts.
type DatabaseConfig struct {
	Driver       string
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	QueryTimeout time.Duration
}

// AuthConfig holds session token and password hashing settings.
type AuthConfig struct {
	Secret     string
	TokenTTL   time.Duration
	CookieDays int
	BcryptCost int
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string
	Format string
}

// Config holds the server configuration settings.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	TimeZone       string
	Database       DatabaseConfig
	Auth           AuthConfig
	Log            LogConfig
}

// Default returns a Config populated with development defaults.
func Default() Config {
	return Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"http://localhost:5000"},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		TimeZone: "Local",
		Database: DatabaseConfig{
			Driver:       DriverPostgres,
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			Name:         "talkroom",
			QueryTimeout: defaultQueryTimeout,
		},
		Auth: AuthConfig{
			Secret:     defaultSecret,
			TokenTTL:   defaultTokenTTL,
			CookieDays: defaultCookieDays,
			BcryptCost: defaultBcryptCost,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Sanitize replaces empty or out-of-range values with defaults. The returned
// copy shares nothing with c.
func (c Config) Sanitize() Config {
	def := Default()

	if c.Port == "" {
		c.Port = def.Port
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.TimeZone == "" {
		c.TimeZone = def.TimeZone
	}

	c.AllowedOrigins = trimOrigins(c.AllowedOrigins)

	switch strings.ToLower(c.Database.Driver) {
	case DriverMemory:
		c.Database.Driver = DriverMemory
	default:
		c.Database.Driver = DriverPostgres
	}
	if c.Database.QueryTimeout <= 0 {
		c.Database.QueryTimeout = def.Database.QueryTimeout
	}

	if c.Auth.Secret == "" {
		c.Auth.Secret = def.Auth.Secret
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = def.Auth.TokenTTL
	}
	if c.Auth.CookieDays <= 0 {
		c.Auth.CookieDays = def.Auth.CookieDays
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		c.Auth.BcryptCost = def.Auth.BcryptCost
	}

	return c
}

// Location resolves TimeZone, falling back to time.Local when it is unknown.
func (c Config) Location() *time.Location {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CookieTTL is the lifetime of the session cookie.
func (a AuthConfig) CookieTTL() time.Duration {
	return time.Duration(a.CookieDays) * 24 * time.Hour
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     d.Host,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	if d.Port != "" {
		u.Host = d.Host + ":" + d.Port
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	return u.String()
}

// FromEnv creates a Config from environment variables. Unset or unparsable
// values keep their defaults. The result is sanitized.
func FromEnv() Config {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) Config {
	cfg := Default()
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if port := get("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := get("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := get("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}
	if burst := get("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := get("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	if tz := get("TIME_ZONE"); tz != "" {
		cfg.TimeZone = tz
	}

	if driver := get("STORE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := get("DATABASE_URL"); dsn != "" {
		cfg.Database.URL = dsn
	}
	if host := get("DATABASE_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := get("DATABASE_PORT"); port != "" {
		cfg.Database.Port = port
	}
	if user := get("DATABASE_USER"); user != "" {
		cfg.Database.User = user
	}
	if password, ok := lookup("DATABASE_PASSWORD"); ok {
		cfg.Database.Password = password
	}
	if name := get("DATABASE"); name != "" {
		cfg.Database.Name = name
	}
	if timeout := get("DB_QUERY_TIMEOUT"); timeout != "" {
		cfg.Database.QueryTimeout = parseDuration(timeout, cfg.Database.QueryTimeout)
	}

	if secret, ok := lookup("JWT_SECRET"); ok && secret != "" {
		cfg.Auth.Secret = secret
	}
	if ttl := get("JWT_EXPIRES_IN"); ttl != "" {
		cfg.Auth.TokenTTL = parseDuration(ttl, cfg.Auth.TokenTTL)
	}
	if days := get("JWT_COOKIE_EXPIRES"); days != "" {
		cfg.Auth.CookieDays = parseIntValue(days, cfg.Auth.CookieDays)
	}
	if cost := get("BCRYPT_COST"); cost != "" {
		cfg.Auth.BcryptCost = parseIntValue(cost, cfg.Auth.BcryptCost)
	}

	if level := get("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := get("LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	return cfg.Sanitize()
}

func parseOrigins(origins string) []string {
	return trimOrigins(strings.Split(origins, ","))
}

func trimOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// parseDuration accepts Go durations ("12h"), a day suffix ("90d") and bare
// integers, which are read as seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	d, err := ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// ParseDuration parses value the way JWT_EXPIRES_IN is written.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q: %w", value, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(value)
}
