package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "Credora"
	defaultAppEnv          = "development"
	defaultPort            = "5000"
	defaultLogLevel        = "info"
	defaultMongoDatabase   = "credora"
	defaultRedisHost       = "localhost"
	defaultRedisPort       = "6379"
	defaultRedisDB         = 1
	defaultFrontendURL     = "http://localhost:3000"
	defaultSMTPPort        = 465
	defaultSessionSecret   = "credora_session_secret"
	defaultShutdownDelay   = 10 * time.Second
	defaultTokenTTL        = 30 * 24 * time.Hour
	defaultSessionTTL      = 30 * 24 * time.Hour
	defaultChallengeTTL    = 5 * time.Minute
	defaultOTPTTL          = 5 * time.Minute
	defaultRateLimitWindow = 15 * time.Minute
	defaultRateLimitMax    = 100
	defaultAuthRateMax     = 20
	minSecretLength        = 32
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	MongoURI       string
	MongoDatabase  string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	TokenTTL       time.Duration
	SessionSecret  string
	SessionTTL     time.Duration
	ChallengeTTL   time.Duration
	OTPTTL         time.Duration
	FrontendURL    string
	CORSOrigins    []string
	SMTP           SMTPConfig
	RateLimit      RateLimitConfig
	ShutdownPeriod time.Duration
}

// SMTPConfig holds the outbound mail relay settings. An empty Host is only
// accepted in development, where mail is written to the log instead.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// RateLimitConfig holds the fixed-window IP limits.
type RateLimitConfig struct {
	Max     int
	AuthMax int
	Window  time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:       getEnv("APP_NAME", defaultAppName),
		AppEnv:        strings.ToLower(getEnv("APP_ENV", getEnv("NODE_ENV", defaultAppEnv))),
		Port:          getEnv("PORT", defaultPort),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", defaultMongoDatabase),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		FrontendURL:   strings.TrimRight(getEnv("FRONTEND_URL", defaultFrontendURL), "/"),
		CORSOrigins:   splitList(os.Getenv("CORS_ORIGINS")),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Username: getEnv("SMTP_USER", os.Getenv("EMAIL")),
			Password: getEnv("SMTP_PASSWORD", os.Getenv("PASSWORD")),
			From:     os.Getenv("SMTP_FROM"),
		},
		ShutdownPeriod: defaultShutdownDelay,
	}

	var err error
	if cfg.RedisURL, err = redisURL(); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv("JWT_EXPIRES_IN", defaultTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.ChallengeTTL, err = durationEnv("CHALLENGE_TTL", defaultChallengeTTL); err != nil {
		return Config{}, err
	}
	if cfg.OTPTTL, err = durationEnv("OTP_TTL", defaultOTPTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Window, err = durationEnv("RATE_LIMIT_WINDOW", defaultRateLimitWindow); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Max, err = intEnv("RATE_LIMIT_MAX", defaultRateLimitMax); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.AuthMax, err = intEnv("RATE_LIMIT_AUTH_MAX", defaultAuthRateMax); err != nil {
		return Config{}, err
	}
	if cfg.SMTP.Port, err = intEnv("SMTP_PORT", defaultSMTPPort); err != nil {
		return Config{}, err
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.SessionSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", c.AppEnv)
		}
		c.SessionSecret = defaultSessionSecret
	}
	if c.IsDevelopment() {
		return nil
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes when APP_ENV=%s", minSecretLength, c.AppEnv)
	}
	if c.MongoURI == "" && c.DatabaseURL == "" {
		return fmt.Errorf("MONGODB_URI or DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	// Without a relay, verification links would only reach the log.
	if c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service runs in a local/dev environment.
func (c Config) IsDevelopment() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether secure cookies and redacted errors apply.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// AllowedOrigins lists the browser origins permitted by CORS.
func (c Config) AllowedOrigins() []string {
	origins := []string{c.FrontendURL, "http://localhost:3000", "http://localhost:3001", "http://localhost:5500"}
	origins = append(origins, c.CORSOrigins...)
	seen := make(map[string]struct{}, len(origins))
	out := origins[:0]
	for _, o := range origins {
		if _, ok := seen[o]; ok || o == "" {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

// ParseDuration accepts Go durations ("720h") as well as the day-based
// shorthand used by the web tier ("30d", "30D", "5M").
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	unit := strings.ToLower(v[len(v)-1:])
	n, err := strconv.Atoi(v[:len(v)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	switch unit {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", v)
}

func redisURL() (string, error) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v, nil
	}
	db, err := intEnv("REDIS_DB", defaultRedisDB)
	if err != nil {
		return "", err
	}
	host := net.JoinHostPort(getEnv("REDIS_HOST", defaultRedisHost), getEnv("REDIS_PORT", defaultRedisPort))
	u := url.URL{Scheme: "redis", Host: host, Path: "/" + strconv.Itoa(db)}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		u.User = url.UserPassword("", pw)
	}
	return u.String(), nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
