package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Togather-Foundation/tsukuyomi/internal/validation"
)

const (
	ProfileDefault = "default"
	ProfileFull    = "full"
)

// devJWTSecret is only used outside production when JWT_SECRET is unset.
const devJWTSecret = "tsukuyomi-development-secret-do-not-use"

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Logging     LoggingConfig   `yaml:"logging"`
	CORS        CORSConfig      `yaml:"cors"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Cookies     CookieConfig    `yaml:"cookies"`
	Auth        AuthConfig      `yaml:"auth"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Database    DatabaseConfig  `yaml:"database"`
	Assets      AssetsConfig    `yaml:"assets"`
	Routing     RoutingConfig   `yaml:"routing"`
	Environment string          `yaml:"environment"`
	Profile     string          `yaml:"profile"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	BaseURL           string        `yaml:"base_url"`
	TLSCertFile       string        `yaml:"tls_cert_file"`
	TLSKeyFile        string        `yaml:"tls_key_file"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	AllowAllOrigins  bool          `yaml:"allow_all_origins"`
	AllowCredentials bool          `yaml:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
	// TrustedProxyCIDRs lists proxies whose X-Forwarded-For header is honored.
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

// CookieConfig enables signed and private cookies when Secure is set. Keys
// left empty are derived from the JWT secret.
type CookieConfig struct {
	Secure   bool   `yaml:"secure"`
	HashKey  string `yaml:"hash_key"`
	BlockKey string `yaml:"block_key"`
	CSRFKey  string `yaml:"csrf_key"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTIssuer string        `yaml:"jwt_issuer"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
	// BasicUsers maps user names to bcrypt password hashes.
	BasicUsers map[string]string `yaml:"basic_users"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DatabaseConfig selects the Postgres post store. An empty URL keeps posts
// in memory.
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

type AssetsConfig struct {
	TemplatesDir string `yaml:"templates_dir"`
	StaticDir    string `yaml:"static_dir"`
}

type RoutingConfig struct {
	Prefix          string `yaml:"prefix"`
	FallbackHead    bool   `yaml:"fallback_head"`
	FallbackOptions bool   `yaml:"fallback_options"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	cfg := fromEnv()
	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads the configuration from environment variables and overlays
// the keys present in the YAML file at path.
func LoadFile(path string) (Config, error) {
	cfg := fromEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() Config {
	return Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			TLSCertFile:       getEnv("SERVER_TLS_CERT_FILE", ""),
			TLSKeyFile:        getEnv("SERVER_TLS_KEY_FILE", ""),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ReadHeaderTimeout: getEnvDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:      int64(getEnvInt("SERVER_MAX_BODY_BYTES", 1<<20)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvDuration("CORS_MAX_AGE", time.Hour),
		},
		RateLimit: RateLimitConfig{
			PerMinute:         getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 0),
			TrustedProxyCIDRs: getEnvList("RATE_LIMIT_TRUSTED_PROXIES"),
		},
		Cookies: CookieConfig{
			Secure:   getEnvBool("COOKIE_SECURE", false),
			HashKey:  getEnv("COOKIE_HASH_KEY", ""),
			BlockKey: getEnv("COOKIE_BLOCK_KEY", ""),
			CSRFKey:  getEnv("CSRF_KEY", ""),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			JWTIssuer:  getEnv("JWT_ISSUER", "tsukuyomi"),
			JWTExpiry:  time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			BasicUsers: getEnvMap("BASIC_AUTH_USERS"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "tsukuyomi"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MigrateOnStart: getEnvBool("DATABASE_MIGRATE_ON_START", true),
		},
		Assets: AssetsConfig{
			TemplatesDir: getEnv("TEMPLATES_DIR", ""),
			StaticDir:    getEnv("STATIC_DIR", ""),
		},
		Routing: RoutingConfig{
			Prefix:          getEnv("ROUTE_PREFIX", "/"),
			FallbackHead:    getEnvBool("FALLBACK_HEAD", true),
			FallbackOptions: getEnvBool("FALLBACK_OPTIONS", true),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
		Profile:     getEnv("PROFILE", ProfileDefault),
	}
}

// finalize applies derived settings and validates the result.
func (c *Config) finalize() error {
	switch c.Profile {
	case ProfileDefault:
	case ProfileFull:
		// full implies secure
		c.Cookies.Secure = true
	default:
		return fmt.Errorf("unknown PROFILE %q (must be %q or %q)", c.Profile, ProfileDefault, ProfileFull)
	}

	production := c.IsProduction()
	if !production {
		c.CORS.AllowAllOrigins = true
	} else if len(c.CORS.AllowedOrigins) == 0 {
		return errors.New("CORS_ALLOWED_ORIGINS is required in production")
	}

	if c.Auth.JWTSecret == "" {
		if production {
			return errors.New("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = devJWTSecret
	}
	if production && len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}

	if c.Cookies.Secure {
		// Unset keys are derived from JWT_SECRET.
		if n := len(c.Cookies.HashKey); n != 0 && n != 32 && n != 64 {
			return fmt.Errorf("COOKIE_HASH_KEY must be 32 or 64 bytes, got %d", n)
		}
		if n := len(c.Cookies.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
			return fmt.Errorf("COOKIE_BLOCK_KEY must be 16, 24 or 32 bytes, got %d", n)
		}
	}
	if n := len(c.Cookies.CSRFKey); n != 0 && n != 32 {
		return fmt.Errorf("CSRF_KEY must be 32 bytes, got %d", n)
	}

	if err := validation.Origin(c.Server.BaseURL, "SERVER_BASE_URL", false); err != nil {
		return err
	}
	if err := c.CORS.normalizeWildcard(production); err != nil {
		return err
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if err := validation.Origin(origin, "CORS_ALLOWED_ORIGINS", false); err != nil {
			return err
		}
	}

	if c.Database.MaxConnections < 0 {
		return errors.New("DATABASE_MAX_CONNECTIONS must not be negative")
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("SERVER_TLS_CERT_FILE and SERVER_TLS_KEY_FILE must be set together")
	}
	return nil
}

// normalizeWildcard turns a lone "*" origin into AllowAllOrigins. A wildcard
// mixed with explicit origins is rejected, as is a production wildcard with
// credentials.
func (c *CORSConfig) normalizeWildcard(production bool) error {
	wildcard := false
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			wildcard = true
		}
	}
	if !wildcard {
		return nil
	}
	if len(c.AllowedOrigins) > 1 {
		return errors.New("CORS_ALLOWED_ORIGINS: \"*\" cannot be combined with other origins")
	}
	if production && c.AllowCredentials {
		return errors.New("CORS_ALLOWED_ORIGINS=* cannot be combined with CORS_ALLOW_CREDENTIALS in production")
	}
	c.AllowAllOrigins = true
	c.AllowedOrigins = nil
	return nil
}

// IsProduction reports whether the server runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvMap parses "k1:v1,k2:v2". Values may contain ':'.
func getEnvMap(key string) map[string]string {
	entries := getEnvList(key)
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, ":")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
