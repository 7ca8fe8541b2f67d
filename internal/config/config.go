// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Places      PlacesConfig      `mapstructure:"places"`
	Database    DatabaseConfig    `mapstructure:"database"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ApplicationConfig names the service in logs and traces.
type ApplicationConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// AuthConfig holds the allow-list, OAuth client and session settings.
type AuthConfig struct {
	AllowedEmails      string        `mapstructure:"allowed_emails"`
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleClientSecret string        `mapstructure:"google_client_secret"`
	RedirectURL        string        `mapstructure:"redirect_url"`
	SessionSecret      string        `mapstructure:"session_secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	CookieSecure       bool          `mapstructure:"cookie_secure"`
	// SignInURL receives refused sign-ins with ?error=AccessDenied.
	SignInURL     string `mapstructure:"signin_url"`
	PostSignInURL string `mapstructure:"post_signin_url"`
}

// PlacesConfig configures the places API client and search behavior.
type PlacesConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Region            string        `mapstructure:"region"`
	Language          string        `mapstructure:"language"`
	PageDelay         time.Duration `mapstructure:"page_delay"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	EnrichLimit       int           `mapstructure:"enrich_limit"`
	EnrichConcurrency int           `mapstructure:"enrich_concurrency"`
	RateLimitRPS      float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig selects and tunes the lead store.
type DatabaseConfig struct {
	Backend         string        `mapstructure:"backend"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for lead-saved notifications. Leaving
// TopicName empty keeps events in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// envAliases lets the service read the variable names used by existing
// deployments in addition to PROSPECTOR_* keys.
var envAliases = map[string]string{
	"auth.allowed_emails":       "ALLOWED_EMAILS",
	"auth.google_client_id":     "GOOGLE_CLIENT_ID",
	"auth.google_client_secret": "GOOGLE_CLIENT_SECRET",
	"auth.session_secret":       "NEXTAUTH_SECRET",
	"places.api_key":            "GOOGLE_MAPS_API_KEY",
	"database.dsn":              "DATABASE_URL",
	"server.port":               "PORT",
}

// LoadDotEnv loads variables from path into the process environment without
// overriding values that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, alias := range envAliases {
		envKey := "PROSPECTOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("application.service_name", "prospector")
	v.SetDefault("application.version", "dev")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("auth.allowed_emails", "")
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.google_client_secret", "")
	v.SetDefault("auth.redirect_url", "http://localhost:8080/auth/callback")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.signin_url", "/signin")
	v.SetDefault("auth.post_signin_url", "/")
	v.SetDefault("places.api_key", "")
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.region", "tr")
	v.SetDefault("places.language", "tr")
	v.SetDefault("places.page_delay", 2*time.Second)
	v.SetDefault("places.http_timeout", 15*time.Second)
	v.SetDefault("places.enrich_limit", 20)
	v.SetDefault("places.enrich_concurrency", 20)
	v.SetDefault("places.rate_limit_rps", 0)
	v.SetDefault("places.rate_limit_burst", 1)
	v.SetDefault("database.backend", BackendPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "leads")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	required := []struct {
		key, value string
	}{
		{"auth.allowed_emails", strings.Trim(c.Auth.AllowedEmails, " ,")},
		{"auth.google_client_id", c.Auth.GoogleClientID},
		{"auth.google_client_secret", c.Auth.GoogleClientSecret},
		{"auth.session_secret", c.Auth.SessionSecret},
		{"places.api_key", c.Places.APIKey},
		{"database.dsn", c.Database.DSN},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}
	if c.Places.EnrichLimit < 1 || c.Places.EnrichLimit > 20 {
		return fmt.Errorf("places.enrich_limit must be between 1 and 20")
	}
	if c.Places.EnrichConcurrency <= 0 {
		return fmt.Errorf("places.enrich_concurrency must be > 0")
	}
	if c.Places.PageDelay < 0 {
		return fmt.Errorf("places.page_delay must be >= 0")
	}
	if c.Places.RateLimitRPS < 0 {
		return fmt.Errorf("places.rate_limit_rps must be >= 0")
	}
	switch c.Database.Backend {
	case BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("database.backend must be %q or %q", BackendPostgres, BackendSQLite)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
