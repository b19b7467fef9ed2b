package config

import (
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	Google    GoogleConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Sentry    SentryConfig
	Bcrypt    BcryptConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	BasePath     string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// IsProduction reports whether cookies must be issued with production attributes.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// StoreConfig selects the credential store backend: mongo | postgres | memory.
type StoreConfig struct {
	Driver string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type PostgresConfig struct {
	DSN     string
	Timeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type SessionConfig struct {
	CookieName string
	TTL        time.Duration
}

type GoogleConfig struct {
	ClientID        string
	ClientSecret    string
	CallbackURL     string
	Scopes          []string
	Issuer          string
	UserInfoURL     string
	Timeout         time.Duration
	SuccessRedirect string
	FailureRedirect string
}

// Enabled reports whether the federated login path can be offered.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type SentryConfig struct {
	DSN string
}

type BcryptConfig struct {
	Cost int
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5050")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_BASE_PATH", "/")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("STORE_DRIVER", "mongo")
	viper.SetDefault("MONGODB_DATABASE", "cropadvisor")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("POSTGRES_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("JWT_TOKEN_TTL", "168h")
	viper.SetDefault("SESSION_COOKIE_NAME", "cropadvisor.sid")
	viper.SetDefault("SESSION_TTL", "168h")
	viper.SetDefault("GOOGLE_CALLBACK_URL", "http://localhost:5050/auth/google/callback")
	viper.SetDefault("GOOGLE_SCOPES", "profile,email")
	viper.SetDefault("GOOGLE_ISSUER", "https://accounts.google.com")
	viper.SetDefault("GOOGLE_USERINFO_URL", "https://openidconnect.googleapis.com/v1/userinfo")
	viper.SetDefault("OAUTH_TIMEOUT", "10s")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 1.0)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("BCRYPT_COST", 10)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			BasePath:     viper.GetString("SERVER_BASE_PATH"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver: strings.ToLower(viper.GetString("STORE_DRIVER")),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Postgres: PostgresConfig{
			DSN:     os.Getenv("POSTGRES_DSN"),
			Timeout: time.Duration(viper.GetInt("POSTGRES_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:   os.Getenv("JWT_SECRET"),
			TokenTTL: viper.GetDuration("JWT_TOKEN_TTL"),
		},
		Session: SessionConfig{
			CookieName: viper.GetString("SESSION_COOKIE_NAME"),
			TTL:        viper.GetDuration("SESSION_TTL"),
		},
		Google: GoogleConfig{
			ClientID:        viper.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
			CallbackURL:     viper.GetString("GOOGLE_CALLBACK_URL"),
			Scopes:          splitCSV(viper.GetString("GOOGLE_SCOPES")),
			Issuer:          viper.GetString("GOOGLE_ISSUER"),
			UserInfoURL:     viper.GetString("GOOGLE_USERINFO_URL"),
			Timeout:         viper.GetDuration("OAUTH_TIMEOUT"),
			SuccessRedirect: viper.GetString("OAUTH_SUCCESS_REDIRECT"),
			FailureRedirect: viper.GetString("OAUTH_FAILURE_REDIRECT"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(viper.GetString("CORS_ORIGIN")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Sentry: SentryConfig{
			DSN: os.Getenv("SENTRY_DSN"),
		},
		Bcrypt: BcryptConfig{
			Cost: viper.GetInt("BCRYPT_COST"),
		},
	}

	if cfg.JWT.TokenTTL <= 0 {
		cfg.JWT.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 7 * 24 * time.Hour
	}
	// redirects default to routes under the mount point
	if cfg.Google.SuccessRedirect == "" {
		cfg.Google.SuccessRedirect = joinPath(cfg.Server.BasePath, "/profile")
	}
	if cfg.Google.FailureRedirect == "" {
		cfg.Google.FailureRedirect = joinPath(cfg.Server.BasePath, "/")
	}
	if cfg.Google.Timeout <= 0 {
		cfg.Google.Timeout = 10 * time.Second
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}

func joinPath(base, p string) string {
	joined := path.Join("/", base, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
