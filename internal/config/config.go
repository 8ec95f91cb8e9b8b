package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderCredentials holds one OAuth client registration.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GenericOAuth2 configures the URL-driven fallback provider. It has no
// compile-time provider knowledge; everything comes from these values.
type GenericOAuth2 struct {
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Configured reports whether the generic provider can be used at all.
func (g GenericOAuth2) Configured() bool {
	return g.AuthURL != "" && g.TokenURL != "" && g.ClientID != ""
}

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	ServiceRegistryPath string

	SessionTTL      time.Duration
	StateTTL        time.Duration
	ProviderTimeout time.Duration

	TokenTTL        time.Duration
	TokenSigningKey string
	Issuer          string

	DefaultRedirect      string
	ErrorRedirect        string
	AllowedRedirectHosts []string

	Google    ProviderCredentials
	Microsoft ProviderCredentials
	Facebook  ProviderCredentials
	Generic   GenericOAuth2

	MicrosoftTenant string

	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "providerpath-sso"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ServiceRegistryPath: getEnv("SERVICE_REGISTRY_PATH", "services.yaml"),

		SessionTTL:      getDuration("SESSION_TTL", 24*time.Hour),
		StateTTL:        getDuration("OAUTH_STATE_TTL", 5*time.Minute),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		TokenTTL:        getDuration("TOKEN_TTL", time.Hour),
		TokenSigningKey: os.Getenv("TOKEN_SIGNING_KEY"),
		Issuer:          getEnv("ISSUER_URL", "https://sso.providerpath.local"),

		DefaultRedirect:      getEnv("LOGIN_REDIRECT_URL", "/"),
		ErrorRedirect:        getEnv("LOGIN_ERROR_URL", "/login"),
		AllowedRedirectHosts: getList("ALLOWED_REDIRECT_HOSTS", nil),

		Google: ProviderCredentials{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
		Microsoft: ProviderCredentials{
			ClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
			ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("MICROSOFT_REDIRECT_URL"),
		},
		Facebook: ProviderCredentials{
			ClientID:     os.Getenv("FACEBOOK_CLIENT_ID"),
			ClientSecret: os.Getenv("FACEBOOK_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("FACEBOOK_REDIRECT_URL"),
		},
		Generic: GenericOAuth2{
			AuthURL:      os.Getenv("OAUTH2_AUTH_URL"),
			TokenURL:     os.Getenv("OAUTH2_TOKEN_URL"),
			UserInfoURL:  os.Getenv("OAUTH2_USERINFO_URL"),
			ClientID:     os.Getenv("OAUTH2_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH2_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OAUTH2_REDIRECT_URL"),
			Scopes:       getList("OAUTH2_SCOPES", []string{"openid", "profile", "email"}),
		},

		MicrosoftTenant: getEnv("MICROSOFT_TENANT", "common"),

		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenSigningKey == "" {
		return Config{}, fmt.Errorf("TOKEN_SIGNING_KEY is required")
	}
	if len(cfg.TokenSigningKey) < 32 {
		return Config{}, fmt.Errorf("TOKEN_SIGNING_KEY must be at least 32 bytes")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
