package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "STUDIO"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "studio.db"
	defaultLogLevel      = "info"
	defaultSessionIssuer = "studio-auth"
	defaultSessionAud    = "studio-api"
	defaultSessionTTL    = time.Hour
	defaultBaseRate      = 0.09
	defaultCurrency      = "INR"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	SessionSigningSecret string
	SessionIssuer        string
	SessionAudience      string
	SessionTTL           time.Duration

	IdentityAudience string
	IdentityJWKSURL  string
	IdentityIssuers  []string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisEnabled  bool

	PricingBaseRate float64
	PricingCurrency string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.audience", defaultSessionAud)
	configViper.SetDefault("session.ttl", defaultSessionTTL)
	configViper.SetDefault("redis.enabled", false)
	configViper.SetDefault("redis.address", "127.0.0.1:6379")
	configViper.SetDefault("redis.db", 0)
	configViper.SetDefault("pricing.base_rate", defaultBaseRate)
	configViper.SetDefault("pricing.currency", defaultCurrency)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionIssuer:        configViper.GetString("session.issuer"),
		SessionAudience:      configViper.GetString("session.audience"),
		SessionTTL:           configViper.GetDuration("session.ttl"),
		IdentityAudience:     configViper.GetString("identity.audience"),
		IdentityJWKSURL:      configViper.GetString("identity.jwks_url"),
		IdentityIssuers:      splitList(configViper.GetString("identity.issuers")),
		RedisAddress:         configViper.GetString("redis.address"),
		RedisPassword:        configViper.GetString("redis.password"),
		RedisDB:              configViper.GetInt("redis.db"),
		RedisEnabled:         configViper.GetBool("redis.enabled"),
		PricingBaseRate:      configViper.GetFloat64("pricing.base_rate"),
		PricingCurrency:      configViper.GetString("pricing.currency"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if strings.TrimSpace(c.IdentityAudience) == "" {
		return fmt.Errorf("identity.audience is required")
	}
	if strings.TrimSpace(c.IdentityJWKSURL) == "" {
		return fmt.Errorf("identity.jwks_url is required")
	}
	if len(c.IdentityIssuers) == 0 {
		return fmt.Errorf("identity.issuers is required")
	}
	if c.PricingBaseRate <= 0 {
		return fmt.Errorf("pricing.base_rate must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
