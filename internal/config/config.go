package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL   string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`

	// PaymentAddress is the receiving wallet address placed on new payment orders.
	PaymentAddress string        `mapstructure:"PAYMENT_ADDRESS"`
	PaymentExpiry  time.Duration `mapstructure:"PAYMENT_EXPIRY"`

	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepBatchSize int           `mapstructure:"SWEEP_BATCH_SIZE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("PAYMENT_EXPIRY", "24h")
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("SWEEP_BATCH_SIZE", 20)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("PAYMENT_ADDRESS")
	v.BindEnv("PAYMENT_EXPIRY")
	v.BindEnv("SWEEP_INTERVAL")
	v.BindEnv("SWEEP_BATCH_SIZE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// mode some form of JWT verification must be configured so that patient and
// doctor identities on incoming requests are real.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.JWTSigningKey == "" {
			return fmt.Errorf(
				"one of AUTH_ISSUER, AUTH_JWKS_URL or JWT_SIGNING_KEY must be set when ENV=%q. "+
					"Refusing to start without authentication configuration", c.Env)
		}
	}

	if c.IsProduction() && c.PaymentAddress == "" {
		return fmt.Errorf("PAYMENT_ADDRESS is required in production")
	}

	if c.PaymentExpiry <= 0 {
		return fmt.Errorf("PAYMENT_EXPIRY must be positive, got %s", c.PaymentExpiry)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive, got %d", c.SweepBatchSize)
	}

	return nil
}
