package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer          string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience        string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL         string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey      string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	IdempotencyTTL      time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	MinioEndpoint       string        `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey      string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey      string        `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket         string        `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL         bool          `mapstructure:"MINIO_USE_SSL"`
	AMQPURL             string        `mapstructure:"AMQP_URL"`
	AMQPExchange        string        `mapstructure:"AMQP_EXCHANGE"`
	MQTTBrokerURL       string        `mapstructure:"MQTT_BROKER_URL"`
	MQTTClientID        string        `mapstructure:"MQTT_CLIENT_ID"`
	MQTTTopic           string        `mapstructure:"MQTT_TOPIC"`
	MQTTUsername        string        `mapstructure:"MQTT_USERNAME"`
	MQTTPassword        string        `mapstructure:"MQTT_PASSWORD"`
	ExpectedDosesPerDay int           `mapstructure:"EXPECTED_DOSES_PER_DAY"`
	LowBatteryThreshold int           `mapstructure:"LOW_BATTERY_THRESHOLD"`
	LowDoseThreshold    int           `mapstructure:"LOW_DOSE_THRESHOLD"`
	ReadRetryAttempts   int           `mapstructure:"READ_RETRY_ATTEMPTS"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"REDIS_URL", "IDEMPOTENCY_TTL",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"AMQP_URL", "AMQP_EXCHANGE",
	"MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_TOPIC", "MQTT_USERNAME", "MQTT_PASSWORD",
	"EXPECTED_DOSES_PER_DAY", "LOW_BATTERY_THRESHOLD", "LOW_DOSE_THRESHOLD",
	"READ_RETRY_ATTEMPTS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("MINIO_BUCKET", "inhalecare")
	v.SetDefault("AMQP_EXCHANGE", "inhalecare.events")
	v.SetDefault("MQTT_CLIENT_ID", "inhalecare-sync")
	v.SetDefault("MQTT_TOPIC", "inhalers/+/sync")
	v.SetDefault("EXPECTED_DOSES_PER_DAY", 2)
	v.SetDefault("LOW_BATTERY_THRESHOLD", 20)
	v.SetDefault("LOW_DOSE_THRESHOLD", 20)
	v.SetDefault("READ_RETRY_ATTEMPTS", 3)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthIssuer == "" {
		log.Println("WARNING: ENV=development without AUTH_SIGNING_KEY or AUTH_ISSUER.")
		log.Println("WARNING: requests are authenticated by the X-Account-ID header alone.")
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

// HeaderAuth reports whether requests are trusted to carry their account id
// in a plain header. Only development without any token configuration does.
func (c *Config) HeaderAuth() bool {
	return c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.ExpectedDosesPerDay <= 0 {
		return fmt.Errorf("EXPECTED_DOSES_PER_DAY must be positive, got %d", c.ExpectedDosesPerDay)
	}
	for name, v := range map[string]int{
		"LOW_BATTERY_THRESHOLD": c.LowBatteryThreshold,
		"LOW_DOSE_THRESHOLD":    c.LowDoseThreshold,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got %d", name, v)
		}
	}
	if c.ReadRetryAttempts < 1 || c.ReadRetryAttempts > 10 {
		return fmt.Errorf("READ_RETRY_ATTEMPTS must be between 1 and 10, got %d", c.ReadRetryAttempts)
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}
	return nil
}
