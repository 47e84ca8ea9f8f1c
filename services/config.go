package services

import (
	"log/slog"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	Telephony TelephonyConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Secrets   SecretsConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	URL string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type TelephonyConfig struct {
	TwilioBaseURL       string
	TwilioAccountSID    string
	TwilioAuthToken     string
	TelnyxBaseURL       string
	WebhookBaseURL      string
	SweepSeconds        int
	ProbeTimeoutSeconds int
	MaxConcurrentProbes int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	PerMinute int
}

type SecretsConfig struct {
	// Keyring spec: "keyID=base64key,keyID=base64key"; first entry encrypts.
	Keyring string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("amqp.url", "")
	viper.SetDefault("amqp.exchange", "airies.events")
	viper.SetDefault("telephony.twilio_base_url", "https://api.twilio.com/2010-04-01")
	viper.SetDefault("telephony.telnyx_base_url", "https://api.telnyx.com/v2")
	viper.SetDefault("telephony.webhook_base_url", "")
	viper.SetDefault("telephony.sweep_seconds", "60")
	viper.SetDefault("telephony.probe_timeout_seconds", "10")
	viper.SetDefault("telephony.max_concurrent_probes", "8")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("ratelimit.per_minute", "60")
	viper.SetDefault("secrets.keyring", "")
	viper.SetDefault("websocket.allowed_origins", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("amqp.url", "AMQP_URL")
	viper.BindEnv("amqp.exchange", "AMQP_EXCHANGE")
	viper.BindEnv("telephony.twilio_base_url", "TWILIO_BASE_URL")
	viper.BindEnv("telephony.telnyx_base_url", "TELNYX_BASE_URL")
	viper.BindEnv("telephony.webhook_base_url", "WEBHOOK_BASE_URL")
	viper.BindEnv("telephony.sweep_seconds", "TRUNK_HEALTH_SWEEP_SECONDS")
	viper.BindEnv("telephony.probe_timeout_seconds", "TRUNK_HEALTH_PROBE_TIMEOUT_SECONDS")
	viper.BindEnv("telephony.max_concurrent_probes", "TRUNK_HEALTH_MAX_CONCURRENT_PROBES")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("ratelimit.per_minute", "RATE_LIMIT_PER_MINUTE")
	viper.BindEnv("secrets.keyring", "SECRET_KEYS")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		AMQP: AMQPConfig{
			URL:      viper.GetString("amqp.url"),
			Exchange: viper.GetString("amqp.exchange"),
		},
		Telephony: TelephonyConfig{
			TwilioBaseURL:       viper.GetString("telephony.twilio_base_url"),
			TwilioAccountSID:    viper.GetString("telephony.twilio_account_sid"),
			TwilioAuthToken:     viper.GetString("telephony.twilio_auth_token"),
			TelnyxBaseURL:       viper.GetString("telephony.telnyx_base_url"),
			WebhookBaseURL:      viper.GetString("telephony.webhook_base_url"),
			SweepSeconds:        viper.GetInt("telephony.sweep_seconds"),
			ProbeTimeoutSeconds: viper.GetInt("telephony.probe_timeout_seconds"),
			MaxConcurrentProbes: viper.GetInt("telephony.max_concurrent_probes"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: viper.GetInt("ratelimit.per_minute"),
		},
		Secrets: SecretsConfig{
			Keyring: viper.GetString("secrets.keyring"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
