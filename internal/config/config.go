package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Partner  PartnerConfig  `mapstructure:"partner"`
	Guard    GuardConfig    `mapstructure:"guard"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// PartnerConfig describes the assistant backend the chat client talks to
type PartnerConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	WarmupTimeout time.Duration `mapstructure:"warmup_timeout"`
	SourceLimit   int           `mapstructure:"source_limit"`
}

type GuardConfig struct {
	MinSendInterval time.Duration `mapstructure:"min_send_interval"`
	WarmupDebounce  time.Duration `mapstructure:"warmup_debounce"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	GreetingTTL time.Duration `mapstructure:"greeting_ttl"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   string        `mapstructure:"file"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env vars still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Partner.BaseURL == "" {
		return nil, fmt.Errorf("partner.base_url is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.middleware_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Partner backend
	v.SetDefault("partner.base_url", "http://localhost:8000")
	v.SetDefault("partner.send_timeout", "30s")
	v.SetDefault("partner.warmup_timeout", "10s")
	v.SetDefault("partner.source_limit", 3)

	// Guard
	v.SetDefault("guard.min_send_interval", "250ms")
	v.SetDefault("guard.warmup_debounce", "150ms")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.greeting_ttl", "10m")

	// Auth
	v.SetDefault("auth.token_ttl", "12h")

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 60)
	v.SetDefault("security.rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h") // 7 days
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("partner.base_url", "PARTNER_BASE_URL")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.file", "LOG_FILE")
}
