package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string         `mapstructure:"mode"`
	Port     int            `mapstructure:"port"`
	LogLevel string         `mapstructure:"log_level"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	LiveKit  LiveKitConfig  `mapstructure:"livekit"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
	Locales  LocalesConfig  `mapstructure:"locales"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LiveKitConfig struct {
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"api_key"`
	APISecret     string        `mapstructure:"api_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	RecordingPath string        `mapstructure:"recording_path"`
	Layout        string        `mapstructure:"layout"`
}

type ChatConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

type FanoutConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LocalesConfig struct {
	Path string `mapstructure:"path"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Load reads .env (if present), config/config.<CONFIG_ENV>.yaml (if present) and
// MEETHUB_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Str("module", "config").Msg("no .env file, using process environment")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("MEETHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults and environment")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret must be set")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("postgres.dsn", "host=localhost user=user password=password dbname=meethub port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("session.key_prefix", DefaultKeyPrefix)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 72*time.Hour)
	v.SetDefault("livekit.url", "http://localhost:7880")
	v.SetDefault("livekit.api_key", "")
	v.SetDefault("livekit.api_secret", "")
	v.SetDefault("livekit.token_ttl", 6*time.Hour)
	v.SetDefault("livekit.recording_path", "recordings/{room_name}-{time}.mp4")
	v.SetDefault("livekit.layout", "speaker")
	v.SetDefault("chat.rate_limit", DefaultChatRateLimit)
	v.SetDefault("chat.rate_window", DefaultChatRateWindow)
	v.SetDefault("fanout.enabled", false)
	v.SetDefault("locales.path", "internal/localization/locales")
	v.SetDefault("worker.concurrency", 5)
}
