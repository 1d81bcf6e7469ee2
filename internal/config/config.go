package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Realtime drivers understood by the notification channel factory.
const (
	RealtimeDriverRedis  = "redis"
	RealtimeDriverMemory = "memory"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	// VideoMaxBytes caps the declared size of an exercise video upload.
	VideoMaxBytes int64 `mapstructure:"video_max_bytes"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RealtimeConfig selects the notification channel backend.
// "redis" fans events out across API replicas, "memory" only within one process.
type RealtimeConfig struct {
	Driver string `mapstructure:"driver"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type RateLimitConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig reads configuration from file or environment variables.
// Priority: environment > config file > defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("database.name", "coach_sessions")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.video_max_bytes", 50*1024*1024)
	v.SetDefault("jwt.expiration", "1h")
	// jwt.secret has no default but must be known to viper so that JWT_SECRET is picked up by Unmarshal.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("realtime.driver", RealtimeDriverRedis)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("rate_limit.login_per_minute", 10)
	v.SetDefault("metrics.namespace", "coach_sessions")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "exercise-videos")
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 16 {
		return errors.New("config: jwt.secret must be at least 16 characters")
	}
	switch c.Realtime.Driver {
	case RealtimeDriverRedis, RealtimeDriverMemory:
	default:
		return fmt.Errorf("config: unknown realtime.driver %q", c.Realtime.Driver)
	}
	if c.RateLimit.LoginPerMinute <= 0 {
		return errors.New("config: rate_limit.login_per_minute must be positive")
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Realtime.Driver == RealtimeDriverRedis
}
