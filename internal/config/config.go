// Package config loads the interview service configuration from an
// optional YAML file and the environment, then validates it. Missing
// required settings fail startup; there are no compiled-in secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all runtime configuration.
type Config struct {
	Port           string        `yaml:"port"`
	GRPCPort       string        `yaml:"grpcPort"`
	LogLevel       string        `yaml:"logLevel"`
	Store          string        `yaml:"store"`
	DatabaseURL    string        `yaml:"databaseURL"`
	RedisURL       string        `yaml:"redisURL"`
	ExpirySchedule string        `yaml:"expirySchedule"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes"`
	LiveKit        LiveKitConfig `yaml:"livekit"`
	Auth           AuthConfig    `yaml:"auth"`
	AMQP           AMQPConfig    `yaml:"amqp"`
	Minio          MinioConfig   `yaml:"minio"`
}

type LiveKitConfig struct {
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"apiKey"`
	APISecret string        `yaml:"apiSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

// AMQPConfig enables RabbitMQ event publishing when URL is set.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// MinioConfig enables recording uploads when Endpoint is set.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Enabled reports whether recording storage is configured.
func (m MinioConfig) Enabled() bool { return m.Endpoint != "" }

// Load reads path (skipped when empty), applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"INTERVIEW_PORT":     &cfg.Port,
		"GRPC_PORT":          &cfg.GRPCPort,
		"LOG_LEVEL":          &cfg.LogLevel,
		"STORE":              &cfg.Store,
		"DATABASE_URL":       &cfg.DatabaseURL,
		"REDIS_URL":          &cfg.RedisURL,
		"EXPIRY_SCHEDULE":    &cfg.ExpirySchedule,
		"LIVEKIT_URL":        &cfg.LiveKit.URL,
		"LIVEKIT_API_KEY":    &cfg.LiveKit.APIKey,
		"LIVEKIT_API_SECRET": &cfg.LiveKit.APISecret,
		"AUTH_JWT_SECRET":    &cfg.Auth.JWTSecret,
		"AUTH_JWT_ISSUER":    &cfg.Auth.Issuer,
		"AMQP_URL":           &cfg.AMQP.URL,
		"AMQP_EXCHANGE":      &cfg.AMQP.Exchange,
		"MINIO_ENDPOINT":     &cfg.Minio.Endpoint,
		"MINIO_ACCESS_KEY":   &cfg.Minio.AccessKey,
		"MINIO_SECRET_KEY":   &cfg.Minio.SecretKey,
		"MINIO_BUCKET":       &cfg.Minio.Bucket,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		cfg.Minio.UseSSL = b
	}
	if v := os.Getenv("LIVEKIT_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LIVEKIT_TOKEN_TTL: %w", err)
		}
		cfg.LiveKit.TokenTTL = d
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8083"
	}
	if cfg.GRPCPort == "" {
		cfg.GRPCPort = "9093"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Store == "" {
		cfg.Store = StorePostgres
	}
	if cfg.ExpirySchedule == "" {
		cfg.ExpirySchedule = "@every 1m"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 512 << 20
	}
	if cfg.LiveKit.TokenTTL == 0 {
		cfg.LiveKit.TokenTTL = 2 * time.Hour
	}
	if cfg.Minio.Bucket == "" {
		cfg.Minio.Bucket = "interview-recordings"
	}
}

func validate(cfg *Config) error {
	var errs []error
	require := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	switch cfg.Store {
	case StorePostgres:
		require(cfg.DatabaseURL, "DATABASE_URL")
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store))
	}
	require(cfg.RedisURL, "REDIS_URL")
	require(cfg.LiveKit.URL, "LIVEKIT_URL")
	require(cfg.LiveKit.APIKey, "LIVEKIT_API_KEY")
	require(cfg.LiveKit.APISecret, "LIVEKIT_API_SECRET")
	require(cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	if cfg.LiveKit.TokenTTL < 0 {
		errs = append(errs, errors.New("LIVEKIT_TOKEN_TTL must be positive"))
	}
	if cfg.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if cfg.Minio.Enabled() {
		require(cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
		require(cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	}
	return errors.Join(errs...)
}
