package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Resolver ResolverConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	RabbitMQ RabbitMQConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type LogConfig struct {
	Level slog.Level `envconfig:"LOG_LEVEL" default:"INFO"`
}

// UserAgentList is a "|"-separated list. User agent strings contain commas,
// so the default comma splitting cannot be used.
type UserAgentList []string

// Decode implements envconfig.Decoder.
func (l *UserAgentList) Decode(value string) error {
	var out []string
	for _, ua := range strings.Split(value, "|") {
		if ua = strings.TrimSpace(ua); ua != "" {
			out = append(out, ua)
		}
	}
	*l = out
	return nil
}

type ResolverConfig struct {
	ExtractorPath  string        `envconfig:"RESOLVER_EXTRACTOR_PATH" default:"yt-dlp"`
	Format         string        `envconfig:"RESOLVER_FORMAT" default:"bestaudio/best"`
	SocketTimeout  int           `envconfig:"RESOLVER_SOCKET_TIMEOUT" default:"15"`
	PrimaryURL     string        `envconfig:"RESOLVER_PRIMARY_URL" default:"https://www.youtube.com/watch?v={id}"`
	MaxAttempts    int           `envconfig:"RESOLVER_MAX_ATTEMPTS" default:"3"`
	ResolveTimeout time.Duration `envconfig:"RESOLVER_TIMEOUT" default:"90s"`
	UserAgents     UserAgentList `envconfig:"RESOLVER_USER_AGENTS"`

	// FallbackEndpoints are "kind:name=url" entries tried in order once the
	// primary attempts are exhausted. kind is "extractor" or "frontend".
	FallbackEndpoints []string      `envconfig:"RESOLVER_FALLBACK_ENDPOINTS" default:"extractor:mobile=https://m.youtube.com/watch?v={id},extractor:music=https://music.youtube.com/watch?v={id}"`
	FrontendTimeout   time.Duration `envconfig:"RESOLVER_FRONTEND_TIMEOUT" default:"20s"`
}

type CacheConfig struct {
	Capacity int           `envconfig:"CACHE_CAPACITY" default:"100"`
	TTL      time.Duration `envconfig:"CACHE_TTL" default:"30m"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Enabled  bool   `envconfig:"POSTGRES_ENABLED" default:"true"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"audiostream"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"audiostream"`
	DBName   string `envconfig:"POSTGRES_DB" default:"audiostream"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Enabled      bool   `envconfig:"MINIO_ENABLED" default:"true"`
	Endpoint     string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey    string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey    string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket       string `envconfig:"MINIO_BUCKET" default:"audio-payloads"`
	UseSSL       bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	CreateBucket bool   `envconfig:"MINIO_CREATE_BUCKET" default:"true"`
}

type RabbitMQConfig struct {
	Enabled  bool   `envconfig:"RABBITMQ_ENABLED" default:"true"`
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"audiostream"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"audiostream"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Validate rejects settings the resolution pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_CAPACITY must be positive, got %d", c.Cache.Capacity))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL))
	}
	if c.Resolver.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("RESOLVER_MAX_ATTEMPTS must be positive, got %d", c.Resolver.MaxAttempts))
	}
	if c.Resolver.ResolveTimeout < 0 {
		errs = append(errs, fmt.Errorf("RESOLVER_TIMEOUT must not be negative, got %s", c.Resolver.ResolveTimeout))
	}
	return errors.Join(errs...)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
