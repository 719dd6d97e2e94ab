package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-queue/internal/email"
	"github.com/jwalitptl/clinic-queue/internal/middleware"
	"github.com/jwalitptl/clinic-queue/internal/repository/postgres"
	"github.com/jwalitptl/clinic-queue/internal/service/announce"
	"github.com/jwalitptl/clinic-queue/internal/service/queue"
	"github.com/jwalitptl/clinic-queue/internal/session"
	"github.com/jwalitptl/clinic-queue/pkg/auth"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/feed/remote"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/messaging/mqtt"
	"github.com/jwalitptl/clinic-queue/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-queue/pkg/worker"
)

// EnvPrefix namespaces environment overrides, e.g. QUEUE_DATABASE_HOST.
const EnvPrefix = "QUEUE"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Store         string             `mapstructure:"store"`
	Database      DatabaseConfig     `mapstructure:"database"`
	JWT           JWTConfig          `mapstructure:"jwt"`
	Admin         AdminConfig        `mapstructure:"admin"`
	Log           LogConfig          `mapstructure:"log"`
	Feed          FeedConfig         `mapstructure:"feed"`
	Queue         QueueConfig        `mapstructure:"queue"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit" split_words:"true"`
	Security      SecurityConfig     `mapstructure:"security"`
	Outbox        OutboxConfig       `mapstructure:"outbox"`
	Redis         RedisConfig        `mapstructure:"redis"`
	MQTT          MQTTConfig         `mapstructure:"mqtt"`
	SMTP          SMTPConfig         `mapstructure:"smtp"`
	Agent         AgentConfig        `mapstructure:"agent"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes" split_words:"true"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
	Migrate         bool          `mapstructure:"migrate"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

type AdminConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type FeedConfig struct {
	BufferSize        int           `mapstructure:"buffer_size" split_words:"true"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" split_words:"true"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout" split_words:"true"`
	RotationPeriod    time.Duration `mapstructure:"rotation_period" split_words:"true"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" split_words:"true"`
}

type QueueConfig struct {
	OptimisticLocking bool `mapstructure:"optimistic_locking" split_words:"true"`
}

type NotificationConfig struct {
	LogSize int `mapstructure:"log_size" split_words:"true"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" split_words:"true"`
	AllowCredentials bool     `mapstructure:"allow_credentials" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval    time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts   int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" split_words:"true"`
	MaxRetries      int           `mapstructure:"max_retries" split_words:"true"`
	RetryAfter      time.Duration `mapstructure:"retry_after" split_words:"true"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
	// HealthPort serves probes and /metrics for cmd/worker.
	HealthPort int `mapstructure:"health_port" split_words:"true"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Prefix       string        `mapstructure:"prefix"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type MQTTConfig struct {
	Broker       string        `mapstructure:"broker"`
	ClientID     string        `mapstructure:"client_id" split_words:"true"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	TopicPrefix  string        `mapstructure:"topic_prefix" split_words:"true"`
	QoS          byte          `mapstructure:"qos"`
	Retain       bool          `mapstructure:"retain"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" split_words:"true"`
}

type SMTPConfig struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

// AgentConfig drives cmd/display-agent on screen hardware.
type AgentConfig struct {
	ServerURL  string   `mapstructure:"server_url" split_words:"true"`
	ScreenID   string   `mapstructure:"screen_id" split_words:"true"`
	Secret     string   `mapstructure:"secret"`
	AudioDir   string   `mapstructure:"audio_dir" split_words:"true"`
	AudioExt   string   `mapstructure:"audio_ext" split_words:"true"`
	Player     string   `mapstructure:"player"`
	PlayerArgs []string `mapstructure:"player_args" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("store", StorePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrate", true)
	v.SetDefault("jwt.ttl", 12*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("feed.buffer_size", 64)
	v.SetDefault("feed.heartbeat_interval", 5*time.Second)
	v.SetDefault("feed.heartbeat_timeout", 15*time.Second)
	v.SetDefault("feed.rotation_period", 10*time.Second)
	v.SetDefault("notifications.log_size", 15)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_interval", time.Hour)
	v.SetDefault("outbox.health_port", 8081)
	v.SetDefault("redis.prefix", "clinic-queue")
	v.SetDefault("mqtt.client_id", "clinic-queue")
	v.SetDefault("mqtt.topic_prefix", "clinic-queue")
	v.SetDefault("agent.audio_ext", ".mp3")
	v.SetDefault("agent.player", "mpg123")
}

// LoadConfig reads config.yml from the usual locations, then applies
// QUEUE_* environment overrides. A missing file is not an error; defaults
// and the environment are enough to run.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return load(v)
}

// LoadFile reads one explicit config file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	cfg.Store = strings.ToLower(cfg.Store)
	return &cfg, nil
}

// Validate checks what the API server needs before it starts.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Admin.Secret == "" {
		errs = append(errs, errors.New("admin.secret is required"))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

func (c *Config) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      logger.ParseLevel(c.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       c.Log.JSON,
	}
}

func (c *DatabaseConfig) ToPostgresConfig() postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Name:            c.Name,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

func (c *JWTConfig) ToAuthConfig() auth.Config {
	return auth.Config{Secret: c.Secret, TTL: c.TTL, Issuer: c.Issuer}
}

func (c *FeedConfig) ToFeedConfig() feed.Config {
	return feed.Config{
		BufferSize:        c.BufferSize,
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatTimeout:  c.HeartbeatTimeout,
	}
}

func (c *FeedConfig) ToSessionConfig() session.Config {
	return session.Config{
		HeartbeatTimeout: c.HeartbeatTimeout,
		RotationPeriod:   c.RotationPeriod,
		TokenTTL:         c.TokenTTL,
	}
}

func (c *QueueConfig) ToQueueConfig() queue.Config {
	return queue.Config{OptimisticLocking: c.OptimisticLocking}
}

func (c *RateLimitConfig) ToRateLimiterConfig() middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{Rate: rate.Limit(c.RequestsPerSecond), Burst: c.Burst}
}

func (c *SecurityConfig) ToCORSConfig() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(c.AllowedOrigins) > 0 {
		cors.AllowOrigins = c.AllowedOrigins
	}
	cors.AllowCredentials = c.AllowCredentials
	return cors
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxRetries:    c.MaxRetries,
		RetryAfter:    c.RetryAfter,
	}
}

// Enabled reports whether integration events go to Redis.
func (c *RedisConfig) Enabled() bool { return c.URL != "" }

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		Prefix:       c.Prefix,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *MQTTConfig) Enabled() bool { return c.Broker != "" }

func (c *MQTTConfig) ToBrokerConfig() mqtt.Config {
	return mqtt.Config{
		Broker:       c.Broker,
		ClientID:     c.ClientID,
		Username:     c.Username,
		Password:     c.Password,
		TopicPrefix:  c.TopicPrefix,
		QoS:          c.QoS,
		Retain:       c.Retain,
		WriteTimeout: c.WriteTimeout,
	}
}

func (c *SMTPConfig) ToEmailConfig() email.Config {
	return email.Config{
		Host:       c.Host,
		Port:       c.Port,
		Username:   c.Username,
		Password:   c.Password,
		From:       c.From,
		Recipients: c.Recipients,
	}
}

func (c *AgentConfig) ToRemoteConfig() (remote.Config, error) {
	id, err := uuid.Parse(c.ScreenID)
	if err != nil {
		return remote.Config{}, fmt.Errorf("agent.screen_id: %w", err)
	}
	if c.ServerURL == "" || c.Secret == "" {
		return remote.Config{}, errors.New("agent.server_url and agent.secret are required")
	}
	return remote.Config{BaseURL: c.ServerURL, ScreenID: id, Secret: c.Secret}, nil
}

func (c *AgentConfig) ToExecConfig() announce.ExecConfig {
	return announce.ExecConfig{
		Dir:     c.AudioDir,
		Ext:     c.AudioExt,
		Command: c.Player,
		Args:    c.PlayerArgs,
	}
}
