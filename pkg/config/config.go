package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rentkar/pkg/client"
	"rentkar/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisURL string

	Port string

	LockLease        time.Duration
	LockMaxAttempts  int
	LockRetryBackoff time.Duration

	GPSRateLimit   int
	GPSRateWindow  time.Duration
	GPSHistorySize int
	GPSHistoryTTL  time.Duration

	PartnerSearchRadiusMeters int

	FeedHeartbeat time.Duration

	KafkaBrokers    []string
	KafkaEventTopic string

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisURL: getEnvStr(EnvRedisURL, DefaultRedisURL),

		Port: getEnvStr(EnvPort, DefaultPort),

		LockLease:        getEnvDuration(EnvLockLease, DefaultLockLease),
		LockMaxAttempts:  getEnvNum(EnvLockMaxAttempts, DefaultLockMaxAttempts),
		LockRetryBackoff: getEnvDuration(EnvLockRetryBackoff, DefaultLockRetryBackoff),

		GPSRateLimit:   getEnvNum(EnvGPSRateLimit, DefaultGPSRateLimit),
		GPSRateWindow:  getEnvDuration(EnvGPSRateWindow, DefaultGPSRateWindow),
		GPSHistorySize: getEnvNum(EnvGPSHistorySize, DefaultGPSHistorySize),
		GPSHistoryTTL:  getEnvDuration(EnvGPSHistoryTTL, DefaultGPSHistoryTTL),

		PartnerSearchRadiusMeters: getEnvNum(EnvPartnerSearchRadiusMeters, DefaultPartnerSearchRadiusMeters),

		FeedHeartbeat: getEnvDuration(EnvFeedHeartbeat, DefaultFeedHeartbeat),

		KafkaBrokers:    getEnvList(EnvKafkaBrokers),
		KafkaEventTopic: getEnvStr(EnvKafkaEventTopic, DefaultKafkaEventTopic),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.RedisURL == "" {
		errors = append(errors, "RedisURL cannot be empty")
	} else if !strings.HasPrefix(cfg.RedisURL, "redis://") && !strings.HasPrefix(cfg.RedisURL, "rediss://") {
		errors = append(errors, fmt.Sprintf("RedisURL must start with 'redis://' or 'rediss://', got: %s", cfg.RedisURL))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.LockLease <= 0 {
		errors = append(errors, fmt.Sprintf("LockLease must be positive, got: %s", cfg.LockLease))
	}
	if cfg.LockMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("LockMaxAttempts must be positive, got: %d", cfg.LockMaxAttempts))
	}
	if cfg.LockRetryBackoff <= 0 {
		errors = append(errors, fmt.Sprintf("LockRetryBackoff must be positive, got: %s", cfg.LockRetryBackoff))
	}
	if cfg.GPSRateLimit <= 0 {
		errors = append(errors, fmt.Sprintf("GPSRateLimit must be positive, got: %d", cfg.GPSRateLimit))
	}
	if cfg.GPSRateWindow <= 0 {
		errors = append(errors, fmt.Sprintf("GPSRateWindow must be positive, got: %s", cfg.GPSRateWindow))
	}
	if cfg.GPSHistorySize <= 0 {
		errors = append(errors, fmt.Sprintf("GPSHistorySize must be positive, got: %d", cfg.GPSHistorySize))
	}
	if cfg.GPSHistoryTTL <= 0 {
		errors = append(errors, fmt.Sprintf("GPSHistoryTTL must be positive, got: %s", cfg.GPSHistoryTTL))
	}
	if cfg.PartnerSearchRadiusMeters <= 0 {
		errors = append(errors, fmt.Sprintf("PartnerSearchRadiusMeters must be positive, got: %d", cfg.PartnerSearchRadiusMeters))
	}
	if cfg.FeedHeartbeat <= 0 {
		errors = append(errors, fmt.Sprintf("FeedHeartbeat must be positive, got: %s", cfg.FeedHeartbeat))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaEventTopic == "" {
		errors = append(errors, "KafkaEventTopic cannot be empty when brokers are configured")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_url", redactURI(cfg.RedisURL),
		"port", cfg.Port,
		"lock_lease", cfg.LockLease,
		"lock_max_attempts", cfg.LockMaxAttempts,
		"lock_retry_backoff", cfg.LockRetryBackoff,
		"gps_rate_limit", cfg.GPSRateLimit,
		"gps_rate_window", cfg.GPSRateWindow,
		"gps_history_size", cfg.GPSHistorySize,
		"gps_history_ttl", cfg.GPSHistoryTTL,
		"partner_search_radius_meters", cfg.PartnerSearchRadiusMeters,
		"feed_heartbeat", cfg.FeedHeartbeat,
		"kafka_brokers", len(cfg.KafkaBrokers),
		"kafka_event_topic", cfg.KafkaEventTopic,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactURI(uri string) string {
	credentialRegex := regexp.MustCompile(`((?:mongodb(?:\+srv)?|rediss?)://)[^:/@]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
