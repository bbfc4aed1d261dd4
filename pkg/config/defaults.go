package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "rentkar"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisURL = "redis://localhost:6379"

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultLockLease        = 30 * time.Second
	DefaultLockMaxAttempts  = 3
	DefaultLockRetryBackoff = 100 * time.Millisecond

	DefaultGPSRateLimit   = 6
	DefaultGPSRateWindow  = time.Minute
	DefaultGPSHistorySize = 100
	DefaultGPSHistoryTTL  = 24 * time.Hour

	DefaultPartnerSearchRadiusMeters = 10000

	DefaultFeedHeartbeat = 30 * time.Second

	DefaultKafkaEventTopic = "rentkar.domain-events"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 50
)
