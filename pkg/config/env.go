package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisURL = "REDIS_URL"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvLockLease        = "LOCK_LEASE"
	EnvLockMaxAttempts  = "LOCK_MAX_ATTEMPTS"
	EnvLockRetryBackoff = "LOCK_RETRY_BACKOFF"

	EnvGPSRateLimit   = "GPS_RATE_LIMIT"
	EnvGPSRateWindow  = "GPS_RATE_WINDOW"
	EnvGPSHistorySize = "GPS_HISTORY_SIZE"
	EnvGPSHistoryTTL  = "GPS_HISTORY_TTL"

	EnvPartnerSearchRadiusMeters = "PARTNER_SEARCH_RADIUS_METERS"

	EnvFeedHeartbeat = "FEED_HEARTBEAT"

	EnvKafkaBrokers    = "KAFKA_BROKERS"
	EnvKafkaEventTopic = "KAFKA_EVENT_TOPIC"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
