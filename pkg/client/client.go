package client

import (
	"context"
	"time"

	"rentkar/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds the shared backing-store handles. They are constructed once
// at process startup and injected into every component; no package keeps
// its own connection state.
type Client struct {
	Mongo *mongo.Client

	// Redis is the general-purpose connection (locks, counters, history,
	// publishing). RedisSub is dedicated to subscriptions, which redis
	// requires to run on their own connection.
	Redis    *redis.Client
	RedisSub *redis.Client
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB",
			"error", err,
			"uri", mongoURI,
		)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetRedis(log *logger.Logger, redisURL string) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("Invalid redis URL", "error", err)
	}

	rdb := redis.NewClient(opts)
	sub := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis", "error", err)
	}

	log.Info("Successfully connected to Redis")
	c.Redis = rdb
	c.RedisSub = sub
}

func (c *Client) GracefulShutdown(log *logger.Logger) {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		}
	}
	if c.RedisSub != nil {
		if err := c.RedisSub.Close(); err != nil {
			log.Error("Failed to close Redis subscriber client", "error", err)
		}
	}
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect MongoDB client", "error", err)
		}
	}
}
