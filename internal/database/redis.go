package database

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fitadvisor/backend/internal/config"
)

// InitRedis initializes the Redis client used to cache document lookups.
// Redis is optional; on any failure the application continues without caching.
func InitRedis(config *config.Config) *redis.Client {
	if config.RedisHost == "" {
		log.Println("Redis not configured, document caching disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisAddr := config.GetRedisAddr()
	log.Printf("Connecting to Redis at %s...", redisAddr)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Username: config.RedisUsername,
		Password: config.RedisPassword,
	})

	// Try to ping Redis
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Println("Warning: Application will continue without document caching")
		return nil // Return nil client, and handle nil checks where Redis is used.
	}

	log.Println("Successfully connected to Redis")
	return redisClient
}
