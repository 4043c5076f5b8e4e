// File: utils/cache.go
package utils

import (
	"bloomify/config"
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	// NotifCacheClient backs the notification-enablement cache (C9) and
	// the reservation-existence fast-path probe (C5).
	NotifCacheClient *redis.Client
	// ReminderQueueClient is the Redis instance asynq's batch-reminder
	// queue runs against.
	ReminderQueueClient *redis.Client
)

// InitNotifCache initializes the Redis client used for the process-local
// notification-enablement cache (5 min TTL, see §5).
func InitNotifCache() {
	NotifCacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisNotifCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NotifCacheClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (notif cache): %v", err)
	}
}

// GetNotifCacheClient returns the notification cache client, lazily
// initializing it.
func GetNotifCacheClient() *redis.Client {
	if NotifCacheClient == nil {
		InitNotifCache()
	}
	return NotifCacheClient
}

// InitReminderQueueClient initializes the Redis client asynq uses for the
// batch-reminder queue (§4.9, cron/reminder_worker.go).
func InitReminderQueueClient() {
	ReminderQueueClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := ReminderQueueClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (reminder queue): %v", err)
	}
}
