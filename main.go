// File: bloomify/main.go
package main

import (
	"context"
	"os"

	"bloomify/config"
	"bloomify/cron"
	"bloomify/database"
	"bloomify/database/store"
	"bloomify/handlers"
	"bloomify/middleware"
	"bloomify/routes"
	"bloomify/services/allocator"
	"bloomify/services/breaks"
	"bloomify/services/clock"
	"bloomify/services/notification"
	"bloomify/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	utils.InitializeLogger()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitNotifCache()
	utils.InitReminderQueueClient()

	schedulerStore := store.NewMongoStore(config.AppConfig.DatabaseName)
	schedulerClock, err := clock.New(config.AppConfig.ClinicTimezone)
	if err != nil {
		logger.Sugar().Fatalf("failed to build clinic clock: %v", err)
	}

	alloc := allocator.New(schedulerStore, schedulerClock)
	breakService := breaks.New(schedulerStore, schedulerClock, alloc)

	push := newPushSender(logger)
	whatsapp := notification.NewHTTPWhatsAppSender(config.AppConfig.WhatsAppGatewayBaseURL, config.AppConfig.WhatsAppAPIKey)
	notifCache := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisNotifCacheDB,
	})
	dispatcher := notification.New(schedulerStore, schedulerClock, push, whatsapp, notifCache, logger)
	directory := notification.NewStoreDirectory(schedulerStore)

	handlers.Allocator = alloc
	handlers.Breaks = breakService
	handlers.Store = schedulerStore
	handlers.ClockHandle = schedulerClock

	cron.InitReminderWorker(schedulerStore, schedulerClock, dispatcher, directory)
	if _, err := cron.StartReminderScheduler(schedulerStore, schedulerClock); err != nil {
		logger.Sugar().Fatalf("failed to start reminder scheduler: %v", err)
	}

	utils.StartHealthMonitor([]*redis.Client{utils.NotifCacheClient, utils.ReminderQueueClient}, database.MongoClient)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(cors.Default())
	router.Use(middleware.RateLimitMiddleware())

	routes.RegisterHealthRoute(router)
	routes.RegisterSchedulerRoutes(router)

	port := config.AppConfig.AppPort
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	logger.Sugar().Infof("starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		logger.Sugar().Fatalf("server failed to start: %v", err)
	}
}

// newPushSender builds the Firebase-backed push sender, falling back to
// a nil sender (push disabled) when no service-account file is
// configured, so a local run without Firebase credentials still starts.
func newPushSender(logger *zap.Logger) notification.PushSender {
	if config.AppConfig.FirebaseServiceAccountFile == "" {
		logger.Warn("no firebase service account configured, push notifications disabled")
		return nil
	}
	ctx := context.Background()
	client, err := notification.NewFirebaseMessagingClient(ctx, config.AppConfig.FirebaseServiceAccountFile)
	if err != nil {
		logger.Sugar().Fatalf("failed to init firebase messaging: %v", err)
	}
	return notification.NewFCMSender(client)
}
