package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_delivery_service/internal/chat/app"
	"chat_delivery_service/internal/chat/repository"
	"chat_delivery_service/internal/chat/router"
	"chat_delivery_service/pkg/config"
	"chat_delivery_service/pkg/database"
	"chat_delivery_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHeartbeatSeconds   = 20
	defaultPresenceTTLSeconds = 60
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	if cfg.HeartbeatSeconds <= 0 {
		cfg.HeartbeatSeconds = defaultHeartbeatSeconds
	}
	if cfg.PresenceTTLSeconds <= 0 {
		cfg.PresenceTTLSeconds = defaultPresenceTTLSeconds
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Postgres, conversation membership (written by the CRUD service)
	db, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    config.PostgresDSN(cfg.PostgreSQL),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgreSQL database after retries",
			zap.String("host", cfg.PostgreSQL.Host),
			zap.Error(err),
		)
	}

	memberRepo := repository.NewMemberRepository(db)
	if err := memberRepo.AutoMigrate(); err != nil {
		logger.Log.Fatal("membership migrate failed", zap.Error(err))
	}

	// 2. Redis, presence markers + unread counters
	redisClient, err := database.NewRedisClient(database.RedisConnection{
		Addr:          fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		DB:            cfg.Redis.RedisDB,
		RetryCount:    cfg.Redis.RetryCount,
		RetryInterval: time.Duration(cfg.Redis.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	presenceRepo := repository.NewPresenceRepository(
		redisClient, time.Duration(cfg.PresenceTTLSeconds)*time.Second)

	// 3. Kafka event log. Every instance joins its own consumer group so
	// each one sees every event, a shared group would load-balance the
	// partitions and starve recipients connected elsewhere.
	groupID := fmt.Sprintf("%s-%s", cfg.Kafka.GroupPrefix, uuid.New().String())

	writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("kafka writer init failed", zap.Error(err))
	}
	reader, err := database.NewKafkaReaderWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		GroupID:       groupID,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("kafka reader init failed", zap.Error(err))
	}
	eventLog := repository.NewKafkaEventLog(writer, reader)
	defer eventLog.Close()

	// 4. Core: registry, bridge, publish path
	registry := app.NewConnectionRegistry(presenceRepo)

	bridge := app.NewDeliveryBridge(eventLog, memberRepo, presenceRepo, registry)
	go bridge.Run(ctx)

	publisher := app.NewMessagePublisher(eventLog)

	wsHandler := app.NewChatWebsocketHandler(
		registry, time.Duration(cfg.HeartbeatSeconds)*time.Second)

	// 5. Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(ctx, r,
		wsHandler,
		app.NewPresenceHandler(presenceRepo),
		app.NewPublishHandler(publisher),
	)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat delivery service")
		// closing the channels unblocks every handler's read pump,
		// each one runs its own disconnect path
		registry.CloseAll(context.Background())
		if err := r.Shutdown(); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	log.Printf("Chat Delivery Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
	logger.Log.Sync()
}
