package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-orders/config"
	"storefront-orders/internal/api"
	"storefront-orders/internal/broker"
	"storefront-orders/internal/identity"
	"storefront-orders/internal/redisclient"
	"storefront-orders/internal/service"
	"storefront-orders/internal/store"
	"storefront-orders/internal/util"
	"storefront-orders/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// repository is everything the services need from a store backend
type repository interface {
	service.OrderRepository
	service.OrderReader
	service.HistoryRepository
	identity.RoleLookup
	store.Seeder
	api.Pinger
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront order service")

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	var repo repository
	switch cfg.Database.Driver {
	case config.DriverMemory:
		repo = store.NewMemoryStore()
		logger.Warn("Using in-memory store, data is lost on exit")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database connected")

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(context.Background()); err != nil {
				logger.Fatal("Failed to apply schema", zap.Error(err))
			}
		}
		repo = db
	}

	if cfg.Database.SeedFile != "" {
		seed, err := store.LoadSeedFile(cfg.Database.SeedFile)
		if err != nil {
			logger.Fatal("Failed to load seed", zap.Error(err))
		}
		if err := store.ApplySeed(context.Background(), repo, seed); err != nil {
			logger.Fatal("Failed to apply seed", zap.Error(err))
		}
		logger.Info("Seed applied",
			zap.String("file", cfg.Database.SeedFile),
			zap.Int("products", len(seed.Products)))
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))

	eventPublisher := broker.NewEventPublisher(producer)

	gateway := identity.NewGatewayClient(cfg.Auth.GatewayURL, cfg.Auth.APIKey, repo)
	var authenticator identity.Authenticator = gateway
	if cfg.Auth.CacheTTL > 0 {
		authenticator = identity.NewCachedAuthenticator(gateway, redisClient, cfg.Auth.CacheTTL)
	}

	orderService := service.NewOrderService(repo, authenticator, eventPublisher, redisClient, service.Options{
		InitialStatus:  cfg.Business.InitialOrderStatus,
		IdempotencyTTL: cfg.Business.IdempotencyTTL,
	})
	queryService := service.NewQueryService(repo, orderService)
	historyService := service.NewHistoryService(repo)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	historyWorker := worker.NewHistoryWorker(consumer, historyService)
	go func() {
		if err := historyWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("History worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, queryService, authenticator, api.Options{
		APIPrefix:  cfg.Server.APIPrefix,
		CookieName: cfg.Auth.CookieName,
		AdminRole:  cfg.Auth.AdminRole,
	}, map[string]api.Pinger{
		"store": repo,
		"redis": redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := historyWorker.Stop(); err != nil {
		logger.Error("Error stopping history worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
