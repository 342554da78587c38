package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytesize-travel/service-curation/internal/app"
	"github.com/bytesize-travel/service-curation/internal/auth"
	"github.com/bytesize-travel/service-curation/internal/config"
	"github.com/bytesize-travel/service-curation/internal/database"
	curationEvents "github.com/bytesize-travel/service-curation/internal/events"
	"github.com/bytesize-travel/service-curation/internal/handler"
	"github.com/bytesize-travel/service-curation/internal/kafka"
	"github.com/bytesize-travel/service-curation/internal/lock"
	"github.com/bytesize-travel/service-curation/internal/logger"
	"github.com/bytesize-travel/service-curation/internal/metrics"
	"github.com/bytesize-travel/service-curation/internal/middleware"
	"github.com/bytesize-travel/service-curation/internal/repository"
	"github.com/bytesize-travel/service-curation/internal/schedule"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "service-curation"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.App.Env, cfg.App.LogLevel, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-curation",
		zap.String("port", cfg.App.Port),
		zap.String("env", cfg.App.Env),
	)

	// Connect to database and migrate
	db, err := database.Connect(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	// Initialize JWT manager
	if cfg.Auth.JWTSecret == "" {
		zapLogger.Warn("auth.jwt_secret is empty; write routes will reject every token")
	}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize Kafka producer
	var publisher kafka.Publisher = kafka.NopPublisher{Logger: zapLogger}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, zapLogger)
		defer producer.Close()
		publisher = producer
	}

	// Initialize cadence locker
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		pingCancel()
		locker = lock.NewRedisLocker(redisClient, "curation:lock:", cfg.Redis.LockTTL)
	}

	// Initialize repositories and services
	services := app.Wire(app.Deps{
		Content:   repository.NewGormContentRepository(db),
		Runs:      repository.NewGormRunRepository(db),
		Publisher: publisher,
		Locker:    locker,
		Metrics:   m,
		Logger:    zapLogger,
		Selection: cfg.Selection,
		Cadences:  cfg.Cadences,
		Policies:  cfg.Policies,
	})

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	// Initialize Kafka consumer for enrichment events
	if cfg.Kafka.Enabled {
		consumerGroupID := cfg.Kafka.GroupPrefix + serviceName
		contentConsumer := curationEvents.NewContentEventConsumer(
			cfg.Kafka.Brokers,
			consumerGroupID,
			services.Content,
			zapLogger,
		)
		defer contentConsumer.Close()

		go func() {
			zapLogger.Info("starting content event consumer")
			if err := contentConsumer.Start(backgroundCtx); err != nil {
				if backgroundCtx.Err() == nil {
					zapLogger.Error("content event consumer failed", zap.Error(err))
				}
			}
		}()
	}

	// Start cadence scheduler
	if cfg.Scheduler.Enabled {
		scheduler := schedule.NewScheduler(services.Curation, cfg.Scheduler.RunTimeout, zapLogger.Named("scheduler"))
		for _, c := range cfg.Cadences {
			if err := scheduler.Add(c); err != nil {
				zapLogger.Fatal("failed to schedule cadence", zap.String("cadence", c.Name), zap.Error(err))
			}
		}
		scheduler.Start(backgroundCtx)
		defer scheduler.Stop()
	}

	// Setup Gin router
	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(zapLogger))

	// Register health and metrics routes
	handler.NewHealthHandler(services.Curation, serviceName).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Register API routes
	apiV1 := router.Group("/api/v1")
	handler.NewCurationHandler(services.Curation, jwtManager).RegisterRoutes(apiV1)
	handler.NewContentHandler(services.Content).RegisterRoutes(apiV1, jwtManager)
	handler.NewAdminCurationHandler(services.Curation, services.Content).RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-curation...")

	// Stop consumer and scheduled runs
	backgroundCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-curation stopped")
}
