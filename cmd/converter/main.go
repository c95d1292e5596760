package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zeref/currency-converter/internal/currency"
	"github.com/zeref/currency-converter/internal/scheduler"
	"github.com/zeref/currency-converter/pkg/common"
	"github.com/zeref/currency-converter/pkg/config"
	"github.com/zeref/currency-converter/pkg/database"
	"github.com/zeref/currency-converter/pkg/health"
	"github.com/zeref/currency-converter/pkg/logger"
	"github.com/zeref/currency-converter/pkg/middleware"
	"github.com/zeref/currency-converter/pkg/ratelimit"
	"github.com/zeref/currency-converter/pkg/redis"
)

const serviceName = "currency-converter"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := database.RunMigrations(&cfg.Database); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Wire the engine
	repo := currency.NewRepository(pool)
	cache := currency.NewCache(redisClient)
	provider := currency.NewProvider(&cfg.RatesAPI)
	lock := currency.NewDistributedLock(redisClient.Client, cfg.Sync.LockName)
	calc := currency.NewCrossRateCalculator(cfg.RatesAPI.AnchorCurrency)

	synchronizer := currency.NewSynchronizer(repo, cache, provider, lock, calc, &cfg.Sync)
	synchronizer.Start()
	defer synchronizer.Stop()

	service := currency.NewService(repo, cache, provider, lock, synchronizer, &cfg.Sync)
	handler := currency.NewHandler(service)

	worker := scheduler.NewWorker(synchronizer, &cfg.Sync)
	if err := worker.Start(); err != nil {
		logger.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer worker.Stop()

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.APIKeyAuth(cfg.Security.APIKey))
	router.Use(ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit).Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.APIKeyHeader, middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, "1.0.0", map[string]func() error{
		"postgres": health.DatabaseChecker(pool),
		"redis":    health.RedisChecker(redisClient.Client),
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Currency converter starting on port " + cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}
