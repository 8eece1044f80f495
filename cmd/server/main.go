package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/api"
	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/predictor"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/config"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
	"github.com/stitts-dev/fantasy-rugby/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.IsDevelopment() {
		if err := db.Migrate(models.All()...); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Redis is optional: without it the cache is off and jobs live in the database
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warnf("Redis unavailable, continuing without cache: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	cacheService := services.NewCacheService(redisClient, cfg.CircuitBreakerThreshold, log)

	var jobStore services.JobStore
	if redisClient != nil {
		jobStore = services.NewRedisJobStore(redisClient, cfg.JobTTL)
	} else {
		jobStore = services.NewGormJobStore(db)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := services.NewJobHub(cfg.CorsOrigins, log)
	go hub.Run(ctx)

	p := predictor.New(cfg.ModelPath, log)
	schedule := fixtures.Default()

	deps := api.NewDependencies(cfg, db, cacheService, jobStore, hub, p, schedule, log)
	router := api.NewRouter(deps)

	var scheduler *services.PredictionScheduler
	if cfg.EnableBackgroundJobs {
		scheduler = services.NewPredictionScheduler(
			deps.Predictions,
			deps.Tracker,
			jobStore,
			schedule,
			cfg.CurrentSeason,
			cfg.PredictionSchedule,
			cfg.JobTTL,
			log,
		)
		if err := scheduler.Start(); err != nil {
			log.Errorf("Failed to start prediction scheduler: %v", err)
			scheduler = nil
		}
	}

	if cfg.IsDevelopment() {
		for _, route := range router.Routes() {
			log.Debugf("%s %s", route.Method, route.Path)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.OptimizationDeadline() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithService("fantasy-rugby").WithFields(logrus.Fields{
			"port":   cfg.Port,
			"env":    cfg.Env,
			"season": cfg.CurrentSeason,
			"redis":  redisClient != nil,
			"model":  p.ModelVersion(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := deps.Tracker.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Background jobs did not finish: %v", err)
	}
	stop()

	log.Info("Server exited")
}
