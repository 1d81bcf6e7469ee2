package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/coach-sessions/internal/api"
	"alcyxob/coach-sessions/internal/config"
	"alcyxob/coach-sessions/internal/logger"
	"alcyxob/coach-sessions/internal/metrics"
	"alcyxob/coach-sessions/internal/realtime"
	"alcyxob/coach-sessions/internal/repository/mongo"
	"alcyxob/coach-sessions/internal/service"
	"alcyxob/coach-sessions/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// @title Coach Sessions API
// @version 1.0
// @description Live training sessions between athletes and their trainers.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("server stopped", zap.Error(err))
	}
	logg.Info("Server exiting.")
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(ctx, cfg.Database.URI)
	if err != nil {
		return err
	}
	defer func() {
		logg.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logg.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logg.Info("Database connection established", zap.String("database", cfg.Database.Name))

	// --- Ensure Indexes ---
	// The one-open-session and round-number guarantees rest on these, so startup waits for them.
	indexCtx, cancelIndexes := context.WithTimeout(ctx, time.Minute)
	err = mongo.EnsureIndexes(indexCtx, appDB)
	cancelIndexes()
	if err != nil {
		return err
	}

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(ctx, cfg.S3, logg)
	if err != nil {
		return err
	}

	// --- Notification channel and rate limiter ---
	var (
		broker      realtime.Broker
		rateLimiter api.RequestRateLimiter
	)
	if cfg.UsesRedis() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		broker = realtime.NewRedisBroker(redisClient, logg)
		rateLimiter = redis_rate.NewLimiter(redisClient)
	} else {
		logg.Warn("realtime driver is memory: events stay in this process and login is not rate limited")
		broker = realtime.NewMemoryBroker()
	}
	defer func() { _ = broker.Close() }()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsManager := metrics.NewManager(cfg.Metrics.Namespace, "api", reg)

	// --- Initialize Repositories ---
	stores := service.Stores{
		Users:          mongo.NewMongoUserRepository(appDB),
		Exercises:      mongo.NewMongoExerciseRepository(appDB),
		Sessions:       mongo.NewMongoSessionRepository(appDB),
		Rounds:         mongo.NewMongoRoundRepository(appDB),
		RoundExercises: mongo.NewMongoRoundExerciseRepository(appDB),
		Weights:        mongo.NewMongoWeightRepository(appDB),
		Tx:             mongo.NewTransactor(dbClient),
	}

	// --- Initialize Services ---
	authService := service.NewAuthService(stores.Users, cfg.JWT.Secret, cfg.JWT.Expiration, logg)
	sessionService := service.NewSessionService(stores, broker, metricsManager, logg)

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, api.Deps{
		AuthService:     authService,
		AdminService:    service.NewAdminService(stores.Users, logg),
		SessionService:  sessionService,
		RoundService:    service.NewRoundService(stores, broker, metricsManager, logg),
		FeedbackService: service.NewFeedbackService(stores, broker, metricsManager, logg),
		ExerciseService: service.NewExerciseService(stores.Exercises, stores.RoundExercises, fileStorage, cfg.S3.VideoMaxBytes, logg),
		WeightService:   service.NewWeightService(stores.Weights, stores.Users, logg),
		TrainerService:  service.NewTrainerService(stores.Users, stores.Sessions),
		Subscriber:      broker,
		RateLimiter:     rateLimiter,
		LoginPerMinute:  cfg.RateLimit.LoginPerMinute,
		Metrics:         metricsManager,
		Gatherer:        reg,
		Log:             logg,
	})

	// --- Start HTTP Server ---
	// No WriteTimeout: event streams stay open for the whole session.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info("Server starting", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logg.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the requests it is currently handling
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return server.Shutdown(ctxShutdown)
}
