package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/internal/configcache"
	"github.com/myanride/dispatch/internal/dispatch"
	"github.com/myanride/dispatch/internal/matching"
	"github.com/myanride/dispatch/internal/notify"
	"github.com/myanride/dispatch/internal/penalty"
	"github.com/myanride/dispatch/internal/pricing"
	"github.com/myanride/dispatch/internal/rides"
	"github.com/myanride/dispatch/internal/webhooks"
	"github.com/myanride/dispatch/pkg/common"
	"github.com/myanride/dispatch/pkg/config"
	"github.com/myanride/dispatch/pkg/database"
	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/middleware"
	"github.com/myanride/dispatch/pkg/redis"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load("dispatch")
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()
	log := logger.Get()

	if err := database.RunMigrations(&cfg.Database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	log.Info("Connected to PostgreSQL")

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis")

	natsConn, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS")

	// repositories
	pricingRepo := pricing.NewRepository(db)
	driverRepo := matching.NewRepository(db)
	rideRepo := rides.NewRepository(db)

	// serving config snapshot, loaded before any traffic
	cache := configcache.New(pricingRepo)
	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := cache.RefreshAll(startupCtx); err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	cancel()

	// core components
	tracker := penalty.NewTracker(cfg.Dispatch.PenaltyThreshold, cfg.Dispatch.PenaltyDuration)
	geoStore := matching.NewRedisGeoStore(redisClient, cfg.Dispatch.LocationTTL)
	matcher := matching.NewService(geoStore, driverRepo, tracker, cfg.Dispatch)
	engine := pricing.NewEngine(cache)
	publisher := notify.NewPublisher(natsConn, cfg.Dispatch.TerminalNotifySubject)
	coordinator := dispatch.NewCoordinator(matcher, tracker, cache, publisher, rideRepo, cfg.Dispatch)

	rideService := rides.NewService(rideRepo, coordinator, engine, cache)

	// handlers
	rideHandler := rides.NewHandler(rideService, driverRepo)
	presenceHandler := matching.NewHandler(matcher, driverRepo)
	adminHandler := pricing.NewAdminHandler(pricingRepo, cache)
	webhookHandler := webhooks.NewHandler(cfg.Webhook.SigningSecret, matcher)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(cfg.Server.ServiceName, serviceVersion, map[string]common.DependencyCheck{
		"postgres": db.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"nats": func(ctx context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		},
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	webhookHandler.RegisterRoutes(api)

	authed := api.Group("", middleware.AuthMiddleware(cfg.JWT.Secret))
	rideHandler.RegisterRoutes(authed)
	presenceHandler.RegisterRoutes(authed)
	adminHandler.RegisterAdminRoutes(authed)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("Dispatch service starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		log.Error("Dispatch shutdown incomplete", zap.Error(err))
	}
}
