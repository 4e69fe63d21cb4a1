package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dont-forgetter-api/api/swagger"
	"github.com/noah-isme/dont-forgetter-api/internal/handler"
	"github.com/noah-isme/dont-forgetter-api/internal/middleware"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/internal/repository"
	"github.com/noah-isme/dont-forgetter-api/internal/service"
	"github.com/noah-isme/dont-forgetter-api/pkg/cache"
	"github.com/noah-isme/dont-forgetter-api/pkg/config"
	"github.com/noah-isme/dont-forgetter-api/pkg/database"
	"github.com/noah-isme/dont-forgetter-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dont-forgetter-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dont-forgetter-api/pkg/middleware/requestid"
)

// @title dont-forgetter API
// @version 1.0.0
// @description Personal reminders delivered by email or SMS.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, "api-gateway", logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	checks := map[string]handler.HealthCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	cacheEnabled := cfg.API.CacheEnabled
	if cacheEnabled {
		var client *redis.Client
		client, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("settings cache disabled", zap.Error(err))
			cacheEnabled = false
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr)
			checks["redis"] = cache.Check(client)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.API.SettingsCacheTTL, logr, cacheEnabled)

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	noteRepo := repository.NewNoteRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:       cfg.JWT.Secret,
		AccessTokenExpiry:       cfg.JWT.Expiration,
		RefreshTokenExpiry:      cfg.JWT.RefreshExpiration,
		Issuer:                  "dont-forgetter",
		FreeEmailNotifications:  cfg.Notifications.FreeEmailNotifications,
		FreeSMSNotifications:    cfg.Notifications.FreeSMSNotifications,
		DefaultTime:             cfg.Defaults.Time,
		DefaultUTCOffset:        cfg.Defaults.UTCOffset,
		DefaultNotificationType: models.NotificationType(cfg.Defaults.NotificationType),
	})
	userSvc := service.NewUserService(userRepo, cacheSvc, cfg.API.SettingsCacheTTL, validate, logr)
	eventSvc := service.NewEventService(eventRepo, userSvc, service.EventDefaults{
		Time:             cfg.Defaults.Time,
		UTCOffset:        cfg.Defaults.UTCOffset,
		NotificationType: models.NotificationType(cfg.Defaults.NotificationType),
		MaxRetries:       cfg.Notifications.MaxRetries,
		ListLimit:        cfg.API.ListLimit,
	}, validate, logr)
	noteSvc := service.NewNoteService(noteRepo, cfg.API.ListLimit, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	noteHandler := handler.NewNoteHandler(noteSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	secured.POST("/auth/logout", authHandler.Logout)

	secured.GET("/users/me", userHandler.Me)
	secured.PUT("/users/me", userHandler.UpdateMe)
	secured.GET("/users/me/settings", userHandler.Settings)
	secured.PUT("/users/me/settings", userHandler.UpdateSettings)

	secured.GET("/events", eventHandler.List)
	secured.POST("/events", eventHandler.Create)
	secured.GET("/events/:id", eventHandler.Get)
	secured.PUT("/events/:id", eventHandler.Update)
	secured.DELETE("/events/:id", eventHandler.Delete)

	secured.GET("/notes", noteHandler.List)
	secured.POST("/notes", noteHandler.Create)
	secured.GET("/notes/:id", noteHandler.Get)
	secured.PUT("/notes/:id", noteHandler.Update)
	secured.DELETE("/notes/:id", noteHandler.Delete)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
