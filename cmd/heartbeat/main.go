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
	"go.uber.org/zap"

	"github.com/noah-isme/dont-forgetter-api/internal/dto"
	"github.com/noah-isme/dont-forgetter-api/internal/handler"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/internal/repository"
	"github.com/noah-isme/dont-forgetter-api/internal/service"
	"github.com/noah-isme/dont-forgetter-api/pkg/config"
	"github.com/noah-isme/dont-forgetter-api/pkg/database"
	"github.com/noah-isme/dont-forgetter-api/pkg/jobs"
	"github.com/noah-isme/dont-forgetter-api/pkg/logger"
	"github.com/noah-isme/dont-forgetter-api/pkg/mailer"
	"github.com/noah-isme/dont-forgetter-api/pkg/scheduler"
	"github.com/noah-isme/dont-forgetter-api/pkg/sms"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "heartbeat")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, "heartbeat", logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)

	mail := mailer.New(cfg.SMTP, logr)
	smsClient := sms.NewClient(cfg.SMS, &http.Client{Timeout: cfg.SMS.Timeout}, logr)
	channels := service.Channels{
		models.NotificationEmail: service.NewEmailChannel(mail),
		models.NotificationSMS:   service.NewSMSChannel(smsClient),
	}

	notifier := service.NewNotificationService(userRepo, eventRepo, service.NewNotificationRenderer(cfg.Notifications.Signature), channels, metrics, logr)
	recurrence := service.NewRecurrenceService(eventRepo, cfg.Notifications.MaxRetries, metrics, logr)
	heartbeat := service.NewHeartbeatService(eventRepo, notifier, recurrence, metrics, logr)
	quota := service.NewQuotaService(userRepo, cfg.Notifications.FreeEmailNotifications, cfg.Notifications.FreeSMSNotifications, metrics, logr)

	queue := jobs.NewQueue(dto.JobTypeNotify, heartbeat.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Heartbeat.WorkerConcurrency,
		BufferSize: cfg.Heartbeat.QueueSize,
		MaxRetries: cfg.Heartbeat.WorkerRetries,
		RetryDelay: cfg.Heartbeat.WorkerRetryDelay,
		JobTimeout: time.Minute,
		OnFailure: func(job jobs.Job, err error) {
			metrics.RecordJobFailure(dto.JobTypeNotify, job.Type)
		},
		Logger: logr,
	})
	if err := metrics.RegisterQueueDepth(queue.Name(), queue.Depth); err != nil {
		logr.Warn("queue depth gauge not registered", zap.Error(err))
	}
	queue.Start(ctx)
	heartbeat.SetQueue(queue)

	sched := scheduler.New(cfg.Heartbeat.Timezone, logr)
	if err := sched.Add("heartbeat", cfg.Heartbeat.Schedule, func(ctx context.Context) error {
		outcomes, err := heartbeat.Beat(ctx)
		if err != nil {
			return err
		}
		if len(outcomes) > 0 {
			logr.Info("heartbeat dispatched", zap.Int("events", len(outcomes)))
		}
		return nil
	}); err != nil {
		logr.Fatal("invalid heartbeat schedule", zap.Error(err))
	}
	if err := sched.Add("quota-reset", cfg.Heartbeat.QuotaResetSchedule, func(ctx context.Context) error {
		_, err := quota.ResetMonthly(ctx)
		return err
	}); err != nil {
		logr.Fatal("invalid quota reset schedule", zap.Error(err))
	}
	sched.Start()

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.HealthCheck{"postgres": db.PingContext})
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Heartbeat.MetricsPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("metrics server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("metrics server failed", zap.Error(err))
		}
	}()

	next, _ := sched.Next("heartbeat")
	logr.Info("heartbeat running", zap.String("schedule", cfg.Heartbeat.Schedule), zap.Time("next", next))

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	queue.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("metrics server shutdown failed", zap.Error(err))
	}
}
