package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/workhive/service-booking/internal/application"
	"github.com/workhive/service-booking/internal/config"
	"github.com/workhive/service-booking/internal/events"
	"github.com/workhive/service-booking/internal/handler"
	"github.com/workhive/service-booking/internal/pkg/auth"
	"github.com/workhive/service-booking/internal/pkg/database"
	"github.com/workhive/service-booking/internal/pkg/health"
	"github.com/workhive/service-booking/internal/pkg/kafka"
	"github.com/workhive/service-booking/internal/pkg/logger"
	"github.com/workhive/service-booking/internal/pkg/middleware"
	"github.com/workhive/service-booking/internal/repository"
	"github.com/workhive/service-booking/internal/scheduler"
)

const serviceName = "service-booking"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.AppEnv == "production" {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	} else {
		if err := db.AutoMigrate(&repository.BookingModel{}, &repository.SpaceModel{}); err != nil {
			log.Fatal("failed to auto-migrate schema", zap.Error(err))
		}
		if err := repository.EnsureConflictGuard(db); err != nil {
			log.Fatal("failed to install overlap constraint", zap.Error(err))
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, 15*time.Minute, 7*24*time.Hour)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	bookingRepo := repository.NewGormBookingRepository(db)
	catalog := repository.NewGormWorkspaceCatalog(db)

	bookingService := application.NewBookingService(
		bookingRepo,
		catalog,
		producer,
		log,
		application.Policy{
			MarkupPercentage: cfg.Policy.MarkupPercentage,
			PendingTTL:       cfg.Policy.PendingTTL,
			RescheduleCutoff: cfg.Policy.RescheduleCutoff,
		},
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paymentConsumer := events.NewPaymentEventConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupPrefix+serviceName,
		bookingService,
		log,
	)
	defer paymentConsumer.Close()
	go func() {
		if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment consumer stopped", zap.Error(err))
		}
	}()

	sweeper := scheduler.NewExpirySweeper(bookingService, log, cfg.Policy.SweepInterval, cfg.Policy.PendingTTL)
	go sweeper.Run(ctx)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(log),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	health.NewHandler(db, serviceName).RegisterRoutes(router)

	api := router.Group("/api/v1")
	handler.NewBookingHandler(bookingService).RegisterRoutes(api, jwtManager)
	handler.NewAdminHandler(bookingService).RegisterRoutes(api, jwtManager)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting booking service", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
