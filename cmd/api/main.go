package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/syllabus-dashboard/internal/config"
	"github.com/noah-isme/syllabus-dashboard/internal/database"
	"github.com/noah-isme/syllabus-dashboard/internal/handler"
	"github.com/noah-isme/syllabus-dashboard/internal/middleware"
	"github.com/noah-isme/syllabus-dashboard/internal/repository"
	"github.com/noah-isme/syllabus-dashboard/internal/router"
	"github.com/noah-isme/syllabus-dashboard/internal/service"
	"github.com/noah-isme/syllabus-dashboard/internal/store"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
	"github.com/noah-isme/syllabus-dashboard/pkg/syllabusapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	client, err := syllabusapi.New(syllabusapi.Config{
		BaseURL:       cfg.UpstreamBaseURL,
		Timeout:       cfg.UpstreamTimeout,
		CorrelationID: middleware.CorrelationIDFromContext,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create syllabus api client: %v", err)
	}

	tokens, err := middleware.NewSessionTokens(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to configure session tokens: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	cache := store.New(client, store.Options{
		Redis:       redisClient,
		NATS:        natsConn,
		ChannelBase: cfg.RealtimeChannel,
		TTL:         cfg.CacheTTL,
	}, logger)

	ingestionRepo := repository.NewIngestionRepository(db)

	uploadService := service.NewUploadService(client, cache, ingestionRepo, natsConn, service.UploadConfig{
		PollInterval:      cfg.PollInterval,
		ProcessingTimeout: cfg.ProcessingTimeout,
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		SessionIdleTTL:    cfg.SessionIdleTTL,
		ChannelBase:       cfg.RealtimeChannel,
	}, logger)
	assignmentService := service.NewAssignmentService(cache, client, validate, logger)
	syllabusService := service.NewSyllabusService(cache, client, logger)
	exportService := service.NewExportService(client)
	dashboardService := service.NewDashboardService(cache, uploadService, assignmentService, syllabusService, exportService, logger)

	uploadLimiter := middleware.RateLimit("uploads", cfg.UploadRateLimit, cfg.UploadRateWindow)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxUploadBytes()) * 2,
		ErrorHandler: utils.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      cfg.AppEnv == "development" && cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(tokens, logger),
		UploadHandler:     handler.NewUploadHandler(uploadService, cfg.MaxUploadBytes(), uploadLimiter, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		SyllabusHandler:   handler.NewSyllabusHandler(syllabusService, logger),
		DashboardHandler:  handler.NewDashboardHandler(dashboardService, assignmentService, logger),
		ExportHandler:     handler.NewExportHandler(exportService, logger),
		HealthChecks:      healthChecks(db, redisClient, natsConn),
		SessionMiddleware: middleware.SessionProtected(tokens),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache.Start(ctx)
	uploadService.Start(ctx)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthCheckFunc {
	checks := map[string]handler.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			conn, err := db.DB()
			if err != nil {
				return err
			}
			return conn.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
