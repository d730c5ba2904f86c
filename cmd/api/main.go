package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/teleseva/teleseva-platform/cmd/mainconfig"
	"github.com/teleseva/teleseva-platform/internal/api/router"
	"github.com/teleseva/teleseva-platform/internal/archive"
	"github.com/teleseva/teleseva-platform/internal/booking"
	appconfig "github.com/teleseva/teleseva-platform/internal/config"
	"github.com/teleseva/teleseva-platform/internal/directory"
	"github.com/teleseva/teleseva-platform/internal/notify"
	"github.com/teleseva/teleseva-platform/internal/observability/metrics"
	"github.com/teleseva/teleseva-platform/internal/profiles"
	"github.com/teleseva/teleseva-platform/internal/realtime"
	"github.com/teleseva/teleseva-platform/internal/triage"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting teleseva API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(runCtx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	reg := prometheus.NewRegistry()
	triageMetrics := metrics.NewTriageMetrics(reg)
	bookingMetrics := metrics.NewBookingMetrics(reg)

	// Symptom checker
	llm := buildLLMClient(runCtx, cfg, awsCfg, logger)
	sessionStore := triage.NewSessionStore(redisClient, cfg.SessionStoreTTL)
	triageService := triage.NewService(llm, logger,
		triage.WithModelParams(cfg.GeminiModelID, int32(cfg.LLMMaxTokens), float32(cfg.LLMTemperature)),
		triage.WithSessionStore(sessionStore),
		triage.WithMetrics(triageMetrics),
		triage.WithSessionOptions(
			triage.WithTimeout(cfg.SessionTimeout),
			triage.WithMaxMessages(cfg.SessionMaxMessages),
		),
	)

	jobStore := triage.NewJobStore(dynamoClient, cfg.TriageJobsTable, logger)
	var publisher *triage.Publisher
	if cfg.UseMemoryQueue {
		queue := triage.NewMemoryQueue(64)
		publisher = triage.NewPublisher(queue, logger)
		worker := triage.NewWorker(triageService, queue, jobStore, logger,
			triage.WithWorkerCount(cfg.WorkerCount))
		worker.Start(runCtx)
		logger.Info("using in-memory triage queue", "workers", cfg.WorkerCount)
	} else if cfg.TriageQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg)
		publisher = triage.NewPublisher(triage.NewSQSQueue(sqsClient, cfg.TriageQueueURL), logger)
	}
	triageHandler := triage.NewHandler(triageService, publisher, jobStore, logger)

	// Profiles
	profilesRepo := profiles.NewDynamoRepository(dynamoClient, cfg.PatientsTable, cfg.DoctorsTable, logger)
	profilesHandler := profiles.NewHandler(profilesRepo, logger)

	// Live subscriptions
	rtPublisher := realtime.NewRedisPublisher(redisClient)
	hub := realtime.NewHub(logger)
	feed := realtime.NewRedisFeed(redisClient, hub, logger)
	go func() {
		if err := feed.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("realtime feed stopped", "error", err)
		}
	}()
	realtimeHandler := realtime.NewHandler(hub, logger)

	// Doctor directory
	availabilityStore := directory.NewStore(dynamoClient, cfg.DoctorAvailabilityTable, logger)
	directoryService := directory.NewService(availabilityStore, profilesRepo, rtPublisher, logger)
	sweeper := directory.NewSweeper(directoryService, cfg.PresenceStaleAfter, cfg.PresenceSweepSpec, logger)
	if err := sweeper.Start(runCtx); err != nil {
		logger.Error("failed to start presence sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()
	directoryHandler := directory.NewHandler(directoryService, logger)

	// Notifications
	notifyStore := notify.NewDynamoStore(dynamoClient, cfg.NotificationsTable, logger)
	notifyService := notify.NewService(notifyStore, buildEmailSender(cfg, awsCfg, logger), logger)
	notifyHandler := notify.NewHandler(notifyService, logger)

	// Consultation archive (optional)
	var (
		archiveHandler *archive.Handler
		recorder       *archive.Recorder
	)
	if cfg.ArchiveDatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.ArchiveDatabaseURL)
		if err != nil {
			logger.Error("failed to open archive database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(runCtx); err != nil {
			logger.Error("failed to ping archive database", "error", err)
			os.Exit(1)
		}
		archiveStore := archive.NewStore(db)
		recorder = archive.NewRecorder(archiveStore, triageService, logger)
		archiveHandler = archive.NewHandler(archiveStore, logger)
		logger.Info("consultation archive enabled")
	}

	// Booking
	bookingStore := booking.NewStore(dynamoClient, cfg.AppointmentsTable, logger)
	bookingOpts := []booking.ServiceOption{
		booking.WithNotifier(notifyService),
		booking.WithPublisher(rtPublisher),
		booking.WithMetrics(bookingMetrics),
	}
	if recorder != nil {
		bookingOpts = append(bookingOpts, booking.WithArchiver(recorder))
	}
	bookingService := booking.NewService(bookingStore, directoryService, profilesRepo, logger, bookingOpts...)
	bookingHandler := booking.NewHandler(bookingService, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		TriageHandler:       triageHandler,
		ProfilesHandler:     profilesHandler,
		DirectoryHandler:    directoryHandler,
		BookingHandler:      bookingHandler,
		NotifyHandler:       notifyHandler,
		ArchiveHandler:      archiveHandler,
		RealtimeHandler:     realtimeHandler,
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  splitOrigins(cfg.CORSAllowedOrigins),
		JWTSecret:           cfg.JWTSecret,
		TriageRatePerSecond: cfg.TriageRateLimit,
		TriageBurst:         cfg.TriageRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildLLMClient wires Gemini as primary with Bedrock as fallback. With no
// provider configured, a stub keeps local development working.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) triage.LLMClient {
	var fallback triage.LLMClient
	if cfg.BedrockModelID != "" {
		bedrock := triage.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
		fallback = triage.WithModel(bedrock, cfg.BedrockModelID)
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := triage.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		return triage.NewFallbackClient(gemini, fallback, logger)
	}

	if fallback != nil {
		logger.Warn("no Gemini API key, using Bedrock as primary")
		return fallback
	}

	logger.Warn("no LLM provider configured, using stub client")
	return triage.NewStubLLMClient()
}

func buildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	case "ses":
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
