package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/teleseva/teleseva-platform/cmd/mainconfig"
	appconfig "github.com/teleseva/teleseva-platform/internal/config"
	"github.com/teleseva/teleseva-platform/internal/triage"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.TriageQueueURL == "" {
		logger.Error("TRIAGE_QUEUE_URL is required for the triage worker")
		os.Exit(1)
	}

	awsConfig, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsConfig)
	queue := triage.NewSQSQueue(sqsClient, cfg.TriageQueueURL)
	dynamoClient := dynamodb.NewFromConfig(awsConfig)
	jobStore := triage.NewJobStore(dynamoClient, cfg.TriageJobsTable, logger)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var llm triage.LLMClient
	if cfg.GeminiAPIKey != "" {
		gemini, err := triage.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		var fallback triage.LLMClient
		if cfg.BedrockModelID != "" {
			bedrock := triage.NewBedrockClient(bedrockruntime.NewFromConfig(awsConfig))
			fallback = triage.WithModel(bedrock, cfg.BedrockModelID)
		}
		llm = triage.NewFallbackClient(gemini, fallback, logger)
	} else if cfg.BedrockModelID != "" {
		bedrock := triage.NewBedrockClient(bedrockruntime.NewFromConfig(awsConfig))
		llm = triage.WithModel(bedrock, cfg.BedrockModelID)
	} else {
		logger.Warn("no LLM provider configured, using stub client")
		llm = triage.NewStubLLMClient()
	}

	processor := triage.NewService(llm, logger,
		triage.WithModelParams(cfg.GeminiModelID, int32(cfg.LLMMaxTokens), float32(cfg.LLMTemperature)),
		triage.WithSessionStore(triage.NewSessionStore(redisClient, cfg.SessionStoreTTL)),
		triage.WithSessionOptions(
			triage.WithTimeout(cfg.SessionTimeout),
			triage.WithMaxMessages(cfg.SessionMaxMessages),
		),
	)

	worker := triage.NewWorker(
		processor,
		queue,
		jobStore,
		logger,
		triage.WithWorkerCount(cfg.WorkerCount),
	)

	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down triage worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("triage worker stopped")
	case <-doneCtx.Done():
		logger.Error("triage worker shutdown timed out", "error", doneCtx.Err())
	}
}
