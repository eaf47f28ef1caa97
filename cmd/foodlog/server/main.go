package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"foodlog"
	"foodlog/agent"
	"foodlog/httpapi"
	"foodlog/llm/bedrock"
	"foodlog/llm/mock"
	"foodlog/llm/ollama"
	"foodlog/media"
	"foodlog/record"
	"foodlog/slack"
	"foodlog/tools"
)

type llmClient interface {
	Invoke(ctx context.Context, prompt agent.Prompt) (agent.Response, error)
	ModelID() string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var modelConfig foodlog.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var agentConfig foodlog.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var storageConfig foodlog.StorageConfig
	if err := envdecode.Decode(&storageConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var serverConfig foodlog.ServerConfig
	if err := envdecode.Decode(&serverConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var otelConfig foodlog.OtelConfig
	if err := envdecode.Decode(&otelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	if serverConfig.Debug {
		foodlog.Dump(os.Stderr, "SETUP: configuration", modelConfig, agentConfig, storageConfig, serverConfig)
	}

	otelShutdown, err := foodlog.InitOtel(ctx, otelConfig)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	records, err := record.Open(ctx, storageConfig.DatabaseDSN)
	if err != nil {
		slog.Error("SETUP: Failed to open database", "error", err, "dsn", storageConfig.DatabaseDSN)
		return
	}
	defer records.Close()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			cfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &cfg
		}
		return *awsCfg, nil
	}

	mediaStore, err := newMediaStore(storageConfig, loadAWS)
	if err != nil {
		slog.Error("SETUP: Failed to create media store", "error", err)
		return
	}

	llm, err := newLLMClient(modelConfig, agentConfig, loadAWS)
	if err != nil {
		slog.Error("SETUP: Failed to create LLM client", "error", err, "provider", modelConfig.Provider)
		return
	}
	slog.Info("SETUP: LLM client ready", "provider", modelConfig.Provider, "model_id", llm.ModelID())

	orch := agent.NewOrchestrator(mediaStore, records, llm, tools.NewRegistry(records), agent.Config{
		MaxIterations: agentConfig.MaxIterations,
		Timeout:       agentConfig.Timeout,
		Logger:        newSessionLogger(agentConfig, llm.ModelID()),
	})

	var notifier foodlog.Notifier
	if serverConfig.SlackWebhook != "" {
		client := slack.NewClient(serverConfig.SlackWebhook, &http.Client{Timeout: 10 * time.Second})
		notifier = slack.NewNotifier(client, serverConfig.SlackChannel)
		slog.Info("SETUP: Slack notifications enabled", "channel", serverConfig.SlackChannel)
	}

	api := httpapi.NewServer(orch, records, httpapi.Options{
		MaxUploadBytes: serverConfig.MaxUploadBytes,
		DefaultUserID:  serverConfig.DefaultUserID,
		Notifier:       notifier,
	})

	srv := &http.Server{
		Addr:              serverConfig.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("SETUP: HTTP shutdown failed", "error", err)
		}
	}()

	slog.Info("SETUP: Listening", "addr", serverConfig.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("SETUP: HTTP server exited", "error", err)
	}
}

func newMediaStore(cfg foodlog.StorageConfig, loadAWS func() (aws.Config, error)) (media.Store, error) {
	switch cfg.MediaBackend {
	case "file":
		return media.NewFileStore(cfg.MediaDir), nil
	case "s3":
		if cfg.MediaS3Bucket == "" {
			return nil, fmt.Errorf("MEDIA_S3_BUCKET must be set for the s3 media backend")
		}
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return media.NewS3Store(s3.NewFromConfig(awsCfg), cfg.MediaS3Bucket, cfg.MediaS3Prefix, cfg.MediaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.MediaBackend)
	}
}

func newLLMClient(modelConfig foodlog.ModelConfig, agentConfig foodlog.AgentConfig, loadAWS func() (aws.Config, error)) (llmClient, error) {
	switch modelConfig.Provider {
	case "bedrock":
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:     modelConfig.ModelID,
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		}), nil
	case "ollama":
		return ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: agentConfig.BaseOllamaEndpoint,
			ModelID:      modelConfig.ModelID,
			Temperature:  modelConfig.Temperature,
			TopP:         modelConfig.TopP,
			HTTPClient:   &http.Client{Timeout: agentConfig.Timeout},
		})
	case "mock":
		return mock.NewLLMClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", modelConfig.Provider)
	}
}

func newSessionLogger(cfg foodlog.AgentConfig, modelID string) foodlog.SessionLogger {
	if cfg.SessionLogDir == "" {
		return foodlog.NewStdoutSessionLogger()
	}
	if err := os.MkdirAll(cfg.SessionLogDir, 0o755); err != nil {
		slog.Warn("SETUP: Session log dir unavailable, logging to stdout", "dir", cfg.SessionLogDir, "error", err)
		return foodlog.NewStdoutSessionLogger()
	}
	return foodlog.NewFileSessionLogger(cfg.SessionLogDir, modelID)
}
