package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"foodlog"
	"foodlog/agent"
	"foodlog/llm/bedrock"
	"foodlog/media"
	"foodlog/record"
	"foodlog/tools"
)

type Params struct {
	UserID      int64  `json:"userId"`
	ImageBase64 string `json:"imageBase64"`
	Extension   string `json:"extension"`
	ContentType string `json:"contentType"`
	Notes       string `json:"notes"`
}

func main() {
	ctx := context.Background()

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
	if storageConfig.MediaS3Bucket == "" {
		log.Fatalf("SETUP: MEDIA_S3_BUCKET must be set")
	}

	var serverConfig foodlog.ServerConfig
	if err := envdecode.Decode(&serverConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var otelConfig foodlog.OtelConfig
	if err := envdecode.Decode(&otelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	if _, err := foodlog.InitOtel(ctx, otelConfig); err != nil {
		log.Fatalf("SETUP: Failed to initialize OpenTelemetry: %s", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		log.Fatalf("SETUP: Failed to load AWS config: %s", err)
	}

	records, err := record.Open(ctx, storageConfig.DatabaseDSN)
	if err != nil {
		log.Fatalf("SETUP: Failed to open database: %s", err)
	}

	mediaStore := media.NewS3Store(s3.NewFromConfig(awsCfg), storageConfig.MediaS3Bucket, storageConfig.MediaS3Prefix, storageConfig.MediaBaseURL)
	llm := bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})

	orch := agent.NewOrchestrator(mediaStore, records, llm, tools.NewRegistry(records), agent.Config{
		MaxIterations: agentConfig.MaxIterations,
		Timeout:       agentConfig.Timeout,
		Logger:        foodlog.NewStdoutSessionLogger(),
	})
	slog.Info("SETUP: Lambda ready", "model_id", llm.ModelID(), "bucket", storageConfig.MediaS3Bucket)

	fn := func(ctx context.Context, params Params) (agent.IngestResponse, error) {
		// Lambda may freeze the process after returning; push telemetry first.
		defer func() {
			if err := foodlog.FlushOtel(ctx); err != nil {
				slog.Error("SETUP: Failed to flush OpenTelemetry", "error", err)
			}
		}()

		up, err := params.upload(serverConfig.DefaultUserID)
		if err != nil {
			return agent.IngestResponse{}, err
		}

		resp, err := orch.Ingest(ctx, up)
		if err != nil {
			slog.Error("RESULT: Ingestion failed", "error", err)
			return agent.IngestResponse{}, err
		}
		return resp, nil
	}

	lambda.Start(fn)
}

// upload decodes the event into a pipeline upload. Events without a userId
// are attributed to defaultUserID.
func (p Params) upload(defaultUserID int64) (agent.Upload, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.ImageBase64))
	if err != nil {
		return agent.Upload{}, fmt.Errorf("%w: imageBase64: %w", foodlog.ErrValidation, err)
	}

	ownerID := p.UserID
	if ownerID <= 0 {
		ownerID = defaultUserID
	}
	if ownerID <= 0 {
		return agent.Upload{}, fmt.Errorf("%w: userId must be positive", foodlog.ErrValidation)
	}

	ext := p.Extension
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return agent.Upload{
		OwnerID:     ownerID,
		Data:        data,
		Ext:         ext,
		ContentType: p.ContentType,
		Notes:       p.Notes,
	}, nil
}
