package foodlog

import "time"

type ModelConfig struct {
	Provider    string  `env:"LLM_PROVIDER,default=bedrock"`
	ModelID     string  `env:"MODEL_ID"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	BaseOllamaEndpoint string        `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	MaxIterations      int           `env:"MAX_ITERATIONS,default=8"`
	Timeout            time.Duration `env:"AGENT_TIMEOUT,default=90s"`
	SessionLogDir      string        `env:"SESSION_LOG_DIR"`
}

// StorageConfig selects where uploaded media and ingestion records live.
type StorageConfig struct {
	MediaBackend  string `env:"MEDIA_BACKEND,default=file"`
	MediaDir      string `env:"MEDIA_DIR,default=images"`
	MediaS3Bucket string `env:"MEDIA_S3_BUCKET"`
	MediaS3Prefix string `env:"MEDIA_S3_PREFIX,default=uploads/"`
	MediaBaseURL  string `env:"MEDIA_BASE_URL"`
	DatabaseDSN   string `env:"DATABASE_DSN,default=data/foodlog.db"`
}

type ServerConfig struct {
	Addr           string `env:"HTTP_ADDR,default=:8080"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,default=10485760"`
	DefaultUserID  int64  `env:"DEFAULT_USER_ID,default=1"`
	SlackWebhook   string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel   string `env:"SLACK_CHANNEL,default=#food-log"`
	Debug          bool   `env:"DEBUG,default=false"`
}
