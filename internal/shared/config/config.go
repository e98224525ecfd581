package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port                 string
	CORSAllowOrigin      []string
	ObjectStoreType      string
	LocalStoreDir        string
	AWSRegion            string
	JobsBucket           string
	S3Prefix             string
	SSEKMSKeyID          string
	QueueURL             string
	AdminAPIKey          string
	LLMProvider          string
	LLMModel             string
	AllowedOpenAIModels  []string
	AllowedBedrockModels []string
	BedrockRegion        string
	DownloadTTLSeconds   int
	DatabaseURL          string
	Env                  string
}

const (
	defaultOpenAIModels  = "gpt-4o-mini,gpt-4o,o4-mini"
	defaultBedrockModels = "anthropic.claude-3-5-sonnet-2024-06-20"
)

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:      normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:        getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:            getEnv("AWS_REGION", ""),
		JobsBucket:           getEnv("JOBS_BUCKET", ""),
		S3Prefix:             getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:          getEnv("SSE_KMS_KEY_ID", ""),
		QueueURL:             getEnv("TB_SQS_QUEUE_URL", ""),
		AdminAPIKey:          getEnv("ADMIN_API_KEY", ""),
		LLMProvider:          normalizeProvider(getEnv("MODEL_PROVIDER", "openai")),
		LLMModel:             getEnv("MODEL_ID", "gpt-4o-mini"),
		AllowedOpenAIModels:  splitAndTrim(getEnv("ALLOWED_OPENAI_MODELS", defaultOpenAIModels)),
		AllowedBedrockModels: splitAndTrim(getEnv("ALLOWED_BEDROCK_MODELS", defaultBedrockModels)),
		BedrockRegion:        getEnv("BEDROCK_REGION", getEnv("AWS_REGION", "us-east-1")),
		DownloadTTLSeconds:   envInt("DOWNLOAD_TTL_SECONDS", 3600),
		DatabaseURL:          dbURL,
		Env:                  env,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid int: %q", key, raw)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bedrock":
		return "bedrock"
	default:
		return "openai"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
