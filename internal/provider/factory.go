package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
)

// Shared generation defaults, overridable with MODEL_MAX_TOKENS and
// MODEL_TEMPERATURE.
const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.2
)

// NewFromEnv reads the chat provider configuration from the environment and
// constructs a ChatModel. MODEL_PROVIDER selects the backend; credentials use
// each provider's native env vars:
//
//	MODEL_PROVIDER = ollama | openai | azure | bedrock | gemini (default: ollama)
//
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o)
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Bedrock: BEDROCK_MODEL_ID, BEDROCK_API_KEY, BEDROCK_ENDPOINT,
//	         AWS_REGION (default: us-east-1)
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
func NewFromEnv(ctx context.Context) (model.ToolCallingChatModel, error) {
	backend := Backend(envStr("MODEL_PROVIDER", string(BackendOllama)))
	return New(ctx, configFromEnv(backend))
}

// configFromEnv fills a Config with the resolved backend's env vars.
func configFromEnv(backend Backend) *Config {
	cfg := &Config{
		Backend:     backend,
		MaxTokens:   envInt("MODEL_MAX_TOKENS", defaultMaxTokens),
		Temperature: envFloat32("MODEL_TEMPERATURE", defaultTemperature),
	}
	switch backend {
	case BackendOllama:
		cfg.BaseURL = envStr("OLLAMA_HOST", "http://localhost:11434")
		cfg.Model = envStr("OLLAMA_MODEL", "llama3")
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Model = envStr("OPENAI_MODEL", "gpt-4o")
	case BackendAzure:
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.AzureDeployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		cfg.AzureAPIVersion = envStr("AZURE_OPENAI_API_VERSION", "2024-02-01")
	case BackendBedrock:
		cfg.AWSRegion = envStr("AWS_REGION", "us-east-1")
		cfg.Model = os.Getenv("BEDROCK_MODEL_ID")
		cfg.APIKey = os.Getenv("BEDROCK_API_KEY")
		cfg.BaseURL = os.Getenv("BEDROCK_ENDPOINT")
	case BackendGemini:
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
		cfg.Model = envStr("GEMINI_MODEL", "gemini-1.5-pro")
	}
	return cfg
}

// New constructs a ChatModel from an explicit Config. Each backend factory
// validates its own required fields, so misconfiguration surfaces at startup
// instead of on the first request.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendBedrock:
		return newBedrock(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q (want ollama, openai, azure, bedrock, or gemini)", cfg.Backend)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
