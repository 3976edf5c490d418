package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/luzgui1/localwhisper/internal/ranking"
)

const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// text-embedding-3-small output width. nomic-embed-text produces 768
	// but Ollama reports the width itself, so only the OpenAI-compatible
	// backends need it spelled out.
	defaultOpenAIDimensions = 1536
)

// resolveBackend picks the embedding backend: EMBEDDING_PROVIDER when set,
// otherwise the chat provider's MODEL_PROVIDER, otherwise ollama.
func resolveBackend() string {
	if b := os.Getenv("EMBEDDING_PROVIDER"); b != "" {
		return b
	}
	return envOr("MODEL_PROVIDER", "ollama")
}

// NewFromEnv builds a ranking.Embedder from the environment. Embedding
// settings inherit from the chat provider unless overridden:
//
//   - EMBEDDING_PROVIDER falls back to MODEL_PROVIDER (default ollama)
//   - EMBEDDING_API_KEY falls back to the chat provider's key
//   - EMBEDDING_ENDPOINT falls back to the chat provider's endpoint
//   - EMBEDDING_MODEL falls back to a per-backend default
//   - EMBEDDING_DIMENSIONS falls back to 1536 for openai/azure
func NewFromEnv() (ranking.Embedder, error) {
	switch backend := resolveBackend(); backend {
	case "ollama":
		host := firstEnv("EMBEDDING_ENDPOINT", "OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: envOr("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := os.Getenv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      envOr("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		}), nil

	case "azure":
		apiKey := firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      envOr("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
			Azure:      true,
			APIVersion: envOr("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (want ollama, openai, or azure)", backend)
	}
}

// firstEnv returns the first named environment variable that is set non-empty.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, fallback string) string {
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
