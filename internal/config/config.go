// Package config layers YAML file configuration under environment variables.
// Values from the file are exported into the process environment only where
// the corresponding env var is unset, so env vars always win and env-only
// workflows keep working with no file at all.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. LOCALWHISPER_CONFIG environment variable
//  3. ~/.localwhisper/config.yaml
//  4. ./localwhisper.yaml
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document. Tags mirror the env var naming
// (lowercase, underscored).
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Places    PlacesConfig    `yaml:"places"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ModelConfig selects and tunes the chat model provider.
type ModelConfig struct {
	// Provider is one of: ollama, openai, azure, bedrock, gemini.
	Provider    string  `yaml:"provider"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`

	Ollama  OllamaConfig  `yaml:"ollama"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Azure   AzureConfig   `yaml:"azure"`
	Bedrock BedrockConfig `yaml:"bedrock"`
	Gemini  GeminiConfig  `yaml:"gemini"`
}

type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

type OpenAIConfig struct {
	// APIKey may live here for convenience; prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type AzureConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// EmbeddingConfig configures the embedding backend used for ranking.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
}

// PlacesConfig configures the venue data provider.
type PlacesConfig struct {
	// APIKey is the Google Maps Platform key; prefer env var GOOGLE_MAPS_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint overrides the Places API base URL. Testing only.
	Endpoint string `yaml:"endpoint"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey is the Bearer token clients must present; prefer env var
	// LOCALWHISPER_API_KEY.
	APIKey string `yaml:"api_key"`
}

type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is one of: text, json.
	Format string `yaml:"format"`
}

// HistoryConfig configures transcript persistence.
type HistoryConfig struct {
	// DBPath is the SQLite database path; "disabled" turns persistence off.
	DBPath string `yaml:"db_path"`
}

// TracingConfig configures the Langfuse integration.
type TracingConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// envValues flattens the parsed file into env var assignments. Zero-valued
// numerics render as "" and are skipped by Load.
func (c *Config) envValues() map[string]string {
	return map[string]string{
		"MODEL_PROVIDER":           c.Model.Provider,
		"MODEL_MAX_TOKENS":         intStr(c.Model.MaxTokens),
		"MODEL_TEMPERATURE":        float32Str(c.Model.Temperature),
		"OLLAMA_HOST":              c.Model.Ollama.Host,
		"OLLAMA_MODEL":             c.Model.Ollama.Model,
		"OPENAI_API_KEY":           c.Model.OpenAI.APIKey,
		"OPENAI_MODEL":             c.Model.OpenAI.Model,
		"AZURE_OPENAI_API_KEY":     c.Model.Azure.APIKey,
		"AZURE_OPENAI_ENDPOINT":    c.Model.Azure.Endpoint,
		"AZURE_OPENAI_DEPLOYMENT":  c.Model.Azure.Deployment,
		"AZURE_OPENAI_API_VERSION": c.Model.Azure.APIVersion,
		"AWS_REGION":               c.Model.Bedrock.Region,
		"BEDROCK_MODEL_ID":         c.Model.Bedrock.ModelID,
		"GOOGLE_API_KEY":           c.Model.Gemini.APIKey,
		"GEMINI_MODEL":             c.Model.Gemini.Model,
		"EMBEDDING_PROVIDER":       c.Embedding.Provider,
		"EMBEDDING_MODEL":          c.Embedding.Model,
		"EMBEDDING_DIMENSIONS":     intStr(c.Embedding.Dimensions),
		"EMBEDDING_API_KEY":        c.Embedding.APIKey,
		"EMBEDDING_ENDPOINT":       c.Embedding.Endpoint,
		"GOOGLE_MAPS_API_KEY":      c.Places.APIKey,
		"GOOGLE_MAPS_ENDPOINT":     c.Places.Endpoint,
		"LOG_LEVEL":                c.Logging.Level,
		"LOG_FORMAT":               c.Logging.Format,
		"LOCALWHISPER_HISTORY_DB":  c.History.DBPath,
		"LANGFUSE_PUBLIC_KEY":      c.Tracing.PublicKey,
		"LANGFUSE_SECRET_KEY":      c.Tracing.SecretKey,
		"LANGFUSE_HOST":            c.Tracing.Host,
	}
}

// Load locates and parses a YAML config file and exports its non-empty
// values into the environment, skipping any env var that is already set.
// It returns the path it loaded, or "" when no file was found (not an error).
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for key, val := range cfg.envValues() {
		if val == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, val)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// resolveConfigPath returns the first existing config file. An explicit path
// short-circuits the search entirely: if it does not exist, no fallback is
// tried.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if fileExists(explicit) {
			return explicit
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if p := os.Getenv("LOCALWHISPER_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".localwhisper", "config.yaml"))
	}
	candidates = append(candidates, "localwhisper.yaml")

	for _, p := range candidates {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// intStr renders an int for the environment, mapping zero to "".
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str renders a float32 for the environment, mapping zero to "" and
// trimming trailing zeros so 0.7 round-trips as "0.7".
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
