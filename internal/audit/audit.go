// Package audit emits one structured log line per CLI command invocation:
// the command name, which config file was loaded, and the operational
// environment. Secret values are reduced to set/unset — the line is safe to
// ship to any log sink.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// envKey is one environment variable reported in the audit line.
type envKey struct {
	name string
	// secret reduces the value to set/unset in the log.
	secret bool
}

// reportedKeys is the environment surface of the assistant, in the order the
// attrs appear in the log line. New env vars should be added here when a
// package starts reading them.
var reportedKeys = []envKey{
	{name: "MODEL_PROVIDER"},
	{name: "OLLAMA_HOST"},
	{name: "OLLAMA_MODEL"},
	{name: "OPENAI_API_KEY", secret: true},
	{name: "OPENAI_MODEL"},
	{name: "AZURE_OPENAI_API_KEY", secret: true},
	{name: "AZURE_OPENAI_ENDPOINT"},
	{name: "AZURE_OPENAI_DEPLOYMENT"},
	{name: "GOOGLE_API_KEY", secret: true},
	{name: "GEMINI_MODEL"},
	{name: "AWS_REGION"},
	{name: "BEDROCK_MODEL_ID"},
	{name: "EMBEDDING_PROVIDER"},
	{name: "EMBEDDING_MODEL"},
	{name: "EMBEDDING_API_KEY", secret: true},
	{name: "GOOGLE_MAPS_API_KEY", secret: true},
	{name: "GOOGLE_MAPS_ENDPOINT"},
	{name: "LOCALWHISPER_API_KEY", secret: true},
	{name: "LOCALWHISPER_HISTORY_DB"},
	{name: "LOG_LEVEL"},
	{name: "LOG_FORMAT"},
	{name: "LANGFUSE_PUBLIC_KEY", secret: true},
	{name: "LANGFUSE_SECRET_KEY", secret: true},
}

// LogCommandStart writes the audit line for one command invocation.
// configPath is the resolved YAML config file, or empty when none was loaded.
func LogCommandStart(log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(reportedKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", displayPath(configPath)),
	)
	for _, k := range reportedKeys {
		attrs = append(attrs, slog.String(k.name, render(os.Getenv(k.name), k.secret)))
	}
	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// render maps an env value to its logged form: secrets become set/unset,
// everything else is logged verbatim with "unset" standing in for empty.
func render(v string, secret bool) string {
	switch {
	case v == "":
		return "unset"
	case secret:
		return "set"
	default:
		return v
	}
}

// displayPath abbreviates the home directory in the config path and maps an
// empty path to "none".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
