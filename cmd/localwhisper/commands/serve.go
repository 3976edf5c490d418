package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/luzgui1/localwhisper/internal/logging"
	"github.com/luzgui1/localwhisper/internal/server"
	"github.com/luzgui1/localwhisper/internal/store"
	"github.com/luzgui1/localwhisper/internal/tracing"
)

// NewServeCmd constructs the `localwhisper serve` command, which starts the
// HTTP server for multi-session use.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the localwhisper HTTP server",
		Long: `Start the localwhisper HTTP server on localhost.

The server exposes a JSON API: POST /api/chat runs one conversation turn,
POST /api/location attaches coordinates to a session, and
POST /api/session/reset discards a session. GET /api/ready probes the LLM,
embedding, and venue-search backends; /metrics serves Prometheus metrics.

Examples:
  localwhisper serve
  localwhisper serve --port 9090
  MODEL_PROVIDER=openai localwhisper serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			p, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Open the transcript store. LOCALWHISPER_HISTORY_DB overrides
			// the default path (~/.localwhisper/history.db). Set to
			// "disabled" to turn persistence off.
			var transcript store.TranscriptStore
			dbPath := os.Getenv("LOCALWHISPER_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("transcript: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					ts, tsErr := store.Open(dbPath)
					if tsErr != nil {
						log.Warn("transcript: failed to open store, disabling", slog.Any("error", tsErr))
					} else {
						transcript = ts
						defer func() { _ = ts.Close() }()
						log.Info("transcript: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("transcript: disabled via LOCALWHISPER_HISTORY_DB=disabled")
			}

			providerName := os.Getenv("MODEL_PROVIDER")
			if providerName == "" {
				providerName = "ollama"
			}
			pingers := []server.Pinger{
				server.NewLLMPinger(p.chatModel, providerName),
				server.NewEmbedderPinger(p.embedder, "embedding"),
				server.NewPlacesPinger(p.fetcher),
			}

			srv, err := server.New(p.orch, p.composer, &server.Config{
				Host:       host,
				Port:       port,
				Logger:     log,
				Pingers:    pingers,
				APIKey:     os.Getenv("LOCALWHISPER_API_KEY"),
				Transcript: transcript,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
