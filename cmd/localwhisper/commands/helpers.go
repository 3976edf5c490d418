package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/eino/components/model"

	"github.com/luzgui1/localwhisper/internal/compose"
	"github.com/luzgui1/localwhisper/internal/embedder"
	"github.com/luzgui1/localwhisper/internal/orchestrator"
	"github.com/luzgui1/localwhisper/internal/places"
	"github.com/luzgui1/localwhisper/internal/provider"
	"github.com/luzgui1/localwhisper/internal/ranking"
	"github.com/luzgui1/localwhisper/internal/router"
)

// pipeline bundles the fully wired conversation components shared by the
// chat and serve commands.
type pipeline struct {
	// orch runs the per-turn orchestration.
	orch *orchestrator.Orchestrator
	// composer turns directives into user-facing reply text.
	composer *compose.Composer
	// chatModel is the underlying LLM, exposed for readiness probes.
	chatModel model.ToolCallingChatModel
	// embedder is the embedding backend, exposed for readiness probes.
	embedder ranking.Embedder
	// fetcher is the venue search capability, exposed for readiness probes.
	fetcher places.Fetcher
}

// buildPipeline constructs the chat model, embedder, fetcher, router,
// composer, and orchestrator from the environment. Every component fails
// fast with a descriptive error so misconfiguration surfaces at startup.
func buildPipeline(ctx context.Context, log *slog.Logger) (*pipeline, error) {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	engine, err := ranking.NewEngine(&ranking.Config{Embedder: emb})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise ranking engine: %w", err)
	}

	fetcher, err := places.NewGooglePlaces(&places.GoogleConfig{
		APIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		BaseURL: os.Getenv("GOOGLE_MAPS_ENDPOINT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise venue search (set GOOGLE_MAPS_API_KEY): %w", err)
	}

	rtr, err := router.New(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise intent router: %w", err)
	}

	composer, err := compose.New(&compose.Config{Model: chatModel})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise composer: %w", err)
	}

	orch, err := orchestrator.New(&orchestrator.Config{
		Router:  rtr,
		Fetcher: fetcher,
		Scorer:  engine,
		Talker:  composer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise orchestrator: %w", err)
	}

	return &pipeline{
		orch:      orch,
		composer:  composer,
		chatModel: chatModel,
		embedder:  emb,
		fetcher:   fetcher,
	}, nil
}
