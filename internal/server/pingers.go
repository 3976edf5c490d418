package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/luzgui1/localwhisper/internal/places"
	"github.com/luzgui1/localwhisper/internal/ranking"
)

// LLMPinger probes an LLM backend by sending a minimal single-token generate
// request. It satisfies the Pinger interface and is used by GET /api/ready.
// Each probe consumes tokens, so readiness checks should not be polled
// aggressively against metered backends.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a single-token generate request to the backend.
func (p *LLMPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// EmbedderPinger probes an embedding backend by embedding a single short
// string. It satisfies the Pinger interface and is used by GET /api/ready.
type EmbedderPinger struct {
	// embedder is the embedding backend to probe.
	embedder ranking.Embedder
	// name identifies the backend in readiness responses.
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder.
func NewEmbedderPinger(e ranking.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single short string and checks a vector came back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

// PlacesPinger probes the venue data provider with a minimal single-result
// search at a fixed coordinate. Each probe consumes one API request against
// the provider quota.
type PlacesPinger struct {
	// fetcher is the venue search capability to probe.
	fetcher places.Fetcher
}

// probeLocation is the fixed coordinate used for readiness probes
// (central London — any real urban coordinate works).
var probeLocation = places.Location{Lat: 51.5074, Lng: -0.1278}

// NewPlacesPinger constructs a PlacesPinger for the given fetcher.
func NewPlacesPinger(f places.Fetcher) *PlacesPinger {
	return &PlacesPinger{fetcher: f}
}

// Name returns the dependency label used in readiness responses.
func (p *PlacesPinger) Name() string { return "places" }

// Ping issues a minimal venue search. An empty result set is healthy; only
// transport or authorization failures count as unready.
func (p *PlacesPinger) Ping(ctx context.Context) error {
	if _, err := p.fetcher.Fetch(ctx, probeLocation, []string{"bar"}, 100, 1); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return nil
}
