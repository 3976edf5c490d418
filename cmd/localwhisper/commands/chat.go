package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/luzgui1/localwhisper/internal/logging"
	"github.com/luzgui1/localwhisper/internal/orchestrator"
	"github.com/luzgui1/localwhisper/internal/places"
	"github.com/luzgui1/localwhisper/internal/session"
	"github.com/luzgui1/localwhisper/internal/tracing"
)

// NewChatCmd constructs the `localwhisper chat` command: an interactive
// single-session REPL on stdin/stdout.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with localwhisper in the terminal",
		Long: `Start an interactive terminal chat session.

Share your coordinates with the /location command so venue recommendations
can work:

  /location 51.5074 -0.1278

Other commands: /reset discards the session, /quit exits.

Examples:
  localwhisper chat
  MODEL_PROVIDER=openai localwhisper chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			}

			p, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			state := session.New()
			fmt.Println("localwhisper — ask me where to go. /location <lat> <lng> to share coordinates, /quit to exit.")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				switch {
				case line == "/quit" || line == "/exit":
					return nil
				case line == "/reset":
					state = session.New()
					fmt.Println("session reset.")
					continue
				case strings.HasPrefix(line, "/location"):
					if err := applyLocation(state, line); err != nil {
						fmt.Println(err)
					} else {
						fmt.Println("location set.")
					}
					continue
				}

				reply, err := runTurn(ctx, p, state, line)
				if err != nil {
					if ce := orchestrator.AsCapabilityError(err); ce != nil {
						fmt.Printf("sorry, the %s capability is unavailable right now — try again shortly.\n", ce.Capability)
						continue
					}
					return fmt.Errorf("chat: %w", err)
				}
				fmt.Println(reply)
			}
			return scanner.Err()
		},
	}
	return cmd
}

// applyLocation parses "/location <lat> <lng>" and stores the coordinates.
func applyLocation(state *session.State, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return fmt.Errorf("usage: /location <lat> <lng>")
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q", fields[1])
	}
	lng, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q", fields[2])
	}
	if !state.SetLocation(places.Location{Lat: lat, Lng: lng}) {
		return fmt.Errorf("coordinates out of range")
	}
	return nil
}

// runTurn executes one conversation turn: orchestrate, compose, record.
func runTurn(ctx context.Context, p *pipeline, state *session.State, userText string) (string, error) {
	recent := state.Recent(8)

	d, err := p.orch.HandleTurn(ctx, userText, state)
	if err != nil {
		return "", err
	}

	reply, err := p.composer.Reply(ctx, userText, recent, d)
	if err != nil {
		return "", err
	}

	// The smalltalk branch records its reply during orchestration.
	if d.Kind != orchestrator.DirectiveSmalltalk {
		p.orch.RecordReply(state, reply)
	}
	return reply, nil
}
