// Package commands defines all Cobra CLI commands for the localwhisper binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/luzgui1/localwhisper/internal/audit"
	"github.com/luzgui1/localwhisper/internal/config"
	"github.com/luzgui1/localwhisper/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "localwhisper",
		Short: "localwhisper — a conversational guide to the bars and venues around you",
		Long: `localwhisper is an LLM-driven assistant that chats with you and, when you
ask for somewhere to go, searches venues near your location, ranks them
against your request, and recommends the best matches.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.localwhisper/config.yaml). Venue search needs
GOOGLE_MAPS_API_KEY.
See 'localwhisper --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env before anything reads the environment. Missing file
			// is fine — env vars and YAML still apply.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.localwhisper/config.yaml)")

	root.AddCommand(
		NewChatCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
