// Command localwhisper is the entry point for the localwhisper venue
// assistant. It provides a CLI chat interface (via Cobra) and an optional
// HTTP server for multi-session use.
package main

import (
	"fmt"
	"os"

	"github.com/luzgui1/localwhisper/cmd/localwhisper/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
