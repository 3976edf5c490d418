// Package tracing provides the optional Langfuse trace exporter for the
// model calls made by the router and the composer. Tracing is opt-in: it
// activates only when both Langfuse keys are present in the environment.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost targets a locally running Langfuse instance, matching the
// local-first defaults of the rest of the tool.
const defaultHost = "http://localhost:3000"

// Setup builds the Langfuse callback handler from LANGFUSE_PUBLIC_KEY,
// LANGFUSE_SECRET_KEY, and LANGFUSE_HOST. The third return value reports
// whether tracing is enabled; when false the other returns are nil. The
// flush function must run before process exit or buffered traces are lost.
func Setup() (callbacks.Handler, func(), bool) {
	pub, sec := os.Getenv("LANGFUSE_PUBLIC_KEY"), os.Getenv("LANGFUSE_SECRET_KEY")
	if pub == "" || sec == "" {
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: pub,
		SecretKey: sec,
	})
	return handler, flush, true
}
