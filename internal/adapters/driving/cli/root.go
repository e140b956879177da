package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// version is the build version, overridden at link time.
var version = "dev"

// Services wired in by main before Execute. Commands check for nil so
// the binary degrades gracefully when a backend is unavailable.
var (
	retrieverService driving.Retriever
	indexerService   driving.Indexer
	documentService  driving.DocumentService
	configStore      driven.ConfigStore
)

// Services bundles the core services the command tree depends on.
type Services struct {
	Retriever driving.Retriever
	Indexer   driving.Indexer
	Documents driving.DocumentService
	Config    driven.ConfigStore
}

// SetServices injects core services into the command tree.
func SetServices(s Services) {
	retrieverService = s.Retriever
	indexerService = s.Indexer
	documentService = s.Documents
	configStore = s.Config
}

// SetVersion overrides the reported build version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Index documents and search them semantically",
	Long: `Quarry indexes a directory of documents into an embedded chunk store
and answers semantic queries over it, from the command line or as an
MCP server for AI assistants.

Example usage:
  quarry index ./docs              # Index a directory
  quarry query "error handling"    # Search the indexed corpus
  quarry mcp                       # Serve the corpus over MCP (stdio)`,
	SilenceUsage: true,
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
