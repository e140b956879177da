package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/adapters/driving/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
the indexed corpus.

By default the server communicates over stdio using JSON-RPC. Use
--http to serve the streamable HTTP transport instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access over the network

Examples:
  # Stdio mode (default, for assistant integrations)
  quarry mcp

  # HTTP mode
  quarry mcp --http :8080

Assistant configuration (stdio mode):
  {
    "mcpServers": {
      "quarry": {
        "command": "/path/to/quarry",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "HTTP listen address (empty = stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if retrieverService == nil {
		return errors.New("retriever not configured")
	}

	ports := &mcp.Ports{
		Retriever: retrieverService,
		Indexer:   indexerService,
		Documents: documentService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if mcpHTTPAddr != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on %s\n", mcpHTTPAddr)
		return server.RunHTTP(cmd.Context(), mcpHTTPAddr)
	}

	return server.Run(cmd.Context())
}
