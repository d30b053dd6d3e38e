package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/clinitrace/internal/adapters/driving/mcp"
)

var mcpAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can read the
timeline, query medications and submit files.

By default the server communicates over stdio using JSON-RPC. Use --http to
serve the streamable HTTP transport instead.

Examples:
  # Stdio mode (default, for desktop assistants)
  clinitrace mcp

  # HTTP mode (for MCP Inspector, remote access)
  clinitrace mcp --http :8080

Assistant configuration:
  {
    "mcpServers": {
      "clinitrace": {
        "command": "/path/to/clinitrace",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpAddr, "http", "", "HTTP listen address (empty = use stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ports := &mcp.Ports{
		Timeline:  timelineService,
		Ledger:    ledgerService,
		Ingestion: ingestionService,
		Editor:    editorService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if mcpAddr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s\n", mcpAddr)
		return server.RunHTTP(cmd.Context(), mcpAddr)
	}

	return server.Run(cmd.Context())
}
