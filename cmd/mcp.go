package cmd

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/cuadrada/cuadrada/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server (stdio)",
	Long: `Start a Model Context Protocol server over stdio.

Exposes the review pipeline as MCP tools so agent frontends can submit
papers and read verdicts. Add it to an MCP client config as:

  {
    "mcpServers": {
      "cuadrada": {
        "command": "cuadrada",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		return mcpserver.NewServer(s, newReviewRunner()).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
