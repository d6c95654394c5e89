package main

import (
	nutrimcp "github.com/anantham/nutrilens/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio so an agent can
validate estimates, log corrections and teach ingredient libraries.

Example client configuration:

  {
    "mcpServers": {
      "nutrilens": {
        "command": "nutrilens",
        "args": ["mcp"],
        "env": {
          "NUTRILENS_STORE": "clinic/north",
          "NUTRILENS_LOG_LEVEL": "info"
        }
      }
    }
  }

Logs go to stderr; stdout carries the protocol.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	return nutrimcp.NewServer(client).Run()
}
