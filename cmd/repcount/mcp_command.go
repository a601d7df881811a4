package main

import (
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/claude/repcounter/internal/mcp"
	"github.com/claude/repcounter/internal/profiles"
	"github.com/claude/repcounter/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func newMCPCommand(ctx *commandContext) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP over stdio",
		Long: "Serve the rep counter MCP tools over stdio. With --url the tools query a\n" +
			"running repcounter server; otherwise they read the local profile store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := ctx.logger(cmd)
			if baseURL != "" {
				log.Info("mcp: remote mode", "url", baseURL)
				return mcpserver.ServeStdio(mcp.New(mcp.NewHTTPClient(baseURL), Version, log))
			}
			return ctx.withRegistry(cmd, func(reg *profiles.Registry) error {
				m := session.NewManager(reg, session.Options{}, log)
				return mcpserver.ServeStdio(mcp.New(mcp.Local{Profiles: reg, Manager: m}, Version, log))
			})
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Base URL of a running repcounter server")
	return cmd
}
