package commands

import (
	"github.com/spf13/cobra"

	"auspex/internal/logging"
	"auspex/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server that exposes the analysis
artifacts and run triggering as tools for AI assistants. Speaks MCP
over stdin/stdout; wire it into a client as a subprocess. Logs go to
stderr so they cannot corrupt the protocol stream.`,
	Run: runMCPServer,
}

func runMCPServer(cmd *cobra.Command, args []string) {
	cfg, paths, err := loadRuntime()
	HandleError(err, "Configuration error")
	logger := logging.GetLogger("mcp")
	logger.Info("Starting auspex MCP server (stdio)")

	pipe, trail := buildPipeline(cfg, paths)
	defer trail.Close()

	if err := mcpserver.New(paths, pipe, Version).Serve(); err != nil {
		logger.Error("Stdio transport error: %v", err)
	}
	logger.Info("Server stopped")
}
