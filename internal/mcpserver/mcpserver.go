// Package mcpserver exposes the analysis workspace to MCP clients over
// stdio: the artifact read tools and a run trigger sharing the
// pipeline's single-flight guard.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"auspex/internal/logging"
	"auspex/internal/pipeline"
	"auspex/internal/workspace"
)

// Runner runs one analysis pass. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// Server wraps the mcp-go stdio server around the workspace artifacts.
type Server struct {
	mcpServer *server.MCPServer
	paths     workspace.Paths
	runner    Runner
	log       *logging.Logger
}

// New builds the MCP server and registers the tool set.
func New(paths workspace.Paths, runner Runner, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"auspex",
			version,
			server.WithToolCapabilities(false),
			server.WithLogging(),
		),
		paths:  paths,
		runner: runner,
		log:    logging.GetLogger("mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	emptySchema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
	hostSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"host": map[string]interface{}{
				"type":        "string",
				"description": "Device hostname as it appears in the capture inventory",
			},
		},
		"required": []string{"host"},
	}

	s.register("list_hosts",
		"List analyzed devices with platform and per-device status",
		emptySchema, s.handleListHosts)

	s.register("get_host_facts",
		"Get the deterministic facts document for one device (parsed command outputs, metrics, coverage)",
		hostSchema, s.handleHostFacts)

	s.register("get_device_analysis",
		"Get the per-device analysis for one device (status, findings with evidence, recommended follow-up commands)",
		hostSchema, s.handleDeviceAnalysis)

	s.register("get_network_report",
		"Get the fleet-wide report: incidents, notable devices, remediation themes and task status",
		emptySchema, s.handleNetworkReport)

	s.register("run_analysis",
		"Run the analysis pipeline. Optional host scoping and a force flag to bypass freshness gates. Only one run at a time.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"hosts": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Optional: restrict the run to these hosts",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Optional: re-run stages even when artifacts are fresh",
				},
			},
		}, s.handleRunAnalysis)
}

func (s *Server) register(name, description string, schema map[string]interface{}, handler server.ToolHandlerFunc) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		// Only reachable with a malformed literal above.
		panic(fmt.Sprintf("marshal schema for tool %s: %v", name, err))
	}
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, description, schemaJSON), handler)
}

// Serve runs the stdio transport until the client disconnects.
func (s *Server) Serve() error {
	s.log.Info("Serving MCP tools over stdio")
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
