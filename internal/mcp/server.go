package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := server.NewMCPServer("RepCounter", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepCounter exercise rep counter. List the calibration profiles it knows, resolve which profile an exercise name uses, and read the live rep count of the active session. Read-only."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListExerciseProfiles, Handler: h.listExerciseProfiles},
		server.ServerTool{Tool: toolResolveProfile, Handler: h.resolveProfile},
		server.ServerTool{Tool: toolGetRepCounterState, Handler: h.getRepCounterState},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resProfileCatalog, Handler: h.profileCatalog},
		server.ServerResource{Resource: resLiveSession, Handler: h.liveSession},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resProfileCatalog = mcp.NewResource(
	"repcounter://profiles",
	"Profile Catalog",
	mcp.WithResourceDescription("Every effective calibration profile, taught ones replacing built-ins of the same name"),
	mcp.WithMIMEType("application/json"),
)

var resLiveSession = mcp.NewResource(
	"repcounter://session",
	"Live Session",
	mcp.WithResourceDescription("Latest published state of the active counting or Teach Mode session"),
	mcp.WithMIMEType("application/json"),
)
