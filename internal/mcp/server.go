package mcp

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hindsightlabs/hindsight/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"recall_conversations": {
		def:     recallToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecall },
	},
	"scan_conversation_stores": {
		def:     scanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScan },
	},
	"project_keywords": {
		def:     keywordsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleKeywords },
	},
	"recall_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"cache_clear": {
		def:     cacheClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCacheClear },
	},
	"run_command": {
		def:     runCommandToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunCommand },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with hindsight tools registered.
// Tools listed in cfg.DisabledTools are excluded; run_command is excluded
// unless command execution is enabled in the configuration.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"hindsight",
		version,
		server.WithToolCapabilities(true),
	)

	disabled := make(map[string]bool)
	for _, name := range h.cfg.DisabledTools {
		disabled[name] = true
	}
	if !h.cfg.Command.Enabled {
		disabled["run_command"] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(cfg *config.Config, version string, logger *log.Logger) error {
	s := NewServer(NewHandlers(cfg, version, logger), version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
