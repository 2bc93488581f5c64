package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. Names and argument shapes are the public MCP contract;
// handlers.go holds the matching request structs.

var recallToolDef = mcp.NewTool("recall_conversations",
	mcp.WithDescription("Recall relevant conversations from AI coding tools (Cursor, Claude Code, Windsurf), scored against the current project context. Returns a lightweight envelope sorted by relevance."),
	mcp.WithString("project_root",
		mcp.Description("Project root used for keyword detection and cache keying. Defaults to the working directory."),
	),
	mcp.WithArray("tools",
		mcp.Description("Restrict the scan to these tools: cursor, claude-code, windsurf. Empty means all."),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithArray("keywords",
		mcp.Description("Extra keywords merged ahead of detected project keywords."),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum conversations to return. Clamped to the configured max."),
	),
	mcp.WithNumber("min_score",
		mcp.Description("Minimum relevance score to include. Overrides the configured default."),
	),
	mcp.WithNumber("days_lookback",
		mcp.Description("Only consider conversations newer than this many days. 0 disables the window."),
	),
	mcp.WithBoolean("full",
		mcp.Description("Return full conversation records instead of the lightweight form."),
	),
	mcp.WithBoolean("detailed",
		mcp.Description("Include the per-component relevance score breakdown."),
	),
)

var scanToolDef = mcp.NewTool("scan_conversation_stores",
	mcp.WithDescription("List discovered conversation stores per tool with path, size, conversation count, and accessibility. Does not load conversation content."),
	mcp.WithArray("tools",
		mcp.Description("Restrict discovery to these tools: cursor, claude-code, windsurf. Empty means all."),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var keywordsToolDef = mcp.NewTool("project_keywords",
	mcp.WithDescription("Detect context keywords for a project root: name tokens, module and package names, marker files, dominant languages, git branch, and README heading."),
	mcp.WithString("project_root",
		mcp.Description("Project root to inspect. Defaults to the working directory."),
	),
)

var statusToolDef = mcp.NewTool("recall_status",
	mcp.WithDescription("Report tool availability, cache state for the given project, the effective context keywords, and the active recall configuration."),
	mcp.WithString("project_root",
		mcp.Description("Project root used for keyword detection and cache inspection. Defaults to the working directory."),
	),
	mcp.WithArray("keywords",
		mcp.Description("Extra keywords, merged the same way recall_conversations merges them."),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var cacheClearToolDef = mcp.NewTool("cache_clear",
	mcp.WithDescription("Delete the conversation scan cache. Always safe; the next recall rescans from the stores."),
)

var runCommandToolDef = mcp.NewTool("run_command",
	mcp.WithDescription("Run a local command with a hard deadline and bounded captured output. Registered only when command execution is enabled in the configuration."),
	mcp.WithString("command",
		mcp.Required(),
		mcp.Description("Executable to run."),
	),
	mcp.WithArray("args",
		mcp.Description("Arguments passed to the command."),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithString("dir",
		mcp.Description("Working directory for the command."),
	),
	mcp.WithNumber("timeout_seconds",
		mcp.Description("Deadline in seconds. May lower the configured timeout, never raise it."),
	),
)
