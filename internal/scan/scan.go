package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hindsightlabs/hindsight/internal/logging"
)

// Tool identifies a supported AI coding assistant.
type Tool string

const (
	ToolCursor     Tool = "cursor"
	ToolClaudeCode Tool = "claude-code"
	ToolWindsurf   Tool = "windsurf"
)

// AllTools returns every supported tool in stable order.
func AllTools() []Tool {
	return []Tool{ToolCursor, ToolClaudeCode, ToolWindsurf}
}

// ParseTool validates a tool name from a request.
func ParseTool(s string) (Tool, error) {
	switch Tool(strings.TrimSpace(s)) {
	case ToolCursor:
		return ToolCursor, nil
	case ToolClaudeCode:
		return ToolClaudeCode, nil
	case ToolWindsurf:
		return ToolWindsurf, nil
	default:
		return "", fmt.Errorf("unknown tool %q (expected one of: cursor, claude-code, windsurf)", s)
	}
}

// ConversationDatabase describes one discovered conversation store. Descriptors
// are created fresh on every scan; they carry no identity across scans and
// scanning never mutates the underlying store.
type ConversationDatabase struct {
	Path         string    `json:"path"`
	ToolType     Tool      `json:"tool_type"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`

	// ConversationCount is nil when the count could not be determined, which
	// is distinct from a readable store with zero conversations.
	ConversationCount *int   `json:"conversation_count"`
	IsAccessible      bool   `json:"is_accessible"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// Record is a raw, tool-specific conversation record as read from a store.
type Record = map[string]any

// Source scans one tool's storage layout and loads raw conversation records.
// ScanDatabases never returns an error: expected failures (missing
// directories, permission errors, corrupt files, timeouts) degrade to partial
// or empty results, with per-store problems recorded on the descriptor.
type Source interface {
	Tool() Tool
	ScanDatabases(ctx context.Context) []ConversationDatabase
	LoadRecords(ctx context.Context, db ConversationDatabase) ([]Record, error)
}

// Options configures a scanner.
type Options struct {
	// ScanTimeout bounds one tool's full directory scan.
	ScanTimeout time.Duration
	// SQLiteTimeout bounds a single database open/read.
	SQLiteTimeout time.Duration
	// MaxRecords caps records loaded from one store.
	MaxRecords int
	// ExtraRoots are searched in addition to the platform defaults.
	ExtraRoots []string
	Logger     *log.Logger
}

func (o Options) withDefaults() Options {
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = 30 * time.Second
	}
	if o.SQLiteTimeout <= 0 {
		o.SQLiteTimeout = 2 * time.Second
	}
	if o.MaxRecords <= 0 {
		o.MaxRecords = 500
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}

// Sources returns scanners for the requested tools sharing one options set.
func Sources(tools []Tool, opts Options) []Source {
	var sources []Source
	for _, t := range tools {
		switch t {
		case ToolCursor:
			sources = append(sources, NewCursor(opts))
		case ToolClaudeCode:
			sources = append(sources, NewClaudeCode(opts))
		case ToolWindsurf:
			sources = append(sources, NewWindsurf(opts))
		}
	}
	return sources
}

// maxScanDepth bounds directory recursion below each root. Cursor and
// Windsurf keep state at <root>/<workspace-hash>/state.vscdb, Claude Code at
// projects/<project>/<session>.jsonl, so three levels cover every layout.
const maxScanDepth = 3

// collectFiles walks root up to maxScanDepth, recording files whose base name
// matches any pattern into seen. Unreadable directories are logged and
// skipped so one inaccessible subtree does not abort the scan; walking stops
// early when ctx is done.
func collectFiles(ctx context.Context, logger *log.Logger, root string, patterns []string, seen map[string]bool) {
	walkDir(ctx, logger, root, patterns, seen, 0)
}

func walkDir(ctx context.Context, logger *log.Logger, dir string, patterns []string, seen map[string]bool, depth int) {
	if depth > maxScanDepth || ctx.Err() != nil {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("skipping unreadable directory", "dir", dir, "err", err)
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			walkDir(ctx, logger, path, patterns, seen, depth+1)
			continue
		}
		if matchesAny(entry.Name(), patterns) {
			seen[path] = true
		}
	}
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// sortedPaths returns the deduplicated path set in stable order. Discovery
// order is not part of the contract, but a deterministic order keeps logs and
// tests sane.
func sortedPaths(seen map[string]bool) []string {
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
