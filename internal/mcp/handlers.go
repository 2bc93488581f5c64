package mcp

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/errors"
	"github.com/hindsightlabs/hindsight/internal/logging"
	"github.com/hindsightlabs/hindsight/internal/project"
	"github.com/hindsightlabs/hindsight/internal/recall"
	"github.com/hindsightlabs/hindsight/internal/runner"
	"github.com/hindsightlabs/hindsight/internal/scan"
	"github.com/hindsightlabs/hindsight/internal/storage"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	cfg      *config.Config
	op       *recall.Op
	cache    *storage.Cache
	detector *project.Detector
	logger   *log.Logger
	version  string
}

// NewHandlers wires the recall pipeline behind the MCP surface: cache,
// project keyword detector, platform scanners, and the recall op itself.
func NewHandlers(cfg *config.Config, version string, logger *log.Logger) *Handlers {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	cache := storage.New(cfg, logger)
	detector := project.NewDetector(cfg, logger)
	op := &recall.Op{
		Config:         cfg,
		Sources:        recall.DefaultSources(cfg, logger),
		Cache:          cache,
		DetectKeywords: detector.Keywords,
		Logger:         logger,
	}

	return &Handlers{
		cfg:      cfg,
		op:       op,
		cache:    cache,
		detector: detector,
		logger:   logger,
		version:  version,
	}
}

// Request types for each tool

// RecallRequest represents the arguments for recall_conversations.
type RecallRequest struct {
	ProjectRoot  string   `json:"project_root,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	MinScore     *float64 `json:"min_score,omitempty"`
	DaysLookback *int     `json:"days_lookback,omitempty"`
	Full         bool     `json:"full,omitempty"`
	Detailed     bool     `json:"detailed,omitempty"`
}

// ScanRequest represents the arguments for scan_conversation_stores.
type ScanRequest struct {
	Tools []string `json:"tools,omitempty"`
}

// KeywordsRequest represents the arguments for project_keywords.
type KeywordsRequest struct {
	ProjectRoot string `json:"project_root,omitempty"`
}

// StatusRequest represents the arguments for recall_status.
type StatusRequest struct {
	ProjectRoot string   `json:"project_root,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// RunCommandRequest represents the arguments for run_command.
type RunCommandRequest struct {
	Command        string   `json:"command"`
	Args           []string `json:"args,omitempty"`
	Dir            string   `json:"dir,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// Response types

// StoreDescriptor is the JSON shape of one discovered conversation store.
type StoreDescriptor struct {
	Path              string `json:"path"`
	Tool              string `json:"tool"`
	SizeBytes         int64  `json:"size_bytes"`
	LastModified      string `json:"last_modified,omitempty"`
	ConversationCount *int   `json:"conversation_count,omitempty"`
	Accessible        bool   `json:"accessible"`
	Error             string `json:"error,omitempty"`
}

// ScanResponse is the scan_conversation_stores result.
type ScanResponse struct {
	Stores      []StoreDescriptor `json:"stores"`
	TotalStores int               `json:"total_stores"`
	ScanTime    float64           `json:"scan_time"`
}

// KeywordsResponse is the project_keywords result.
type KeywordsResponse struct {
	ProjectRoot string   `json:"project_root"`
	Keywords    []string `json:"keywords"`
	Count       int      `json:"count"`
}

// ToolStatus summarizes store discovery for one tool.
type ToolStatus struct {
	Stores     int `json:"stores"`
	Accessible int `json:"accessible"`
}

// StatusResponse is the recall_status result.
type StatusResponse struct {
	Version         string                `json:"version"`
	AvailableTools  []string              `json:"available_tools"`
	Tools           map[string]ToolStatus `json:"tools"`
	Cache           storage.Status        `json:"cache"`
	ContextKeywords []string              `json:"context_keywords"`
	Config          ConfigEcho            `json:"config"`
}

// ConfigEcho is the subset of configuration reported by recall_status.
type ConfigEcho struct {
	MinScore       float64 `json:"min_score"`
	DefaultLimit   int     `json:"default_limit"`
	MaxLimit       int     `json:"max_limit"`
	DaysLookback   int     `json:"days_lookback"`
	MaxKeywords    int     `json:"max_keywords"`
	CacheEnabled   bool    `json:"cache_enabled"`
	CommandEnabled bool    `json:"command_enabled"`
}

// CacheClearResponse is the cache_clear result.
type CacheClearResponse struct {
	Cleared bool `json:"cleared"`
}

// Core operations. The MCP handlers below and the CLI both call these; the
// two surfaces stay twins because they share the same typed entry points.

// Recall runs the recall pipeline for the given request.
func (h *Handlers) Recall(ctx context.Context, in RecallRequest) recall.Output {
	return h.op.Recall(ctx, recall.Input{
		ProjectRoot:  defaultRoot(in.ProjectRoot),
		Tools:        in.Tools,
		Keywords:     in.Keywords,
		Limit:        in.Limit,
		MinScore:     in.MinScore,
		DaysLookback: in.DaysLookback,
		Full:         in.Full,
		Detailed:     in.Detailed,
	})
}

// Scan discovers conversation stores, optionally restricted to named tools.
func (h *Handlers) Scan(ctx context.Context, in ScanRequest) (*ScanResponse, error) {
	requested := map[scan.Tool]bool{}
	for _, name := range in.Tools {
		tool, err := scan.ParseTool(name)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		requested[tool] = true
	}

	started := time.Now()
	stores := []StoreDescriptor{}
	for _, src := range h.op.Sources {
		if len(requested) > 0 && !requested[src.Tool()] {
			continue
		}
		for _, db := range src.ScanDatabases(ctx) {
			stores = append(stores, describeStore(db))
		}
	}

	return &ScanResponse{
		Stores:      stores,
		TotalStores: len(stores),
		ScanTime:    time.Since(started).Seconds(),
	}, nil
}

// Keywords detects project keywords for the given root.
func (h *Handlers) Keywords(in KeywordsRequest) *KeywordsResponse {
	root := defaultRoot(in.ProjectRoot)
	keywords := recall.OptimizeKeywords(h.detector.Keywords(root), h.cfg.Context.MaxKeywords)
	if keywords == nil {
		keywords = []string{}
	}

	return &KeywordsResponse{
		ProjectRoot: root,
		Keywords:    keywords,
		Count:       len(keywords),
	}
}

// Status reports tool availability, cache state, context keywords, and the
// effective configuration.
func (h *Handlers) Status(ctx context.Context, in StatusRequest) *StatusResponse {
	root := defaultRoot(in.ProjectRoot)
	keywords := h.op.ContextKeywords(recall.Input{ProjectRoot: root, Keywords: in.Keywords})
	if keywords == nil {
		keywords = []string{}
	}

	tools := map[string]ToolStatus{}
	for _, src := range h.op.Sources {
		name := string(src.Tool())
		status := tools[name]
		for _, db := range src.ScanDatabases(ctx) {
			status.Stores++
			if db.IsAccessible {
				status.Accessible++
			}
		}
		tools[name] = status
	}

	available := make([]string, 0, len(tools))
	for name, status := range tools {
		if status.Accessible > 0 {
			available = append(available, name)
		}
	}
	sort.Strings(available)

	return &StatusResponse{
		Version:         h.version,
		AvailableTools:  available,
		Tools:           tools,
		Cache:           h.cache.Describe(root, keywords),
		ContextKeywords: keywords,
		Config: ConfigEcho{
			MinScore:       h.cfg.Processing.MinScore,
			DefaultLimit:   h.cfg.Processing.DefaultLimit,
			MaxLimit:       h.cfg.Processing.MaxLimit,
			DaysLookback:   h.cfg.Context.DaysLookback,
			MaxKeywords:    h.cfg.Context.MaxKeywords,
			CacheEnabled:   h.cfg.Cache.Enabled,
			CommandEnabled: h.cfg.Command.Enabled,
		},
	}
}

// ClearCache drops the cached scan.
func (h *Handlers) ClearCache() (*CacheClearResponse, error) {
	if err := h.cache.Clear(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &CacheClearResponse{Cleared: true}, nil
}

// RunCommand executes a command inside the configured budget. The enabled
// check lives here so every surface honors the gate, not just tool
// registration.
func (h *Handlers) RunCommand(ctx context.Context, in RunCommandRequest) (*runner.Result, error) {
	if !h.cfg.Command.Enabled {
		return nil, errors.NewToolDisabled("run_command")
	}

	// Requests may lower the configured deadline, never raise it.
	timeoutSeconds := h.cfg.Command.TimeoutSeconds
	if in.TimeoutSeconds > 0 && in.TimeoutSeconds < timeoutSeconds {
		timeoutSeconds = in.TimeoutSeconds
	}

	return runner.Run(ctx, runner.Spec{
		Command:        in.Command,
		Args:           in.Args,
		Dir:            in.Dir,
		Timeout:        time.Duration(timeoutSeconds) * time.Second,
		MaxOutputBytes: h.cfg.Command.MaxOutputBytes,
	})
}

// MCP handler wrappers

// HandleRecall handles the recall_conversations tool call.
func (h *Handlers) HandleRecall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecallRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return successResult(h.Recall(ctx, input))
}

// HandleScan handles the scan_conversation_stores tool call.
func (h *Handlers) HandleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := h.Scan(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleKeywords handles the project_keywords tool call.
func (h *Handlers) HandleKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[KeywordsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return successResult(h.Keywords(input))
}

// HandleStatus handles the recall_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return successResult(h.Status(ctx, input))
}

// HandleCacheClear handles the cache_clear tool call.
func (h *Handlers) HandleCacheClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.ClearCache()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRunCommand handles the run_command tool call.
func (h *Handlers) HandleRunCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunCommandRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := h.RunCommand(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Helpers

func defaultRoot(root string) string {
	if root != "" {
		return root
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func describeStore(db scan.ConversationDatabase) StoreDescriptor {
	desc := StoreDescriptor{
		Path:              db.Path,
		Tool:              string(db.ToolType),
		SizeBytes:         db.SizeBytes,
		ConversationCount: db.ConversationCount,
		Accessible:        db.IsAccessible,
		Error:             db.ErrorMessage,
	}
	if !db.LastModified.IsZero() {
		desc.LastModified = db.LastModified.UTC().Format(time.RFC3339)
	}
	return desc
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking paths or causes.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if rErr, ok := err.(*errors.RecallError); ok {
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": rErr.Message,
			"status":  rErr.Status,
		}
		// Details carry paths and wrapped causes; keep them for every code
		// except INTERNAL
		if rErr.Code != errors.ErrInternal && rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
