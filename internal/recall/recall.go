// Package recall aggregates conversation history across tools: it scans each
// tool's stores, standardizes and scores the records against the project
// context, then filters, sorts, and size-optimizes the result into one
// response envelope. The envelope is always well-formed; tool failures,
// timeouts, and panics degrade to partial results, never to an error from the
// entry point.
package recall

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/logging"
	"github.com/hindsightlabs/hindsight/internal/scan"
)

// ToolResult summarizes one tool's contribution to a recall.
type ToolResult struct {
	ConversationCount int     `json:"conversation_count"`
	ScanTime          float64 `json:"scan_time"`
	Error             string  `json:"error,omitempty"`
}

// ScanMetadata rides alongside cached conversations so a cache hit can
// restore the scan-level envelope fields.
type ScanMetadata struct {
	AvailableTools []string              `json:"available_tools"`
	ToolResults    map[string]ToolResult `json:"tool_results"`
	ScannedAt      string                `json:"scanned_at,omitempty"`
}

// CachedScan is the payload the storage layer persists between calls.
type CachedScan struct {
	Conversations []Conversation `json:"conversations"`
	Metadata      ScanMetadata   `json:"metadata"`
}

// Store caches standardized scans between calls. Implementations are
// advisory: a miss or failed save only costs a rescan.
type Store interface {
	Load(projectRoot string, keywords []string) (*CachedScan, bool)
	Save(projectRoot string, keywords []string, data *CachedScan) bool
}

// Input carries one recall request. Pointer fields distinguish "not set"
// from an explicit zero; unset values fall back to configuration.
type Input struct {
	ProjectRoot  string
	Tools        []string
	Keywords     []string
	Limit        int
	MinScore     *float64
	DaysLookback *int
	Full         bool
	Detailed     bool
}

// Output is the response envelope. Collection fields are never nil, so the
// serialized form always carries every envelope key.
type Output struct {
	Conversations      []Conversation        `json:"conversations"`
	TotalConversations int                   `json:"total_conversations"`
	AvailableTools     []string              `json:"available_tools"`
	ContextKeywords    []string              `json:"context_keywords"`
	ProcessingTime     float64               `json:"processing_time"`
	ToolResults        map[string]ToolResult `json:"tool_results"`
}

// Op wires the recall pipeline together. Sources defaults to the platform
// scanners for all tools; Cache and DetectKeywords are optional.
type Op struct {
	Config         *config.Config
	Sources        []scan.Source
	Cache          Store
	DetectKeywords func(projectRoot string) []string
	Logger         *log.Logger
}

// Recall runs the full pipeline. It never returns an error: every expected
// failure mode is absorbed into the envelope (empty conversations, per-tool
// error notes), and the context deadline degrades to partial results.
func (o *Op) Recall(ctx context.Context, in Input) Output {
	started := time.Now()

	cfg := o.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := o.logger().With("request_id", ulid.Make().String())

	limit := in.Limit
	if limit <= 0 {
		limit = cfg.Processing.DefaultLimit
	}
	if max := cfg.Processing.MaxLimit; max > 0 && limit > max {
		limit = max
	}
	minScore := cfg.Processing.MinScore
	if in.MinScore != nil {
		minScore = *in.MinScore
	}
	daysLookback := cfg.Context.DaysLookback
	if in.DaysLookback != nil {
		daysLookback = *in.DaysLookback
	}
	mode := ModeLightweight
	if in.Full {
		mode = ModeFull
	}

	keywords := o.contextKeywords(in, cfg)

	out := Output{
		Conversations:   []Conversation{},
		AvailableTools:  []string{},
		ContextKeywords: keywords,
		ToolResults:     map[string]ToolResult{},
	}

	// The cache always holds a full all-tools scan; tool-restricted requests
	// bypass it so a partial scan never masquerades as a complete one.
	useCache := o.Cache != nil && cfg.Cache.Enabled && len(in.Tools) == 0

	var all []Conversation
	fromCache := false
	if useCache {
		if cached, ok := o.Cache.Load(in.ProjectRoot, keywords); ok && cached != nil {
			all = cached.Conversations
			if cached.Metadata.AvailableTools != nil {
				out.AvailableTools = cached.Metadata.AvailableTools
			}
			if cached.Metadata.ToolResults != nil {
				out.ToolResults = cached.Metadata.ToolResults
			}
			fromCache = true
			logger.Debug("serving conversations from cache", "count", len(all))
		}
	}

	if !fromCache {
		all = o.scanAll(ctx, cfg, keywords, daysLookback, in, &out, logger)
		if useCache {
			saved := o.Cache.Save(in.ProjectRoot, keywords, &CachedScan{
				Conversations: all,
				Metadata: ScanMetadata{
					AvailableTools: out.AvailableTools,
					ToolResults:    out.ToolResults,
					ScannedAt:      time.Now().UTC().Format(time.RFC3339),
				},
			})
			logger.Debug("conversation cache save", "saved", saved, "count", len(all))
		}
	}

	filtered, meta := ApplyFiltering(all, minScore, limit, mode)
	logger.Debug("conversation filtering applied",
		"mode", meta.Mode, "original_count", meta.OriginalCount, "filtered_count", meta.FilteredCount)

	if !in.Full {
		for i := range filtered {
			filtered[i] = filtered[i].Lightweight()
		}
	}
	filtered = OptimizeForSize(filtered, cfg.Processing.ResponseBudgetBytes)

	out.Conversations = filtered
	out.TotalConversations = len(filtered)
	out.ProcessingTime = round3(time.Since(started).Seconds())
	return out
}

// scanAll runs every requested source under the full-scan deadline (twice the
// per-tool scan timeout) and records per-tool results on the envelope.
func (o *Op) scanAll(ctx context.Context, cfg *config.Config, keywords []string, daysLookback int, in Input, out *Output, logger *log.Logger) []Conversation {
	scanTimeout := time.Duration(cfg.Processing.ScanTimeoutSeconds) * time.Second
	if scanTimeout <= 0 {
		scanTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, 2*scanTimeout)
	defer cancel()

	requested := map[scan.Tool]bool{}
	for _, name := range in.Tools {
		tool, err := scan.ParseTool(name)
		if err != nil {
			out.ToolResults[strings.TrimSpace(name)] = ToolResult{Error: "unknown tool"}
			continue
		}
		requested[tool] = true
	}

	opts := ScoreOptions{
		Weights:         cfg,
		MaxContentChars: cfg.Processing.MaxContentChars,
		Detailed:        in.Detailed,
	}

	var all []Conversation
	for _, src := range o.sources(cfg) {
		tool := src.Tool()
		if len(in.Tools) > 0 && !requested[tool] {
			continue
		}
		if ctx.Err() != nil {
			out.ToolResults[string(tool)] = ToolResult{Error: "scan deadline exceeded"}
			continue
		}

		convs, result, accessible := o.scanTool(ctx, src, keywords, daysLookback, opts, logger)
		out.ToolResults[string(tool)] = result
		if accessible {
			out.AvailableTools = append(out.AvailableTools, string(tool))
		}
		all = append(all, convs...)
	}
	return all
}

// scanTool is the per-tool isolation boundary: a panic inside one tool's scan
// is recorded on its result and leaves the other tools untouched.
func (o *Op) scanTool(ctx context.Context, src scan.Source, keywords []string, daysLookback int, opts ScoreOptions, logger *log.Logger) (convs []Conversation, result ToolResult, accessible bool) {
	tool := src.Tool()
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool scan panicked", "tool", tool, "panic", r)
			convs = nil
			accessible = false
			result = ToolResult{
				ScanTime: round3(time.Since(started).Seconds()),
				Error:    "internal scan failure",
			}
		}
	}()

	var records []scan.Record
	for _, db := range src.ScanDatabases(ctx) {
		if !db.IsAccessible {
			continue
		}
		accessible = true
		loaded, err := src.LoadRecords(ctx, db)
		if err != nil {
			logger.Warn("loading conversation records failed", "tool", tool, "path", db.Path, "err", err)
			continue
		}
		records = append(records, loaded...)
	}

	records = QuickFilter(records, daysLookback)
	for _, record := range records {
		convs = append(convs, Standardize(record, tool, keywords, opts))
	}

	result = ToolResult{
		ConversationCount: len(convs),
		ScanTime:          round3(time.Since(started).Seconds()),
	}
	return convs, result, accessible
}

// ContextKeywords returns the merged keyword set a recall with this input
// would use: request keywords, configured extras, then detected project
// keywords.
func (o *Op) ContextKeywords(in Input) []string {
	cfg := o.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return o.contextKeywords(in, cfg)
}

// contextKeywords merges explicit request keywords, configured extras, and
// detected project keywords, deduplicates case-insensitively preserving first
// occurrence, and trims to the configured cap preferring shorter terms.
func (o *Op) contextKeywords(in Input, cfg *config.Config) []string {
	seen := map[string]bool{}
	keywords := []string{}
	add := func(list []string) {
		for _, keyword := range list {
			keyword = strings.TrimSpace(keyword)
			key := strings.ToLower(keyword)
			if keyword == "" || seen[key] {
				continue
			}
			seen[key] = true
			keywords = append(keywords, keyword)
		}
	}

	add(in.Keywords)
	add(cfg.Context.ExtraKeywords)
	if o.DetectKeywords != nil {
		add(o.DetectKeywords(in.ProjectRoot))
	}

	return OptimizeKeywords(keywords, cfg.Context.MaxKeywords)
}

func (o *Op) sources(cfg *config.Config) []scan.Source {
	if o.Sources != nil {
		return o.Sources
	}
	return DefaultSources(cfg, o.logger())
}

// DefaultSources returns the platform scanners for every tool, with any
// configured extra roots applied per tool.
func DefaultSources(cfg *config.Config, logger *log.Logger) []scan.Source {
	if cfg == nil {
		cfg = config.Default()
	}
	scanTimeout := time.Duration(cfg.Processing.ScanTimeoutSeconds) * time.Second
	if scanTimeout <= 0 {
		scanTimeout = 30 * time.Second
	}
	base := scan.Options{
		ScanTimeout:   scanTimeout,
		SQLiteTimeout: time.Duration(cfg.Processing.SQLiteTimeoutSeconds) * time.Second,
		MaxRecords:    cfg.Processing.MaxRecordsPerStore,
		Logger:        logger,
	}

	var sources []scan.Source
	for _, tool := range scan.AllTools() {
		opts := base
		opts.ExtraRoots = configuredRoots(cfg, tool)
		sources = append(sources, scan.Sources([]scan.Tool{tool}, opts)...)
	}
	return sources
}

func configuredRoots(cfg *config.Config, tool scan.Tool) []string {
	var dirs []string
	switch tool {
	case scan.ToolCursor:
		dirs = cfg.Directories.Cursor
	case scan.ToolClaudeCode:
		dirs = cfg.Directories.Claude
	case scan.ToolWindsurf:
		dirs = cfg.Directories.Windsurf
	}
	roots := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		roots = append(roots, config.ExpandPath(dir))
	}
	return roots
}

func (o *Op) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Discard()
}
