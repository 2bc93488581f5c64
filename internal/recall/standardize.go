package recall

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hindsightlabs/hindsight/internal/extract"
	"github.com/hindsightlabs/hindsight/internal/relevance"
	"github.com/hindsightlabs/hindsight/internal/scan"
)

const snippetMaxChars = 150

// extraKeys are the tool-specific fields carried into the full standardized
// form. An allowlist keeps message bodies and other bulky raw data out of
// responses.
var extraKeys = []string{
	"database_path", "workspace_id", "workspaceId", "session_id",
	"ai_model", "model", "cwd", "git_branch", "session_data",
}

// ScoreOptions parameterize standardization.
type ScoreOptions struct {
	// Weights supplies scoring configuration; nil uses the built-in defaults.
	Weights relevance.Source
	// MaxContentChars caps the text extracted for scoring; <=0 uses the
	// extractor default.
	MaxContentChars int
	// Detailed attaches the sub-score breakdown to the analysis.
	Detailed bool
}

// Standardize maps a raw tool record into the canonical conversation shape
// and scores it against the context keywords. It never fails: missing fields
// fall back to generated values, and scoring degrades to zero rather than
// erroring. The record itself is not mutated.
func Standardize(record scan.Record, tool scan.Tool, keywords []string, opts ScoreOptions) Conversation {
	meta := extract.Metadata(record)
	content := extract.Content(record, opts.MaxContentChars)

	id, _ := meta["id"].(string)
	if id == "" {
		id = fallbackID(tool, record, content)
	}

	title, _ := meta["title"].(string)
	if title == "" {
		title = placeholderTitle(tool, id)
	}

	score, analysis := relevance.Analyze(content, keywords, record, opts.Detailed, opts.Weights)

	conv := Conversation{
		ID:             id,
		Title:          title,
		SourceTool:     string(tool),
		MessageCount:   messageCount(meta),
		RelevanceScore: round2(score),
		CreatedAt:      isoString(meta["start_time"]),
		UpdatedAt:      isoString(meta["end_time"]),
		Snippet:        snippet(content),
		KeywordMatches: analysis.KeywordMatches,
		Analysis:       analysis,
	}

	for _, key := range extraKeys {
		if value, ok := record[key]; ok && value != nil {
			if conv.Extra == nil {
				conv.Extra = map[string]any{}
			}
			conv.Extra[key] = value
		}
	}

	return conv
}

// fallbackID derives a stable identifier for records with no id of their own,
// so repeated scans of the same store agree.
func fallbackID(tool scan.Tool, record scan.Record, content string) string {
	path, _ := record["database_path"].(string)
	sum := sha256.Sum256([]byte(string(tool) + "\x00" + path + "\x00" + content))
	return hex.EncodeToString(sum[:])[:12]
}

func placeholderTitle(tool scan.Tool, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s Chat %s", displayName(tool), short)
}

func displayName(tool scan.Tool) string {
	switch tool {
	case scan.ToolCursor:
		return "Cursor"
	case scan.ToolClaudeCode:
		return "Claude Code"
	case scan.ToolWindsurf:
		return "Windsurf"
	default:
		return string(tool)
	}
}

func messageCount(meta map[string]any) int {
	if n, ok := meta["message_count"].(int); ok && n > 0 {
		return n
	}
	if n, ok := meta["step_count"].(int); ok && n > 0 {
		return n
	}
	return 0
}

// snippet condenses content to a single display line of at most 150 runes.
func snippet(content string) string {
	return truncateRunes(strings.Join(strings.Fields(content), " "), snippetMaxChars)
}

// isoString renders a raw timestamp value as RFC 3339 UTC when it parses.
// Unparseable strings pass through untouched; anything else becomes empty.
func isoString(v any) string {
	if v == nil {
		return ""
	}
	if t, ok := relevance.ParseTimestamp(v); ok {
		return t.UTC().Format(time.RFC3339)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// round2 rounds for display; non-finite values collapse to 0 so every score
// stays JSON-serializable.
func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*100) / 100
}

func round3(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*1000) / 1000
}
