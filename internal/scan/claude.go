package scan

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hindsightlabs/hindsight/internal/errors"
)

// claudePatterns match Claude Code session files. Each JSONL transcript is
// one conversation.
var claudePatterns = []string{"*.jsonl", "*.json"}

const (
	// maxStoredMessages caps the message bodies kept per transcript. The
	// record still reports the true message_count.
	maxStoredMessages = 50
	// maxTranscriptLine bounds a single JSONL line; transcripts with tool
	// output routinely exceed bufio's default.
	maxTranscriptLine = 1 << 20
	// titleMaxChars caps generated titles taken from the first user message.
	titleMaxChars = 50
)

// ClaudeCode scans ~/.claude/projects for JSONL session transcripts.
type ClaudeCode struct {
	opts Options

	// Roots overrides platform root resolution, mainly for tests.
	Roots func() []string
}

// NewClaudeCode returns a Claude Code scanner.
func NewClaudeCode(opts Options) *ClaudeCode {
	return &ClaudeCode{opts: opts.withDefaults(), Roots: claudeRoots}
}

// Tool implements Source.
func (c *ClaudeCode) Tool() Tool { return ToolClaudeCode }

// ScanDatabases implements Source.
func (c *ClaudeCode) ScanDatabases(ctx context.Context) []ConversationDatabase {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ScanTimeout)
	defer cancel()

	seen := make(map[string]bool)
	for _, root := range existingDirs(append(c.Roots(), c.opts.ExtraRoots...)) {
		collectFiles(ctx, c.opts.Logger, root, claudePatterns, seen)
	}

	var dbs []ConversationDatabase
	for _, path := range sortedPaths(seen) {
		if ctx.Err() != nil {
			c.opts.Logger.Warn("scan deadline reached, returning partial results",
				"tool", ToolClaudeCode, "described", len(dbs), "found", len(seen))
			break
		}

		info, err := os.Stat(path)
		if err != nil {
			dbs = append(dbs, ConversationDatabase{
				Path: path, ToolType: ToolClaudeCode, ErrorMessage: err.Error(),
			})
			continue
		}
		count := CountJSONConversations(path)
		dbs = append(dbs, ConversationDatabase{
			Path:              path,
			ToolType:          ToolClaudeCode,
			SizeBytes:         info.Size(),
			LastModified:      info.ModTime(),
			ConversationCount: &count,
			IsAccessible:      true,
		})
	}
	return dbs
}

// LoadRecords implements Source. A JSONL transcript loads as one record; a
// JSON file may hold one conversation or a list of them.
func (c *ClaudeCode) LoadRecords(ctx context.Context, cdb ConversationDatabase) ([]Record, error) {
	return runGuarded(ctx, c.opts.ScanTimeout, "claude records", func(ctx context.Context) ([]Record, error) {
		var records []Record
		var err error
		if strings.EqualFold(filepath.Ext(cdb.Path), ".jsonl") {
			records, err = c.loadTranscript(cdb.Path)
		} else {
			records, err = c.loadJSONFile(cdb.Path)
		}
		if err != nil {
			return nil, err
		}
		if len(records) > c.opts.MaxRecords {
			records = records[:c.opts.MaxRecords]
		}
		for _, r := range records {
			r["database_path"] = cdb.Path
		}
		return records, nil
	})
}

// transcriptLine is one line of a Claude Code JSONL session file.
type transcriptLine struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	SessionID string          `json:"sessionId"`
	CWD       string          `json:"cwd"`
	Message   json.RawMessage `json:"message"`
}

// loadTranscript folds a JSONL transcript into one conversation record:
// {session_id, messages, message_count, start_time, end_time, cwd, title}.
// Unparseable lines are skipped, not fatal.
func (c *ClaudeCode) loadTranscript(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewUnreadableStore(path, err)
	}
	defer file.Close()

	record := Record{}
	var messages []any
	messageCount := 0
	title := ""

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)
	for scanner.Scan() {
		var line transcriptLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != "user" && line.Type != "assistant" {
			continue
		}

		if _, ok := record["session_id"]; !ok && line.SessionID != "" {
			record["session_id"] = line.SessionID
		}
		if _, ok := record["start_time"]; !ok && line.Timestamp != "" {
			record["start_time"] = line.Timestamp
		}
		if line.Timestamp != "" {
			record["end_time"] = line.Timestamp
		}
		if _, ok := record["cwd"]; !ok && line.CWD != "" {
			record["cwd"] = line.CWD
		}

		var message map[string]any
		if err := json.Unmarshal(line.Message, &message); err != nil || message == nil {
			continue
		}
		role, _ := message["role"].(string)
		if role == "" {
			role = line.Type
		}
		messageCount++
		if len(messages) < maxStoredMessages {
			messages = append(messages, map[string]any{
				"role":    role,
				"content": message["content"],
			})
		}
		if title == "" && role == "user" {
			title = titleFromContent(message["content"])
		}
	}
	// Oversized or truncated lines end the read early; keep what parsed.
	if err := scanner.Err(); err != nil {
		c.opts.Logger.Debug("transcript read stopped early", "path", path, "err", err)
	}

	if len(messages) == 0 {
		return nil, nil
	}
	record["messages"] = messages
	record["message_count"] = messageCount
	if title != "" {
		record["title"] = title
	}
	return []Record{record}, nil
}

// loadJSONFile reads a JSON session file: a top-level list is a list of
// conversations, a conversations/sessions wrapper unwraps, anything else is
// one conversation.
func (c *ClaudeCode) loadJSONFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewUnreadableStore(path, err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.NewUnreadableStore(path, err)
	}

	switch value := v.(type) {
	case []any:
		return recordList(value), nil
	case map[string]any:
		for _, key := range []string{"conversations", "sessions"} {
			if inner, ok := value[key]; ok {
				if records := normalizeSessions(inner); records != nil {
					return records, nil
				}
			}
		}
		return []Record{value}, nil
	default:
		return nil, nil
	}
}

// recordList keeps the map-shaped elements of a raw list.
func recordList(items []any) []Record {
	var records []Record
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, m)
		}
	}
	return records
}

// titleFromContent derives a short title from a message content value, which
// may be a plain string or a block list.
func titleFromContent(content any) string {
	text := ""
	switch value := content.(type) {
	case string:
		text = value
	case []any:
		for _, block := range value {
			b, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := b["type"].(string); t == "text" {
				text, _ = b["text"].(string)
				break
			}
		}
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) > titleMaxChars {
		return string(runes[:titleMaxChars]) + "..."
	}
	return text
}
