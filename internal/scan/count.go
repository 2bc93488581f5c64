package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hindsightlabs/hindsight/internal/errors"
)

// fallbackTables are conventional table names tried when no known ItemTable
// key yields a count, in order.
var fallbackTables = []string{"conversations", "messages", "chat_sessions"}

// CountSQLiteConversations returns the number of conversations held in a
// Cursor/Windsurf state database. A non-nil error means the file could not be
// opened or parsed at all and drives is_accessible=false on the descriptor;
// (0, nil) means the database is readable but holds no recognizable
// conversation structure. The whole read is bounded by timeout.
func CountSQLiteConversations(ctx context.Context, path string, timeout time.Duration) (int, error) {
	return runGuarded(ctx, timeout, "sqlite count", func(ctx context.Context) (int, error) {
		db, err := openStateDB(path, timeout)
		if err != nil {
			return 0, errors.NewUnreadableStore(path, err)
		}
		defer db.Close()

		tables, err := tableNames(ctx, db)
		if err != nil {
			return 0, errors.NewUnreadableStore(path, err)
		}

		if tables["ItemTable"] {
			if n, ok := countItemTable(ctx, db); ok {
				return n, nil
			}
		}

		// Conventional table fallback
		for _, table := range fallbackTables {
			if !tables[table] {
				continue
			}
			var n int
			row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table))
			if err := row.Scan(&n); err != nil {
				return 0, errors.NewUnreadableStore(path, err)
			}
			return n, nil
		}

		// Readable database, nothing we recognize
		return 0, nil
	})
}

// countItemTable tries the known key-value layouts. ok is false when neither
// key holds a countable structure, letting the caller fall through to the
// table scan.
func countItemTable(ctx context.Context, db *sql.DB) (int, bool) {
	if value, found, err := itemTableValue(ctx, db, keyComposerData); err == nil && found {
		if n, ok := countComposerData(value); ok {
			return n, true
		}
	}
	if value, found, err := itemTableValue(ctx, db, keySessionStore); err == nil && found {
		if n, ok := countSessionStore(value); ok {
			return n, true
		}
	}
	return 0, false
}

func countComposerData(value []byte) (int, bool) {
	var payload struct {
		AllComposers []json.RawMessage `json:"allComposers"`
	}
	if err := json.Unmarshal(value, &payload); err != nil {
		return 0, false
	}
	if payload.AllComposers == nil {
		return 0, false
	}
	return len(payload.AllComposers), true
}

func countSessionStore(value []byte) (int, bool) {
	var payload struct {
		Sessions any `json:"sessions"`
	}
	if err := json.Unmarshal(value, &payload); err != nil {
		return 0, false
	}
	return rawSessionCount(payload.Sessions)
}

// rawSessionCount returns the element count of a sessions value that may be a
// list or a mapping keyed by session id.
func rawSessionCount(v any) (int, bool) {
	switch sessions := v.(type) {
	case []any:
		return len(sessions), true
	case map[string]any:
		return len(sessions), true
	default:
		return 0, false
	}
}

// CountJSONConversations counts conversations in a JSON or JSONL session
// file. It never fails: a file that exists is assumed to hold at least one
// conversation, so unreadable or unparseable input yields 1. This is a
// deliberate under-estimation-avoidance policy (a Claude Code JSONL transcript
// is one conversation and is not valid JSON as a whole).
func CountJSONConversations(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 1
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return 1
	}

	switch value := v.(type) {
	case []any:
		return len(value)
	case map[string]any:
		for _, key := range []string{"conversations", "sessions"} {
			if inner, ok := value[key]; ok {
				if n, counted := rawSessionCount(inner); counted {
					return n
				}
			}
		}
		// A single conversation object
		return 1
	default:
		return 1
	}
}

// Per-tool average serialized conversation sizes, for size-based estimation.
const (
	avgConversationBytesCursor   = 50 * 1024
	avgConversationBytesClaude   = 30 * 1024
	avgConversationBytesWindsurf = 40 * 1024
	avgConversationBytesUnknown  = 35 * 1024
)

// EstimateConversationCount guesses a conversation count from file size alone,
// used when structural counting is unavailable or not worth the read. Always
// at least 1.
func EstimateConversationCount(sizeBytes int64, tool Tool) int {
	var avg int64
	switch tool {
	case ToolCursor:
		avg = avgConversationBytesCursor
	case ToolClaudeCode:
		avg = avgConversationBytesClaude
	case ToolWindsurf:
		avg = avgConversationBytesWindsurf
	default:
		avg = avgConversationBytesUnknown
	}
	n := sizeBytes / avg
	if n < 1 {
		return 1
	}
	return int(n)
}
