package scan

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/hindsightlabs/hindsight/internal/errors"
)

// Windsurf scans Windsurf's state databases for chat sessions.
type Windsurf struct {
	opts Options

	// Roots overrides platform root resolution, mainly for tests.
	Roots func() []string
}

// NewWindsurf returns a Windsurf scanner.
func NewWindsurf(opts Options) *Windsurf {
	return &Windsurf{opts: opts.withDefaults(), Roots: windsurfRoots}
}

// Tool implements Source.
func (w *Windsurf) Tool() Tool { return ToolWindsurf }

// ScanDatabases implements Source.
func (w *Windsurf) ScanDatabases(ctx context.Context) []ConversationDatabase {
	return scanStateDBs(ctx, w.opts, ToolWindsurf, append(w.Roots(), w.opts.ExtraRoots...))
}

// LoadRecords implements Source. Sessions come from the chat.sessionStore
// blob, normalized to a flat record list regardless of the stored shape.
func (w *Windsurf) LoadRecords(ctx context.Context, cdb ConversationDatabase) ([]Record, error) {
	return runGuarded(ctx, w.opts.ScanTimeout, "windsurf records", func(ctx context.Context) ([]Record, error) {
		db, err := openStateDB(cdb.Path, w.opts.SQLiteTimeout)
		if err != nil {
			return nil, errors.NewUnreadableStore(cdb.Path, err)
		}
		defer db.Close()

		value, found, err := itemTableValue(ctx, db, keySessionStore)
		if err != nil {
			return nil, errors.NewUnreadableStore(cdb.Path, err)
		}
		if !found {
			return nil, nil
		}

		var payload struct {
			Sessions any `json:"sessions"`
		}
		if err := json.Unmarshal(value, &payload); err != nil {
			return nil, errors.NewUnreadableStore(cdb.Path, err)
		}

		records := normalizeSessions(payload.Sessions)
		if len(records) > w.opts.MaxRecords {
			records = records[:w.opts.MaxRecords]
		}
		for _, r := range records {
			r["database_path"] = cdb.Path
		}
		return records, nil
	})
}

// normalizeSessions flattens a sessions value into a uniform record list at
// the read boundary. The stored shape is sometimes a list and sometimes a
// mapping keyed by session id; in the mapping form the key becomes the
// record's session_id when the record does not carry its own. Returns nil
// for unrecognized shapes.
func normalizeSessions(v any) []Record {
	switch sessions := v.(type) {
	case []any:
		return recordList(sessions)
	case map[string]any:
		keys := make([]string, 0, len(sessions))
		for k := range sessions {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var records []Record
		for _, k := range keys {
			m, ok := sessions[k].(map[string]any)
			if !ok {
				continue
			}
			if !hasAnyKey(m, "id", "session_id", "sessionId") {
				m["session_id"] = k
			}
			records = append(records, m)
		}
		return records
	default:
		return nil
	}
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
