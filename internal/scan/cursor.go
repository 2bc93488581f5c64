package scan

import (
	"context"
	"encoding/json"
	"os"

	"github.com/hindsightlabs/hindsight/internal/errors"
)

// stateDBPatterns match the VS Code family state database file names.
var stateDBPatterns = []string{"*.vscdb", "*.db"}

// Cursor scans Cursor's workspace and global storage for state databases
// holding composer conversations.
type Cursor struct {
	opts Options

	// Roots overrides platform root resolution, mainly for tests.
	Roots func() []string
}

// NewCursor returns a Cursor scanner.
func NewCursor(opts Options) *Cursor {
	return &Cursor{opts: opts.withDefaults(), Roots: cursorRoots}
}

// Tool implements Source.
func (c *Cursor) Tool() Tool { return ToolCursor }

// ScanDatabases implements Source.
func (c *Cursor) ScanDatabases(ctx context.Context) []ConversationDatabase {
	return scanStateDBs(ctx, c.opts, ToolCursor, append(c.Roots(), c.opts.ExtraRoots...))
}

// LoadRecords implements Source. Composer records come from the
// composer.composerData blob; a database without it yields no records.
func (c *Cursor) LoadRecords(ctx context.Context, cdb ConversationDatabase) ([]Record, error) {
	return runGuarded(ctx, c.opts.ScanTimeout, "cursor records", func(ctx context.Context) ([]Record, error) {
		db, err := openStateDB(cdb.Path, c.opts.SQLiteTimeout)
		if err != nil {
			return nil, errors.NewUnreadableStore(cdb.Path, err)
		}
		defer db.Close()

		value, found, err := itemTableValue(ctx, db, keyComposerData)
		if err != nil {
			return nil, errors.NewUnreadableStore(cdb.Path, err)
		}
		if !found {
			return nil, nil
		}

		var payload struct {
			AllComposers []Record `json:"allComposers"`
		}
		if err := json.Unmarshal(value, &payload); err != nil {
			return nil, errors.NewUnreadableStore(cdb.Path, err)
		}

		records := payload.AllComposers
		if len(records) > c.opts.MaxRecords {
			records = records[:c.opts.MaxRecords]
		}
		for _, r := range records {
			r["database_path"] = cdb.Path
		}
		return records, nil
	})
}

// scanStateDBs walks roots for state databases and describes every match.
// The whole walk runs under the per-tool scan deadline; on timeout whatever
// was described so far is returned rather than an error.
func scanStateDBs(ctx context.Context, opts Options, tool Tool, roots []string) []ConversationDatabase {
	ctx, cancel := context.WithTimeout(ctx, opts.ScanTimeout)
	defer cancel()

	seen := make(map[string]bool)
	for _, root := range existingDirs(roots) {
		collectFiles(ctx, opts.Logger, root, stateDBPatterns, seen)
	}

	var dbs []ConversationDatabase
	for _, path := range sortedPaths(seen) {
		if ctx.Err() != nil {
			opts.Logger.Warn("scan deadline reached, returning partial results",
				"tool", tool, "described", len(dbs), "found", len(seen))
			break
		}
		dbs = append(dbs, describeStateDB(ctx, opts, tool, path))
	}
	return dbs
}

// describeStateDB stats and counts one state database. Failures are recorded
// on the descriptor, never returned.
func describeStateDB(ctx context.Context, opts Options, tool Tool, path string) ConversationDatabase {
	cdb := ConversationDatabase{Path: path, ToolType: tool}

	info, err := os.Stat(path)
	if err != nil {
		cdb.ErrorMessage = err.Error()
		return cdb
	}
	cdb.SizeBytes = info.Size()
	cdb.LastModified = info.ModTime()

	n, err := CountSQLiteConversations(ctx, path, opts.SQLiteTimeout)
	if err != nil {
		cdb.ErrorMessage = err.Error()
		return cdb
	}
	cdb.ConversationCount = &n
	cdb.IsAccessible = true
	return cdb
}
