package scan

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ItemTable keys holding conversation JSON in the VS Code family state dbs.
const (
	keyComposerData = "composer.composerData" // Cursor: {"allComposers": [...]}
	keySessionStore = "chat.sessionStore"     // Windsurf: {"sessions": [...] | {...}}
)

// openStateDB opens a state database strictly read-only. query_only is belt
// and braces on top of mode=ro: these files belong to a running editor and
// must never be mutated by a scan.
func openStateDB(path string, busyTimeout time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?mode=ro&_pragma=busy_timeout(%d)&_pragma=query_only(1)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// tableNames probes the database and returns its table set. This is the
// readability check: a file that is not SQLite at all fails here.
func tableNames(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

// itemTableValue reads one key from ItemTable. found is false when the key is
// absent; errors indicate the table could not be queried.
func itemTableValue(ctx context.Context, db *sql.DB, key string) (value []byte, found bool, err error) {
	row := db.QueryRowContext(ctx, `SELECT value FROM ItemTable WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}
