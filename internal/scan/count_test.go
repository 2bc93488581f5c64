package scan

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createStateDB builds a real state database fixture with the given ItemTable
// rows.
func createStateDB(t *testing.T, path string, rows map[string]string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`); err != nil {
		t.Fatalf("create ItemTable: %v", err)
	}
	for key, value := range rows {
		if _, err := db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, key, value); err != nil {
			t.Fatalf("insert %s: %v", key, err)
		}
	}
}

func TestCountSQLiteConversations_ComposerData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.vscdb")
	createStateDB(t, path, map[string]string{
		keyComposerData: `{"allComposers": [{"composerId": "a"}, {"composerId": "b"}, {"composerId": "c"}]}`,
	})

	n, err := CountSQLiteConversations(context.Background(), path, 2*time.Second)
	if err != nil {
		t.Fatalf("CountSQLiteConversations() error = %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestCountSQLiteConversations_SessionStore(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"sessions as list", `{"sessions": [{"id": "s1"}, {"id": "s2"}]}`, 2},
		{"sessions as mapping", `{"sessions": {"s1": {"title": "a"}, "s2": {"title": "b"}, "s3": {"title": "c"}}}`, 3},
		{"empty list", `{"sessions": []}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.vscdb")
			createStateDB(t, path, map[string]string{keySessionStore: tt.value})

			n, err := CountSQLiteConversations(context.Background(), path, 2*time.Second)
			if err != nil {
				t.Fatalf("CountSQLiteConversations() error = %v", err)
			}
			if n != tt.want {
				t.Errorf("count = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestCountSQLiteConversations_TableFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE conversations (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		if _, err := db.Exec(`INSERT INTO conversations (id) VALUES (?)`, id); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	db.Close()

	n, err := CountSQLiteConversations(context.Background(), path, 2*time.Second)
	if err != nil {
		t.Fatalf("CountSQLiteConversations() error = %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}
}

func TestCountSQLiteConversations_ZeroVersusError(t *testing.T) {
	t.Run("valid db with no known tables returns zero", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "other.db")

		db, err := sql.Open("sqlite", path)
		if err != nil {
			t.Fatalf("sql.Open() error = %v", err)
		}
		if _, err := db.Exec(`CREATE TABLE unrelated (x INTEGER)`); err != nil {
			t.Fatalf("create table: %v", err)
		}
		db.Close()

		n, err := CountSQLiteConversations(context.Background(), path, 2*time.Second)
		if err != nil {
			t.Fatalf("CountSQLiteConversations() error = %v, want nil", err)
		}
		if n != 0 {
			t.Errorf("count = %d, want 0", n)
		}
	})

	t.Run("non-sqlite file returns error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake.vscdb")
		if err := os.WriteFile(path, []byte("definitely not a sqlite database"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		if _, err := CountSQLiteConversations(context.Background(), path, 2*time.Second); err == nil {
			t.Fatal("CountSQLiteConversations() error = nil, want unreadable-store error")
		}
	})
}

func TestCountSQLiteConversations_ItemTableWithoutKnownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.vscdb")
	createStateDB(t, path, map[string]string{"some.other.key": `{"x": 1}`})

	n, err := CountSQLiteConversations(context.Background(), path, 2*time.Second)
	if err != nil {
		t.Fatalf("CountSQLiteConversations() error = %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestCountJSONConversations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"top-level list", `[{"id": 1}, {"id": 2}]`, 2},
		{"empty list", `[]`, 0},
		{"conversations wrapper", `{"conversations": [{"id": 1}, {"id": 2}, {"id": 3}]}`, 3},
		{"sessions wrapper list", `{"sessions": [{"id": 1}]}`, 1},
		{"sessions wrapper mapping", `{"sessions": {"a": {}, "b": {}}}`, 2},
		{"single object", `{"id": "only", "messages": []}`, 1},
		{"invalid json", `{"id": "broken"`, 1},
		{"jsonl transcript", "{\"type\":\"user\"}\n{\"type\":\"assistant\"}\n", 1},
		{"scalar", `42`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if got := CountJSONConversations(path); got != tt.want {
				t.Errorf("CountJSONConversations() = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if got := CountJSONConversations(filepath.Join(t.TempDir(), "nope.json")); got != 1 {
			t.Errorf("CountJSONConversations(missing) = %d, want 1", got)
		}
	})
}

func TestEstimateConversationCount(t *testing.T) {
	tests := []struct {
		name string
		size int64
		tool Tool
		want int
	}{
		{"cursor average", 150 * 1024, ToolCursor, 3},
		{"claude average", 150 * 1024, ToolClaudeCode, 5},
		{"windsurf average", 120 * 1024, ToolWindsurf, 3},
		{"unknown tool", 70 * 1024, Tool("mystery"), 2},
		{"tiny file still counts one", 10, ToolCursor, 1},
		{"zero size still counts one", 0, ToolClaudeCode, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateConversationCount(tt.size, tt.tool); got != tt.want {
				t.Errorf("EstimateConversationCount(%d, %s) = %d, want %d", tt.size, tt.tool, got, tt.want)
			}
		})
	}
}
