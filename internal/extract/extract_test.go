package extract

import (
	"strings"
	"testing"
)

func TestContent_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		record any
		want   []string
	}{
		{
			"plain string",
			"just some text about the api",
			[]string{"just some text about the api"},
		},
		{
			"dict with messages",
			map[string]any{
				"title": "auth work",
				"messages": []any{
					map[string]any{"content": "fix the login flow"},
					map[string]any{"content": "done, see auth.go"},
				},
			},
			[]string{"auth work", "fix the login flow", "done, see auth.go"},
		},
		{
			"dict with composer steps",
			map[string]any{
				"name": "schema migration",
				"composerSteps": []any{
					map[string]any{"content": "add users table"},
					map[string]any{"text": "step text fallback"},
				},
			},
			[]string{"schema migration", "add users table", "step text fallback"},
		},
		{
			"dict with bare content",
			map[string]any{"content": "a single blob of text"},
			[]string{"a single blob of text"},
		},
		{
			"list of mixed items",
			[]any{"first", map[string]any{"content": "second"}, 42},
			[]string{"first", "second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Content(tt.record, 0)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("Content() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestContent_UntitledFiltered(t *testing.T) {
	record := map[string]any{
		"name": "Untitled",
		"messages": []any{
			map[string]any{"content": "hello"},
		},
	}

	got := Content(record, 0)
	if strings.Contains(got, "Untitled") {
		t.Errorf("Content() = %q, placeholder leaked into scored text", got)
	}
	if !strings.Contains(got, "hello") {
		t.Errorf("Content() = %q, missing message text", got)
	}
}

func TestContent_UntitledCaseSensitive(t *testing.T) {
	// Only the exact placeholder string is filtered.
	record := map[string]any{
		"name":     "untitled",
		"messages": []any{},
	}
	if got := Content(record, 0); !strings.Contains(got, "untitled") {
		t.Errorf("Content() = %q, lowercase title should survive", got)
	}
}

func TestContent_MessageCap(t *testing.T) {
	var messages []any
	for i := 0; i < 25; i++ {
		messages = append(messages, map[string]any{"content": "msg" + string(rune('a'+i))})
	}
	record := map[string]any{"messages": messages}

	got := Content(record, 0)
	if !strings.Contains(got, "msgj") {
		t.Errorf("Content() missing tenth message: %q", got)
	}
	if strings.Contains(got, "msgk") {
		t.Errorf("Content() includes eleventh message past the cap: %q", got)
	}
}

func TestContent_TruncatesMidMessage(t *testing.T) {
	record := map[string]any{
		"messages": []any{
			map[string]any{"content": "aaaa"},
			map[string]any{"content": "bbbbbbbbbbbbbbbbbbbb"},
			map[string]any{"content": "never reached"},
		},
	}

	got := Content(record, 10)
	if len([]rune(got)) > 10 {
		t.Fatalf("Content() length = %d, want <= 10", len([]rune(got)))
	}
	// Partial text of the overflowing message is kept.
	if !strings.Contains(got, "b") {
		t.Errorf("Content() = %q, overflowing message fully dropped", got)
	}
	if strings.Contains(got, "never") {
		t.Errorf("Content() = %q, extraction did not stop at the limit", got)
	}
}

func TestContent_TextBlocksOnly(t *testing.T) {
	record := map[string]any{
		"messages": []any{
			map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "visible text"},
				map[string]any{"type": "image", "source": "huge-base64-blob"},
				map[string]any{"type": "tool_use", "name": "bash"},
				map[string]any{"type": "text", "text": "more text"},
			}},
		},
	}

	got := Content(record, 0)
	if !strings.Contains(got, "visible text") || !strings.Contains(got, "more text") {
		t.Errorf("Content() = %q, text blocks missing", got)
	}
	if strings.Contains(got, "base64") || strings.Contains(got, "bash") {
		t.Errorf("Content() = %q, non-text block leaked", got)
	}
}

func TestContent_MalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		record any
	}{
		{"nil record", nil},
		{"integer record", 7},
		{"messages not a list", map[string]any{"messages": "oops"}},
		{"nil message content", map[string]any{"messages": []any{map[string]any{"content": nil}}}},
		{"step not a map", map[string]any{"composerSteps": []any{42}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Must not panic; empty output is fine.
			_ = Content(tt.record, 0)
		})
	}
}

func TestMetadata_FieldFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		record any
		key    string
		want   any
	}{
		{"id direct", map[string]any{"id": "c1"}, "id", "c1"},
		{"id from conversation_id", map[string]any{"conversation_id": "conv-9"}, "id", "conv-9"},
		{"id from composerId", map[string]any{"composerId": "comp-1"}, "id", "comp-1"},
		{"session id camelCase", map[string]any{"sessionId": "s-2"}, "session_id", "s-2"},
		{"title from name", map[string]any{"name": "real title"}, "title", "real title"},
		{"start time from createdAt", map[string]any{"createdAt": float64(1755666000000)}, "start_time", float64(1755666000000)},
		{"end time from lastUpdatedAt", map[string]any{"lastUpdatedAt": float64(1755667000000)}, "end_time", float64(1755667000000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Metadata(tt.record)
			if meta[tt.key] != tt.want {
				t.Errorf("Metadata()[%s] = %v, want %v", tt.key, meta[tt.key], tt.want)
			}
		})
	}
}

func TestMetadata_PlaceholderTitles(t *testing.T) {
	for _, placeholder := range []string{"Untitled", "Untitled Conversation"} {
		meta := Metadata(map[string]any{"title": placeholder})
		if _, ok := meta["title"]; ok {
			t.Errorf("Metadata() kept placeholder title %q", placeholder)
		}
	}
}

func TestMetadata_Counts(t *testing.T) {
	t.Run("explicit message_count wins over stored list", func(t *testing.T) {
		meta := Metadata(map[string]any{
			"message_count": 120,
			"messages":      []any{map[string]any{}, map[string]any{}},
		})
		if meta["message_count"] != 120 {
			t.Errorf("message_count = %v, want 120", meta["message_count"])
		}
	})

	t.Run("list length fallback", func(t *testing.T) {
		meta := Metadata(map[string]any{
			"messages": []any{map[string]any{}, map[string]any{}, map[string]any{}},
		})
		if meta["message_count"] != 3 {
			t.Errorf("message_count = %v, want 3", meta["message_count"])
		}
	})

	t.Run("step count", func(t *testing.T) {
		meta := Metadata(map[string]any{
			"composerSteps": []any{map[string]any{}, map[string]any{}},
		})
		if meta["step_count"] != 2 {
			t.Errorf("step_count = %v, want 2", meta["step_count"])
		}
	})
}

func TestMetadata_NonDict(t *testing.T) {
	for _, record := range []any{nil, "text", []any{1, 2}, 3.14} {
		meta := Metadata(record)
		if meta == nil {
			t.Fatalf("Metadata(%v) = nil, want empty map", record)
		}
		if len(meta) != 0 {
			t.Errorf("Metadata(%v) = %v, want empty map", record, meta)
		}
	}
}

func TestNormalize_SourceInference(t *testing.T) {
	tests := []struct {
		name   string
		record any
		want   string
	}{
		{"messages means claude_code", map[string]any{"messages": []any{}}, "claude_code"},
		{"composer steps mean cursor", map[string]any{"composerSteps": []any{}}, "cursor"},
		{"bare content is unknown", map[string]any{"content": "text"}, "unknown"},
		{"plain string is unknown", "text", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized := Normalize(tt.record)
			if normalized["source"] != tt.want {
				t.Errorf("Normalize()[source] = %v, want %q", normalized["source"], tt.want)
			}
			if _, ok := normalized["messages"].([]any); !ok {
				t.Errorf("Normalize()[messages] = %T, want list", normalized["messages"])
			}
		})
	}
}

func TestNormalize_CombinesContentAndMetadata(t *testing.T) {
	record := map[string]any{
		"composerId":    "comp-7",
		"name":          "cache design",
		"composerSteps": []any{map[string]any{"content": "use a TTL cache"}},
	}

	normalized := Normalize(record)
	if normalized["id"] != "comp-7" {
		t.Errorf("id = %v, want comp-7", normalized["id"])
	}
	if normalized["title"] != "cache design" {
		t.Errorf("title = %v, want cache design", normalized["title"])
	}
	content, _ := normalized["content"].(string)
	if !strings.Contains(content, "TTL cache") {
		t.Errorf("content = %q, missing step text", content)
	}
	if normalized["source"] != "cursor" {
		t.Errorf("source = %v, want cursor", normalized["source"])
	}
}
