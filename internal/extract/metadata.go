package extract

// Field fallback orders for id-ish, title-ish, and timestamp-ish values.
// Different tools name the same concept differently; first hit wins.
var (
	idKeys        = []string{"id", "conversation_id", "session_id", "chat_session_id", "composerId", "sessionId"}
	sessionKeys   = []string{"session_id", "sessionId", "chat_session_id"}
	startTimeKeys = []string{"start_time", "created_at", "createdAt", "timestamp"}
	endTimeKeys   = []string{"end_time", "updated_at", "updatedAt", "lastUpdatedAt"}
)

// placeholderTitles are treated as "no title" when reading metadata. Note the
// content path (Content) filters only the exact "Untitled" string; the looser
// match here is for display fallback, not scoring.
var placeholderTitles = map[string]bool{
	"Untitled":              true,
	"Untitled Conversation": true,
}

// Metadata extracts normalized conversation metadata from a raw record:
// id, title, message_count, step_count, start_time, end_time, session_id.
// Keys are present only when a usable value was found. Non-map input yields
// an empty map, never an error.
func Metadata(record any) map[string]any {
	m, ok := record.(map[string]any)
	if !ok {
		return map[string]any{}
	}

	meta := map[string]any{}

	if id := firstString(m, idKeys); id != "" {
		meta["id"] = id
	}
	if title := recordTitle(m); title != "" {
		meta["title"] = title
	}
	if sid := firstString(m, sessionKeys); sid != "" {
		meta["session_id"] = sid
	}

	if n, ok := messageCount(m); ok {
		meta["message_count"] = n
	}
	if steps, ok := m["composerSteps"].([]any); ok {
		meta["step_count"] = len(steps)
	}

	if v := firstValue(m, startTimeKeys); v != nil {
		meta["start_time"] = v
	}
	if v := firstValue(m, endTimeKeys); v != nil {
		meta["end_time"] = v
	}

	return meta
}

// Normalize combines content and metadata extraction into one canonical
// record: {id, title, messages, content, source}. The source is inferred
// from the record's shape: a messages list means claude_code, composer steps
// mean cursor, anything else is unknown.
func Normalize(record any) map[string]any {
	meta := Metadata(record)

	normalized := map[string]any{
		"id":      meta["id"],
		"title":   meta["title"],
		"content": Content(record, DefaultMaxChars),
		"source":  "unknown",
	}

	messages := []any{}
	if m, ok := record.(map[string]any); ok {
		if list, ok := m["messages"].([]any); ok {
			messages = list
			normalized["source"] = "claude_code"
		} else if steps, ok := m["composerSteps"].([]any); ok {
			messages = steps
			normalized["source"] = "cursor"
		}
	}
	normalized["messages"] = messages

	return normalized
}

// messageCount prefers an explicit count field (the Claude loader stores the
// true total while capping stored bodies), falling back to the list length.
func messageCount(m map[string]any) (int, bool) {
	if v, ok := m["message_count"]; ok {
		switch n := v.(type) {
		case int:
			return n, true
		case float64:
			return int(n), true
		}
	}
	if list, ok := m["messages"].([]any); ok {
		return len(list), true
	}
	return 0, false
}

func recordTitle(m map[string]any) string {
	for _, key := range []string{"title", "name"} {
		if s, ok := m[key].(string); ok && s != "" && !placeholderTitles[s] {
			return s
		}
	}
	return ""
}

func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstValue(m map[string]any, keys []string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}
