// Package extract converts raw tool-specific conversation records into plain
// text and normalized metadata. Records arrive in several shapes (message
// lists, Cursor composer steps, bare strings); everything here tolerates
// missing or malformed fields and degrades to empty output rather than
// failing.
package extract

import "strings"

const (
	// MaxMessages bounds how many messages or composer steps contribute to
	// extracted content.
	MaxMessages = 10
	// DefaultMaxChars is the content cap applied when the caller passes no
	// positive limit.
	DefaultMaxChars = 2000

	// untitledPlaceholder is Cursor's literal placeholder name. It must never
	// leak into scored text, so title fields equal to it (case-sensitive) are
	// dropped.
	untitledPlaceholder = "Untitled"
)

// shape discriminates the known record layouts. Detection happens once here;
// both the content and metadata paths dispatch on it instead of re-probing.
type shape int

const (
	shapeUnknown shape = iota
	shapeText          // plain string
	shapeList          // list of message-like items
	shapeMessages      // map with a messages list
	shapeComposer      // map with a composerSteps list (Cursor)
	shapeContent       // map with a bare content string
)

func detectShape(record any) shape {
	switch v := record.(type) {
	case string:
		return shapeText
	case []any:
		return shapeList
	case map[string]any:
		if _, ok := v["messages"].([]any); ok {
			return shapeMessages
		}
		if _, ok := v["composerSteps"].([]any); ok {
			return shapeComposer
		}
		if _, ok := v["content"].(string); ok {
			return shapeContent
		}
		return shapeUnknown
	default:
		return shapeUnknown
	}
}

// Content renders a conversation record as plain text for keyword and
// file-reference scoring, truncated to maxChars (runes). At most MaxMessages
// messages contribute, in original order; extraction stops mid-message once
// the limit is reached, keeping the partial text. Never fails: unrecognized
// input yields an empty string.
func Content(record any, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var b builder
	b.limit = maxChars

	switch detectShape(record) {
	case shapeText:
		b.add(record.(string))
	case shapeList:
		items := record.([]any)
		appendItems(&b, items)
	case shapeMessages:
		m := record.(map[string]any)
		appendTitles(&b, m)
		appendItems(&b, m["messages"].([]any))
	case shapeComposer:
		m := record.(map[string]any)
		appendTitles(&b, m)
		appendSteps(&b, m["composerSteps"].([]any))
	case shapeContent:
		m := record.(map[string]any)
		appendTitles(&b, m)
		b.add(m["content"].(string))
	}

	return b.String()
}

// appendTitles contributes the record's title-ish fields unless they carry
// the literal placeholder.
func appendTitles(b *builder, m map[string]any) {
	for _, key := range []string{"title", "name"} {
		if s, ok := m[key].(string); ok && s != "" && s != untitledPlaceholder {
			if b.add(s); b.full() {
				return
			}
		}
	}
}

func appendItems(b *builder, items []any) {
	for i, item := range items {
		if i >= MaxMessages || b.full() {
			return
		}
		switch v := item.(type) {
		case string:
			b.add(v)
		case map[string]any:
			b.add(contentText(v["content"]))
		}
	}
}

func appendSteps(b *builder, steps []any) {
	for i, step := range steps {
		if i >= MaxMessages || b.full() {
			return
		}
		m, ok := step.(map[string]any)
		if !ok {
			continue
		}
		text := contentText(m["content"])
		if text == "" {
			text = contentText(m["text"])
		}
		b.add(text)
	}
}

// contentText flattens a message content value: either a plain string or a
// list of structured blocks, of which only text-typed blocks contribute.
// Image and tool blocks are dropped silently.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, block := range v {
			m, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := m["type"].(string); t != "text" {
				continue
			}
			if text, ok := m["text"].(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// builder accumulates newline-joined parts up to a rune limit.
type builder struct {
	parts []string
	runes int
	limit int
}

func (b *builder) add(s string) {
	if s == "" || b.full() {
		return
	}
	b.parts = append(b.parts, s)
	b.runes += len([]rune(s)) + 1
}

func (b *builder) full() bool {
	return b.runes >= b.limit
}

func (b *builder) String() string {
	joined := strings.Join(b.parts, "\n")
	runes := []rune(joined)
	if len(runes) > b.limit {
		return string(runes[:b.limit])
	}
	return joined
}
