package recall

import (
	"encoding/json"

	"github.com/hindsightlabs/hindsight/internal/relevance"
)

// Conversation is the canonical cross-tool record produced by
// standardization. Tool-specific extension fields (database path, workspace
// id, model) ride in Extra and appear in the full JSON form only; the
// lightweight form is a fixed seven-field projection used under response-size
// pressure.
type Conversation struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	SourceTool     string              `json:"source_tool"`
	MessageCount   int                 `json:"message_count"`
	RelevanceScore float64             `json:"relevance_score"`
	CreatedAt      string              `json:"created_at,omitempty"`
	UpdatedAt      string              `json:"updated_at,omitempty"`
	Snippet        string              `json:"snippet,omitempty"`
	KeywordMatches []string            `json:"keyword_matches,omitempty"`
	Analysis       *relevance.Analysis `json:"relevance_analysis,omitempty"`
	Extra          map[string]any      `json:"-"`

	lightweight bool
}

// conversationKeys are the JSON keys owned by the struct itself; everything
// else round-trips through Extra.
var conversationKeys = []string{
	"id", "title", "source_tool", "message_count", "relevance_score",
	"created_at", "updated_at", "snippet", "keyword_matches", "relevance_analysis",
}

// Lightweight returns a copy that marshals as the seven-field projection:
// id, title, source_tool, message_count, relevance_score, created_at, snippet.
func (c Conversation) Lightweight() Conversation {
	c.lightweight = true
	return c
}

// IsLightweight reports whether the seven-field projection is active.
func (c Conversation) IsLightweight() bool {
	return c.lightweight
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	if c.lightweight {
		return json.Marshal(struct {
			ID             string  `json:"id"`
			Title          string  `json:"title"`
			SourceTool     string  `json:"source_tool"`
			MessageCount   int     `json:"message_count"`
			RelevanceScore float64 `json:"relevance_score"`
			CreatedAt      string  `json:"created_at"`
			Snippet        string  `json:"snippet"`
		}{c.ID, c.Title, c.SourceTool, c.MessageCount, c.RelevanceScore, c.CreatedAt, c.Snippet})
	}

	m := map[string]any{
		"id":              c.ID,
		"title":           c.Title,
		"source_tool":     c.SourceTool,
		"message_count":   c.MessageCount,
		"relevance_score": c.RelevanceScore,
	}
	if c.CreatedAt != "" {
		m["created_at"] = c.CreatedAt
	}
	if c.UpdatedAt != "" {
		m["updated_at"] = c.UpdatedAt
	}
	if c.Snippet != "" {
		m["snippet"] = c.Snippet
	}
	if c.KeywordMatches != nil {
		m["keyword_matches"] = c.KeywordMatches
	}
	if c.Analysis != nil {
		m["relevance_analysis"] = c.Analysis
	}
	for key, value := range c.Extra {
		if _, taken := m[key]; !taken {
			m[key] = value
		}
	}
	return json.Marshal(m)
}

func (c *Conversation) UnmarshalJSON(data []byte) error {
	type alias Conversation
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range conversationKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}

	*c = Conversation(a)
	return nil
}
