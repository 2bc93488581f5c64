package recall

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Field caps applied when a single conversation must fit a tight budget.
const (
	optimizedTitleChars   = 60
	optimizedSnippetChars = 80
	optimizedIDChars      = 40

	maxEstimateDepth = 32
)

// ResponseSize estimates the serialized byte size of a response value. The
// exact JSON length is used when the value serializes; otherwise a structural
// estimate stands in. Never fails.
func ResponseSize(v any) int {
	if b, err := json.Marshal(v); err == nil {
		return len(b)
	}
	return structuralSize(v, 0)
}

func structuralSize(v any, depth int) int {
	if depth > maxEstimateDepth {
		return 0
	}
	switch t := v.(type) {
	case nil:
		return 4
	case string:
		return len(t) + 2
	case bool:
		return 5
	case map[string]any:
		size := 2
		for key, value := range t {
			size += len(key) + 4 + structuralSize(value, depth+1)
		}
		return size
	case []any:
		size := 2
		for _, item := range t {
			size += structuralSize(item, depth+1) + 1
		}
		return size
	case float64, float32, int, int64, int32:
		return 8
	default:
		return len(fmt.Sprintf("%v", t))
	}
}

// OptimizeForSize shrinks a conversation list until its estimated serialized
// size fits targetBytes. Lowest-relevance conversations are dropped first;
// once a single conversation remains, its long string fields are truncated
// instead. A non-empty input never optimizes to empty: the top-scoring
// conversation survives even a budget smaller than one minimal record.
// targetBytes <= 0 disables optimization.
func OptimizeForSize(conversations []Conversation, targetBytes int) []Conversation {
	if targetBytes <= 0 || len(conversations) == 0 {
		return conversations
	}
	if ResponseSize(conversations) <= targetBytes {
		return conversations
	}

	kept := make([]Conversation, len(conversations))
	copy(kept, conversations)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})

	for len(kept) > 1 && ResponseSize(kept) > targetBytes {
		kept = kept[:len(kept)-1]
	}

	if ResponseSize(kept) > targetBytes {
		kept[0] = truncateFields(kept[0])
	}
	return kept
}

func truncateFields(conv Conversation) Conversation {
	conv.Title = truncateRunes(conv.Title, optimizedTitleChars)
	conv.Snippet = truncateRunes(conv.Snippet, optimizedSnippetChars)
	conv.ID = truncateRunes(conv.ID, optimizedIDChars)
	return conv
}

// OptimizeKeywords trims a keyword list to max entries, preferring shorter
// keywords: general terms match more often when only a few keyword slots fit
// the prompt budget. The sort is stable, so equal-length keywords keep their
// original order. Lists within the cap pass through untouched.
func OptimizeKeywords(keywords []string, max int) []string {
	if max < 0 {
		max = 0
	}
	if len(keywords) <= max {
		return keywords
	}

	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) < len(sorted[j])
	})
	return sorted[:max]
}
