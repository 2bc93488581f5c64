package recall

import (
	"sort"
	"time"

	"github.com/hindsightlabs/hindsight/internal/relevance"
	"github.com/hindsightlabs/hindsight/internal/scan"
)

// Response modes reported in filtering metadata.
const (
	ModeLightweight = "lightweight"
	ModeFull        = "full"
)

// FilterMetadata describes what filtering did to a result set.
type FilterMetadata struct {
	Mode          string `json:"mode"`
	OriginalCount int    `json:"original_count"`
	FilteredCount int    `json:"filtered_count"`
}

// QuickFilter is the cheap date pre-filter applied before scoring. It keeps
// records whose creation timestamp falls within the lookback window and,
// deliberately fail-open, every record with no parseable timestamp at all.
// daysLookback <= 0 disables the window.
func QuickFilter(records []scan.Record, daysLookback int) []scan.Record {
	if daysLookback <= 0 || len(records) == 0 {
		return records
	}

	cutoff := time.Now().AddDate(0, 0, -daysLookback)
	kept := make([]scan.Record, 0, len(records))
	for _, record := range records {
		t, ok := recordTime(record)
		if ok && t.Before(cutoff) {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}

// recordTime extracts a best-effort creation timestamp from a raw record,
// reusing the scorer's multi-format parsing.
func recordTime(record scan.Record) (time.Time, bool) {
	if t, ok := relevance.SessionTime(record); ok {
		return t, true
	}
	for _, key := range []string{"created_at", "createdAt", "updated_at", "updatedAt"} {
		if v, ok := record[key]; ok && v != nil {
			if t, ok := relevance.ParseTimestamp(v); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ApplyFiltering drops conversations scoring below minScore, sorts the rest
// descending by relevance (stable, ties keep their prior relative order), and
// truncates to limit when positive. The returned metadata reports the given
// response mode and the before/after counts.
func ApplyFiltering(conversations []Conversation, minScore float64, limit int, mode string) ([]Conversation, FilterMetadata) {
	meta := FilterMetadata{Mode: mode, OriginalCount: len(conversations)}

	kept := make([]Conversation, 0, len(conversations))
	for _, conv := range conversations {
		if conv.RelevanceScore >= minScore {
			kept = append(kept, conv)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})

	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	meta.FilteredCount = len(kept)
	return kept, meta
}
