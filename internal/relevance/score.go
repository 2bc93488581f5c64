// Package relevance scores conversations against the current project context.
// The composite score combines four independently capped sub-scores: keyword
// matches, file references, recency, and a conversation-type bonus. Scoring is
// a pure pipeline over one conversation at a time; nothing here mutates its
// inputs.
package relevance

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxScore caps the composite relevance score.
	MaxScore = 5.0

	// keywordLengthFactor converts keyword length into score: longer, more
	// specific terms score more per match than generic short words.
	keywordLengthFactor = 0.01

	maxKeywordMatches = 8
	maxFileReferences = 5
)

// fileRefPatterns recognize file-path-like substrings: names carrying a known
// source/doc/config extension, and slash-qualified paths.
var fileRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[\w./-]*\w\.(?:go|py|js|jsx|ts|tsx|java|rb|rs|c|cc|cpp|h|hpp|cs|swift|kt|php|sh|sql|md|rst|txt|json|yaml|yml|toml|ini|env)\b`),
	regexp.MustCompile(`\b\w[\w.-]*(?:/[\w.-]+)+\b`),
}

// Analysis describes how a conversation scored.
type Analysis struct {
	ConversationType string     `json:"conversation_type"`
	KeywordMatches   []string   `json:"keyword_matches"`
	FileReferences   []string   `json:"file_references"`
	Breakdown        *Breakdown `json:"score_breakdown,omitempty"`
}

// Breakdown carries the raw sub-scores, included only on request.
type Breakdown struct {
	KeywordScore       float64 `json:"keyword_score"`
	FileReferenceScore float64 `json:"file_reference_score"`
	RecencyScore       float64 `json:"recency_score"`
	TypeBonus          float64 `json:"type_bonus"`
}

// Analyze is the one scoring entry point that never fails: a nil, erroring, or
// panicking weights source, or any other internal fault, yields (0.0, general)
// instead of propagating. The sub-scorers below do not share that guarantee;
// callers invoking them directly resolve weights themselves and handle the
// error. content is the extracted conversation text; metadata supplies the
// session timestamp; detailed adds the sub-score breakdown to the analysis.
func Analyze(content string, keywords []string, metadata map[string]any, detailed bool, src Source) (score float64, analysis *Analysis) {
	defer func() {
		if recover() != nil {
			score, analysis = 0, emptyAnalysis()
		}
	}()

	if strings.TrimSpace(content) == "" {
		return 0, emptyAnalysis()
	}

	w, err := ResolveWeights(src)
	if err != nil {
		return 0, emptyAnalysis()
	}

	keywordScore, matches := ScoreKeywords(content, keywords, w)
	fileScore, refs := ScoreFileReferences(content, w)
	recencyScore := ScoreRecency(metadata, w)

	conversationType := Classify(content, matches, refs)
	bonus := w.TypeBonuses[conversationType]

	total := keywordScore*w.KeywordMatch +
		recencyScore*w.Recency +
		fileScore*w.FileReference +
		bonus*w.TypeBonusWeight
	if total > MaxScore {
		total = MaxScore
	}

	analysis = &Analysis{
		ConversationType: conversationType,
		KeywordMatches:   matches,
		FileReferences:   refs,
	}
	if detailed {
		analysis.Breakdown = &Breakdown{
			KeywordScore:       keywordScore,
			FileReferenceScore: fileScore,
			RecencyScore:       recencyScore,
			TypeBonus:          bonus,
		}
	}
	return total, analysis
}

// ScoreKeywords accumulates length-weighted increments for every keyword found
// in the content (case-insensitive substring match), capped at 1.0. The
// returned match list keeps keyword-list order and at most 8 entries; the
// score still counts matches beyond the list cap.
func ScoreKeywords(content string, keywords []string, w Weights) (float64, []string) {
	matches := []string{}
	if content == "" || len(keywords) == 0 {
		return 0, matches
	}

	lower := strings.ToLower(content)
	var score float64
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(keyword)) {
			continue
		}
		score += float64(utf8.RuneCountInString(keyword)) * w.KeywordWeight * keywordLengthFactor
		if len(matches) < maxKeywordMatches {
			matches = append(matches, keyword)
		}
	}
	if score > 1 {
		score = 1
	}
	return score, matches
}

// ScoreFileReferences adds FileReferenceScore per pattern match, capped at
// 1.0. The reference list keeps at most 5 entries; the score counts every
// match.
func ScoreFileReferences(content string, w Weights) (float64, []string) {
	refs := []string{}
	if content == "" {
		return 0, refs
	}

	var score float64
	for _, pattern := range fileRefPatterns {
		for _, match := range pattern.FindAllString(content, -1) {
			score += w.FileReferenceScore
			if len(refs) < maxFileReferences {
				refs = append(refs, match)
			}
		}
	}
	if score > 1 {
		score = 1
	}
	return score, refs
}

// ScoreRecency maps the session timestamp's age in whole days onto the
// threshold buckets. A missing or unparseable timestamp scores 0.0; recency is
// best effort, never an error.
func ScoreRecency(metadata map[string]any, w Weights) float64 {
	t, ok := SessionTime(metadata)
	if !ok {
		return 0
	}

	days := int(time.Since(t).Hours() / 24)
	switch {
	case days <= 1:
		return w.RecencyThresholds.Days1
	case days <= 7:
		return w.RecencyThresholds.Days7
	case days <= 30:
		return w.RecencyThresholds.Days30
	case days <= 90:
		return w.RecencyThresholds.Days90
	default:
		return w.RecencyThresholds.Default
	}
}

func emptyAnalysis() *Analysis {
	return &Analysis{
		ConversationType: TypeGeneral,
		KeywordMatches:   []string{},
		FileReferences:   []string{},
	}
}
