package relevance

import (
	"math"
	"strings"
	"testing"
	"time"
)

const floatTolerance = 1e-9

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < floatTolerance
}

func TestScoreKeywords_LengthBias(t *testing.T) {
	content := "the ai architecture discussion"
	w := DefaultWeights()

	short, _ := ScoreKeywords(content, []string{"ai"}, w)
	long, _ := ScoreKeywords(content, []string{"architecture"}, w)

	if short <= 0 || long <= 0 {
		t.Fatalf("scores = %v, %v, want both positive", short, long)
	}
	if long <= short {
		t.Errorf("longer keyword scored %v, shorter %v; want longer > shorter", long, short)
	}
}

func TestScoreKeywords_MatchListCapped(t *testing.T) {
	keywords := []string{"aa", "bb", "cc", "dd", "ee", "ff", "gg", "hh", "ii", "jj", "kk", "ll"}
	content := strings.Join(keywords, " ")

	score, matches := ScoreKeywords(content, keywords, DefaultWeights())

	if len(matches) != maxKeywordMatches {
		t.Fatalf("len(matches) = %d, want %d", len(matches), maxKeywordMatches)
	}
	for i, kw := range keywords[:maxKeywordMatches] {
		if matches[i] != kw {
			t.Errorf("matches[%d] = %q, want %q (keyword-list order)", i, matches[i], kw)
		}
	}
	// All 12 matches contribute to the score even though the list holds 8.
	if want := 12 * 2 * keywordLengthFactor; !closeTo(score, want) {
		t.Errorf("score = %v, want %v", score, want)
	}
}

func TestScoreKeywords_CappedAtOne(t *testing.T) {
	var keywords []string
	for _, r := range "abcdefgh" {
		keywords = append(keywords, strings.Repeat(string(r), 15))
	}
	content := strings.Join(keywords, " ")

	score, _ := ScoreKeywords(content, keywords, DefaultWeights())
	if score != 1.0 {
		t.Errorf("score = %v, want capped 1.0", score)
	}
}

func TestScoreKeywords_CaseInsensitive(t *testing.T) {
	score, matches := ScoreKeywords("Fix the AUTH flow", []string{"auth"}, DefaultWeights())
	if score <= 0 || len(matches) != 1 {
		t.Errorf("ScoreKeywords() = %v, %v, want a match regardless of case", score, matches)
	}
}

func TestScoreKeywords_NoInput(t *testing.T) {
	score, matches := ScoreKeywords("", []string{"auth"}, DefaultWeights())
	if score != 0 {
		t.Errorf("score = %v, want 0", score)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("matches = %v, want empty non-nil list", matches)
	}
}

func TestScoreFileReferences(t *testing.T) {
	w := DefaultWeights()

	t.Run("filenames", func(t *testing.T) {
		score, refs := ScoreFileReferences("update api.py and util.go please", w)
		if !closeTo(score, 0.2) {
			t.Errorf("score = %v, want 0.2", score)
		}
		if len(refs) != 2 || refs[0] != "api.py" || refs[1] != "util.go" {
			t.Errorf("refs = %v, want [api.py util.go]", refs)
		}
	})

	t.Run("reference list capped at five", func(t *testing.T) {
		score, refs := ScoreFileReferences("a1.py b1.py c1.py d1.py e1.py f1.py g1.py", w)
		if len(refs) != maxFileReferences {
			t.Errorf("len(refs) = %d, want %d", len(refs), maxFileReferences)
		}
		// The score still counts all seven matches.
		if !closeTo(score, 0.7) {
			t.Errorf("score = %v, want 0.7", score)
		}
	})

	t.Run("score capped at one", func(t *testing.T) {
		var names []string
		for _, r := range "abcdefghijkl" {
			names = append(names, string(r)+"x.go")
		}
		score, _ := ScoreFileReferences(strings.Join(names, " "), w)
		if score != 1.0 {
			t.Errorf("score = %v, want capped 1.0", score)
		}
	})

	t.Run("path matches both patterns", func(t *testing.T) {
		score, refs := ScoreFileReferences("edit src/auth/token.go now", w)
		if !closeTo(score, 0.2) {
			t.Errorf("score = %v, want 0.2 (extension and path patterns both hit)", score)
		}
		if len(refs) != 2 {
			t.Errorf("refs = %v, want two entries", refs)
		}
	})

	t.Run("plain prose", func(t *testing.T) {
		score, refs := ScoreFileReferences("just words here", w)
		if score != 0 || len(refs) != 0 {
			t.Errorf("ScoreFileReferences() = %v, %v, want zero and empty", score, refs)
		}
	})
}

func TestScoreRecency_Buckets(t *testing.T) {
	w := DefaultWeights()
	now := time.Now()
	seconds := func(t time.Time) float64 { return float64(t.Unix()) }

	tests := []struct {
		name     string
		metadata map[string]any
		want     float64
	}{
		{"two hours ago", map[string]any{"timestamp": seconds(now.Add(-2 * time.Hour))}, 1.0},
		{"36 hours is still day one", map[string]any{"timestamp": seconds(now.Add(-36 * time.Hour))}, 1.0},
		{"three days ago", map[string]any{"timestamp": seconds(now.AddDate(0, 0, -3))}, 0.8},
		{"twenty days ago", map[string]any{"timestamp": seconds(now.AddDate(0, 0, -20))}, 0.5},
		{"sixty days ago", map[string]any{"timestamp": seconds(now.AddDate(0, 0, -60))}, 0.2},
		{"two hundred days ago", map[string]any{"timestamp": seconds(now.AddDate(0, 0, -200))}, 0.1},
		{"cursor millis", map[string]any{"lastUpdatedAt": float64(now.AddDate(0, 0, -3).UnixMilli())}, 0.8},
		{"claude iso", map[string]any{"start_time": now.AddDate(0, 0, -20).UTC().Format(time.RFC3339)}, 0.5},
		{"future timestamp", map[string]any{"timestamp": seconds(now.Add(6 * time.Hour))}, 1.0},
		{"unparseable", map[string]any{"start_time": "not-a-date"}, 0.0},
		{"absent", map[string]any{"id": "x"}, 0.0},
		{"nil metadata", nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreRecency(tt.metadata, w); got != tt.want {
				t.Errorf("ScoreRecency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyze_Composite(t *testing.T) {
	content := "fix the authentication bug in api.py"
	keywords := []string{"authentication", "api"}
	metadata := map[string]any{"lastUpdatedAt": float64(time.Now().UnixMilli())}

	score, analysis := Analyze(content, keywords, metadata, true, nil)

	// keyword 0.17 + recency 1.0 + file 0.1 + debugging bonus 0.25
	if !closeTo(score, 1.52) {
		t.Errorf("score = %v, want 1.52", score)
	}
	if analysis.ConversationType != TypeDebugging {
		t.Errorf("conversation type = %q, want %q", analysis.ConversationType, TypeDebugging)
	}
	if len(analysis.KeywordMatches) != 2 {
		t.Errorf("keyword matches = %v, want both keywords", analysis.KeywordMatches)
	}
	if len(analysis.FileReferences) != 1 || analysis.FileReferences[0] != "api.py" {
		t.Errorf("file references = %v, want [api.py]", analysis.FileReferences)
	}

	if analysis.Breakdown == nil {
		t.Fatal("Breakdown = nil, want sub-scores when detailed")
	}
	if !closeTo(analysis.Breakdown.KeywordScore, 0.17) {
		t.Errorf("keyword sub-score = %v, want 0.17", analysis.Breakdown.KeywordScore)
	}
	if !closeTo(analysis.Breakdown.RecencyScore, 1.0) {
		t.Errorf("recency sub-score = %v, want 1.0", analysis.Breakdown.RecencyScore)
	}
	if !closeTo(analysis.Breakdown.TypeBonus, 0.25) {
		t.Errorf("type bonus = %v, want 0.25", analysis.Breakdown.TypeBonus)
	}
}

func TestAnalyze_NotDetailed(t *testing.T) {
	_, analysis := Analyze("fix the bug", nil, nil, false, nil)
	if analysis.Breakdown != nil {
		t.Errorf("Breakdown = %+v, want nil without detailed analysis", analysis.Breakdown)
	}
}

func TestAnalyze_EmptyContent(t *testing.T) {
	for _, content := range []string{"", "   \n\t "} {
		score, analysis := Analyze(content, []string{"auth"}, map[string]any{"timestamp": float64(time.Now().Unix())}, true, nil)
		if score != 0 {
			t.Errorf("Analyze(%q) score = %v, want 0", content, score)
		}
		if analysis.ConversationType != TypeGeneral {
			t.Errorf("Analyze(%q) type = %q, want general", content, analysis.ConversationType)
		}
		if len(analysis.KeywordMatches) != 0 || len(analysis.FileReferences) != 0 {
			t.Errorf("Analyze(%q) analysis lists not empty: %+v", content, analysis)
		}
		if analysis.Breakdown != nil {
			t.Errorf("Analyze(%q) has a breakdown, want short-circuit without sub-scorers", content)
		}
	}
}

func TestAnalyze_CappedAtMaxScore(t *testing.T) {
	src := &fakeSource{sections: map[string]map[string]any{
		"conversation": {
			"keyword_match":  float64(4),
			"recency":        float64(4),
			"file_reference": float64(4),
		},
		"recency_thresholds": {},
	}}

	content := "fix the authentication bug in api.py"
	metadata := map[string]any{"lastUpdatedAt": float64(time.Now().UnixMilli())}

	score, analysis := Analyze(content, []string{"authentication", "api"}, metadata, true, src)
	if score != MaxScore {
		t.Errorf("score = %v, want capped at %v", score, MaxScore)
	}

	// Sub-scores stay within their own [0, 1] caps regardless of weights.
	b := analysis.Breakdown
	for name, sub := range map[string]float64{
		"keyword": b.KeywordScore,
		"file":    b.FileReferenceScore,
		"recency": b.RecencyScore,
	} {
		if sub < 0 || sub > 1 {
			t.Errorf("%s sub-score = %v, want within [0, 1]", name, sub)
		}
	}
}

func TestAnalyze_SourceErrorSwallowed(t *testing.T) {
	src := &fakeSource{err: errSection}

	score, analysis := Analyze("fix the bug", []string{"bug"}, nil, true, src)
	if score != 0 {
		t.Errorf("score = %v, want 0 on weights failure", score)
	}
	if analysis.ConversationType != TypeGeneral {
		t.Errorf("type = %q, want general on weights failure", analysis.ConversationType)
	}
}

func TestAnalyze_SourcePanicSwallowed(t *testing.T) {
	score, analysis := Analyze("fix the bug", []string{"bug"}, nil, true, panicSource{})
	if score != 0 {
		t.Errorf("score = %v, want 0 when the source panics", score)
	}
	if analysis == nil || analysis.ConversationType != TypeGeneral {
		t.Errorf("analysis = %+v, want general fallback", analysis)
	}
}
