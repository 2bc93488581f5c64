package relevance

// Source supplies scoring configuration as nested section maps. It is
// satisfied by *config.Config; tests provide small fakes. Implementations may
// fail (or panic) on access; ResolveWeights propagates those failures while
// Analyze converts them into a zero result.
type Source interface {
	Section(name string) (map[string]any, error)
}

// Weights holds every knob the scorer consumes, flattened from the
// conversation and recency_thresholds configuration sections.
type Weights struct {
	KeywordMatch       float64
	KeywordWeight      float64
	Recency            float64
	FileReference      float64
	FileReferenceScore float64
	TypeBonusWeight    float64
	TypeBonuses        map[string]float64
	RecencyThresholds  Thresholds
}

// Thresholds maps whole-day age buckets to recency scores.
type Thresholds struct {
	Days1   float64
	Days7   float64
	Days30  float64
	Days90  float64
	Default float64
}

// DefaultWeights returns the built-in weight set used when no configuration
// source is supplied. Callers own the returned value, including the bonus map.
func DefaultWeights() Weights {
	return Weights{
		KeywordMatch:       1.0,
		KeywordWeight:      1.0,
		Recency:            1.0,
		FileReference:      1.0,
		FileReferenceScore: 0.1,
		TypeBonusWeight:    1.0,
		TypeBonuses: map[string]float64{
			TypeDebugging:      0.25,
			TypeArchitecture:   0.2,
			TypeTesting:        0.15,
			TypeCodeDiscussion: 0.1,
			TypeProblemSolving: 0.1,
			TypeDocumentation:  0.05,
			TypeGeneral:        0,
		},
		RecencyThresholds: Thresholds{
			Days1:   1.0,
			Days7:   0.8,
			Days30:  0.5,
			Days90:  0.2,
			Default: 0.1,
		},
	}
}

// ResolveWeights overlays the source's conversation and recency_thresholds
// sections onto the defaults. A nil source yields the defaults. Section errors
// propagate to the caller; Analyze is the error boundary that absorbs them.
func ResolveWeights(src Source) (Weights, error) {
	w := DefaultWeights()
	if src == nil {
		return w, nil
	}

	conv, err := src.Section("conversation")
	if err != nil {
		return Weights{}, err
	}
	floatField(conv, "keyword_match", &w.KeywordMatch)
	floatField(conv, "keyword_weight", &w.KeywordWeight)
	floatField(conv, "recency", &w.Recency)
	floatField(conv, "file_reference", &w.FileReference)
	floatField(conv, "file_reference_score", &w.FileReferenceScore)
	floatField(conv, "type_bonus_weight", &w.TypeBonusWeight)
	if bonuses, ok := conv["type_bonuses"].(map[string]any); ok {
		for name, v := range bonuses {
			if f, ok := v.(float64); ok {
				w.TypeBonuses[name] = f
			}
		}
	}

	thresholds, err := src.Section("recency_thresholds")
	if err != nil {
		return Weights{}, err
	}
	floatField(thresholds, "days_1", &w.RecencyThresholds.Days1)
	floatField(thresholds, "days_7", &w.RecencyThresholds.Days7)
	floatField(thresholds, "days_30", &w.RecencyThresholds.Days30)
	floatField(thresholds, "days_90", &w.RecencyThresholds.Days90)
	floatField(thresholds, "default", &w.RecencyThresholds.Default)

	return w, nil
}

// floatField copies m[key] into dst when present as a float64. Section maps
// are JSON round-tripped, so all numbers arrive as float64.
func floatField(m map[string]any, key string, dst *float64) {
	if f, ok := m[key].(float64); ok {
		*dst = f
	}
}
