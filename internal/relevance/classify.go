package relevance

import "strings"

// Conversation type labels, in classification precedence order.
const (
	TypeDebugging      = "debugging"
	TypeTesting        = "testing"
	TypeArchitecture   = "architecture"
	TypeCodeDiscussion = "code_discussion"
	TypeProblemSolving = "problem_solving"
	TypeDocumentation  = "documentation"
	TypeGeneral        = "general"
)

type termBucket struct {
	conversationType string
	terms            []string
}

// Buckets checked before the code_discussion gate. Earlier buckets pre-empt
// later ones: a conversation mentioning both "bug" and "test" is debugging.
var earlyBuckets = []termBucket{
	{TypeDebugging, []string{"error", "bug", "fix", "debug", "issue", "exception", "traceback", "stack trace", "crash", "fail"}},
	{TypeTesting, []string{"test", "testing", "pytest", "spec", "unit", "integration", "mock", "assert", "coverage"}},
	{TypeArchitecture, []string{"refactor", "architecture", "design", "structure", "pattern", "organize", "restructure", "modular"}},
}

// Buckets checked after the gate.
var lateBuckets = []termBucket{
	{TypeProblemSolving, []string{"how", "help", "problem", "solve", "implement", "create", "build", "make"}},
	{TypeDocumentation, []string{"document", "explain", "describe", "comment", "readme", "documentation", "guide", "tutorial"}},
}

// Classify labels a conversation by case-insensitive substring search over
// ordered term buckets; the first bucket with any hit wins. Between the
// architecture and problem_solving buckets sits a gate: more than 3 keyword
// matches or more than 2 file references classify as code_discussion.
func Classify(content string, keywordMatches, fileReferences []string) string {
	lower := strings.ToLower(content)

	for _, bucket := range earlyBuckets {
		if containsAny(lower, bucket.terms) {
			return bucket.conversationType
		}
	}

	if len(keywordMatches) > 3 || len(fileReferences) > 2 {
		return TypeCodeDiscussion
	}

	for _, bucket := range lateBuckets {
		if containsAny(lower, bucket.terms) {
			return bucket.conversationType
		}
	}

	return TypeGeneral
}

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
