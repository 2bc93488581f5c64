// Package project derives context keywords from a project checkout: the
// directory name, build manifests, marker files, dominant source languages,
// the git branch, and the first README heading. Detection is best-effort;
// unreadable or absent inputs contribute nothing.
package project

import (
	"bufio"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/logging"
)

const (
	// maxWalkDepth bounds the language-census walk below the project root.
	maxWalkDepth = 2
	// maxWalkEntries caps visited entries so a huge checkout cannot stall a
	// recall call.
	maxWalkEntries = 512
	// maxHeadingKeywords caps tokens taken from a README heading.
	maxHeadingKeywords = 4
	// maxLanguages caps how many dominant languages become keywords.
	maxLanguages = 2
)

// skipDirs are never descended into during the language census.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

// markerFiles map well-known files at the project root to technology
// keywords. Curated keywords bypass the minimum-length filter.
var markerFiles = []struct {
	name    string
	keyword string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"package.json", "javascript"},
	{"tsconfig.json", "typescript"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"Gemfile", "ruby"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"Dockerfile", "docker"},
	{"docker-compose.yml", "docker"},
	{"Makefile", "make"},
}

// extLanguages names the language for a source extension. Only extensions
// also present in the configured code set are counted.
var extLanguages = map[string]string{
	"go":    "go",
	"py":    "python",
	"js":    "javascript",
	"jsx":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"rs":    "rust",
	"rb":    "ruby",
	"java":  "java",
	"kt":    "kotlin",
	"swift": "swift",
	"cs":    "csharp",
	"php":   "php",
	"c":     "c",
	"h":     "c",
	"cc":    "cpp",
	"cpp":   "cpp",
	"hpp":   "cpp",
	"sh":    "shell",
	"sql":   "sql",
}

// readmeNames are checked in order for a first-level heading.
var readmeNames = []string{"README.md", "CLAUDE.md", "README"}

// Detector derives context keywords for project roots.
type Detector struct {
	cfg    *config.Config
	logger *log.Logger
}

// NewDetector returns a Detector. A nil config means defaults.
func NewDetector(cfg *config.Config, logger *log.Logger) *Detector {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Keywords returns detected keywords for root, most identifying first:
// directory-name tokens, manifest names, technology markers, dominant
// languages, branch tokens, then README heading tokens. The caller is
// expected to merge, deduplicate, and cap the result.
func (d *Detector) Keywords(root string) []string {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil
		}
		root = wd
	}

	minLen := d.cfg.Context.MinKeywordLength
	seen := map[string]bool{}
	var keywords []string
	add := func(applyMinLen bool, words ...string) {
		for _, word := range words {
			word = strings.ToLower(strings.TrimSpace(word))
			if word == "" || seen[word] {
				continue
			}
			if applyMinLen && len(word) < minLen {
				continue
			}
			seen[word] = true
			keywords = append(keywords, word)
		}
	}

	add(true, nameTokens(filepath.Base(root))...)
	if tail := moduleTail(root); tail != "" {
		add(true, tail)
		add(true, nameTokens(tail)...)
	}
	if name := packageName(root); name != "" {
		add(true, name)
		add(true, nameTokens(name)...)
	}
	for _, marker := range markerFiles {
		if _, err := os.Stat(filepath.Join(root, marker.name)); err == nil {
			add(false, marker.keyword)
		}
	}
	add(false, d.languages(root)...)
	if branch := GitBranch(root); branch != "" && branch != "main" && branch != "master" {
		add(true, nameTokens(branch)...)
	}
	add(true, headingTokens(root)...)

	d.logger.Debug("project keywords detected", "root", root, "count", len(keywords))
	return keywords
}

// GitBranch returns the checked-out branch from .git/HEAD, or "" for a
// missing repository or a detached head.
func GitBranch(root string) string {
	data, err := os.ReadFile(filepath.Join(root, ".git", "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	const prefix = "ref: refs/heads/"
	if !strings.HasPrefix(head, prefix) {
		return ""
	}
	return strings.TrimPrefix(head, prefix)
}

// languages counts code files by extension below root and returns the most
// common language names, ties broken alphabetically.
func (d *Detector) languages(root string) []string {
	codeExts := map[string]bool{}
	for _, ext := range d.cfg.FileExtensions.Code {
		codeExts[strings.TrimPrefix(strings.TrimSpace(ext), ".")] = true
	}

	counts := map[string]int{}
	remaining := maxWalkEntries
	filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if remaining--; remaining < 0 {
			return fs.SkipAll
		}
		if entry.IsDir() {
			if path == root {
				return nil
			}
			name := entry.Name()
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			if rel, err := filepath.Rel(root, path); err == nil &&
				strings.Count(rel, string(os.PathSeparator)) >= maxWalkDepth {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(entry.Name()), ".")
		if !codeExts[ext] {
			return nil
		}
		if lang, ok := extLanguages[ext]; ok {
			counts[lang]++
		}
		return nil
	})

	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	if len(langs) > maxLanguages {
		langs = langs[:maxLanguages]
	}
	return langs
}

// moduleTail returns the last path segment of the go.mod module directive.
func moduleTail(root string) string {
	file, err := os.Open(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if module, ok := strings.CutPrefix(line, "module "); ok {
			module = strings.TrimSpace(module)
			if i := strings.LastIndex(module, "/"); i >= 0 {
				module = module[i+1:]
			}
			return module
		}
	}
	return ""
}

// packageName returns the package.json name with any scope prefix removed.
func packageName(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return ""
	}
	var manifest struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ""
	}
	name := manifest.Name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// headingTokens returns tokens from the first level-one heading in the first
// readable README-style file.
func headingTokens(root string) []string {
	for _, name := range readmeNames {
		file, err := os.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		tokens := firstHeading(file)
		file.Close()
		if len(tokens) > 0 {
			return tokens
		}
	}
	return nil
}

func firstHeading(file *os.File) []string {
	const maxLines = 40

	scanner := bufio.NewScanner(file)
	for lines := 0; scanner.Scan() && lines < maxLines; lines++ {
		line := strings.TrimSpace(scanner.Text())
		heading, ok := strings.CutPrefix(line, "# ")
		if !ok {
			continue
		}
		var tokens []string
		for _, field := range strings.Fields(heading) {
			token := strings.Trim(field, "`*_:,.!?()[]{}#\"'")
			if token == "" {
				continue
			}
			tokens = append(tokens, token)
			if len(tokens) == maxHeadingKeywords {
				break
			}
		}
		return tokens
	}
	return nil
}

// nameTokens splits an identifier-like name on separators, lowercased.
func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' ' || r == '/'
	})
}
