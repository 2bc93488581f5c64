package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration. All sections have working defaults;
// a missing config file is not an error.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file"`

	Weights        WeightsConfig     `yaml:"weights" json:"weights"`
	Context        ContextConfig     `yaml:"context" json:"context"`
	Processing     ProcessingConfig  `yaml:"processing" json:"processing"`
	FileExtensions FileExtensions    `yaml:"file_extensions" json:"file_extensions"`
	Directories    DirectoriesConfig `yaml:"directories" json:"directories"`
	Cache          CacheConfig       `yaml:"cache" json:"cache"`
	Command        CommandConfig     `yaml:"command" json:"command"`
	Web            WebConfig         `yaml:"web" json:"web"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `yaml:"disabled_tools" json:"disabled_tools,omitempty"`
}

// WeightsConfig nests the scoring weight sections.
type WeightsConfig struct {
	Conversation      ConversationWeights `yaml:"conversation" json:"conversation"`
	RecencyThresholds RecencyThresholds   `yaml:"recency_thresholds" json:"recency_thresholds"`
}

// ConversationWeights holds the composite-score multipliers and bonuses.
type ConversationWeights struct {
	KeywordMatch       float64            `yaml:"keyword_match" json:"keyword_match"`
	KeywordWeight      float64            `yaml:"keyword_weight" json:"keyword_weight"`
	Recency            float64            `yaml:"recency" json:"recency"`
	FileReference      float64            `yaml:"file_reference" json:"file_reference"`
	FileReferenceScore float64            `yaml:"file_reference_score" json:"file_reference_score"`
	TypeBonusWeight    float64            `yaml:"type_bonus_weight" json:"type_bonus_weight"`
	TypeBonuses        map[string]float64 `yaml:"type_bonuses" json:"type_bonuses"`
}

// RecencyThresholds maps conversation age buckets to recency sub-scores.
type RecencyThresholds struct {
	Days1   float64 `yaml:"days_1" json:"days_1"`
	Days7   float64 `yaml:"days_7" json:"days_7"`
	Days30  float64 `yaml:"days_30" json:"days_30"`
	Days90  float64 `yaml:"days_90" json:"days_90"`
	Default float64 `yaml:"default" json:"default"`
}

// ContextConfig controls project context keyword detection.
type ContextConfig struct {
	MaxKeywords      int      `yaml:"max_keywords" json:"max_keywords"`
	MinKeywordLength int      `yaml:"min_keyword_length" json:"min_keyword_length"`
	DaysLookback     int      `yaml:"days_lookback" json:"days_lookback"`
	ExtraKeywords    []string `yaml:"extra_keywords" json:"extra_keywords,omitempty"`
}

// ProcessingConfig controls scan and response-shaping behavior.
type ProcessingConfig struct {
	MinScore             float64 `yaml:"min_score" json:"min_score"`
	DefaultLimit         int     `yaml:"default_limit" json:"default_limit"`
	MaxLimit             int     `yaml:"max_limit" json:"max_limit"`
	ResponseBudgetBytes  int     `yaml:"response_budget_bytes" json:"response_budget_bytes"`
	ScanTimeoutSeconds   int     `yaml:"scan_timeout_seconds" json:"scan_timeout_seconds"`
	SQLiteTimeoutSeconds int     `yaml:"sqlite_timeout_seconds" json:"sqlite_timeout_seconds"`
	MaxContentChars      int     `yaml:"max_content_chars" json:"max_content_chars"`
	MaxRecordsPerStore   int     `yaml:"max_records_per_store" json:"max_records_per_store"`
}

// FileExtensions groups recognized file extensions by category. The full set
// drives file-reference scoring; the code set drives language detection.
type FileExtensions struct {
	Code   []string `yaml:"code" json:"code"`
	Docs   []string `yaml:"docs" json:"docs"`
	Config []string `yaml:"config" json:"config"`
}

// All returns every configured extension across categories, deduplicated.
func (f FileExtensions) All() []string {
	seen := make(map[string]bool)
	var all []string
	for _, group := range [][]string{f.Code, f.Docs, f.Config} {
		for _, ext := range group {
			ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
			if ext != "" && !seen[ext] {
				seen[ext] = true
				all = append(all, ext)
			}
		}
	}
	return all
}

// DirectoriesConfig supplies extra scan roots per tool and the cache location.
// Scan roots listed here are searched in addition to the platform defaults.
type DirectoriesConfig struct {
	Cursor   []string `yaml:"cursor" json:"cursor,omitempty"`
	Claude   []string `yaml:"claude" json:"claude,omitempty"`
	Windsurf []string `yaml:"windsurf" json:"windsurf,omitempty"`
	CacheDir string   `yaml:"cache_dir" json:"cache_dir,omitempty"`
}

// CacheConfig controls the advisory on-disk conversation cache.
type CacheConfig struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	TTLHours         float64 `yaml:"ttl_hours" json:"ttl_hours"`
	MaxSizeMB        int     `yaml:"max_size_mb" json:"max_size_mb"`
	MinConversations int     `yaml:"min_conversations" json:"min_conversations"`
}

// CommandConfig controls the run_command tool. Disabled by default; enabling
// it allows MCP clients to execute arbitrary local commands.
type CommandConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxOutputBytes int  `yaml:"max_output_bytes" json:"max_output_bytes"`
}

// WebConfig controls the debug web UI.
type WebConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		LogFile:  "~/.hindsight/hindsight.log",
		Weights: WeightsConfig{
			Conversation: ConversationWeights{
				KeywordMatch:       1.0,
				KeywordWeight:      1.0,
				Recency:            1.0,
				FileReference:      1.0,
				FileReferenceScore: 0.1,
				TypeBonusWeight:    1.0,
				TypeBonuses: map[string]float64{
					"debugging":       0.25,
					"architecture":    0.2,
					"testing":         0.15,
					"code_discussion": 0.1,
					"problem_solving": 0.1,
					"documentation":   0.05,
					"general":         0.0,
				},
			},
			RecencyThresholds: RecencyThresholds{
				Days1:   1.0,
				Days7:   0.8,
				Days30:  0.5,
				Days90:  0.2,
				Default: 0.1,
			},
		},
		Context: ContextConfig{
			MaxKeywords:      15,
			MinKeywordLength: 3,
			DaysLookback:     30,
		},
		Processing: ProcessingConfig{
			MinScore:             0.5,
			DefaultLimit:         20,
			MaxLimit:             100,
			ResponseBudgetBytes:  50000,
			ScanTimeoutSeconds:   30,
			SQLiteTimeoutSeconds: 2,
			MaxContentChars:      2000,
			MaxRecordsPerStore:   500,
		},
		FileExtensions: FileExtensions{
			Code:   []string{"go", "py", "js", "ts", "tsx", "jsx", "java", "rb", "rs", "c", "cpp", "h", "cs", "swift", "kt", "php", "sh", "sql"},
			Docs:   []string{"md", "rst", "txt"},
			Config: []string{"json", "yaml", "yml", "toml", "ini", "env"},
		},
		Cache: CacheConfig{
			Enabled:          true,
			TTLHours:         24,
			MaxSizeMB:        10,
			MinConversations: 3,
		},
		Command: CommandConfig{
			Enabled:        false,
			TimeoutSeconds: 30,
			MaxOutputBytes: 64 * 1024,
		},
		Web: WebConfig{
			Addr: "127.0.0.1:8722",
		},
	}
}

// BaseDir returns the hindsight base directory (~/.hindsight).
func BaseDir() string {
	return filepath.Join(userHomeDir(), ".hindsight")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(BaseDir(), "config.yaml")
}

// Load loads configuration from path. Returns the default config if the file
// does not exist; a file that exists but fails to parse or validate is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if err := loadInto(cfg, ExpandPath(path)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithProject loads the global config, then overlays the nearest
// .hindsight.yaml found by walking upward from startDir. Sections present in
// the project file take precedence. Either or both files may be missing.
func LoadWithProject(path, startDir string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if err := loadInto(cfg, ExpandPath(path)); err != nil {
		return nil, err
	}
	if projectPath := FindProjectConfig(startDir); projectPath != "" {
		if err := loadInto(cfg, projectPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindProjectConfig walks upward from startDir to find the nearest
// .hindsight.yaml. Returns the path if found, or empty string if not found.
func FindProjectConfig(startDir string) string {
	dir := startDir
	for dir != "" {
		candidate := filepath.Join(dir, ".hindsight.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
	return ""
}

// loadInto overlays the YAML file at path onto cfg. A missing file is a no-op.
func loadInto(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	if c.Context.MaxKeywords <= 0 {
		return errors.New("context.max_keywords must be > 0")
	}
	if c.Context.DaysLookback < 0 {
		return errors.New("context.days_lookback must be >= 0")
	}
	if c.Processing.MinScore < 0 {
		return errors.New("processing.min_score must be >= 0")
	}
	if c.Processing.DefaultLimit <= 0 {
		return errors.New("processing.default_limit must be > 0")
	}
	if c.Processing.MaxLimit < c.Processing.DefaultLimit {
		return errors.New("processing.max_limit must be >= processing.default_limit")
	}
	if c.Processing.ResponseBudgetBytes <= 0 {
		return errors.New("processing.response_budget_bytes must be > 0")
	}
	if c.Processing.ScanTimeoutSeconds <= 0 {
		return errors.New("processing.scan_timeout_seconds must be > 0")
	}
	if c.Processing.SQLiteTimeoutSeconds <= 0 {
		return errors.New("processing.sqlite_timeout_seconds must be > 0")
	}
	if c.Processing.MaxContentChars <= 0 {
		return errors.New("processing.max_content_chars must be > 0")
	}
	if c.Processing.MaxRecordsPerStore <= 0 {
		return errors.New("processing.max_records_per_store must be > 0")
	}
	if c.Cache.TTLHours <= 0 {
		return errors.New("cache.ttl_hours must be > 0")
	}
	if c.Cache.MaxSizeMB <= 0 {
		return errors.New("cache.max_size_mb must be > 0")
	}
	if c.Cache.MinConversations < 0 {
		return errors.New("cache.min_conversations must be >= 0")
	}
	if c.Command.TimeoutSeconds <= 0 {
		return errors.New("command.timeout_seconds must be > 0")
	}
	if c.Command.MaxOutputBytes <= 0 {
		return errors.New("command.max_output_bytes must be > 0")
	}
	return nil
}

// Section returns one named configuration section as a generic mapping. The
// scorer consumes weights through this accessor so it can run against any
// weights-like source. Numeric values come back as float64.
func (c *Config) Section(name string) (map[string]any, error) {
	switch name {
	case "weights":
		return sectionMap(c.Weights)
	case "conversation":
		return sectionMap(c.Weights.Conversation)
	case "recency_thresholds":
		return sectionMap(c.Weights.RecencyThresholds)
	case "context":
		return sectionMap(c.Context)
	case "processing":
		return sectionMap(c.Processing)
	case "file_extensions":
		return sectionMap(c.FileExtensions)
	case "directories":
		return sectionMap(c.Directories)
	case "cache":
		return sectionMap(c.Cache)
	default:
		return nil, fmt.Errorf("unknown config section: %q", name)
	}
}

// sectionMap round-trips a typed section through JSON into a generic map.
func sectionMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// CacheDir returns the advisory cache directory.
func (c *Config) CacheDir() string {
	if c.Directories.CacheDir != "" {
		return ExpandPath(c.Directories.CacheDir)
	}
	return filepath.Join(BaseDir(), "cache")
}

// LogPath returns the expanded log file path.
func (c *Config) LogPath() string {
	return ExpandPath(c.LogFile)
}

// ToolDisabled reports whether an MCP tool name is disabled by configuration.
func (c *Config) ToolDisabled(name string) bool {
	for _, t := range c.DisabledTools {
		if strings.TrimSpace(t) == name {
			return true
		}
	}
	return false
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
