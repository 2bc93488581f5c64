// Package storage persists the most recent standardized scan between recall
// calls. The cache is advisory: a miss or a failed save only costs a rescan,
// and every validation ambiguity resolves to "invalid" rather than serving
// stale or corrupt data. It is never the source of truth and is always safe
// to delete.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/logging"
	"github.com/hindsightlabs/hindsight/internal/recall"
)

const (
	dataFileName = "conversations.json"
	metaFileName = "conversations.meta.json"

	// hashChars is the length of the project hash kept in the metadata
	// file. Enough to distinguish projects; not a security boundary.
	hashChars = 16
)

// metadata is the sibling file that stamps a cache pair. The data file is
// written first and this file last, so a pair missing its metadata is never
// observable as valid.
type metadata struct {
	Timestamp   float64 `json:"timestamp"`
	ProjectHash string  `json:"project_hash"`
}

// Status describes the on-disk cache for diagnostics.
type Status struct {
	Dir       string `json:"dir"`
	Present   bool   `json:"present"`
	SizeBytes int64  `json:"size_bytes"`
	SavedAt   string `json:"saved_at,omitempty"`
	Valid     bool   `json:"valid"`
}

// Cache implements recall.Store over a pair of JSON files in the configured
// cache directory.
type Cache struct {
	dir              string
	ttl              time.Duration
	maxSizeBytes     int64
	minConversations int
	logger           *log.Logger
}

// New returns a Cache rooted at the configured cache directory.
func New(cfg *config.Config, logger *log.Logger) *Cache {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		dir:              cfg.CacheDir(),
		ttl:              time.Duration(cfg.Cache.TTLHours * float64(time.Hour)),
		maxSizeBytes:     int64(cfg.Cache.MaxSizeMB) * 1024 * 1024,
		minConversations: cfg.Cache.MinConversations,
		logger:           logger,
	}
}

// ProjectHash derives the cache key for a project: root path, sorted keyword
// list, and the content of .git/HEAD when present, so the cache invalidates
// on branch switches and keyword changes.
func ProjectHash(projectRoot string, keywords []string) string {
	sorted := append([]string(nil), keywords...)
	sort.Strings(sorted)

	h := sha256.New()
	io.WriteString(h, projectRoot)
	for _, keyword := range sorted {
		io.WriteString(h, "\x00")
		io.WriteString(h, keyword)
	}
	if head, err := os.ReadFile(filepath.Join(projectRoot, ".git", "HEAD")); err == nil {
		io.WriteString(h, "\x00")
		h.Write(head)
	}
	return hex.EncodeToString(h.Sum(nil))[:hashChars]
}

// Load implements recall.Store. It returns false unless the pair validates
// and the data file decodes cleanly.
func (c *Cache) Load(projectRoot string, keywords []string) (*recall.CachedScan, bool) {
	if reason := c.validate(projectRoot, keywords); reason != "" {
		c.logger.Debug("conversation cache invalid", "reason", reason)
		return nil, false
	}

	data, err := os.ReadFile(c.dataPath())
	if err != nil {
		c.logger.Debug("conversation cache unreadable", "err", err)
		return nil, false
	}
	var cached recall.CachedScan
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Debug("conversation cache corrupt", "err", err)
		return nil, false
	}
	return &cached, true
}

// Save implements recall.Store. Scans below the configured minimum are not
// worth caching and are rejected. Write failures are tolerated: the previous
// pair stays in place and false is returned.
func (c *Cache) Save(projectRoot string, keywords []string, data *recall.CachedScan) bool {
	if data == nil || len(data.Conversations) < c.minConversations {
		count := 0
		if data != nil {
			count = len(data.Conversations)
		}
		c.logger.Debug("scan too small to cache", "count", count, "min", c.minConversations)
		return false
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		c.logger.Warn("creating cache directory failed", "dir", c.dir, "err", err)
		return false
	}

	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("encoding conversation cache failed", "err", err)
		return false
	}
	if err := writeFileAtomic(c.dataPath(), payload); err != nil {
		c.logger.Warn("writing conversation cache failed", "err", err)
		return false
	}

	meta, err := json.Marshal(metadata{
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
		ProjectHash: ProjectHash(projectRoot, keywords),
	})
	if err != nil {
		c.logger.Warn("encoding cache metadata failed", "err", err)
		return false
	}
	if err := writeFileAtomic(c.metaPath(), meta); err != nil {
		c.logger.Warn("writing cache metadata failed", "err", err)
		return false
	}
	return true
}

// Valid reports whether the on-disk pair would be served for this project and
// keyword set.
func (c *Cache) Valid(projectRoot string, keywords []string) bool {
	return c.validate(projectRoot, keywords) == ""
}

// Clear removes the cache pair. Metadata goes first so a partial clear is
// never observable as valid. Missing files are not an error.
func (c *Cache) Clear() error {
	for _, path := range []string{c.metaPath(), c.dataPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Describe reports the cache state for the status surfaces.
func (c *Cache) Describe(projectRoot string, keywords []string) Status {
	status := Status{Dir: c.dir}

	info, err := os.Stat(c.dataPath())
	if err != nil {
		return status
	}
	status.Present = true
	status.SizeBytes = info.Size()
	if meta, err := c.readMetadata(); err == nil && meta.Timestamp > 0 {
		sec := int64(meta.Timestamp)
		nsec := int64((meta.Timestamp - float64(sec)) * float64(time.Second))
		status.SavedAt = time.Unix(sec, nsec).UTC().Format(time.RFC3339)
	}
	status.Valid = c.Valid(projectRoot, keywords)
	return status
}

// validate is the fail-closed gate: any missing file, oversized data file,
// unreadable metadata, expired timestamp, or hash mismatch yields a non-empty
// reason.
func (c *Cache) validate(projectRoot string, keywords []string) string {
	info, err := os.Stat(c.dataPath())
	if err != nil {
		return "data file missing"
	}
	if info.Size() > c.maxSizeBytes {
		return "data file over size ceiling"
	}

	meta, err := c.readMetadata()
	if err != nil {
		if os.IsNotExist(err) {
			return "metadata file missing"
		}
		return "metadata unreadable"
	}
	if age := time.Since(floatUnix(meta.Timestamp)); age > c.ttl {
		return "expired"
	}
	if meta.ProjectHash != ProjectHash(projectRoot, keywords) {
		return "project changed"
	}
	return ""
}

func (c *Cache) readMetadata() (metadata, error) {
	data, err := os.ReadFile(c.metaPath())
	if err != nil {
		return metadata{}, err
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return metadata{}, err
	}
	return meta, nil
}

func (c *Cache) dataPath() string { return filepath.Join(c.dir, dataFileName) }
func (c *Cache) metaPath() string { return filepath.Join(c.dir, metaFileName) }

// floatUnix converts the stored epoch-seconds float back to a time.
func floatUnix(seconds float64) time.Time {
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// writeFileAtomic writes to a randomized temp name in the target directory
// and renames into place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return err
	}
	tmp := path + "." + hex.EncodeToString(suffix) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
