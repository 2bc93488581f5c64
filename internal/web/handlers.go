package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/errors"
	"github.com/hindsightlabs/hindsight/internal/recall"
	"github.com/hindsightlabs/hindsight/internal/storage"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	cfg      *config.Config
	op       *recall.Op
	cache    *storage.Cache
	renderer *Renderer
}

// HandleDashboard handles GET /dashboard: tool availability, cache state,
// detected keywords, and the effective configuration.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	root := projectRoot(r)
	keywords := h.op.ContextKeywords(recall.Input{ProjectRoot: root})

	tools := make([]ToolCard, 0, len(h.op.Sources))
	for _, src := range h.op.Sources {
		dbs := src.ScanDatabases(r.Context())
		accessible := 0
		for _, db := range dbs {
			if db.IsAccessible {
				accessible++
			}
		}
		tools = append(tools, ToolCard{
			Name:       string(src.Tool()),
			Stores:     len(dbs),
			Accessible: accessible,
		})
	}

	h.renderer.renderPage(w, "dashboard", DashboardPageData{
		PageData: PageData{
			Title:   "Dashboard",
			Version: h.renderer.version,
			Nav:     "dashboard",
		},
		Project:  root,
		Tools:    tools,
		Cache:    h.cache.Describe(root, keywords),
		Keywords: keywords,
		Config: ConfigView{
			MinScore:       h.cfg.Processing.MinScore,
			DefaultLimit:   h.cfg.Processing.DefaultLimit,
			MaxLimit:       h.cfg.Processing.MaxLimit,
			DaysLookback:   h.cfg.Context.DaysLookback,
			MaxKeywords:    h.cfg.Context.MaxKeywords,
			CacheEnabled:   h.cfg.Cache.Enabled,
			CommandEnabled: h.cfg.Command.Enabled,
		},
	})
}

// HandleStores handles GET /stores: every discovered conversation store.
func (h *Handlers) HandleStores(w http.ResponseWriter, r *http.Request) {
	var rows []StoreRow
	for _, src := range h.op.Sources {
		for _, db := range src.ScanDatabases(r.Context()) {
			row := StoreRow{
				Tool:         string(db.ToolType),
				Path:         db.Path,
				SizeBytes:    db.SizeBytes,
				LastModified: db.LastModified,
				Accessible:   db.IsAccessible,
				Error:        db.ErrorMessage,
			}
			if db.ConversationCount != nil {
				row.HasCount = true
				row.Count = *db.ConversationCount
			}
			rows = append(rows, row)
		}
	}

	h.renderer.renderPage(w, "stores", StoresPageData{
		PageData: PageData{
			Title:   "Stores",
			Version: h.renderer.version,
			Nav:     "stores",
		},
		Stores: rows,
		Total:  len(rows),
	})
}

// HandleRecall handles GET /recall: run a recall and show scored results.
// Without a submitted query the page renders the form alone; the recall only
// runs once the form round-trips, so loading the page stays cheap.
func (h *Handlers) HandleRecall(w http.ResponseWriter, r *http.Request) {
	root := projectRoot(r)
	query := r.URL.Query().Get("q")
	toolsParam := r.URL.Query().Get("tools")
	minScoreParam := r.URL.Query().Get("min_score")
	limit := parseIntParam(r, "limit", h.cfg.Processing.DefaultLimit)

	data := RecallPageData{
		PageData: PageData{
			Title:   "Recall",
			Version: h.renderer.version,
			Nav:     "recall",
		},
		Project:  root,
		Query:    query,
		Tools:    toolsParam,
		Limit:    limit,
		MinScore: minScoreParam,
		HasQuery: r.URL.Query().Has("q"),
	}

	if !data.HasQuery {
		h.renderer.renderPage(w, "recall", data)
		return
	}

	in := recall.Input{
		ProjectRoot: root,
		Tools:       splitList(toolsParam),
		Keywords:    splitTerms(query),
		Limit:       limit,
		Detailed:    parseBoolParam(r, "detailed"),
	}
	if v, err := strconv.ParseFloat(minScoreParam, 64); err == nil {
		in.MinScore = &v
	}

	data.Output = h.op.Recall(r.Context(), in)
	h.renderer.renderPage(w, "recall", data)
}

// HandleConversation handles GET /conversations/{id}: full detail for one
// conversation. The recall is re-run with the score floor removed so the
// conversation is found regardless of how it scored on the results page.
func (h *Handlers) HandleConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("conversation ID is required"))
		return
	}

	root := projectRoot(r)
	query := r.URL.Query().Get("q")

	noFloor := 0.0
	in := recall.Input{
		ProjectRoot: root,
		Keywords:    splitTerms(query),
		Limit:       h.cfg.Processing.MaxLimit,
		MinScore:    &noFloor,
		Full:        true,
		Detailed:    true,
	}

	out := h.op.Recall(r.Context(), in)

	var conv *recall.Conversation
	for i := range out.Conversations {
		if out.Conversations[i].ID == id {
			conv = &out.Conversations[i]
			break
		}
	}
	if conv == nil {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}

	h.renderer.renderPage(w, "conversation", ConversationPageData{
		PageData: PageData{
			Title:   conv.Title,
			Version: h.renderer.version,
			Nav:     "recall",
		},
		Conversation:    *conv,
		RenderedSnippet: renderMarkdown(conv.Snippet),
		Extras:          extraRows(conv.Extra),
		Project:         root,
		Query:           query,
	})
}

// HandleCacheClear handles POST /cache/clear: drop the cached scan.
func (h *Handlers) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{"cleared": true})
		return
	}

	// Default: redirect back to the dashboard
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// projectRoot resolves the project root from the request, falling back to the
// directory the server runs in.
func projectRoot(r *http.Request) string {
	if root := r.URL.Query().Get("project"); root != "" {
		return root
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// splitTerms splits a free-form query into keywords on commas and whitespace.
func splitTerms(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// splitList splits a comma-separated parameter into trimmed, non-empty items.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// extraRows flattens the tool-specific extension fields into sorted rows.
// Non-string values render as compact JSON.
func extraRows(extra map[string]any) []ExtraRow {
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]ExtraRow, 0, len(keys))
	for _, k := range keys {
		var value string
		switch v := extra[k].(type) {
		case string:
			value = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				value = fmt.Sprintf("%v", v)
			} else {
				value = string(b)
			}
		}
		rows = append(rows, ExtraRow{Key: k, Value: value})
	}
	return rows
}
