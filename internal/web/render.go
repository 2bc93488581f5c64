package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hindsightlabs/hindsight/internal/errors"
	"github.com/hindsightlabs/hindsight/internal/recall"
	"github.com/hindsightlabs/hindsight/internal/storage"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "dashboard", "stores", "recall"
}

// ToolCard summarizes one tool's discovered stores for the dashboard.
type ToolCard struct {
	Name       string
	Stores     int
	Accessible int
}

// ConfigView is the configuration subset shown on the dashboard.
type ConfigView struct {
	MinScore       float64
	DefaultLimit   int
	MaxLimit       int
	DaysLookback   int
	MaxKeywords    int
	CacheEnabled   bool
	CommandEnabled bool
}

// DashboardPageData is the template data for the dashboard page.
type DashboardPageData struct {
	PageData
	Project  string
	Tools    []ToolCard
	Cache    storage.Status
	Keywords []string
	Config   ConfigView
}

// StoreRow is one discovered conversation store in the stores table.
type StoreRow struct {
	Tool         string
	Path         string
	SizeBytes    int64
	LastModified time.Time
	HasCount     bool
	Count        int
	Accessible   bool
	Error        string
}

// StoresPageData is the template data for the stores page.
type StoresPageData struct {
	PageData
	Stores []StoreRow
	Total  int
}

// RecallPageData is the template data for the recall page.
type RecallPageData struct {
	PageData
	Project  string
	Query    string
	Tools    string
	Limit    int
	MinScore string
	HasQuery bool
	Output   recall.Output
}

// ExtraRow is one tool-specific extension field on the conversation page.
type ExtraRow struct {
	Key   string
	Value string
}

// ConversationPageData is the template data for the conversation detail page.
type ConversationPageData struct {
	PageData
	Conversation    recall.Conversation
	RenderedSnippet template.HTML
	Extras          []ExtraRow
	Project         string
	Query           string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"join":        strings.Join,
		"formatTime":  formatTime,
		"formatBytes": formatBytes,
		"score":       func(f float64) string { return fmt.Sprintf("%.2f", f) },
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"dashboard":    "dashboard.html",
		"stores":       "stores.html",
		"recall":       "recall.html",
		"conversation": "conversation.html",
		"error":        "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP
// status code. Output is buffered so a template failure never emits a torn page.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var rErr *errors.RecallError
	if !stderrors.As(err, &rErr) {
		rErr = errors.NewInternal(err)
	}

	status := rErr.Status
	message := rErr.Message

	// JSON request
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    string(rErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark. Goldmark
// escapes raw HTML in the source, so the result is safe to embed.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a time as "2006-01-02 15:04" UTC, or "n/a" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// formatBytes formats a byte count with a human-readable unit.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
