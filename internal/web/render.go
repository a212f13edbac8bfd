package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/ops"
	"github.com/hpungsan/muse/internal/wizard"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "wizard", "history"
	Notices []wizard.Notice
	Refresh int // seconds until the page reloads itself, 0 disables
}

// WizardPageData is the template data for the details, capture, processing
// and result pages.
type WizardPageData struct {
	PageData
	View      wizard.View
	Form      creation.Profile
	Styles    []StyleOption
	MaxImages int
	PoemHTML  template.HTML
}

// StyleOption is one entry of the style picker.
type StyleOption struct {
	Value    creation.Style
	Label    string
	Selected bool
}

// HistoryPageData is the template data for the history list.
type HistoryPageData struct {
	PageData
	Items      []creation.Summary
	Pagination ops.Pagination
}

// DetailPageData is the template data for a stored result.
type DetailPageData struct {
	PageData
	Result   *ops.FetchOutput
	PoemHTML template.HTML
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
	logger    *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"imageSrc":   imageSrc,
		"styleLabel": func(s creation.Style) string { return s.Label() },
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"details":    "details.html",
		"capture":    "capture.html",
		"processing": "processing.html",
		"result":     "result.html",
		"history":    "history.html",
		"detail":     "detail.html",
		"error":      "error.html",
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
		logger:    logger,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution error", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var mErr *errors.MuseError
	if !stderrors.As(err, &mErr) {
		mErr = errors.NewInternal(err)
	}

	status := mErr.Status
	message := mErr.Message

	// HTMX request: return HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(mErr.Code),
				"message": message,
				"status":  status,
				"details": mErr.Details,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
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

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// poemMarkdown keeps the poem's line breaks; models answer in markdown.
var poemMarkdown = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// renderPoem converts a poem to HTML. Raw HTML in the poem is not rendered.
func renderPoem(poem string) template.HTML {
	var buf bytes.Buffer
	if err := poemMarkdown.Convert([]byte(poem), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(poem))
	}
	return template.HTML(buf.String())
}

// imageSrc admits image data URIs and https URLs as <img src> values and
// blanks everything else.
func imageSrc(v any) template.URL {
	s := fmt.Sprint(v)
	if strings.HasPrefix(s, "data:image/") || strings.HasPrefix(s, "https://") {
		return template.URL(s)
	}
	return ""
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// styleOptions lists every style with selected marked.
func styleOptions(selected creation.Style) []StyleOption {
	styles := creation.AllStyles()
	out := make([]StyleOption, len(styles))
	for i, s := range styles {
		out[i] = StyleOption{Value: s, Label: s.Label(), Selected: s == selected}
	}
	return out
}
