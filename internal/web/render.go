package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"movieexplorer/internal/catalog"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pages = []string{"home", "movies", "movie", "people", "person", "error"}

// Page is the data every template receives
type Page struct {
	Title string
	Q     string // current search term, mirrored into the header input
	Data  interface{}
}

type errorData struct {
	Message string
	Back    string
}

var funcs = template.FuncMap{
	"rating": func(avg *float64) string {
		if avg == nil {
			return "N/A"
		}
		return strconv.FormatFloat(*avg, 'f', 1, 64)
	},
	"genres": func(gs []catalog.Genre) string {
		names := make([]string, 0, len(gs))
		for _, g := range gs {
			names = append(names, g.Name)
		}
		return strings.Join(names, ", ")
	},
	"nonzero": func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	},
}

// Renderer executes the embedded page templates inside the shared layout
type Renderer struct {
	templates map[string]*template.Template
	logger    zerolog.Logger
}

// NewRenderer parses every page template
func NewRenderer(logger zerolog.Logger) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template, len(pages)),
		logger:    logger,
	}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.tmpl", "templates/"+name+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render writes page name with status. Output is buffered so a template
// failure still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error().Str("template", name).Msg("unknown template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		r.logger.Error().Err(err).Str("template", name).Msg("render template failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// RenderError writes the error page
func (r *Renderer) RenderError(w http.ResponseWriter, status int, title, message, back string) {
	r.Render(w, status, "error", Page{
		Title: title,
		Data:  errorData{Message: message, Back: back},
	})
}
