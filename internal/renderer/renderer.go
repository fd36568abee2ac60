package renderer

import (
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/damacus/dataset-explorer/internal/explorer"
	"github.com/labstack/echo/v4"
)

//go:embed views
var views embed.FS

// TemplateRenderer implements echo.Renderer
type TemplateRenderer struct {
	Templates map[string]*template.Template
}

// New creates a new TemplateRenderer with pre-parsed templates
func New() *TemplateRenderer {
	r := &TemplateRenderer{
		Templates: make(map[string]*template.Template),
	}
	r.parseTemplates()
	return r
}

var funcs = template.FuncMap{
	"levelClass": levelClass,
}

func (t *TemplateRenderer) parseTemplates() {
	// Pages carry the layout and the results partial they embed
	parse := func(name, pageFile string) {
		t.Templates[name] = template.Must(template.New(name).Funcs(funcs).ParseFS(views,
			"views/layouts/base.html",
			"views/partials/results.html",
			"views/pages/"+pageFile,
		))
	}

	parse("explorer", "explorer.html")

	// Partials
	t.Templates["explore_results"] = template.Must(template.New("explore_results").Funcs(funcs).ParseFS(views, "views/partials/results.html"))
}

// selfExecutingTemplates lists templates that execute their own named block instead of "base"
var selfExecutingTemplates = map[string]bool{
	"explore_results": true,
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.Templates[name]
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "Template not found: "+name)
	}

	// Templates that define their own named block execute that block directly
	if selfExecutingTemplates[name] {
		return tmpl.ExecuteTemplate(w, name, data)
	}
	// All other templates (pages with layout) execute the "base" block
	return tmpl.ExecuteTemplate(w, "base", data)
}

// levelClass maps a notice level to its alert styling
func levelClass(level explorer.Level) string {
	switch level {
	case explorer.LevelSuccess:
		return "bg-green-50 text-green-800 border-green-200"
	case explorer.LevelWarning:
		return "bg-yellow-50 text-yellow-800 border-yellow-200"
	case explorer.LevelError:
		return "bg-red-50 text-red-800 border-red-200"
	default:
		return "bg-blue-50 text-blue-800 border-blue-200"
	}
}
