// Package view renders the HTML pages and carries flash messages between
// requests.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-auction/internal/form"
	"github.com/iliyamo/lot-auction/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages lists every renderable page; each is parsed together with the layout.
var Pages = []string{
	"home", "login", "register", "profile", "rules",
	"saved_lots", "create_lot", "view_lot",
}

// Page is the data passed to every template.  Handlers fill Title, User and
// Data; the renderer fills Flashes and CSRF.
type Page struct {
	Title   string
	User    *model.User
	Flashes []Flash
	CSRF    string
	Errors  form.Errors
	Values  any
	Data    any
}

// Renderer implements echo.Renderer over html/template.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates once at startup.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(Pages))}
	for _, name := range Pages {
		t, err := template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	if p, ok := data.(*Page); ok {
		p.Flashes = PopFlashes(c)
		if tok, ok := c.Get("csrf").(string); ok {
			p.CSRF = tok
		}
	}
	return t.ExecuteTemplate(w, "layout", data)
}

var funcs = template.FuncMap{
	"price": func(p float64) string { return humanize.FormatFloat("#,###.##", p) },
	"ago":   func(t time.Time) string { return humanize.Time(t) },
	"categories": func() []model.Category {
		return model.Categories
	},
	"fieldErr": func(errs form.Errors, field string) string { return errs[field] },
}
