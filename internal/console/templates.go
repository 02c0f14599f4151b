package console

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names, one template set each.
const (
	pageLogin    = "login"
	pageHome     = "home"
	pageProducts = "products"
	pageManage   = "manage"
)

type navItem struct {
	Label  string
	Href   string
	Active bool
}

// layout is the data every page renders with. Page holds the page-specific
// part.
type layout struct {
	Nav   []navItem
	Now   time.Time
	Alert string
	Page  any
}

// pages maps a page name to its template set, each parsed together with
// base.html so that every page can define its own content block.
type pages map[string]*template.Template

func parsePages() (pages, error) {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	out := make(pages)
	for _, name := range []string{pageLogin, pageHome, pageProducts, pageManage} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, errors.Wrapf(err, "parse page %s", name)
		}
		out[name] = t
	}
	return out, nil
}

// render executes the page into a buffer first so that a template error
// still produces a clean 500.
func (p pages) render(w http.ResponseWriter, status int, name string, data layout) error {
	t, ok := p[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return errors.Wrapf(err, "render %s", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}

func navigation(active string) []navItem {
	items := []navItem{
		{Label: "Home", Href: "/"},
		{Label: "Product list", Href: "/products"},
		{Label: "Product maintenance", Href: "/products/manage"},
	}
	for i := range items {
		items[i].Active = items[i].Href == active
	}
	return items
}
