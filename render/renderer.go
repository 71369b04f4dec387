// Package render serves the server-rendered storefront pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"
	"petshop/i18n"
	"petshop/mappers"
	"petshop/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page is what every template receives. Path is the request path without
// the language prefix, used by the language switcher.
type Page struct {
	L         *i18n.Localizer
	Lang      string
	OtherLang string
	Path      string
	User      *model.User
	Title     string
	Data      any
}

// PaymentMethods lists the methods offered at checkout.
func (p *Page) PaymentMethods() []string { return model.PaymentMethods }

// Card is the input of the product-card partial.
type Card struct {
	L       *i18n.Localizer
	Lang    string
	Product mappers.ProductView
}

func (p *Page) Card(v mappers.ProductView) Card {
	return Card{L: p.L, Lang: p.Lang, Product: v}
}

// Renderer holds one parsed template set per page, each made of the layout
// plus the page's "content" block.
type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.ParseFS(templateFS, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes the page into a buffer first so a template error becomes a
// clean 500 instead of half a page.
func (rr *Renderer) Render(w http.ResponseWriter, status int, name string, p *Page) {
	t, ok := rr.pages[name]
	if !ok {
		zap.L().Error("unknown page template", zap.String("page", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		zap.L().Error("failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// StaticHandler serves the embedded assets under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
