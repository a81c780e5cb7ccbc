// Package handler contains the HTTP handlers: HTML pages for people and a
// few JSON endpoints for the profile page's scripts.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path values, form fields, cookies)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules; those live in internal/service.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/cryptonite/profiles/internal/auth"
	"github.com/cryptonite/profiles/internal/model"
	"github.com/cryptonite/profiles/internal/service"
)

// pageNames are the templates under templates/ that render a full page.
// Each is parsed together with base.html and the shared partials.
var pageNames = []string{"login", "signup", "users", "profile", "edit", "error"}

// Renderer executes the page templates.
//
// TEMPLATE COMPOSITION:
// base.html defines the page frame with a {{template "content" .}}
// placeholder, and every page file defines its own "content". Since each
// page redefines "content", every page gets its own template set.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses all pages from fsys, which must contain a templates/
// directory (see web.FS). Parsing happens once at startup.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(fsys,
			"templates/base.html",
			"templates/recent.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// pageData is the data every page template receives. base.html reads
// Title, Viewer and Error; the rest is page-specific.
type pageData struct {
	Title  string
	Viewer *auth.Session
	Error  string

	// login and signup forms
	Username string
	FullName string
	Location string
	Recent   []string

	Users   []model.User
	Profile *service.ProfileView
	IsOwner bool
	Form    *service.EditForm

	// error page
	Status  int
	Message string
}

// Render executes the named page into a buffer first, so a template error
// still produces a clean 500 instead of half a page.
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown page template", slog.String("page", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// newPage starts the page data with the viewer from the request context.
func newPage(r *http.Request, title string) pageData {
	sess, _ := auth.SessionFromContext(r.Context())
	return pageData{Title: title, Viewer: sess}
}
