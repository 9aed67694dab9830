package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/R3E-Network/foodapp/internal/dashboard"
	"github.com/R3E-Network/foodapp/internal/model"
	"github.com/R3E-Network/foodapp/internal/probe"
)

//go:embed templates/*.html
var templateFS embed.FS

const placeholderImage = "https://via.placeholder.com/400x300"

type page string

const (
	pageLanding   page = "landing.html"
	pageDashboard page = "dashboard.html"
	pageLoading   page = "loading.html"
)

// pageData is shared by every template.
type pageData struct {
	Title    string
	AdminURL string
	Status   probe.Status
	Alert    string
	Refresh  bool

	// Landing.
	Signup bool
	Name   string
	Email  string

	// Dashboard.
	User         *model.User
	Restaurants  []model.Restaurant
	Loading      bool
	Empty        bool
	EmptyMessage string
	Form         model.RestaurantInput
	Placeholder  string
}

type renderer struct {
	pages map[page]*template.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[page]*template.Template)}
	for _, p := range []page{pageLanding, pageDashboard, pageLoading} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(p))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		r.pages[p] = t
	}
	return r, nil
}

// render executes into a buffer first so a template error never leaves a
// half-written page behind.
func (r *renderer) render(w http.ResponseWriter, status int, p page, data pageData) error {
	var buf bytes.Buffer
	if err := r.pages[p].ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", p, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func boardData(b *dashboard.Board) pageData {
	return pageData{
		Restaurants:  b.Restaurants(),
		Loading:      b.Loading(),
		Empty:        b.Empty(),
		EmptyMessage: dashboard.EmptyMessage,
		Form:         b.Form(),
		Placeholder:  placeholderImage,
	}
}
