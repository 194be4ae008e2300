package templates

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type templateView struct {
	Template
	Link string `json:"link"`
}

type categoryView struct {
	Category  string         `json:"category"`
	Templates []templateView `json:"templates"`
}

// RegisterRoutes mounts the template gallery API.
func RegisterRoutes(r chi.Router) {
	r.Get("/api/templates", handleList())
}

func handleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats := Search(r.URL.Query().Get("search"))
		out := make([]categoryView, 0, len(cats))
		for _, c := range cats {
			v := categoryView{Category: c.Name}
			for _, t := range c.Templates {
				v.Templates = append(v.Templates, templateView{Template: t, Link: EditorLink(t.Source)})
			}
			out = append(out, v)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}
