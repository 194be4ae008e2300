package render

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

type renderRequest struct {
	Source string `json:"source"`
	Theme  string `json:"theme,omitempty"`
}

// RegisterRoutes mounts POST /api/render. Requests without a theme use
// current().
func RegisterRoutes(r chi.Router, engine Engine, current func() theme.Theme) {
	r.Post("/api/render", handleRender(engine, current))
}

func handleRender(engine Engine, current func() theme.Theme) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		t, ok := theme.Parse(req.Theme)
		if !ok {
			t = current()
		}

		w.Header().Set("Content-Type", "application/json")
		svg, err := engine.Render(r.Context(), req.Source, t)
		var syn *SyntaxError
		switch {
		case errors.As(err, &syn):
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": syn.Message})
		case err != nil:
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		default:
			json.NewEncoder(w).Encode(map[string]string{"svg": svg})
		}
	}
}
