package theme

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// State is the JSON view of the manager.
type State struct {
	Theme        Theme  `json:"theme"`
	Explicit     bool   `json:"explicit"`
	MermaidTheme string `json:"mermaidTheme"`
	EditorTheme  string `json:"editorTheme"`
}

// Snapshot returns the JSON view of m.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		Theme:        m.current,
		Explicit:     m.explicit,
		MermaidTheme: m.current.Mermaid(),
		EditorTheme:  m.current.Editor(),
	}
}

// RegisterRoutes mounts the theme API routes.
func RegisterRoutes(r chi.Router, m *Manager) {
	r.Route("/api/theme", func(r chi.Router) {
		r.Get("/", handleGet(m))
		r.Put("/", handleSet(m))
		r.Delete("/", handleClear(m))
		r.Post("/toggle", handleToggle(m))
		r.Post("/system", handleSystem(m))
	})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func decodeTheme(r *http.Request) (Theme, bool) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", false
	}
	return Parse(req.Theme)
}

func writeState(w http.ResponseWriter, m *Manager) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}

func handleGet(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeState(w, m)
	}
}

func handleSet(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := decodeTheme(r)
		if !ok {
			http.Error(w, `{"error":"theme must be light or dark"}`, http.StatusBadRequest)
			return
		}
		if err := m.Set(r.Context(), t); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeState(w, m)
	}
}

func handleClear(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Clear(r.Context()); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeState(w, m)
	}
}

func handleToggle(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := m.Toggle(r.Context()); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeState(w, m)
	}
}

func handleSystem(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := decodeTheme(r)
		if !ok {
			http.Error(w, `{"error":"theme must be light or dark"}`, http.StatusBadRequest)
			return
		}
		m.SystemChanged(t)
		writeState(w, m)
	}
}

// writeError reports err as a JSON error body.
func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
