package diagrams

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/diagramstudio/internal/export"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// ExportDeps is what the export endpoint needs. Without it the endpoint
// answers 503.
type ExportDeps struct {
	Exporter *export.Exporter
	Engine   render.Engine
	Theme    func() theme.Theme
	Defaults export.Options
}

// RegisterRoutes mounts the diagram API routes.
func RegisterRoutes(r chi.Router, store *Store, ex *ExportDeps) {
	r.Route("/api/diagrams", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/", handleSave(store))
		r.Post("/bulk-delete", handleBulkDelete(store))
		r.Get("/{id}", handleGet(store))
		r.Delete("/{id}", handleDelete(store))
		r.Post("/{id}/duplicate", handleDuplicate(store))
		r.Get("/{id}/export", handleExport(store, ex))
		r.Get("/{id}/thumbnail", handleThumbnail(store))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := ParseKind(r.URL.Query().Get("type"))
		if err != nil {
			http.Error(w, `{"error":"unknown diagram type"}`, http.StatusBadRequest)
			return
		}
		all, err := store.List(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		matched := Filter(all, Query{
			Search: r.URL.Query().Get("search"),
			Kind:   kind,
			Sort:   ParseSort(r.URL.Query().Get("sort")),
		})
		rows := make([]Summary, 0, len(matched))
		for _, d := range matched {
			rows = append(rows, Summarize(d))
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func handleSave(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		id, err := store.Save(r.Context(), draft)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		status := http.StatusOK
		if id != draft.ID {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]string{"id": id})
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if d == nil {
			http.Error(w, `{"error":"diagram not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleBulkDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		n, err := store.DeleteMany(r.Context(), req.IDs)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
	}
}

func handleDuplicate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := store.Duplicate(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"diagram not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id, "editor": "/editor/" + id})
	}
}

func handleExport(store *Store, ex *ExportDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ex == nil || ex.Exporter == nil || ex.Engine == nil {
			http.Error(w, `{"error":"export is not available"}`, http.StatusServiceUnavailable)
			return
		}
		opts, err := exportOptions(r, ex.Defaults)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		d, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if d == nil {
			http.Error(w, `{"error":"diagram not found"}`, http.StatusNotFound)
			return
		}

		t := theme.Light
		if ex.Theme != nil {
			t = ex.Theme()
		}
		art, err := ex.Exporter.RenderAndExport(r.Context(), ex.Engine, d.Content, d.Title, t, opts)
		var syn *render.SyntaxError
		switch {
		case errors.As(err, &syn):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": syn.Message})
			return
		case errors.Is(err, export.ErrInvalidOptions):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", art.ContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.FileName}))
		w.Write(art.Data)
	}
}

func exportOptions(r *http.Request, defaults export.Options) (export.Options, error) {
	opts := defaults
	if opts.Format == "" {
		opts = export.DefaultOptions()
	}
	q := r.URL.Query()
	if v := q.Get("format"); v != "" {
		opts.Format = v
	}
	if v := q.Get("transparent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("transparent must be a boolean")
		}
		opts.Transparent = b
	}
	if v := q.Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, errors.New("scale must be a number")
		}
		opts.Scale = f
	}
	return opts, opts.Validate()
}

func handleThumbnail(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if d == nil || d.PreviewImage == "" {
			http.Error(w, `{"error":"no thumbnail"}`, http.StatusNotFound)
			return
		}
		ct, data, err := export.DecodeDataURL(d.PreviewImage)
		if err != nil {
			http.Error(w, `{"error":"stored thumbnail is unreadable"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

// writeError reports err as a JSON error body.
func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
