package diagrams

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/kv"
	"github.com/ziadkadry99/diagramstudio/internal/metrics"
)

// Store persists the diagram collection as one JSON array under StorageKey.
// Every operation reads the collection from storage, so several processes
// sharing a backend see each other's writes; concurrent writers are
// last-writer-wins. Within a process, mutations are serialized.
type Store struct {
	storage kv.Storage
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records saves and deletes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a diagram store on top of storage.
func NewStore(storage kv.Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the whole collection in insertion order. Missing or
// unparseable data yields an empty collection; entries without an ID or
// repeating an earlier ID are dropped. Only a storage failure is an error.
func (s *Store) Load(ctx context.Context) ([]SavedDiagram, error) {
	raw, ok, err := s.storage.GetItem(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("loading diagrams: %w", err)
	}
	if !ok || raw == "" {
		return []SavedDiagram{}, nil
	}

	var all []SavedDiagram
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		s.logger.Warn("stored diagrams are unreadable, starting empty", zap.Error(err))
		s.metrics.LoadFellBack()
		return []SavedDiagram{}, nil
	}

	seen := make(map[string]bool, len(all))
	out := make([]SavedDiagram, 0, len(all))
	for _, d := range all {
		if d.ID == "" || seen[d.ID] {
			s.logger.Warn("dropping stored diagram with missing or duplicate id", zap.String("id", d.ID))
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out, nil
}

// List is Load under another name, for callers that read like a gallery.
func (s *Store) List(ctx context.Context) ([]SavedDiagram, error) {
	return s.Load(ctx)
}

// Get returns the diagram with the given ID, or nil if there is none.
func (s *Store) Get(ctx context.Context, id string) (*SavedDiagram, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(all, id); i >= 0 {
		d := all[i]
		return &d, nil
	}
	return nil, nil
}

// Save inserts or updates a diagram and returns its ID. Updating keeps the
// ID and CreatedAt and never moves UpdatedAt backwards.
func (s *Store) Save(ctx context.Context, draft Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load(ctx)
	if err != nil {
		return "", err
	}

	now := s.now().UnixMilli()
	created := false
	var id string

	if i := indexOf(all, draft.ID); draft.ID != "" && i >= 0 {
		d := &all[i]
		d.Title = draft.Title
		d.Content = draft.Content
		d.PreviewImage = draft.PreviewImage
		d.UpdatedAt = max(now, d.UpdatedAt, d.CreatedAt)
		id = d.ID
	} else {
		id = s.freshID(all)
		all = append(all, SavedDiagram{
			ID:           id,
			Title:        draft.Title,
			Content:      draft.Content,
			CreatedAt:    now,
			UpdatedAt:    now,
			PreviewImage: draft.PreviewImage,
		})
		created = true
	}

	if err := s.persist(ctx, all); err != nil {
		return "", err
	}
	s.metrics.DiagramSaved(created)
	return id, nil
}

// SetPreview replaces the preview image of an existing diagram without
// touching UpdatedAt.
func (s *Store) SetPreview(ctx context.Context, id, previewImage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(all, id)
	if i < 0 {
		return ErrNotFound
	}
	all[i].PreviewImage = previewImage
	return s.persist(ctx, all)
}

// Delete removes the diagram with the given ID. Deleting a missing ID is a
// no-op and does not write.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.DeleteMany(ctx, []string{id})
	return err
}

// DeleteMany removes every listed ID in a single write and reports how many
// diagrams were removed.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := all[:0:0]
	for _, d := range all {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	removed := len(all) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := s.persist(ctx, kept); err != nil {
		return 0, err
	}
	s.metrics.DiagramsDeleted(removed)
	return removed, nil
}

// Duplicate saves a copy of the diagram titled "<title> (Copy)" and returns
// the new ID.
func (s *Store) Duplicate(ctx context.Context, id string) (string, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", ErrNotFound
	}
	return s.Save(ctx, Draft{
		Title:        src.DisplayTitle() + " (Copy)",
		Content:      src.Content,
		PreviewImage: src.PreviewImage,
	})
}

func (s *Store) persist(ctx context.Context, all []SavedDiagram) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encoding diagrams: %w", err)
	}
	if err := s.storage.SetItem(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("saving diagrams: %w", err)
	}
	return nil
}

func (s *Store) freshID(all []SavedDiagram) string {
	for {
		id := NewID(s.now())
		if indexOf(all, id) < 0 {
			return id
		}
	}
}

func indexOf(all []SavedDiagram, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
