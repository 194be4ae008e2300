package diagrams

import (
	"sort"
	"strings"
)

// SortOrder is a gallery ordering.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortName   SortOrder = "name"
)

// ParseSort maps a user-supplied value to a SortOrder, defaulting to newest.
func ParseSort(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortName:
		return SortName
	default:
		return SortNewest
	}
}

// Query filters and orders a gallery listing. A zero Query matches every
// diagram, newest first.
type Query struct {
	Search string
	Kind   Kind
	Sort   SortOrder
}

// Summary is one gallery row.
type Summary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	DisplayTitle string `json:"displayTitle"`
	Kind         Kind   `json:"type"`
	KindLabel    string `json:"typeLabel"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	HasPreview   bool   `json:"hasPreview"`
}

// Summarize builds the gallery row for d.
func Summarize(d SavedDiagram) Summary {
	k := d.Kind()
	return Summary{
		ID:           d.ID,
		Title:        d.Title,
		DisplayTitle: d.DisplayTitle(),
		Kind:         k,
		KindLabel:    k.Label(),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		HasPreview:   d.PreviewImage != "",
	}
}

// Filter returns the diagrams matching q, ordered by q.Sort. The input is
// not modified.
func Filter(all []SavedDiagram, q Query) []SavedDiagram {
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]SavedDiagram, 0, len(all))
	for _, d := range all {
		kind := d.Kind()
		if q.Kind != "" && kind != q.Kind {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(d.DisplayTitle()), term) &&
			!strings.Contains(string(kind), term) {
			continue
		}
		out = append(out, d)
	}

	Sort(out, q.Sort)
	return out
}

// Sort orders diagrams in place. Ties fall back to ID so output is stable
// across calls.
func Sort(ds []SavedDiagram, order SortOrder) {
	var less func(a, b SavedDiagram) bool
	switch order {
	case SortOldest:
		less = func(a, b SavedDiagram) bool { return a.UpdatedAt < b.UpdatedAt }
	case SortName:
		less = func(a, b SavedDiagram) bool {
			return strings.ToLower(a.DisplayTitle()) < strings.ToLower(b.DisplayTitle())
		}
	default:
		less = func(a, b SavedDiagram) bool { return a.UpdatedAt > b.UpdatedAt }
	}

	sort.SliceStable(ds, func(i, j int) bool {
		if less(ds[i], ds[j]) {
			return true
		}
		if less(ds[j], ds[i]) {
			return false
		}
		return ds[i].ID < ds[j].ID
	})
}
