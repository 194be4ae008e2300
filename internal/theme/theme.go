// Package theme tracks the light/dark preference. An explicit choice is
// persisted; until one is made the system preference is followed.
package theme

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/kv"
)

// StorageKey is where the explicit preference is persisted.
const StorageKey = "theme"

// Theme is a color scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Parse validates s as a Theme.
func Parse(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	}
	return "", false
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Mermaid returns the Mermaid theme name for t.
func (t Theme) Mermaid() string {
	if t == Dark {
		return "dark"
	}
	return "default"
}

// Editor returns the code editor theme name for t.
func (t Theme) Editor() string {
	if t == Dark {
		return "vs-dark"
	}
	return "vs-light"
}

// FromColorFGBG reads a terminal's COLORFGBG value ("fg;bg"). Background
// colors 0-6 and 8 are dark; anything else, or an unparseable value, is light.
func FromColorFGBG(v string) Theme {
	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return Light
	}
	if (bg >= 0 && bg <= 6) || bg == 8 {
		return Dark
	}
	return Light
}

// Resolve turns a configured default ("system", "light", "dark") into the
// system preference the Manager starts from.
func Resolve(setting string) Theme {
	if t, ok := Parse(setting); ok {
		return t
	}
	return FromColorFGBG(os.Getenv("COLORFGBG"))
}

// Manager owns the current theme.
type Manager struct {
	storage kv.Storage
	logger  *zap.Logger

	mu       sync.RWMutex
	current  Theme
	system   Theme
	explicit bool
	subs     map[int]func(Theme)
	nextSub  int
}

// NewManager loads the stored preference, falling back to system. A stored
// value that is not a valid theme is ignored.
func NewManager(ctx context.Context, storage kv.Storage, system Theme, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, ok := Parse(string(system)); !ok {
		system = Light
	}
	m := &Manager{
		storage: storage,
		logger:  logger,
		current: system,
		system:  system,
		subs:    make(map[int]func(Theme)),
	}

	raw, ok, err := storage.GetItem(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("loading theme: %w", err)
	}
	if ok {
		if t, valid := Parse(raw); valid {
			m.current = t
			m.explicit = true
		} else {
			logger.Warn("ignoring stored theme", zap.String("value", raw))
		}
	}
	return m, nil
}

// Current returns the active theme.
func (m *Manager) Current() Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Explicit reports whether the user has chosen a theme.
func (m *Manager) Explicit() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.explicit
}

// Set persists t as the explicit preference and applies it.
func (m *Manager) Set(ctx context.Context, t Theme) error {
	if _, ok := Parse(string(t)); !ok {
		return fmt.Errorf("invalid theme %q", t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.SetItem(ctx, StorageKey, string(t)); err != nil {
		return fmt.Errorf("saving theme: %w", err)
	}
	m.explicit = true
	m.applyLocked(t)
	return nil
}

// Toggle flips the theme, persists it and returns the new value.
func (m *Manager) Toggle(ctx context.Context) (Theme, error) {
	next := m.Current().Toggle()
	if err := m.Set(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

// Clear forgets the explicit preference and follows the system again.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.RemoveItem(ctx, StorageKey); err != nil {
		return fmt.Errorf("clearing theme: %w", err)
	}
	m.explicit = false
	m.applyLocked(m.system)
	return nil
}

// SystemChanged records a new system preference. It takes effect only while
// no explicit preference exists.
func (m *Manager) SystemChanged(t Theme) {
	if _, ok := Parse(string(t)); !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.system = t
	if m.explicit {
		return
	}
	m.applyLocked(t)
}

// Subscribe registers fn to be called with every new theme. Callbacks run
// with the manager locked and must not call back into it. The returned
// function unsubscribes.
func (m *Manager) Subscribe(fn func(Theme)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) applyLocked(t Theme) {
	if t == m.current {
		return
	}
	m.current = t
	m.logger.Debug("theme changed", zap.String("theme", string(t)))
	for _, fn := range m.subs {
		fn(t)
	}
}
