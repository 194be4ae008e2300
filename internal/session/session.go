// Package session is the editor controller: it holds the in-memory diagram,
// tracks whether it differs from what was last saved, debounces autosave
// and keeps the preview in step with the content and theme.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/templates"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// DefaultDelay is the autosave quiet period.
const DefaultDelay = 3 * time.Second

// Option configures a Session.
type Option func(*Session)

// WithThumbnailer sets how preview images are made on save.
func WithThumbnailer(t Thumbnailer) Option {
	return func(s *Session) { s.thumbs = t }
}

// WithAutosave turns autosave on or off and sets its delay.
func WithAutosave(enabled bool, delay time.Duration) Option {
	return func(s *Session) {
		s.autosave = enabled
		if delay > 0 {
			s.delay = delay
		}
	}
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(sch Scheduler) Option {
	return func(s *Session) { s.sched = sch }
}

// WithTheme sets the initial theme.
func WithTheme(t theme.Theme) Option {
	return func(s *Session) { s.theme = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides time.Now for save timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is one open editor.
type Session struct {
	store   Store
	preview *render.Preview
	thumbs  Thumbnailer
	sched   Scheduler
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time

	autosave bool
	delay    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// saveMu serializes saves; mu guards everything below it.
	saveMu sync.Mutex
	mu     sync.Mutex

	state State
	// savedTitle and savedContent are what was last loaded or saved.
	savedTitle   string
	savedContent string

	theme      theme.Theme
	generation uint64
	timer      Timer
	closed     bool
	onState    func(State)
	onNavigate func(string)

	wg sync.WaitGroup
}

// New creates a session holding the default diagram. Call Open to load
// something else. preview may be nil when nothing is displayed.
func New(store Store, preview *render.Preview, opts ...Option) *Session {
	s := &Session{
		store:    store,
		preview:  preview,
		sched:    WallClock(),
		logger:   zap.NewNop(),
		now:      time.Now,
		autosave: true,
		delay:    DefaultDelay,
		theme:    theme.Light,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state = blankState(LayoutSplit)
	s.savedTitle, s.savedContent = s.state.Title, s.state.Content
	return s
}

func blankState(layout Layout) State {
	return State{
		Title:   templates.DefaultTitle,
		Content: templates.DefaultSource,
		Status:  StatusUnsaved,
		Layout:  layout,
	}
}

// OnState sets the function called with every state change. It runs with
// the session locked and must not call back into the session.
func (s *Session) OnState(fn func(State)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// OnNavigate sets the function called when the editor's address changes:
// "/editor/<id>" after a first save, "/editor" after a reset. Same locking
// rule as OnState.
func (s *Session) OnNavigate(fn func(string)) {
	s.mu.Lock()
	s.onNavigate = fn
	s.mu.Unlock()
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Theme returns the theme the preview is rendered with.
func (s *Session) Theme() theme.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Open loads the session from req. A missing diagram is not an error: the
// session resets to the default diagram and navigates to "/editor".
func (s *Session) Open(ctx context.Context, req LoadRequest) error {
	var loaded *State
	if req.ID != "" {
		d, err := s.store.Get(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("loading diagram %s: %w", req.ID, err)
		}
		if d != nil {
			loaded = &State{
				ID:          d.ID,
				Title:       d.Title,
				Content:     d.Content,
				Status:      StatusSaved,
				LastSavedAt: d.UpdatedAt,
			}
		} else {
			s.logger.Info("diagram not found, opening a new one", zap.String("id", req.ID))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()

	switch {
	case loaded != nil:
		loaded.Layout = s.state.Layout
		s.state = *loaded
		s.savedTitle, s.savedContent = loaded.Title, loaded.Content
	case req.ID != "":
		s.emitNavigateLocked("/editor")
	case req.Template != "":
		// Opening a template is not an edit: it can be saved by hand but
		// does not start autosave.
		s.state.Content = templates.Decode(req.Template)
		s.state.Dirty = s.changedLocked()
	}
	s.renderLocked()
	s.emitLocked()
	return nil
}

// SetContent replaces the diagram source.
func (s *Session) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || content == s.state.Content {
		return
	}
	s.state.Content = content
	s.editedLocked()
	s.renderLocked()
	s.emitLocked()
}

// SetTitle replaces the title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || title == s.state.Title {
		return
	}
	s.state.Title = title
	s.editedLocked()
	s.emitLocked()
}

// ApplyTemplate loads source into the editor and closes the template
// gallery.
func (s *Session) ApplyTemplate(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state.ShowTemplates = false
	if source != s.state.Content {
		s.state.Content = source
		s.editedLocked()
		s.renderLocked()
	}
	s.emitLocked()
}

// Save persists the diagram now, cancelling any pending autosave. It does
// nothing when there are no unsaved changes.
func (s *Session) Save(ctx context.Context) error {
	return s.save(ctx, triggerManual)
}

func (s *Session) save(ctx context.Context, trigger string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.stopTimerLocked()
	if !s.state.Dirty {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	th := s.theme
	s.state.Status = StatusSaving
	s.state.Error = ""
	draft := diagrams.Draft{ID: s.state.ID, Title: s.state.Title, Content: s.state.Content}
	s.emitLocked()
	s.mu.Unlock()

	// The thumbnail is made from the content being saved, which the
	// preview may not be showing yet.
	if s.thumbs != nil && s.preview != nil {
		if svg, err := s.preview.Markup(ctx, draft.Content, th); err == nil && svg != "" {
			draft.PreviewImage = s.thumbs.Thumbnail(ctx, svg)
		}
	}

	id, err := s.store.Save(ctx, draft)
	s.metrics.SessionSaved(trigger, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		// The session moved on to another diagram while this one was saving.
		return err
	}
	if err != nil {
		s.logger.Warn("save failed", zap.String("trigger", trigger), zap.Error(err))
		s.state.Status = StatusUnsaved
		s.state.Error = "Failed to save diagram"
		s.emitLocked()
		return fmt.Errorf("saving diagram: %w", err)
	}

	created := id != draft.ID
	s.state.ID = id
	s.state.LastSavedAt = s.now().UnixMilli()
	s.savedTitle, s.savedContent = draft.Title, draft.Content
	s.state.Dirty = s.changedLocked()
	if s.state.Dirty {
		s.state.Status = StatusUnsaved
	} else {
		s.stopTimerLocked()
		s.state.Status = StatusSaved
	}
	s.logger.Debug("diagram saved", zap.String("id", id), zap.String("trigger", trigger))
	s.emitLocked()
	if created {
		s.emitNavigateLocked("/editor/" + id)
	}
	return nil
}

// New resets to the default diagram. With unsaved changes confirm must
// return true, otherwise nothing happens. It reports whether the reset ran.
func (s *Session) New(confirm func() bool) bool {
	s.mu.Lock()
	dirty := s.state.Dirty
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	if dirty && (confirm == nil || !confirm()) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hadID := s.state.ID != ""
	s.resetLocked()
	s.renderLocked()
	s.emitLocked()
	if hadID {
		s.emitNavigateLocked("/editor")
	}
	return true
}

// SetTheme re-renders the preview with t.
func (s *Session) SetTheme(t theme.Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || t == s.theme {
		return
	}
	s.theme = t
	s.renderLocked()
}

// CycleLayout moves to the next pane layout.
func (s *Session) CycleLayout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Layout = s.state.Layout.Next()
	s.emitLocked()
	return s.state.Layout
}

// ToggleTemplates shows or hides the template gallery.
func (s *Session) ToggleTemplates() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShowTemplates = !s.state.ShowTemplates
	s.emitLocked()
	return s.state.ShowTemplates
}

// ToggleHelp shows or hides the shortcut reference.
func (s *Session) ToggleHelp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShowHelp = !s.state.ShowHelp
	s.emitLocked()
	return s.state.ShowHelp
}

// Close cancels any pending autosave and waits for running work. Unsaved
// changes are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	if s.preview != nil {
		s.preview.Wait()
	}
}

func (s *Session) resetLocked() {
	s.stopTimerLocked()
	s.generation++
	s.state = blankState(s.state.Layout)
	s.savedTitle, s.savedContent = s.state.Title, s.state.Content
}

// changedLocked reports whether the title or content differs from what
// was last loaded or saved.
func (s *Session) changedLocked() bool {
	return s.state.Title != s.savedTitle || s.state.Content != s.savedContent
}

// editedLocked recomputes Dirty after an edit. Edits that leave the
// diagram as last loaded or saved cancel the pending autosave.
func (s *Session) editedLocked() {
	s.state.Error = ""
	s.state.Dirty = s.changedLocked()
	if s.state.Dirty {
		s.state.Status = StatusUnsaved
		s.scheduleLocked()
		return
	}
	s.stopTimerLocked()
	if s.state.ID != "" {
		s.state.Status = StatusSaved
	} else {
		s.state.Status = StatusUnsaved
	}
}

func (s *Session) scheduleLocked() {
	if !s.autosave || s.closed {
		return
	}
	s.stopTimerLocked()
	s.wg.Add(1)
	s.timer = s.sched.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		if err := s.save(s.ctx, triggerAutosave); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Debug("autosave failed", zap.Error(err))
		}
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer == nil {
		return
	}
	if s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
}

func (s *Session) renderLocked() {
	if s.preview != nil {
		s.preview.Request(s.ctx, s.state.Content, s.theme)
	}
}

func (s *Session) emitLocked() {
	if s.onState != nil {
		s.onState(s.state)
	}
}

func (s *Session) emitNavigateLocked(path string) {
	if s.onNavigate != nil {
		s.onNavigate(path)
	}
}
