package session

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/kv"
	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/templates"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// hookStore runs during inside Save and can be made to fail.
type hookStore struct {
	*diagrams.Store
	fail   error
	during func()
}

func (h *hookStore) Save(ctx context.Context, d diagrams.Draft) (string, error) {
	if h.during != nil {
		during := h.during
		h.during = nil
		during()
	}
	if h.fail != nil {
		return "", h.fail
	}
	return h.Store.Save(ctx, d)
}

type fakeThumbs struct {
	url   string
	calls int
	svg   string
}

func (f *fakeThumbs) Thumbnail(_ context.Context, svg string) string {
	f.calls++
	f.svg = svg
	return f.url
}

type recorder struct {
	mu     sync.Mutex
	states []State
	navs   []string
}

func (r *recorder) navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.navs...)
}

type fixture struct {
	s       *Session
	store   *hookStore
	preview *render.Preview
	sched   *ManualScheduler
	rec     *recorder
}

var testEngine = render.EngineFunc(func(_ context.Context, source string, t theme.Theme) (string, error) {
	if strings.Contains(source, "[[") {
		return "", &render.SyntaxError{Message: "Parse error on line 2"}
	}
	return `<svg viewBox="0 0 10 10"><g class="` + string(t) + `"/></svg>`, nil
})

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithEngine(t, testEngine, opts...)
}

func newFixtureWithEngine(t *testing.T, engine render.Engine, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   &hookStore{Store: diagrams.NewStore(kv.NewMemory())},
		preview: render.NewPreview(engine, nil, nil),
		sched:   NewManualScheduler(),
		rec:     &recorder{},
	}
	base := []Option{WithScheduler(f.sched), WithAutosave(true, time.Second), WithMetrics(metrics.New())}
	f.s = New(f.store, f.preview, append(base, opts...)...)
	f.s.OnState(func(st State) {
		f.rec.mu.Lock()
		f.rec.states = append(f.rec.states, st)
		f.rec.mu.Unlock()
	})
	f.s.OnNavigate(func(path string) {
		f.rec.mu.Lock()
		f.rec.navs = append(f.rec.navs, path)
		f.rec.mu.Unlock()
	})
	t.Cleanup(f.s.Close)
	return f
}

func (f *fixture) stored(t *testing.T) []diagrams.SavedDiagram {
	t.Helper()
	all, err := f.store.List(context.Background())
	require.NoError(t, err)
	return all
}

func TestOpenDefault(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Open(context.Background(), LoadRequest{}))

	st := f.s.State()
	assert.Equal(t, templates.DefaultSource, st.Content)
	assert.Equal(t, templates.DefaultTitle, st.Title)
	assert.False(t, st.Dirty)
	assert.Equal(t, StatusUnsaved, st.Status)
	assert.Empty(t, st.ID)
	assert.Equal(t, 0, f.sched.Pending())

	f.preview.Wait()
	assert.NotEmpty(t, f.preview.Current().SVG)
}

func TestOpenTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := "pie title Pets\n    \"Dogs\" : 3"
	require.NoError(t, f.s.Open(ctx, LoadRequest{Template: url.QueryEscape(src)}))

	st := f.s.State()
	assert.Equal(t, src, st.Content)
	assert.True(t, st.Dirty)
	assert.Equal(t, StatusUnsaved, st.Status)
	assert.Equal(t, 0, f.sched.Pending(), "opening a template is not an edit")
	assert.Equal(t, 0, f.sched.Advance(time.Minute))
	assert.Empty(t, f.stored(t))

	require.NoError(t, f.s.Open(ctx, LoadRequest{Template: "%zz"}))
	assert.Equal(t, templates.DefaultSource, f.s.State().Content)
	assert.False(t, f.s.State().Dirty, "an undecodable template leaves the default diagram")
	assert.Equal(t, 0, f.sched.Advance(time.Minute))
	assert.Empty(t, f.stored(t))
}

func TestOpenTemplateSavesOnRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.s.Open(ctx, LoadRequest{Template: url.QueryEscape("gantt\ntitle Plan")}))

	require.NoError(t, f.s.Save(ctx))
	all := f.stored(t)
	require.Len(t, all, 1)
	assert.Equal(t, "gantt\ntitle Plan", all[0].Content)
	assert.Equal(t, StatusSaved, f.s.State().Status)
}

func TestOpenExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.store.Save(ctx, diagrams.Draft{Title: "Flow", Content: "graph TD\nA-->B"})
	require.NoError(t, err)
	saved, _ := f.store.Get(ctx, id)

	require.NoError(t, f.s.Open(ctx, LoadRequest{ID: id, Template: "ignored"}))
	st := f.s.State()
	assert.Equal(t, id, st.ID)
	assert.Equal(t, "Flow", st.Title)
	assert.Equal(t, "graph TD\nA-->B", st.Content)
	assert.False(t, st.Dirty)
	assert.Equal(t, StatusSaved, st.Status)
	assert.Equal(t, saved.UpdatedAt, st.LastSavedAt)
	assert.Empty(t, f.rec.navigations())
}

func TestOpenMissingRedirects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Open(context.Background(), LoadRequest{ID: "diagram-1-missing"}))

	assert.Equal(t, []string{"/editor"}, f.rec.navigations())
	st := f.s.State()
	assert.Empty(t, st.ID)
	assert.Equal(t, templates.DefaultSource, st.Content)
	assert.False(t, st.Dirty)
}

func TestAutosaveDebounce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Open(context.Background(), LoadRequest{}))

	f.s.SetContent("graph TD\nA-->B")
	assert.True(t, f.s.State().Dirty)
	assert.Equal(t, 1, f.sched.Pending())

	assert.Equal(t, 0, f.sched.Advance(500*time.Millisecond))
	f.s.SetTitle("Renamed")
	assert.Equal(t, 1, f.sched.Pending(), "an edit restarts the single timer")

	assert.Equal(t, 0, f.sched.Advance(600*time.Millisecond))
	assert.Empty(t, f.stored(t))

	assert.Equal(t, 1, f.sched.Advance(400*time.Millisecond))
	st := f.s.State()
	assert.Equal(t, StatusSaved, st.Status)
	assert.False(t, st.Dirty)
	require.NotEmpty(t, st.ID)
	assert.NotZero(t, st.LastSavedAt)
	assert.Equal(t, []string{"/editor/" + st.ID}, f.rec.navigations())

	all := f.stored(t)
	require.Len(t, all, 1)
	assert.Equal(t, "Renamed", all[0].Title)
	assert.Equal(t, "graph TD\nA-->B", all[0].Content)
}

func TestRevertedEditIsClean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.store.Save(ctx, diagrams.Draft{Title: "Flow", Content: "graph TD\nA-->B"})
	require.NoError(t, err)
	before, _ := f.store.Get(ctx, id)
	require.NoError(t, f.s.Open(ctx, LoadRequest{ID: id}))

	f.s.SetContent("graph TD\nA-->C")
	assert.True(t, f.s.State().Dirty)
	assert.Equal(t, 1, f.sched.Pending())

	f.s.SetContent("graph TD\nA-->B")
	st := f.s.State()
	assert.False(t, st.Dirty)
	assert.Equal(t, StatusSaved, st.Status)
	assert.Equal(t, 0, f.sched.Pending())

	f.s.SetTitle("Other")
	f.s.SetTitle("Flow")
	assert.False(t, f.s.State().Dirty)

	assert.Equal(t, 0, f.sched.Advance(time.Minute))
	after, _ := f.store.Get(ctx, id)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "an unchanged record is not rewritten")
}

func TestRevertAfterSaveComparesWithSaved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.s.SetContent("pie")
	require.NoError(t, f.s.Save(ctx))
	f.s.SetContent(templates.DefaultSource)
	assert.True(t, f.s.State().Dirty, "the default source now differs from what was saved")
	f.s.SetContent("pie")
	assert.False(t, f.s.State().Dirty)
	assert.Equal(t, StatusSaved, f.s.State().Status)
}

func TestAutosaveDisabled(t *testing.T) {
	f := newFixture(t, WithAutosave(false, 0))
	f.s.SetContent("pie")
	assert.Equal(t, 0, f.sched.Pending())
	assert.True(t, f.s.State().Dirty)
}

func TestManualSaveCancelsTimer(t *testing.T) {
	f := newFixture(t)
	f.s.SetContent("pie")
	require.Equal(t, 1, f.sched.Pending())

	require.NoError(t, f.s.Save(context.Background()))
	assert.Equal(t, 0, f.sched.Pending())
	assert.Equal(t, 0, f.sched.Advance(time.Hour))
	assert.Len(t, f.stored(t), 1)
}

func TestSaveWhenCleanIsNoOp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Open(context.Background(), LoadRequest{}))
	require.NoError(t, f.s.Save(context.Background()))
	assert.Empty(t, f.stored(t))
	assert.Equal(t, StatusUnsaved, f.s.State().Status)
}

func TestRepeatedSavesUpdateOneRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.s.SetContent("graph TD\nA-->B")
	require.NoError(t, f.s.Save(ctx))
	id := f.s.State().ID

	f.s.SetTitle("Second")
	assert.Equal(t, StatusUnsaved, f.s.State().Status)
	require.NoError(t, f.s.Save(ctx))

	assert.Equal(t, id, f.s.State().ID)
	all := f.stored(t)
	require.Len(t, all, 1)
	assert.Equal(t, "Second", all[0].Title)
	assert.Len(t, f.rec.navigations(), 1, "only the first save changes the address")
}

func TestSaveFailureRevertsStatus(t *testing.T) {
	f := newFixture(t)
	f.store.fail = errors.New("quota exceeded")

	f.s.SetContent("pie")
	err := f.s.Save(context.Background())
	require.Error(t, err)

	st := f.s.State()
	assert.Equal(t, StatusUnsaved, st.Status)
	assert.True(t, st.Dirty)
	assert.NotEmpty(t, st.Error)
	assert.Empty(t, st.ID)

	var sawSaving bool
	f.rec.mu.Lock()
	for _, s := range f.rec.states {
		sawSaving = sawSaving || s.Status == StatusSaving
	}
	f.rec.mu.Unlock()
	assert.True(t, sawSaving)

	f.s.SetContent("pie title x")
	assert.Empty(t, f.s.State().Error, "an edit clears the error")

	f.store.fail = nil
	require.NoError(t, f.s.Save(context.Background()))
	assert.Equal(t, StatusSaved, f.s.State().Status)
}

func TestSaveAttachesThumbnail(t *testing.T) {
	thumbs := &fakeThumbs{url: "data:image/png;base64,AAAA"}
	f := newFixture(t, WithThumbnailer(thumbs))

	f.s.SetContent("graph LR\nX-->Y")
	f.preview.Wait()
	require.NoError(t, f.s.Save(context.Background()))

	all := f.stored(t)
	require.Len(t, all, 1)
	assert.Equal(t, "data:image/png;base64,AAAA", all[0].PreviewImage)
	assert.Equal(t, 1, thumbs.calls)
}

func TestSaveDuringRenderKeepsThumbnail(t *testing.T) {
	slow := render.EngineFunc(func(ctx context.Context, source string, _ theme.Theme) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return `<svg data-source="` + source + `"/>`, nil
	})
	thumbs := &fakeThumbs{url: "data:image/png;base64,BBBB"}
	f := newFixtureWithEngine(t, slow, WithThumbnailer(thumbs))
	ctx := context.Background()

	id, err := f.store.Save(ctx, diagrams.Draft{Title: "Flow", Content: "A-->B", PreviewImage: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	require.NoError(t, f.s.Open(ctx, LoadRequest{ID: id}))
	f.preview.Wait()

	f.s.SetContent("A-->C")
	require.NoError(t, f.s.Save(ctx))

	d, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,BBBB", d.PreviewImage)
	assert.Contains(t, thumbs.svg, "A-->C", "the thumbnail shows the saved content")
}

func TestSaveWithoutThumbnailStillSaves(t *testing.T) {
	thumbs := &fakeThumbs{}
	f := newFixture(t, WithThumbnailer(thumbs))

	f.s.SetContent("graph LR\n[[broken")
	f.preview.Wait()
	require.NotEmpty(t, f.preview.Current().Error)
	require.NoError(t, f.s.Save(context.Background()))

	all := f.stored(t)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].PreviewImage)
	assert.Equal(t, 0, thumbs.calls, "no markup, no thumbnail attempt")
}

func TestEditDuringSaveStaysDirty(t *testing.T) {
	f := newFixture(t)
	f.s.SetContent("graph TD\nA-->B")
	f.store.during = func() { f.s.SetContent("graph TD\nA-->C") }

	require.NoError(t, f.s.Save(context.Background()))
	st := f.s.State()
	assert.NotEmpty(t, st.ID)
	assert.True(t, st.Dirty)
	assert.Equal(t, StatusUnsaved, st.Status)
	assert.Equal(t, 1, f.sched.Pending())

	assert.Equal(t, 1, f.sched.Advance(time.Second))
	all := f.stored(t)
	require.Len(t, all, 1)
	assert.Equal(t, "graph TD\nA-->C", all[0].Content)
	assert.Equal(t, StatusSaved, f.s.State().Status)
}

func TestNewDuringSaveDropsResult(t *testing.T) {
	f := newFixture(t)
	f.s.SetContent("pie")
	f.store.during = func() { f.s.New(func() bool { return true }) }

	require.NoError(t, f.s.Save(context.Background()))
	st := f.s.State()
	assert.Empty(t, st.ID)
	assert.Equal(t, templates.DefaultSource, st.Content)
	assert.Empty(t, f.rec.navigations())
	assert.Len(t, f.stored(t), 1)
}

func TestNewRequiresConfirmation(t *testing.T) {
	f := newFixture(t)

	asked := 0
	assert.True(t, f.s.New(func() bool { asked++; return false }), "clean sessions reset without asking")
	assert.Equal(t, 0, asked)

	f.s.SetContent("pie")
	assert.False(t, f.s.New(func() bool { asked++; return false }))
	assert.Equal(t, 1, asked)
	assert.Equal(t, "pie", f.s.State().Content)
	assert.False(t, f.s.New(nil))

	assert.True(t, f.s.New(func() bool { return true }))
	st := f.s.State()
	assert.Equal(t, templates.DefaultSource, st.Content)
	assert.False(t, st.Dirty)
	assert.Equal(t, 0, f.sched.Pending())
}

func TestNewAfterSaveNavigatesToBlankEditor(t *testing.T) {
	f := newFixture(t)
	f.s.SetContent("pie")
	require.NoError(t, f.s.Save(context.Background()))

	require.True(t, f.s.New(nil))
	navs := f.rec.navigations()
	require.Len(t, navs, 2)
	assert.Equal(t, "/editor", navs[1])
	assert.Empty(t, f.s.State().ID)
}

func TestLayoutAndPanels(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, LayoutSplit, f.s.State().Layout)
	assert.Equal(t, LayoutEditor, f.s.CycleLayout())
	assert.Equal(t, LayoutPreview, f.s.CycleLayout())
	assert.Equal(t, LayoutSplit, f.s.CycleLayout())

	assert.True(t, f.s.ToggleTemplates())
	assert.True(t, f.s.ToggleHelp())
	assert.False(t, f.s.ToggleHelp())

	f.s.ApplyTemplate("gantt\ntitle x")
	st := f.s.State()
	assert.False(t, st.ShowTemplates)
	assert.Equal(t, "gantt\ntitle x", st.Content)
	assert.True(t, st.Dirty)
}

func TestHandleKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		key     string
		handled bool
	}{
		{"Ctrl+L", true},
		{"cmd+t", true},
		{"Meta + S", true},
		{"F1", true},
		{"ctrl+x", false},
		{"s", false},
	}
	for _, tt := range tests {
		handled, err := f.s.HandleKey(ctx, tt.key, nil)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.handled, handled, tt.key)
	}
	st := f.s.State()
	assert.Equal(t, LayoutEditor, st.Layout)
	assert.True(t, st.ShowTemplates)
	assert.True(t, st.ShowHelp)

	f.s.SetContent("pie")
	_, err := f.s.HandleKey(ctx, "Cmd+S", nil)
	require.NoError(t, err)
	assert.Len(t, f.stored(t), 1)

	f.s.SetContent("pie title changed")
	_, err = f.s.HandleKey(ctx, "ctrl+n", func() bool { return false })
	require.NoError(t, err)
	assert.Equal(t, "pie title changed", f.s.State().Content)

	assert.Len(t, Shortcuts(), 5)
}

func TestSetThemeRerenders(t *testing.T) {
	f := newFixture(t, WithTheme(theme.Light))
	f.s.SetContent("graph TD\nA-->B")
	f.preview.Wait()
	assert.Contains(t, f.preview.Current().SVG, `class="light"`)

	f.s.SetTheme(theme.Dark)
	f.preview.Wait()
	assert.Contains(t, f.preview.Current().SVG, `class="dark"`)
	assert.Equal(t, theme.Dark, f.s.Theme())
}

func TestMalformedSourceClearsPreview(t *testing.T) {
	f := newFixture(t)
	f.s.SetContent("flowchart TD\nA-->B")
	f.preview.Wait()
	require.NotEmpty(t, f.preview.Current().SVG)

	f.s.SetContent("flowchart TD\nA[[-->B")
	f.preview.Wait()
	out := f.preview.Current()
	assert.Empty(t, out.SVG)
	assert.Equal(t, "Parse error on line 2", out.Error)
}

func TestCloseDropsPendingAutosave(t *testing.T) {
	f := newFixture(t)
	f.s.SetContent("pie")
	f.s.Close()

	assert.Equal(t, 0, f.sched.Pending())
	assert.ErrorIs(t, f.s.Save(context.Background()), ErrClosed)
	assert.Empty(t, f.stored(t))
}

func TestWallClockAutosave(t *testing.T) {
	store := diagrams.NewStore(kv.NewMemory())
	s := New(store, nil, WithAutosave(true, 10*time.Millisecond))
	defer s.Close()

	s.SetContent("graph TD\nA-->B")
	require.Eventually(t, func() bool {
		return s.State().Status == StatusSaved
	}, 2*time.Second, 5*time.Millisecond)

	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
