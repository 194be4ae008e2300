package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/kv"
	"github.com/ziadkadry99/diagramstudio/internal/session"
)

type fixture struct {
	path  string
	store *diagrams.Store
	sched *session.ManualScheduler
	sess  *session.Session
	fe    *FileEditor
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.mmd")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := diagrams.NewStore(kv.NewMemory())
	sched := session.NewManualScheduler()
	sess := session.New(store, nil,
		session.WithAutosave(true, time.Second),
		session.WithScheduler(sched),
	)
	t.Cleanup(sess.Close)

	fe, err := New(path, sess, nil)
	require.NoError(t, err)
	t.Cleanup(func() { fe.Close() })
	return &fixture{path: path, store: store, sched: sched, sess: sess, fe: fe}
}

func TestNewMissingFile(t *testing.T) {
	sess := session.New(diagrams.NewStore(kv.NewMemory()), nil)
	defer sess.Close()
	_, err := New(filepath.Join(t.TempDir(), "nope.mmd"), sess, nil)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	f := newFixture(t, "graph TD\nA-->B\n")
	require.NoError(t, f.fe.Load())

	st := f.sess.State()
	assert.Equal(t, "graph TD\nA-->B\n", st.Content)
	assert.True(t, st.Dirty)
	assert.Equal(t, 1, f.sched.Pending())
}

func TestLoadIgnoresEmptyFile(t *testing.T) {
	f := newFixture(t, "graph TD\nA-->B\n")
	require.NoError(t, f.fe.Load())
	require.NoError(t, os.WriteFile(f.path, nil, 0o644))

	require.NoError(t, f.fe.Load())
	assert.Equal(t, "graph TD\nA-->B\n", f.sess.State().Content)
}

func TestRunReloadsAndAutosaves(t *testing.T) {
	f := newFixture(t, "graph TD\nA-->B\n")
	require.NoError(t, f.fe.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.fe.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Retry the write until the watcher has been registered.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(f.path, []byte("graph LR\nX-->Y\n"), 0o644)
		return f.sess.State().Content == "graph LR\nX-->Y\n"
	}, 5*time.Second, 50*time.Millisecond)

	f.sched.Advance(time.Second)
	st := f.sess.State()
	assert.Equal(t, session.StatusSaved, st.Status)
	assert.False(t, st.Dirty)

	all, err := f.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "graph LR\nX-->Y\n", all[0].Content)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, "pie\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, f.fe.Run(ctx))
}

func TestFinish(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, "pie\n")
	saved, err := f.fe.Finish(ctx, func(session.State) bool { t.Fatal("clean session asked"); return false })
	require.NoError(t, err)
	assert.False(t, saved)

	require.NoError(t, f.fe.Load())
	saved, err = f.fe.Finish(ctx, func(session.State) bool { return false })
	require.NoError(t, err)
	assert.False(t, saved)
	assert.True(t, f.sess.State().Dirty)

	var asked session.State
	saved, err = f.fe.Finish(ctx, func(st session.State) bool { asked = st; return true })
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "pie\n", asked.Content)
	assert.Equal(t, session.StatusSaved, f.sess.State().Status)
}
