// Package watch binds an editor session to a Mermaid file on disk, so the
// file can be edited in any text editor while the diagram autosaves.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/session"
)

// FileEditor feeds a file's contents into a session whenever it changes.
type FileEditor struct {
	path    string
	sess    *session.Session
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// New watches path for sess. The file must exist.
func New(path string, sess *session.Session, logger *zap.Logger) (*FileEditor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileEditor{
		path:    filepath.Clean(abs),
		sess:    sess,
		logger:  logger.With(zap.String("file", abs)),
		watcher: watcher,
	}, nil
}

// Path is the absolute path being watched.
func (f *FileEditor) Path() string { return f.path }

// Load reads the file into the session.
func (f *FileEditor) Load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.path, err)
	}
	// Editors truncate before writing; an empty read is a half-written file.
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	f.sess.SetContent(string(data))
	return nil
}

// Run reloads the file on every write until ctx is done. The directory is
// watched rather than the file so editors that save by renaming a temp
// file over it keep working.
func (f *FileEditor) Run(ctx context.Context) error {
	defer f.watcher.Close()

	if err := f.watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(f.path), err)
	}
	f.logger.Debug("watching file")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				if err := f.Load(); err != nil {
					f.logger.Warn("reloading file", zap.Error(err))
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				f.logger.Info("file moved or removed, waiting for it to come back")
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("file watcher", zap.Error(err))
		}
	}
}

// Close stops watching. Run also closes the watcher when it returns.
func (f *FileEditor) Close() error { return f.watcher.Close() }

// Finish is called on exit. With unsaved changes it asks confirm whether
// to save them first and saves when told to. It reports whether a save
// happened.
func (f *FileEditor) Finish(ctx context.Context, confirm func(session.State) bool) (bool, error) {
	st := f.sess.State()
	if !st.Dirty || confirm == nil || !confirm(st) {
		return false, nil
	}
	if err := f.sess.Save(ctx); err != nil {
		return false, err
	}
	return true, nil
}
