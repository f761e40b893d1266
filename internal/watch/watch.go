// Package watch is the optional dev-loop adapter (spec §1: "out of
// scope" core-wise, purely an HTTP/CLI-adjacent convenience): it watches a
// directory for writes to IDL files and re-registers their type under a
// keyspace derived from the filename, with force=true.
//
// Adapted from the event/error channel pair and translating loop of
// SeleniaProject-Orizon's fsnotify-backed filesystem watcher, narrowed
// from a general-purpose VFS watcher to this one reactive behaviour.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/canonkv/canonkv/internal/store"
)

// Watcher reacts to writes on IDL source files matching glob under a
// watched directory by calling TypedStore.RegisterType(force=true).
type Watcher struct {
	fsw    *fsnotify.Watcher
	store  *store.TypedStore
	glob   string
	logger *slog.Logger
}

// New creates a Watcher over s. glob is matched against the base name of
// changed files (e.g. "*.wit", per Config.IDLGlob). logger defaults to
// slog.Default() when nil.
func New(s *store.TypedStore, glob string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{fsw: fsw, store: s, glob: glob, logger: logger}, nil
}

// Add starts watching dir for IDL file changes.
func (w *Watcher) Add(dir string) error { return w.fsw.Add(dir) }

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return w.fsw.Close()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			matched, err := filepath.Match(w.glob, filepath.Base(ev.Name))
			if err != nil || !matched {
				continue
			}
			w.registerFromFile(ctx, ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) registerFromFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error("reading watched IDL file", "path", path, "error", err)
		return
	}

	base := filepath.Base(path)
	keyspace := strings.TrimSuffix(base, filepath.Ext(base))

	meta, err := w.store.RegisterType(ctx, keyspace, string(data), "", true)
	if err != nil {
		w.logger.Error("register_type from watched file failed", "path", path, "keyspace", keyspace, "error", err)
		return
	}
	w.logger.Info("registered type from watched file", "path", path, "keyspace", keyspace,
		"qualified_name", meta.QualifiedName, "type_version", meta.TypeVersion.String())
}
