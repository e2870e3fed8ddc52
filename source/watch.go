package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultPattern matches the ranges files cursorfold writes and reads.
const DefaultPattern = "**/*.ranges.{json,yaml,yml}"

// Watcher reports ranges files under a directory tree that change.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	pattern   string
	debounce  time.Duration
	logger    *slog.Logger
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Root is the directory to watch, recursively.
	Root string

	// Pattern is a doublestar glob matched against paths relative to Root
	// and against base names. Defaults to DefaultPattern.
	Pattern string

	// Debounce coalesces bursts of events on the same file (defaults to 100ms).
	Debounce time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// NewWatcher watches every directory under cfg.Root.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", cfg.Root, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fsWatcher: fsWatcher,
		root:      root,
		pattern:   pattern,
		debounce:  debounce,
		logger:    logger,
	}
	if err := w.addTree(root); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds dir and its subdirectories; fsnotify does not recurse.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// Match reports whether path is a watched ranges file.
func (w *Watcher) Match(path string) bool {
	if rel, err := filepath.Rel(w.root, path); err == nil {
		if ok, _ := doublestar.Match(w.pattern, filepath.ToSlash(rel)); ok {
			return true
		}
	}
	ok, _ := doublestar.Match(w.pattern, filepath.Base(path))
	return ok
}

// Close releases the watcher. It is safe to call more than once, and a
// running Watch stops and closes its channel.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// Watch emits the absolute paths of matching files that were written or
// created, at most once per debounce window each, until ctx is done. The
// channel is closed and the watcher released when Watch stops.
func (w *Watcher) Watch(ctx context.Context) <-chan string {
	out := make(chan string)
	go w.run(ctx, out)
	return out
}

func (w *Watcher) run(ctx context.Context, out chan<- string) {
	defer close(out)
	defer w.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !w.Match(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				w.logger.Debug("ranges file changed", "path", p)
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}
