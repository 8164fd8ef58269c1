// Package watch rebuilds when files under the context directory change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 200 * time.Millisecond

// defaultIgnores skips dependencies, dot directories and editor backups.
var defaultIgnores = []string{
	"**/node_modules",
	"**/node_modules/**",
	"**/.*",
	"**/.*/**",
	"**/*~",
}

var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type Config struct {
	// BaseDir is the directory watched recursively.
	BaseDir string
	// Ignore holds extra doublestar patterns relative to BaseDir.
	Ignore []string
	// Debounce is the quiet period after the last event before OnChange runs.
	Debounce time.Duration
	// OnChange receives the changed paths relative to BaseDir. Errors are
	// logged and watching continues.
	OnChange func(ctx context.Context, changed []string) error
}

type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	ignores  []string
	debounce time.Duration
	baseDir  string
	started  atomic.Bool
}

// New registers every directory under BaseDir that is not ignored.
func New(cfg Config) (*Watcher, error) {
	baseDir, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	for _, pat := range cfg.Ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", pat)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		baseDir:  baseDir,
	}

	if err := w.addDirectories(); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, err
	}

	return w, nil
}

// Run blocks until ctx is cancelled, batching events into debounced OnChange
// calls. OnChange runs on the event loop, so changes made while it runs are
// delivered in the next batch.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			log.Warn().Err(err).Msg("watch: close fsnotify")
		}
	}()

	pending := map[string]struct{}{}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil || w.isIgnored(rel) {
				continue
			}

			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			pending[filepath.ToSlash(rel)] = struct{}{}
			timer.Reset(w.debounce)
			debounceCh = timer.C

		case <-debounceCh:
			debounceCh = nil
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.fire(ctx, changed)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn().Err(err).Msg("watch: events dropped")
				continue
			}
			log.Error().Err(err).Msg("watch: fsnotify error")
		}
	}
}

func (w *Watcher) fire(ctx context.Context, changed []string) {
	if len(changed) == 0 || w.cfg.OnChange == nil {
		return
	}

	log.Info().Strs("changed", changed).Msg("Change detected, rebuilding")
	if err := w.cfg.OnChange(ctx, changed); err != nil {
		log.Error().Err(err).Msg("Rebuild failed")
	}
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("watch: skipping inaccessible path")
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.baseDir, path)
		if err != nil {
			return nil //nolint:nilerr
		}
		if rel != "." && w.isIgnored(rel) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk directory tree: %w", err)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("watch: add new directory")
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}
