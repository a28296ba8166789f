package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a manifest whenever its file changes.
//
// The containing directory is watched rather than the file itself so that
// editors that save by renaming are still seen.
type Watcher struct {
	Path     string
	Debounce time.Duration

	// OnChange receives every successfully parsed version.
	OnChange func(*Manifest)
	// OnError receives parse and watch errors. Optional.
	OnError func(error)
}

// NewWatcher creates a Watcher for path.
func NewWatcher(path string, onChange func(*Manifest)) *Watcher {
	return &Watcher{Path: path, Debounce: DefaultDebounce, OnChange: onChange}
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolving manifest path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.report(err)

		case <-timer.C:
			m, err := Load(abs)
			if err != nil {
				w.report(err)
				continue
			}
			if w.OnChange != nil {
				w.OnChange(m)
			}
		}
	}
}

func (w *Watcher) report(err error) {
	if w.OnError != nil {
		w.OnError(err)
	}
}
