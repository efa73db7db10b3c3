// Package watch reports changes made to a file by other processes.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is how long events must settle before the file is read.
const DefaultDelay = 100 * time.Millisecond

// Watcher watches one file.
//
// The directory is watched rather than the file itself, since atomic
// replacement swaps the inode and a watch on the old inode goes silent.
// Content the owner declared with Known or Expect is not reported, which
// filters out the owner's own writes.
type Watcher struct {
	path     string
	delay    time.Duration
	onChange func(data []byte)
	logger   *slog.Logger

	fsw       *fsnotify.Watcher
	done      chan struct{}
	startOnce sync.Once

	// mu is held while the file is read, so content that Known reports as
	// written is never older than what check compares against.
	mu      sync.Mutex
	known   uint64
	seen    bool
	pending uint64
}

// New watches path. Once Start is called, onChange is called from the watcher
// goroutine with the new content of the file. logger is expected to identify
// the file.
func New(path string, delay time.Duration, logger *slog.Logger, onChange func(data []byte)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err), fsw.Close())
	}
	w := &Watcher{
		path:     abs,
		delay:    delay,
		onChange: onChange,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	return w, nil
}

// Start begins reporting changes. Events since New are not lost.
func (w *Watcher) Start() {
	w.startOnce.Do(func() { go w.run() })
}

// Known records data as the current content of the file.
func (w *Watcher) Known(data []byte) {
	h := xxhash.Sum64(data)
	w.mu.Lock()
	w.known = h
	w.seen = true
	w.mu.Unlock()
}

// Expect records data as about to replace the file. Until the next Expect,
// finding data in the file is not a change.
func (w *Watcher) Expect(data []byte) {
	h := xxhash.Sum64(data)
	w.mu.Lock()
	w.pending = h
	w.mu.Unlock()
}

// IsCurrent reports whether data is the content last known to be in the file.
// A change reported by onChange is stale once the owner wrote over it.
func (w *Watcher) IsCurrent(data []byte) bool {
	h := xxhash.Sum64(data)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen && w.known == h
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.startOnce.Do(func() { close(w.done) })
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	t := time.NewTimer(time.Hour)
	t.Stop()
	defer t.Stop()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				t.Reset(w.delay)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Error watching file", "err", err)
		case <-t.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	w.mu.Lock()
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.mu.Unlock()
		if !os.IsNotExist(err) {
			w.logger.Warn("Failed to read changed file", "err", err)
		}
		return
	}
	h := xxhash.Sum64(data)
	same := w.seen && (h == w.known || h == w.pending)
	w.known = h
	w.seen = true
	w.mu.Unlock()
	if same {
		return
	}
	w.logger.Info("File changed on disk", "bytes", len(data))
	w.onChange(data)
}
