// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is one observed mutation of a file-backed store.
type Change struct {
	// Key is the content key of the affected blob.
	Key Key

	// Op is the kind of mutation.
	Op ChangeOp

	// Time is when the mutation was detected.
	Time time.Time
}

// ChangeOp is the kind of store mutation.
type ChangeOp int

const (
	// ChangeStored indicates a blob appeared under its final key.
	ChangeStored ChangeOp = iota

	// ChangeRemoved indicates a blob was deleted or renamed away.
	ChangeRemoved
)

// String returns the string representation of the operation.
func (op ChangeOp) String() string {
	switch op {
	case ChangeStored:
		return "stored"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ChangeHandler is called when debounced changes are ready.
type ChangeHandler func(changes []Change)

// Watcher observes a FileStore directory for snapshot blobs.
//
// Description:
//
//	Watches the store root and its shard directories via fsnotify and
//	batches observations with a debounce window, so a run persisting on
//	a tight cadence produces one handler call per burst rather than one
//	per blob. Because the FileStore writes blobs with tmp+rename, the
//	watcher only ever reports complete files.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single
// goroutine.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration

	// Channels for communication
	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before
	// invoking the handler.
	// Default: 100ms
	DebounceWindow time.Duration

	// BufferSize is the size of the change buffer channel.
	// Default: 256
	BufferSize int
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 100 * time.Millisecond,
		BufferSize:     256,
	}
}

// NewWatcher creates a watcher over a file store directory.
//
// Description:
//
//	The directory is typically FileStore.Dir() of a store another
//	process is persisting into. The watcher does not create the
//	directory; open the store first.
//
// Inputs:
//
//	dir - Root directory of the file store.
//	handler - Function called with batched changes after the debounce
//	window expires.
//	opts - Optional configuration (nil uses defaults).
//
// Outputs:
//
//	*Watcher - Ready-to-use watcher (call Start to begin observing).
//	error - Non-nil if the underlying fsnotify watcher could not be
//	created.
func NewWatcher(dir string, handler ChangeHandler, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dir:      dir,
		watcher:  watcher,
		handler:  handler,
		debounce: opts.DebounceWindow,
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start begins observing the store directory.
//
// Description:
//
//	Watches the root and every existing shard directory. Shard
//	directories created later are picked up from their create events.
//	Spawns two goroutines, an event processor converting fsnotify
//	events to Changes and a debouncer batching them for the handler.
//	Both exit when Stop is called or the context is cancelled.
//
// Inputs:
//
//	ctx - Context for cancellation.
//
// Outputs:
//
//	error - Non-nil if the directories could not be added to the watch
//	list.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil // Already watching
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addStoreDirs(); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// addStoreDirs watches the store root and its existing shard
// directories. The layout is fixed at two levels, so no recursive walk
// is needed.
func (w *Watcher) addStoreDirs() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !isShardDir(entry.Name()) || !entry.IsDir() {
			continue
		}
		if err := w.watcher.Add(filepath.Join(w.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// isShardDir reports whether name is a two-character key prefix.
func isShardDir(name string) bool {
	if len(name) != 2 {
		return false
	}
	for _, c := range []byte(name) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// processEvents converts fsnotify events to Changes and sends them to
// the debouncer.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Shard directories are created lazily by Put.
			if event.Has(fsnotify.Create) && isShardDir(filepath.Base(event.Name)) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watcher.Add(event.Name)
					continue
				}
			}

			change, ok := classify(event)
			if !ok {
				continue
			}

			// Send to debounce channel (non-blocking). The debouncer
			// keeps up in practice; a full buffer drops the event.
			select {
			case w.changes <- change:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			_ = err
		}
	}
}

// classify maps an fsnotify event to a store change. Temp files and
// entries whose name is not a content key in its matching shard are
// dropped.
func classify(event fsnotify.Event) (Change, bool) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return Change{}, false
	}

	key := Key(base)
	if !key.Valid() || !strings.HasPrefix(base, filepath.Base(filepath.Dir(event.Name))) {
		return Change{}, false
	}

	change := Change{Key: key, Time: time.Now()}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		change.Op = ChangeRemoved
	default:
		// Create covers the rename-into-place write path. Write should
		// not fire for final key names but means the same thing.
		change.Op = ChangeStored
	}
	return change, true
}

// debounceLoop batches changes and calls the handler after the
// debounce window.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			deduped := deduplicateChanges(batch)
			if len(deduped) > 0 && w.handler != nil {
				w.handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			flush()
		}
	}
}

// deduplicateChanges keeps the most recent change per key, preserving
// first-seen order.
func deduplicateChanges(changes []Change) []Change {
	seen := make(map[Key]int) // key -> index in result
	result := make([]Change, 0, len(changes))

	for _, change := range changes {
		if idx, exists := seen[change.Key]; exists {
			result[idx] = change
		} else {
			seen[change.Key] = len(result)
			result = append(result, change)
		}
	}

	return result
}
