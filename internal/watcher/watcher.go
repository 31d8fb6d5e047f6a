// Package watcher ingests files dropped into per-user inbox directories.
// Each inbox maps a directory to a user id; files that appear there are
// stored through the memory service and removed from the inbox on success.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/omoide/internal/memory"
)

const defaultDebounce = 400 * time.Millisecond

// Inbox binds a drop directory to the user its files belong to.
type Inbox struct {
	Directory string
	UserID    string
}

// InboxWatcher watches inbox directories and ingests files as they land.
type InboxWatcher struct {
	inboxes     []Inbox
	extensions  []string
	service     *memory.Service
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures an InboxWatcher.
type Option func(*InboxWatcher)

// WithLogger sets a logger for ingest and event output.
func WithLogger(l *zap.Logger) Option {
	return func(w *InboxWatcher) { w.logger = l }
}

// WithDebounce overrides the write-settle delay before a file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *InboxWatcher) { w.debounce = d }
}

// NewInboxWatcher creates a watcher over the given inboxes. extensions filter
// which files are picked up (empty = all).
func NewInboxWatcher(inboxes []Inbox, extensions []string, service *memory.Service, opts ...Option) *InboxWatcher {
	w := &InboxWatcher{
		inboxes:     inboxes,
		extensions:  extensions,
		service:     service,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts watching. Missing inbox directories are created. It runs until
// ctx is cancelled or Stop is called.
func (w *InboxWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("inbox watcher starting",
		zap.Int("inboxes", len(w.inboxes)), zap.Strings("extensions", w.extensions))
	for _, inbox := range w.inboxes {
		if err := w.addInboxLocked(inbox); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *InboxWatcher) addInboxLocked(inbox Inbox) error {
	dir := filepath.Clean(inbox.Directory)
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return w.watcher.Add(dir)
}

func (w *InboxWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("inbox watcher error", zap.Error(err))
			}
		}
	}
}

func (w *InboxWatcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	userID, ok := w.ownerOf(path)
	if !ok {
		return
	}
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		if w.matchExtension(path) {
			w.debounceIngest(ctx, userID, path)
		}
	case fsnotify.Remove:
		w.cancelDebounce(path)
	}
}

// ownerOf resolves the inbox a path belongs to. Inboxes are flat: only files
// directly inside an inbox directory are picked up.
func (w *InboxWatcher) ownerOf(path string) (string, bool) {
	dir := filepath.Dir(filepath.Clean(path))
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, inbox := range w.inboxes {
		if filepath.Clean(inbox.Directory) == dir {
			return inbox.UserID, true
		}
	}
	return "", false
}

func (w *InboxWatcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *InboxWatcher) debounceIngest(ctx context.Context, userID, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.ingest(ctx, userID, path)
	})
	w.debounceMap[path] = t
}

func (w *InboxWatcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *InboxWatcher) ingest(ctx context.Context, userID, path string) {
	doc, err := w.service.Store(ctx, userID, memory.StoreRequest{
		FilePath:     path,
		OriginalName: filepath.Base(path),
	})
	if err != nil {
		w.logger.Warn("inbox ingest failed",
			zap.String("user_id", userID), zap.String("path", path), zap.Error(err))
		return
	}
	// The service keeps its own copy, so the inbox file is done.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to remove ingested inbox file",
			zap.String("path", path), zap.Error(err))
	}
	w.logger.Info("inbox file ingested",
		zap.String("user_id", userID),
		zap.String("path", path),
		zap.String("document_id", doc.ID))
}

// SyncExistingFiles ingests files already present in each inbox. Call after
// Start to pick up files dropped while the watcher was down.
func (w *InboxWatcher) SyncExistingFiles(ctx context.Context) {
	w.mu.Lock()
	inboxes := append([]Inbox(nil), w.inboxes...)
	w.mu.Unlock()
	for _, inbox := range inboxes {
		entries, err := os.ReadDir(inbox.Directory)
		if err != nil {
			w.logger.Debug("inbox sync skipped", zap.String("dir", inbox.Directory), zap.Error(err))
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(inbox.Directory, entry.Name())
			if w.matchExtension(path) {
				w.ingest(ctx, inbox.UserID, path)
			}
		}
	}
}

// Stop stops the watcher and releases resources.
func (w *InboxWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
