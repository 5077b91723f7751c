// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package diagnostics

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher turns file system activity in one directory into Tracker events. Files with
// the scrapbook extension get the scrapbook language tag; every other file gets its
// extension as tag and is ignored by the Tracker.
type Watcher struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	dir       string
	extension string
	language  string
	handle    func(Event)
	logger    *zap.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// NewWatcher creates a Watcher for dir. handle is called from the watcher goroutine,
// one event at a time.
func NewWatcher(dir, extension, language string, handle func(Event), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:   fw,
		dir:       dir,
		extension: extension,
		language:  language,
		handle:    handle,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start reports every existing file as opened and begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("watching directory", zap.String("dir", w.dir))

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("listing watched directory", zap.String("dir", w.dir), zap.Error(err))
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.read(Opened, filepath.Join(w.dir, e.Name()))
		}
	}

	go w.run(ctx)
	return nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("closing watcher", zap.Error(err))
	}
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		w.read(Opened, ev.Name)
	case ev.Op&fsnotify.Write != 0:
		w.read(Changed, ev.Name)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.handle(Event{Kind: Closed, ID: ev.Name, Language: w.languageOf(ev.Name)})
	}
}

func (w *Watcher) read(kind EventKind, path string) {
	lang := w.languageOf(path)
	if lang != w.language {
		w.handle(Event{Kind: kind, ID: path, Language: lang})
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.handle(Event{Kind: Closed, ID: path, Language: lang})
			return
		}
		w.logger.Warn("reading scrapbook", zap.String("path", path), zap.Error(err))
		return
	}
	w.handle(Event{Kind: kind, ID: path, Language: lang, Text: string(b)})
}

func (w *Watcher) languageOf(path string) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, w.extension) {
		return w.language
	}
	return strings.TrimPrefix(ext, ".")
}
