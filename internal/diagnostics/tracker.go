// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package diagnostics

import (
	"sync"

	"go.uber.org/zap"
)

// EventKind is a document lifecycle notification.
type EventKind int

const (
	Opened EventKind = iota + 1
	Changed
	Closed
)

func (k EventKind) String() string {
	switch k {
	case Opened:
		return "opened"
	case Changed:
		return "changed"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Event is a notification about one document. Text is ignored for Closed.
type Event struct {
	Kind     EventKind
	ID       string
	Language string
	Text     string
}

// Tracker recomputes diagnostics of tracked documents and publishes them.
//
// Recomputations may overlap; each one takes a sequence number and only the newest
// for a document is published. A closed document is untracked, so recomputations still
// in flight for it are dropped.
type Tracker struct {
	language string
	pub      Publisher
	logger   *zap.Logger

	mu      sync.Mutex
	seq     uint64
	tracked map[string]uint64
}

// NewTracker creates a Tracker for documents whose language tag is language.
func NewTracker(language string, pub Publisher, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{language: language, pub: pub, logger: logger, tracked: map[string]uint64{}}
}

// Handle dispatches ev. Documents in other languages are ignored.
func (t *Tracker) Handle(ev Event) {
	if ev.Language != t.language {
		return
	}
	switch ev.Kind {
	case Opened, Changed:
		t.Update(ev.ID, ev.Text)
	case Closed:
		t.Close(ev.ID)
	}
}

// Update tracks id and replaces its published diagnostics with those of text.
func (t *Tracker) Update(id, text string) {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.tracked[id] = seq
	t.mu.Unlock()

	diags := Compute(text)

	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.tracked[id]; !ok || cur != seq {
		t.logger.Debug("dropping stale diagnostics", zap.String("document", id), zap.Uint64("seq", seq))
		return
	}
	t.logger.Debug("publishing diagnostics", zap.String("document", id), zap.Int("count", len(diags)))
	t.pub.Publish(id, diags)
}

// Close stops tracking id and publishes an empty set for it.
func (t *Tracker) Close(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tracked[id]; !ok {
		return
	}
	delete(t.tracked, id)
	t.pub.Publish(id, nil)
}

// Tracked reports whether id is tracked.
func (t *Tracker) Tracked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tracked[id]
	return ok
}
