// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package diagnostics keeps the published parse and validation errors of open scrapbooks
// up to date.
//
// Every recomputation replaces the whole set for a document; sets are never patched.
// A Tracker reacts to opened, changed and closed notifications and a Watcher produces
// those notifications from a directory on disk.
package diagnostics

import (
	"sort"
	"sync"

	"scrapbook/cli/internal/evaluator"
	"scrapbook/cli/internal/scrapbook"
)

// Source is the Source field of every diagnostic produced here.
const Source = "scrapbook"

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return "unknown"
}

// Diagnostic is one finding attached to a range of a document.
type Diagnostic struct {
	Range    scrapbook.Range
	Severity Severity
	Message  string
	Source   string
}

// Compute derives the diagnostics of text. It depends on nothing but text.
func Compute(text string) []Diagnostic {
	cmds, errs := scrapbook.Parse(text)
	out := make([]Diagnostic, 0, len(errs))
	for _, e := range errs {
		out = append(out, Diagnostic{Range: e.Range, Severity: SeverityError, Message: e.Message, Source: Source})
	}
	for _, cmd := range cmds {
		for _, p := range evaluator.Validate(cmd) {
			out = append(out, Diagnostic{Range: p.Range, Severity: SeverityWarning, Message: p.Message, Source: Source})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Start.Offset < out[j].Range.Start.Offset })
	return out
}

// Publisher receives the complete diagnostic set of a document.
// An empty set means the document has no diagnostics (or is no longer tracked).
type Publisher interface {
	Publish(id string, diags []Diagnostic)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(id string, diags []Diagnostic)

func (f PublisherFunc) Publish(id string, diags []Diagnostic) { f(id, diags) }

// Collection stores the latest published set per document and forwards every
// publication to an optional downstream Publisher.
type Collection struct {
	mu   sync.RWMutex
	sets map[string][]Diagnostic
	next Publisher
}

// NewCollection creates an empty Collection. next may be nil.
func NewCollection(next Publisher) *Collection {
	return &Collection{sets: map[string][]Diagnostic{}, next: next}
}

// Publish replaces the set for id. An empty set removes id from the collection.
func (c *Collection) Publish(id string, diags []Diagnostic) {
	c.mu.Lock()
	if len(diags) == 0 {
		delete(c.sets, id)
	} else {
		c.sets[id] = append([]Diagnostic(nil), diags...)
	}
	c.mu.Unlock()

	if c.next != nil {
		c.next.Publish(id, diags)
	}
}

// Get returns the current set for id.
func (c *Collection) Get(id string) []Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Diagnostic(nil), c.sets[id]...)
}

// IDs returns the documents that currently have diagnostics, sorted.
func (c *Collection) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.sets))
	for id := range c.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
