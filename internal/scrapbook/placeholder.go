// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package scrapbook

import (
	"time"

	"scrapbook/cli/internal/docstore"
)

// Placeholder stands for a value generated when the command runs, keeping Parse
// deterministic: ObjectId() and new Date() without arguments.
type Placeholder int

const (
	NewObjectID Placeholder = iota + 1
	Now
)

func (p Placeholder) String() string {
	switch p {
	case NewObjectID:
		return "ObjectId()"
	case Now:
		return "new Date()"
	}
	return "Placeholder(?)"
}

// Resolve returns v with every placeholder replaced by a fresh value.
func Resolve(v any) any {
	switch t := v.(type) {
	case Placeholder:
		switch t {
		case NewObjectID:
			return docstore.NewObjectID()
		case Now:
			return time.Now().UTC().Truncate(time.Millisecond)
		}
		return nil
	case docstore.D:
		out := make(docstore.D, len(t))
		for i, e := range t {
			out[i] = docstore.E{Key: e.Key, Value: Resolve(e.Value)}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = Resolve(x)
		}
		return out
	default:
		return v
	}
}
