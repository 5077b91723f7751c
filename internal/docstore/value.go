// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package docstore

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// E is one field of an ordered document.
type E struct {
	Key   string
	Value any
}

// D is an ordered document. Values are nil, bool, int64, float64, string, time.Time,
// ObjectID, D or []any.
type D []E

// Get returns the value stored under key.
func (d D) Get(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces key in place or appends it.
func (d D) Set(key string, v any) D {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = v
			return d
		}
	}
	return append(d, E{Key: key, Value: v})
}

// Delete removes key, keeping the order of the remaining fields.
func (d D) Delete(key string) D {
	for i := range d {
		if d[i].Key == key {
			return append(d[:i:i], d[i+1:]...)
		}
	}
	return d
}

// Keys lists the field names in order.
func (d D) Keys() []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}

// IsOperatorDoc reports whether the first key starts with '$' (an update or query operator).
func (d D) IsOperatorDoc() bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

// Clone deep-copies d.
func (d D) Clone() D {
	if d == nil {
		return nil
	}
	out := make(D, len(d))
	for i, e := range d {
		out[i] = E{Key: e.Key, Value: cloneValue(e.Value)}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case D:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}

// ObjectID is a 12-byte MongoDB object identifier.
type ObjectID [12]byte

// NilObjectID is the zero ObjectID.
var NilObjectID ObjectID

// NewObjectID generates an ObjectID with the driver's time, process and counter layout.
func NewObjectID() ObjectID {
	return ObjectID(primitive.NewObjectID())
}

// ObjectIDFromHex parses a 24 character hex string.
func ObjectIDFromHex(s string) (ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return NilObjectID, fmt.Errorf("invalid ObjectId %q: %w", s, err)
	}
	return ObjectID(id), nil
}

// Hex returns the 24 character hex form.
func (id ObjectID) Hex() string { return primitive.ObjectID(id).Hex() }

func (id ObjectID) String() string { return fmt.Sprintf("ObjectId(%q)", id.Hex()) }

// Timestamp returns the creation time encoded in the id.
func (id ObjectID) Timestamp() time.Time {
	return primitive.ObjectID(id).Timestamp().UTC()
}

// IDString renders an _id value as the key used for labels and the PostgreSQL id column.
func IDString(v any) string {
	switch t := v.(type) {
	case ObjectID:
		return t.Hex()
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case nil:
		return ""
	default:
		b, err := MarshalExtJSON(v, false)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
