// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package docstore

import (
	"fmt"
	"reflect"
	"strings"
)

// ApplyUpdate applies an operator update ($set, $unset, $inc, $push, $setOnInsert)
// to a copy of doc. inserting enables $setOnInsert. The returned flag reports whether
// the document changed.
func ApplyUpdate(doc, update D, inserting bool) (D, bool, error) {
	if !update.IsOperatorDoc() {
		return nil, false, fmt.Errorf("update document requires atomic operators")
	}
	out := doc.Clone()
	for _, op := range update {
		fields, ok := op.Value.(D)
		if !ok {
			return nil, false, fmt.Errorf("%s expects a document", op.Key)
		}
		for _, f := range fields {
			if f.Key == "_id" && op.Key != "$setOnInsert" {
				if cur, ok := out.Get("_id"); !ok || !reflect.DeepEqual(cur, f.Value) {
					return nil, false, fmt.Errorf("performing an update on the path '_id' would modify the immutable field '_id'")
				}
			}
			var err error
			switch op.Key {
			case "$set":
				out, err = setPath(out, f.Key, cloneValue(f.Value))
			case "$setOnInsert":
				if inserting {
					out, err = setPath(out, f.Key, cloneValue(f.Value))
				}
			case "$unset":
				out = unsetPath(out, f.Key)
			case "$inc":
				out, err = incPath(out, f.Key, f.Value)
			case "$push":
				out, err = pushPath(out, f.Key, f.Value)
			default:
				return nil, false, fmt.Errorf("unknown update operator %s", op.Key)
			}
			if err != nil {
				return nil, false, err
			}
		}
	}
	return out, !reflect.DeepEqual(doc, out), nil
}

// Replace returns replacement carrying doc's _id. The replacement must not contain operators.
func Replace(doc, replacement D) (D, error) {
	if replacement.IsOperatorDoc() {
		return nil, fmt.Errorf("replacement document must not contain atomic operators")
	}
	out := replacement.Clone()
	id, hasID := doc.Get("_id")
	if newID, ok := out.Get("_id"); ok && hasID && !reflect.DeepEqual(newID, id) {
		return nil, fmt.Errorf("the _id field cannot be changed")
	}
	if hasID {
		out = append(D{{Key: "_id", Value: id}}, out.Delete("_id")...)
	}
	return out, nil
}

// UpsertSeed builds the document inserted by an upsert: the plain equality fields of filter.
func UpsertSeed(filter D) D {
	var seed D
	for _, e := range filter {
		if strings.HasPrefix(e.Key, "$") || strings.Contains(e.Key, ".") {
			continue
		}
		if sub, ok := e.Value.(D); ok && sub.IsOperatorDoc() {
			if v, ok := sub.Get("$eq"); ok && len(sub) == 1 {
				seed = append(seed, E{Key: e.Key, Value: cloneValue(v)})
			}
			continue
		}
		seed = append(seed, E{Key: e.Key, Value: cloneValue(e.Value)})
	}
	return seed
}

// LookupPath resolves a dotted path such as "address.city".
func LookupPath(doc D, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		d, ok := cur.(D)
		if !ok {
			return nil, false
		}
		if cur, ok = d.Get(part); !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc D, path string, v any) (D, error) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return doc.Set(head, v), nil
	}
	child := D{}
	if cur, ok := doc.Get(head); ok {
		d, isDoc := cur.(D)
		if !isDoc {
			return nil, fmt.Errorf("cannot create field '%s' in element {%s: %v}", rest, head, cur)
		}
		child = d
	}
	child, err := setPath(child, rest, v)
	if err != nil {
		return nil, err
	}
	return doc.Set(head, child), nil
}

func unsetPath(doc D, path string) D {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return doc.Delete(head)
	}
	if cur, ok := doc.Get(head); ok {
		if d, isDoc := cur.(D); isDoc {
			return doc.Set(head, unsetPath(d, rest))
		}
	}
	return doc
}

func incPath(doc D, path string, by any) (D, error) {
	cur, ok := LookupPath(doc, path)
	if !ok {
		cur = int64(0)
	}
	sum, err := addNumbers(cur, by)
	if err != nil {
		return nil, fmt.Errorf("cannot apply $inc to %s: %w", path, err)
	}
	return setPath(doc, path, sum)
}

func pushPath(doc D, path string, v any) (D, error) {
	items := []any{}
	if cur, ok := LookupPath(doc, path); ok {
		arr, isArr := cur.([]any)
		if !isArr {
			return nil, fmt.Errorf("the field '%s' must be an array", path)
		}
		items = append(items, arr...)
	}
	// {$push: {tags: {$each: [...]}}}
	if each, ok := v.(D); ok && len(each) == 1 && each[0].Key == "$each" {
		list, isArr := each[0].Value.([]any)
		if !isArr {
			return nil, fmt.Errorf("$each expects an array")
		}
		for _, x := range list {
			items = append(items, cloneValue(x))
		}
	} else {
		items = append(items, cloneValue(v))
	}
	return setPath(doc, path, items)
}

func addNumbers(a, b any) (any, error) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x + y, nil
		case float64:
			return float64(x) + y, nil
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return x + float64(y), nil
		case float64:
			return x + y, nil
		}
	default:
		return nil, fmt.Errorf("non-numeric value %v", a)
	}
	return nil, fmt.Errorf("non-numeric increment %v", b)
}
