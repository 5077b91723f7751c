// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package docstore

import (
	"fmt"
	"strings"
)

// sqlFilter translates query documents into a WHERE clause over the jsonb "doc" column.
// Equality uses jsonb containment (@>).
type sqlFilter struct {
	args []any
}

func (f *sqlFilter) arg(v any) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

func (f *sqlFilter) jsonArg(v any) (string, error) {
	b, err := MarshalExtJSON(v, false)
	if err != nil {
		return "", err
	}
	return f.arg(string(b)) + "::jsonb", nil
}

func (f *sqlFilter) pathArg(path string) string {
	return f.arg(strings.Split(path, ".")) + "::text[]"
}

// where renders filter; an empty filter matches everything.
func (f *sqlFilter) where(filter D) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}
	clauses := make([]string, 0, len(filter))
	for _, e := range filter {
		var (
			clause string
			err    error
		)
		switch e.Key {
		case "$and", "$or", "$nor":
			clause, err = f.logical(e.Key, e.Value)
		default:
			if strings.HasPrefix(e.Key, "$") {
				return "", fmt.Errorf("unknown top level operator: %s", e.Key)
			}
			clause, err = f.field(e.Key, e.Value)
		}
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), nil
}

func (f *sqlFilter) logical(op string, v any) (string, error) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return "", fmt.Errorf("%s must be a nonempty array", op)
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		sub, ok := item.(D)
		if !ok {
			return "", fmt.Errorf("%s entries must be documents", op)
		}
		clause, err := f.where(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+clause+")")
	}
	switch op {
	case "$and":
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case "$or":
		return "(" + strings.Join(parts, " OR ") + ")", nil
	default:
		return "NOT (" + strings.Join(parts, " OR ") + ")", nil
	}
}

func (f *sqlFilter) field(path string, v any) (string, error) {
	ops, ok := v.(D)
	if !ok || !ops.IsOperatorDoc() {
		return f.eq(path, v)
	}
	clauses := make([]string, 0, len(ops))
	for _, op := range ops {
		clause, err := f.operator(path, op.Key, op.Value, ops)
		if err != nil {
			return "", err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return "(" + strings.Join(clauses, " AND ") + ")", nil
}

var comparisons = map[string]string{
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

func (f *sqlFilter) operator(path, op string, v any, siblings D) (string, error) {
	switch op {
	case "$eq":
		return f.eq(path, v)
	case "$ne":
		clause, err := f.eq(path, v)
		if err != nil {
			return "", err
		}
		return "NOT " + clause, nil
	case "$gt", "$gte", "$lt", "$lte":
		p := f.pathArg(path)
		val, err := f.jsonArg(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(jsonb_typeof(doc #> %s) = jsonb_typeof(%s) AND doc #> %s %s %s)", p, val, p, comparisons[op], val), nil
	case "$in", "$nin":
		list, ok := v.([]any)
		if !ok {
			return "", fmt.Errorf("%s needs an array", op)
		}
		if len(list) == 0 {
			if op == "$in" {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			clause, err := f.eq(path, item)
			if err != nil {
				return "", err
			}
			parts = append(parts, clause)
		}
		clause := "(" + strings.Join(parts, " OR ") + ")"
		if op == "$nin" {
			return "NOT " + clause, nil
		}
		return clause, nil
	case "$exists":
		want, ok := v.(bool)
		if !ok {
			if n, isInt := v.(int64); isInt {
				want, ok = n != 0, true
			}
		}
		if !ok {
			return "", fmt.Errorf("$exists needs a boolean")
		}
		if want {
			return fmt.Sprintf("doc #> %s IS NOT NULL", f.pathArg(path)), nil
		}
		return fmt.Sprintf("doc #> %s IS NULL", f.pathArg(path)), nil
	case "$regex":
		pattern, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("$regex has to be a string")
		}
		cmp := "~"
		if opts, ok := siblings.Get("$options"); ok {
			if s, _ := opts.(string); strings.Contains(s, "i") {
				cmp = "~*"
			}
		}
		return fmt.Sprintf("doc #>> %s %s %s", f.pathArg(path), cmp, f.arg(pattern)), nil
	case "$options":
		if _, ok := siblings.Get("$regex"); !ok {
			return "", fmt.Errorf("$options needs a $regex")
		}
		return "", nil
	case "$not":
		sub, ok := v.(D)
		if !ok || !sub.IsOperatorDoc() {
			return "", fmt.Errorf("$not needs an operator document")
		}
		clause, err := f.field(path, sub)
		if err != nil {
			return "", err
		}
		return "NOT " + clause, nil
	default:
		return "", fmt.Errorf("unknown operator: %s", op)
	}
}

// eq matches path == v. null also matches a missing field, as on MongoDB.
func (f *sqlFilter) eq(path string, v any) (string, error) {
	if v == nil {
		p := f.pathArg(path)
		return fmt.Sprintf("(doc #> %s IS NULL OR doc #> %s = 'null'::jsonb)", p, p), nil
	}
	parts := strings.Split(path, ".")
	var nested any = v
	for i := len(parts) - 1; i >= 0; i-- {
		nested = D{{Key: parts[i], Value: nested}}
	}
	val, err := f.jsonArg(nested)
	if err != nil {
		return "", err
	}
	return "doc @> " + val, nil
}

// orderBy renders a sort document such as {age: -1, name: 1}.
func (f *sqlFilter) orderBy(sort D) (string, error) {
	if len(sort) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(sort))
	for _, e := range sort {
		dir := "ASC"
		switch n := e.Value.(type) {
		case int64:
			if n < 0 {
				dir = "DESC"
			}
		case float64:
			if n < 0 {
				dir = "DESC"
			}
		default:
			return "", fmt.Errorf("invalid sort direction for %s", e.Key)
		}
		parts = append(parts, fmt.Sprintf("doc #> %s %s", f.pathArg(e.Key), dir))
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
