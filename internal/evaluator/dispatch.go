// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package evaluator

import (
	"context"
	"fmt"
	"sort"

	"scrapbook/cli/internal/docstore"
	apperrors "scrapbook/cli/internal/errors"
	"scrapbook/cli/internal/scrapbook"
)

// invocation is one evaluation of a command. args and chain hold resolved arguments.
type invocation struct {
	cmd   scrapbook.Command
	args  []any
	chain []scrapbook.Call
	db    docstore.Database
	coll  docstore.Collection
}

type handler func(ctx context.Context, inv *invocation) (any, error)

var collectionOps = map[string]handler{
	"find":           find,
	"findOne":        findOne,
	"insertOne":      insertOne,
	"insertMany":     insertMany,
	"insert":         insert,
	"updateOne":      update(false),
	"updateMany":     update(true),
	"replaceOne":     replaceOne,
	"deleteOne":      deleteDocs(false, "deletedCount"),
	"deleteMany":     deleteDocs(true, "deletedCount"),
	"remove":         remove,
	"countDocuments": countDocuments,
	"count":          countDocuments,
	"drop":           dropCollection,
}

var databaseOps = map[string]handler{
	"getCollectionNames": getCollectionNames,
	"createCollection":   createCollection,
	"dropDatabase":       dropDatabase,
	"getName":            getName,
}

var cursorOps = map[string]bool{
	"limit":   true,
	"skip":    true,
	"sort":    true,
	"count":   true,
	"toArray": true,
	"pretty":  true,
}

// Operations returns the recognized operation names for collections and databases, sorted.
func Operations() (collection, database []string) {
	for name := range collectionOps {
		collection = append(collection, name)
	}
	for name := range databaseOps {
		database = append(database, name)
	}
	sort.Strings(collection)
	sort.Strings(database)
	return collection, database
}

func lookup(cmd scrapbook.Command) (handler, error) {
	if p := problems(cmd); len(p) > 0 {
		return nil, apperrors.New(apperrors.UnknownOperation, p[0].Message)
	}
	if cmd.IsDatabaseCommand() {
		return databaseOps[cmd.Operation()], nil
	}
	return collectionOps[cmd.Operation()], nil
}

// Problem is a validation finding on a well-formed command, such as an unknown operation.
type Problem struct {
	Range   scrapbook.Range
	Message string
}

// Validate checks cmd against the dispatch tables without evaluating it.
// Commands with parse errors yield no problems; the parse error already covers them.
func Validate(cmd scrapbook.Command) []Problem {
	if cmd.Err != nil {
		return nil
	}
	return problems(cmd)
}

func problems(cmd scrapbook.Command) []Problem {
	var out []Problem
	op := cmd.Operation()
	if cmd.IsDatabaseCommand() {
		if _, ok := databaseOps[op]; !ok {
			out = append(out, Problem{Range: cmd.Call.NameRange, Message: fmt.Sprintf("unknown database operation %q", op)})
		}
	} else if _, ok := collectionOps[op]; !ok {
		out = append(out, Problem{Range: cmd.Call.NameRange, Message: fmt.Sprintf("unknown collection operation %q", op)})
	}
	for _, c := range cmd.Chain {
		if !cursorOps[c.Name] {
			out = append(out, Problem{Range: c.NameRange, Message: fmt.Sprintf("unknown cursor method %q", c.Name)})
		}
	}
	return out
}

// argument helpers

func (inv *invocation) arity(lo, hi int) error {
	n := len(inv.args)
	if n < lo || n > hi {
		if lo == hi {
			return fmt.Errorf("%s expects %d argument(s), got %d", inv.cmd.Operation(), lo, n)
		}
		return fmt.Errorf("%s expects %d to %d arguments, got %d", inv.cmd.Operation(), lo, hi, n)
	}
	return nil
}

func (inv *invocation) doc(i int, what string) (docstore.D, error) {
	if i >= len(inv.args) || inv.args[i] == nil {
		return docstore.D{}, nil
	}
	d, ok := inv.args[i].(docstore.D)
	if !ok {
		return nil, fmt.Errorf("%s: %s must be a document", inv.cmd.Operation(), what)
	}
	return d, nil
}

func (inv *invocation) str(i int, what string) (string, error) {
	if i >= len(inv.args) {
		return "", fmt.Errorf("%s: %s is required", inv.cmd.Operation(), what)
	}
	s, ok := inv.args[i].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s: %s must be a non-empty string", inv.cmd.Operation(), what)
	}
	return s, nil
}

// upsert reads the {upsert: bool} option document at index i.
func (inv *invocation) upsert(i int) (bool, error) {
	opts, err := inv.doc(i, "options")
	if err != nil {
		return false, err
	}
	v, ok := opts.Get("upsert")
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: upsert must be a boolean", inv.cmd.Operation())
	}
	return b, nil
}

func (inv *invocation) noChain() error {
	if len(inv.cmd.Chain) > 0 {
		return fmt.Errorf("%s does not return a cursor; .%s() cannot follow it", inv.cmd.Operation(), inv.cmd.Chain[0].Name)
	}
	return nil
}

func toInt(v any, what string) (int64, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%s must not be negative", what)
		}
		return n, nil
	case float64:
		if n < 0 || n != float64(int64(n)) {
			return 0, fmt.Errorf("%s must be a non-negative integer", what)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number", what)
	}
}
