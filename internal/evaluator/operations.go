// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package evaluator

import (
	"context"
	"fmt"

	"scrapbook/cli/internal/docstore"
)

// cursor is a find call with its chained modifiers folded in.
type cursor struct {
	filter docstore.D
	opts   docstore.FindOptions
	count  bool
}

func buildCursor(inv *invocation) (*cursor, error) {
	if err := inv.arity(0, 2); err != nil {
		return nil, err
	}
	filter, err := inv.doc(0, "filter")
	if err != nil {
		return nil, err
	}
	projection, err := inv.doc(1, "projection")
	if err != nil {
		return nil, err
	}
	c := &cursor{filter: filter, opts: docstore.FindOptions{Projection: projection}}

	for i, call := range inv.chain {
		if c.count {
			return nil, fmt.Errorf(".%s() cannot follow .count()", call.Name)
		}
		switch call.Name {
		case "limit", "skip":
			if len(call.Args) != 1 {
				return nil, fmt.Errorf(".%s() expects 1 argument, got %d", call.Name, len(call.Args))
			}
			n, err := toInt(call.Args[0], call.Name)
			if err != nil {
				return nil, err
			}
			if call.Name == "limit" {
				c.opts.Limit = n
			} else {
				c.opts.Skip = n
			}
		case "sort":
			if len(call.Args) != 1 {
				return nil, fmt.Errorf(".sort() expects 1 argument, got %d", len(call.Args))
			}
			by, ok := call.Args[0].(docstore.D)
			if !ok {
				return nil, fmt.Errorf(".sort() expects a document")
			}
			c.opts.Sort = by
		case "count":
			c.count = true
		case "toArray", "pretty":
			if len(call.Args) != 0 {
				return nil, fmt.Errorf(".%s() takes no arguments", call.Name)
			}
		default:
			return nil, fmt.Errorf("unknown cursor method %q at position %d", call.Name, i)
		}
	}
	return c, nil
}

func find(ctx context.Context, inv *invocation) (any, error) {
	c, err := buildCursor(inv)
	if err != nil {
		return nil, err
	}
	if c.count {
		// count ignores skip and limit, like the shell's legacy cursor.count().
		return inv.coll.CountDocuments(ctx, c.filter, docstore.FindOptions{})
	}
	docs, err := inv.coll.Find(ctx, c.filter, c.opts)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []docstore.D{}
	}
	return docs, nil
}

func findOne(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(0, 2); err != nil {
		return nil, err
	}
	filter, err := inv.doc(0, "filter")
	if err != nil {
		return nil, err
	}
	projection, err := inv.doc(1, "projection")
	if err != nil {
		return nil, err
	}
	doc, err := inv.coll.FindOne(ctx, filter, docstore.FindOptions{Projection: projection})
	if err != nil || doc == nil {
		return nil, err
	}
	return doc, nil
}

func insertOne(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(1, 2); err != nil {
		return nil, err
	}
	doc, err := inv.doc(0, "document")
	if err != nil {
		return nil, err
	}
	id, err := inv.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return docstore.D{{Key: "acknowledged", Value: true}, {Key: "insertedId", Value: id}}, nil
}

func documents(inv *invocation, v any) ([]docstore.D, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s expects an array of documents", inv.cmd.Operation())
	}
	docs := make([]docstore.D, 0, len(arr))
	for i, item := range arr {
		d, ok := item.(docstore.D)
		if !ok {
			return nil, fmt.Errorf("%s: element %d is not a document", inv.cmd.Operation(), i)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func insertMany(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(1, 2); err != nil {
		return nil, err
	}
	docs, err := documents(inv, inv.args[0])
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("insertMany needs at least one document")
	}
	ids, err := inv.coll.InsertMany(ctx, docs)
	if err != nil {
		return nil, err
	}
	return docstore.D{{Key: "acknowledged", Value: true}, {Key: "insertedIds", Value: ids}}, nil
}

// insert accepts a single document or an array, like the legacy shell helper.
func insert(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(1, 2); err != nil {
		return nil, err
	}
	var (
		n   int
		err error
	)
	switch v := inv.args[0].(type) {
	case docstore.D:
		_, err = inv.coll.InsertOne(ctx, v)
		n = 1
	case []any:
		var docs []docstore.D
		if docs, err = documents(inv, v); err != nil {
			return nil, err
		}
		var ids []any
		ids, err = inv.coll.InsertMany(ctx, docs)
		n = len(ids)
	default:
		return nil, fmt.Errorf("insert expects a document or an array of documents")
	}
	if err != nil {
		return nil, err
	}
	return docstore.D{{Key: "nInserted", Value: int64(n)}}, nil
}

func updateResult(r docstore.UpdateResult) docstore.D {
	out := docstore.D{
		{Key: "acknowledged", Value: true},
		{Key: "matchedCount", Value: r.MatchedCount},
		{Key: "modifiedCount", Value: r.ModifiedCount},
	}
	if r.UpsertedID != nil {
		out = append(out, docstore.E{Key: "upsertedId", Value: r.UpsertedID})
	}
	return out
}

func update(many bool) handler {
	return func(ctx context.Context, inv *invocation) (any, error) {
		if err := inv.noChain(); err != nil {
			return nil, err
		}
		if err := inv.arity(2, 3); err != nil {
			return nil, err
		}
		filter, err := inv.doc(0, "filter")
		if err != nil {
			return nil, err
		}
		change, err := inv.doc(1, "update")
		if err != nil {
			return nil, err
		}
		if len(change) == 0 || !change.IsOperatorDoc() {
			return nil, fmt.Errorf("%s: update document requires atomic operators such as $set", inv.cmd.Operation())
		}
		upsert, err := inv.upsert(2)
		if err != nil {
			return nil, err
		}
		var r docstore.UpdateResult
		if many {
			r, err = inv.coll.UpdateMany(ctx, filter, change, upsert)
		} else {
			r, err = inv.coll.UpdateOne(ctx, filter, change, upsert)
		}
		if err != nil {
			return nil, err
		}
		return updateResult(r), nil
	}
}

func replaceOne(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(2, 3); err != nil {
		return nil, err
	}
	filter, err := inv.doc(0, "filter")
	if err != nil {
		return nil, err
	}
	replacement, err := inv.doc(1, "replacement")
	if err != nil {
		return nil, err
	}
	if replacement.IsOperatorDoc() && len(replacement) > 0 {
		return nil, fmt.Errorf("replaceOne: replacement document must not contain update operators")
	}
	upsert, err := inv.upsert(2)
	if err != nil {
		return nil, err
	}
	r, err := inv.coll.ReplaceOne(ctx, filter, replacement, upsert)
	if err != nil {
		return nil, err
	}
	return updateResult(r), nil
}

func deleteDocs(many bool, key string) handler {
	return func(ctx context.Context, inv *invocation) (any, error) {
		if err := inv.noChain(); err != nil {
			return nil, err
		}
		if err := inv.arity(1, 1); err != nil {
			return nil, err
		}
		filter, err := inv.doc(0, "filter")
		if err != nil {
			return nil, err
		}
		var n int64
		if many {
			n, err = inv.coll.DeleteMany(ctx, filter)
		} else {
			n, err = inv.coll.DeleteOne(ctx, filter)
		}
		if err != nil {
			return nil, err
		}
		return docstore.D{{Key: "acknowledged", Value: true}, {Key: key, Value: n}}, nil
	}
}

// remove deletes every match unless the second argument is true (justOne).
func remove(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(1, 2); err != nil {
		return nil, err
	}
	filter, err := inv.doc(0, "filter")
	if err != nil {
		return nil, err
	}
	justOne := false
	if len(inv.args) == 2 {
		b, ok := inv.args[1].(bool)
		if !ok {
			return nil, fmt.Errorf("remove: justOne must be a boolean")
		}
		justOne = b
	}
	var n int64
	if justOne {
		n, err = inv.coll.DeleteOne(ctx, filter)
	} else {
		n, err = inv.coll.DeleteMany(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	return docstore.D{{Key: "nRemoved", Value: n}}, nil
}

func countDocuments(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(0, 2); err != nil {
		return nil, err
	}
	filter, err := inv.doc(0, "filter")
	if err != nil {
		return nil, err
	}
	opts, err := inv.doc(1, "options")
	if err != nil {
		return nil, err
	}
	var fo docstore.FindOptions
	if v, ok := opts.Get("limit"); ok {
		if fo.Limit, err = toInt(v, "limit"); err != nil {
			return nil, err
		}
	}
	if v, ok := opts.Get("skip"); ok {
		if fo.Skip, err = toInt(v, "skip"); err != nil {
			return nil, err
		}
	}
	return inv.coll.CountDocuments(ctx, filter, fo)
}

func dropCollection(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(0, 0); err != nil {
		return nil, err
	}
	if err := inv.coll.Drop(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

func getCollectionNames(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(0, 0); err != nil {
		return nil, err
	}
	names, err := inv.db.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func createCollection(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(1, 2); err != nil {
		return nil, err
	}
	name, err := inv.str(0, "collection name")
	if err != nil {
		return nil, err
	}
	if err := inv.db.CreateCollection(ctx, name); err != nil {
		return nil, err
	}
	return docstore.D{{Key: "ok", Value: int64(1)}}, nil
}

func dropDatabase(ctx context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(0, 0); err != nil {
		return nil, err
	}
	if err := inv.db.Drop(ctx); err != nil {
		return nil, err
	}
	return docstore.D{{Key: "ok", Value: int64(1)}, {Key: "dropped", Value: inv.db.Name()}}, nil
}

func getName(_ context.Context, inv *invocation) (any, error) {
	if err := inv.noChain(); err != nil {
		return nil, err
	}
	if err := inv.arity(0, 0); err != nil {
		return nil, err
	}
	return inv.db.Name(), nil
}
