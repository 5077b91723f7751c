// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package docstoretest provides an in-memory docstore.Client for tests. It records
// every call so tests can assert that no data-plane call happened.
package docstoretest

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"scrapbook/cli/internal/docstore"
)

// Client is an in-memory docstore.Client.
type Client struct {
	mu        sync.Mutex
	databases map[string]map[string][]docstore.D
	calls     []string

	// PingErr is returned by Ping.
	PingErr error
	// Fail maps an operation name ("find", "insertOne", ...) to the error it returns.
	Fail map[string]error
	// Disconnected is set once Disconnect was called.
	Disconnected bool
}

// NewClient returns an empty client.
func NewClient() *Client {
	return &Client{databases: map[string]map[string][]docstore.D{}, Fail: map[string]error{}}
}

// Dialer returns a docstore.Dialer handing out clients by connection string.
// Unknown connection strings fail to dial.
func Dialer(clients map[string]*Client) docstore.Dialer {
	return func(_ context.Context, _ string, dsn string) (docstore.Client, error) {
		c, ok := clients[dsn]
		if !ok {
			return nil, fmt.Errorf("dial %s: no such host", dsn)
		}
		return c, nil
	}
}

// Calls returns the recorded calls as "operation" or "operation collection".
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Seed stores docs in db.coll.
func (c *Client) Seed(db, coll string, docs ...docstore.D) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket(db, coll, true)
	c.databases[db][coll] = append(c.databases[db][coll], docs...)
}

// Docs returns a copy of the documents in db.coll.
func (c *Client) Docs(db, coll string) []docstore.D {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []docstore.D
	for _, d := range c.databases[db][coll] {
		out = append(out, d.Clone())
	}
	return out
}

func (c *Client) record(op, target string) error {
	c.calls = append(c.calls, strings.TrimSpace(op+" "+target))
	if err := c.Fail[op]; err != nil {
		return err
	}
	return nil
}

func (c *Client) bucket(db, coll string, create bool) []docstore.D {
	if c.databases[db] == nil {
		if !create {
			return nil
		}
		c.databases[db] = map[string][]docstore.D{}
	}
	docs, ok := c.databases[db][coll]
	if !ok && create {
		c.databases[db][coll] = []docstore.D{}
	}
	return docs
}

func (c *Client) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "ping")
	return c.PingErr
}

func (c *Client) Disconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "disconnect")
	c.Disconnected = true
	return nil
}

func (c *Client) ListDatabases(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("listDatabases", ""); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(c.databases))
	for name := range c.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) Database(name string) docstore.Database {
	return &database{client: c, name: name}
}

type database struct {
	client *Client
	name   string
}

func (d *database) Name() string { return d.name }

func (d *database) ListCollections(context.Context) ([]string, error) {
	c := d.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("listCollections", d.name); err != nil {
		return nil, err
	}
	names := []string{}
	for name := range c.databases[d.name] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *database) CreateCollection(_ context.Context, name string) error {
	c := d.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("createCollection", d.name+"."+name); err != nil {
		return err
	}
	if _, exists := c.databases[d.name][name]; exists {
		return fmt.Errorf("collection %s.%s already exists", d.name, name)
	}
	c.bucket(d.name, name, true)
	return nil
}

func (d *database) Drop(context.Context) error {
	c := d.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("dropDatabase", d.name); err != nil {
		return err
	}
	delete(c.databases, d.name)
	return nil
}

func (d *database) Collection(name string) docstore.Collection {
	return &collection{db: d, name: name}
}

type collection struct {
	db   *database
	name string
}

func (c *collection) Name() string { return c.name }

// lock records op and returns the client locked; callers defer unlock.
func (c *collection) lock(op string) (*Client, error) {
	cl := c.db.client
	cl.mu.Lock()
	if err := cl.record(op, c.name); err != nil {
		cl.mu.Unlock()
		return nil, err
	}
	return cl, nil
}

func (c *collection) docs(cl *Client) []docstore.D {
	return cl.bucket(c.db.name, c.name, false)
}

func (c *collection) matching(cl *Client, filter docstore.D) ([]int, error) {
	var idx []int
	for i, d := range c.docs(cl) {
		ok, err := Match(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func (c *collection) Find(_ context.Context, filter docstore.D, opts docstore.FindOptions) ([]docstore.D, error) {
	cl, err := c.lock("find")
	if err != nil {
		return nil, err
	}
	defer cl.mu.Unlock()
	return c.find(cl, filter, opts)
}

func (c *collection) find(cl *Client, filter docstore.D, opts docstore.FindOptions) ([]docstore.D, error) {
	idx, err := c.matching(cl, filter)
	if err != nil {
		return nil, err
	}
	all := c.docs(cl)
	out := make([]docstore.D, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i].Clone())
	}
	if len(opts.Sort) > 0 {
		sort.SliceStable(out, func(a, b int) bool { return less(out[a], out[b], opts.Sort) })
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(out)) {
			out = out[:0]
		} else {
			out = out[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < int64(len(out)) {
		out = out[:opts.Limit]
	}
	for i := range out {
		if out[i], err = docstore.Project(out[i], opts.Projection); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *collection) FindOne(_ context.Context, filter docstore.D, opts docstore.FindOptions) (docstore.D, error) {
	cl, err := c.lock("findOne")
	if err != nil {
		return nil, err
	}
	defer cl.mu.Unlock()
	opts.Limit = 1
	docs, err := c.find(cl, filter, opts)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (c *collection) insert(cl *Client, doc docstore.D) any {
	id, ok := doc.Get("_id")
	if !ok {
		id = docstore.NewObjectID()
		doc = append(docstore.D{{Key: "_id", Value: id}}, doc...)
	}
	cl.bucket(c.db.name, c.name, true)
	cl.databases[c.db.name][c.name] = append(cl.databases[c.db.name][c.name], doc.Clone())
	return id
}

func (c *collection) InsertOne(_ context.Context, doc docstore.D) (any, error) {
	cl, err := c.lock("insertOne")
	if err != nil {
		return nil, err
	}
	defer cl.mu.Unlock()
	return c.insert(cl, doc), nil
}

func (c *collection) InsertMany(_ context.Context, docs []docstore.D) ([]any, error) {
	cl, err := c.lock("insertMany")
	if err != nil {
		return nil, err
	}
	defer cl.mu.Unlock()
	ids := make([]any, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, c.insert(cl, d))
	}
	return ids, nil
}

func (c *collection) rewrite(op string, filter docstore.D, many, upsert bool, change func(docstore.D, bool) (docstore.D, bool, error)) (docstore.UpdateResult, error) {
	cl, err := c.lock(op)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	defer cl.mu.Unlock()

	idx, err := c.matching(cl, filter)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	if !many && len(idx) > 1 {
		idx = idx[:1]
	}
	var res docstore.UpdateResult
	if len(idx) == 0 && upsert {
		doc, _, err := change(docstore.UpsertSeed(filter), true)
		if err != nil {
			return res, err
		}
		res.UpsertedID = c.insert(cl, doc)
		return res, nil
	}
	all := c.docs(cl)
	for _, i := range idx {
		res.MatchedCount++
		doc, changed, err := change(all[i], false)
		if err != nil {
			return res, err
		}
		if changed {
			all[i] = doc
			res.ModifiedCount++
		}
	}
	return res, nil
}

func (c *collection) UpdateOne(_ context.Context, filter, update docstore.D, upsert bool) (docstore.UpdateResult, error) {
	return c.rewrite("updateOne", filter, false, upsert, func(d docstore.D, ins bool) (docstore.D, bool, error) {
		return docstore.ApplyUpdate(d, update, ins)
	})
}

func (c *collection) UpdateMany(_ context.Context, filter, update docstore.D, upsert bool) (docstore.UpdateResult, error) {
	return c.rewrite("updateMany", filter, true, upsert, func(d docstore.D, ins bool) (docstore.D, bool, error) {
		return docstore.ApplyUpdate(d, update, ins)
	})
}

func (c *collection) ReplaceOne(_ context.Context, filter, replacement docstore.D, upsert bool) (docstore.UpdateResult, error) {
	return c.rewrite("replaceOne", filter, false, upsert, func(d docstore.D, _ bool) (docstore.D, bool, error) {
		out, err := docstore.Replace(d, replacement)
		return out, err == nil && !reflect.DeepEqual(out, d), err
	})
}

func (c *collection) remove(op string, filter docstore.D, one bool) (int64, error) {
	cl, err := c.lock(op)
	if err != nil {
		return 0, err
	}
	defer cl.mu.Unlock()
	idx, err := c.matching(cl, filter)
	if err != nil {
		return 0, err
	}
	if one && len(idx) > 1 {
		idx = idx[:1]
	}
	drop := map[int]bool{}
	for _, i := range idx {
		drop[i] = true
	}
	var kept []docstore.D
	for i, d := range c.docs(cl) {
		if !drop[i] {
			kept = append(kept, d)
		}
	}
	if cl.databases[c.db.name] != nil {
		if _, ok := cl.databases[c.db.name][c.name]; ok {
			cl.databases[c.db.name][c.name] = kept
		}
	}
	return int64(len(idx)), nil
}

func (c *collection) DeleteOne(_ context.Context, filter docstore.D) (int64, error) {
	return c.remove("deleteOne", filter, true)
}

func (c *collection) DeleteMany(_ context.Context, filter docstore.D) (int64, error) {
	return c.remove("deleteMany", filter, false)
}

func (c *collection) CountDocuments(_ context.Context, filter docstore.D, opts docstore.FindOptions) (int64, error) {
	cl, err := c.lock("countDocuments")
	if err != nil {
		return 0, err
	}
	defer cl.mu.Unlock()
	opts.Sort, opts.Projection = nil, nil
	docs, err := c.find(cl, filter, opts)
	return int64(len(docs)), err
}

func (c *collection) Drop(context.Context) error {
	cl, err := c.lock("drop")
	if err != nil {
		return err
	}
	defer cl.mu.Unlock()
	if cl.databases[c.db.name] != nil {
		delete(cl.databases[c.db.name], c.name)
	}
	return nil
}

// Match evaluates a query document against doc. It supports equality, $eq, $ne,
// $gt, $gte, $lt, $lte, $in, $nin, $exists, $and, $or and $nor.
func Match(doc, filter docstore.D) (bool, error) {
	for _, e := range filter {
		var (
			ok  bool
			err error
		)
		switch e.Key {
		case "$and", "$or", "$nor":
			ok, err = matchLogical(doc, e.Key, e.Value)
		default:
			ok, err = matchField(doc, e.Key, e.Value)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc docstore.D, op string, v any) (bool, error) {
	list, ok := v.([]any)
	if !ok {
		return false, fmt.Errorf("%s must be an array", op)
	}
	matched := false
	for _, item := range list {
		sub, ok := item.(docstore.D)
		if !ok {
			return false, fmt.Errorf("%s entries must be documents", op)
		}
		m, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		if op == "$and" && !m {
			return false, nil
		}
		matched = matched || m
	}
	switch op {
	case "$and":
		return true, nil
	case "$or":
		return matched, nil
	default:
		return !matched, nil
	}
}

func matchField(doc docstore.D, path string, cond any) (bool, error) {
	val, present := docstore.LookupPath(doc, path)
	ops, isOps := cond.(docstore.D)
	if !isOps || !ops.IsOperatorDoc() {
		return equal(val, present, cond), nil
	}
	for _, op := range ops {
		var ok bool
		switch op.Key {
		case "$eq":
			ok = equal(val, present, op.Value)
		case "$ne":
			ok = !equal(val, present, op.Value)
		case "$gt", "$gte", "$lt", "$lte":
			cmp, comparable := compare(val, op.Value)
			if !present || !comparable {
				return false, nil
			}
			ok = map[string]bool{"$gt": cmp > 0, "$gte": cmp >= 0, "$lt": cmp < 0, "$lte": cmp <= 0}[op.Key]
		case "$in", "$nin":
			list, isList := op.Value.([]any)
			if !isList {
				return false, fmt.Errorf("%s needs an array", op.Key)
			}
			found := false
			for _, x := range list {
				found = found || equal(val, present, x)
			}
			ok = found == (op.Key == "$in")
		case "$exists":
			want, _ := op.Value.(bool)
			ok = present == want
		default:
			return false, fmt.Errorf("unknown operator: %s", op.Key)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func equal(val any, present bool, want any) bool {
	if want == nil {
		return !present || val == nil
	}
	if !present {
		return false
	}
	if arr, ok := val.([]any); ok {
		if _, wantArr := want.([]any); !wantArr {
			for _, x := range arr {
				if equal(x, true, want) {
					return true
				}
			}
			return false
		}
	}
	if cmp, ok := compare(val, want); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(val, want)
}

// compare orders numbers, strings and times; ok is false for other type pairs.
func compare(a, b any) (int, bool) {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func less(a, b docstore.D, by docstore.D) bool {
	for _, e := range by {
		av, _ := docstore.LookupPath(a, e.Key)
		bv, _ := docstore.LookupPath(b, e.Key)
		cmp, ok := compare(av, bv)
		if !ok || cmp == 0 {
			continue
		}
		if dir, _ := number(e.Value); dir < 0 {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}
