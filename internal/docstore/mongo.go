// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package docstore

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const serverSelectionTimeout = 15 * time.Second

// MongoClient talks to MongoDB and wire-compatible stores (Cosmos DB for MongoDB).
type MongoClient struct {
	client *mongo.Client
	logger *zap.Logger
}

// DialMongo creates a driver client. The driver connects lazily; the caller pings.
func DialMongo(ctx context.Context, dsn string, logger *zap.Logger) (*MongoClient, error) {
	opts := options.Client().
		ApplyURI(dsn).
		SetAppName("scrapbook").
		SetServerSelectionTimeout(serverSelectionTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &MongoClient{client: client, logger: logger}, nil
}

func (c *MongoClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *MongoClient) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *MongoClient) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := c.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (c *MongoClient) Database(name string) Database {
	return &mongoDatabase{db: c.client.Database(name), logger: c.logger}
}

type mongoDatabase struct {
	db     *mongo.Database
	logger *zap.Logger
}

func (d *mongoDatabase) Name() string { return d.db.Name() }

func (d *mongoDatabase) ListCollections(ctx context.Context) ([]string, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (d *mongoDatabase) CreateCollection(ctx context.Context, name string) error {
	return d.db.CreateCollection(ctx, name)
}

func (d *mongoDatabase) Drop(ctx context.Context) error { return d.db.Drop(ctx) }

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name), logger: d.logger}
}

type mongoCollection struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (c *mongoCollection) Name() string { return c.coll.Name() }

func (c *mongoCollection) Find(ctx context.Context, filter D, opts FindOptions) ([]D, error) {
	fo := options.Find()
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(toBSONDoc(opts.Sort))
	}
	if len(opts.Projection) > 0 {
		fo.SetProjection(toBSONDoc(opts.Projection))
	}
	c.logger.Debug("mongo find", zap.String("collection", c.coll.Name()), zap.Int64("limit", opts.Limit), zap.Int64("skip", opts.Skip))

	cur, err := c.coll.Find(ctx, toBSONDoc(filter), fo)
	if err != nil {
		return nil, err
	}
	var raw []bson.D
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]D, len(raw))
	for i, r := range raw {
		docs[i] = fromBSONDoc(r)
	}
	return docs, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter D, opts FindOptions) (D, error) {
	fo := options.FindOne()
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(toBSONDoc(opts.Sort))
	}
	if len(opts.Projection) > 0 {
		fo.SetProjection(toBSONDoc(opts.Projection))
	}
	var raw bson.D
	if err := c.coll.FindOne(ctx, toBSONDoc(filter), fo).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return fromBSONDoc(raw), nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc D) (any, error) {
	res, err := c.coll.InsertOne(ctx, toBSONDoc(doc))
	if err != nil {
		return nil, err
	}
	return fromBSON(res.InsertedID), nil
}

func (c *mongoCollection) InsertMany(ctx context.Context, docs []D) ([]any, error) {
	items := make([]any, len(docs))
	for i, d := range docs {
		items[i] = toBSONDoc(d)
	}
	res, err := c.coll.InsertMany(ctx, items)
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(res.InsertedIDs))
	for i, id := range res.InsertedIDs {
		ids[i] = fromBSON(id)
	}
	return ids, nil
}

func updateResult(res *mongo.UpdateResult) UpdateResult {
	return UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedID:    fromBSON(res.UpsertedID),
	}
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter, update D, upsert bool) (UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, toBSONDoc(filter), toBSONDoc(update), options.Update().SetUpsert(upsert))
	if err != nil {
		return UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter, update D, upsert bool) (UpdateResult, error) {
	res, err := c.coll.UpdateMany(ctx, toBSONDoc(filter), toBSONDoc(update), options.Update().SetUpsert(upsert))
	if err != nil {
		return UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (c *mongoCollection) ReplaceOne(ctx context.Context, filter, replacement D, upsert bool) (UpdateResult, error) {
	res, err := c.coll.ReplaceOne(ctx, toBSONDoc(filter), toBSONDoc(replacement), options.Replace().SetUpsert(upsert))
	if err != nil {
		return UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter D) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toBSONDoc(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter D) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, toBSONDoc(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter D, opts FindOptions) (int64, error) {
	co := options.Count()
	if opts.Limit > 0 {
		co.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		co.SetSkip(opts.Skip)
	}
	return c.coll.CountDocuments(ctx, toBSONDoc(filter), co)
}

func (c *mongoCollection) Drop(ctx context.Context) error { return c.coll.Drop(ctx) }

// toBSONDoc never returns nil; the driver rejects nil filters.
func toBSONDoc(d D) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		out = append(out, bson.E{Key: e.Key, Value: toBSON(e.Value)})
	}
	return out
}

func toBSON(v any) any {
	switch t := v.(type) {
	case D:
		return toBSONDoc(t)
	case []any:
		arr := make(bson.A, len(t))
		for i, x := range t {
			arr[i] = toBSON(x)
		}
		return arr
	case ObjectID:
		return primitive.ObjectID(t)
	default:
		return v
	}
}

func fromBSONDoc(d bson.D) D {
	out := make(D, 0, len(d))
	for _, e := range d {
		out = append(out, E{Key: e.Key, Value: fromBSON(e.Value)})
	}
	return out
}

func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.D:
		return fromBSONDoc(t)
	case bson.M:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(D, 0, len(t))
		for _, k := range keys {
			out = append(out, E{Key: k, Value: fromBSON(t[k])})
		}
		return out
	case bson.A:
		arr := make([]any, len(t))
		for i, x := range t {
			arr[i] = fromBSON(x)
		}
		return arr
	case primitive.ObjectID:
		return ObjectID(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int64(t)
	case primitive.Decimal128:
		return t.String()
	case primitive.Timestamp:
		return D{{Key: "t", Value: int64(t.T)}, {Key: "i", Value: int64(t.I)}}
	case primitive.Regex:
		return "/" + t.Pattern + "/" + t.Options
	case primitive.Binary:
		return t.Data
	default:
		return v
	}
}
