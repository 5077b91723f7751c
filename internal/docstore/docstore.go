// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package docstore is the data-plane client used by scrapbook commands and the
// account/database/collection/document commands of the CLI.
//
// Two backends implement the same Client/Database/Collection surface: MongoDB (and
// wire-compatible stores) through the official driver, and a PostgreSQL JSONB store
// where a database is a schema and a collection is a table of (id, doc jsonb) rows.
// Documents cross the package boundary as ordered D values so field order survives
// printing and editing.
package docstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Kinds of data-plane backends.
const (
	KindMongo    = "mongo"
	KindPostgres = "postgres"
)

// Client is a connected data-plane endpoint.
type Client interface {
	Ping(ctx context.Context) error
	ListDatabases(ctx context.Context) ([]string, error)
	Database(name string) Database
	Disconnect(ctx context.Context) error
}

// Database is a named database (a schema on PostgreSQL).
type Database interface {
	Name() string
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	Drop(ctx context.Context) error
	Collection(name string) Collection
}

// Collection is a named collection of documents.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter D, opts FindOptions) ([]D, error)
	// FindOne returns nil without error when nothing matches.
	FindOne(ctx context.Context, filter D, opts FindOptions) (D, error)
	InsertOne(ctx context.Context, doc D) (any, error)
	InsertMany(ctx context.Context, docs []D) ([]any, error)
	UpdateOne(ctx context.Context, filter, update D, upsert bool) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update D, upsert bool) (UpdateResult, error)
	ReplaceOne(ctx context.Context, filter, replacement D, upsert bool) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter D) (int64, error)
	DeleteMany(ctx context.Context, filter D) (int64, error)
	CountDocuments(ctx context.Context, filter D, opts FindOptions) (int64, error)
	Drop(ctx context.Context) error
}

// FindOptions are the cursor modifiers folded into one query.
// Zero Limit means no limit.
type FindOptions struct {
	Limit      int64
	Skip       int64
	Sort       D
	Projection D
}

// UpdateResult reports the outcome of update and replace calls.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
	UpsertedID    any   `json:"upsertedId,omitempty"`
}

// Dialer opens a client for a connection string. connection.State takes one so
// tests can substitute in-memory clients.
type Dialer func(ctx context.Context, kind, dsn string) (Client, error)

// NewDialer returns the Dialer for the real backends.
func NewDialer(logger *zap.Logger) Dialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, kind, dsn string) (Client, error) {
		switch kind {
		case KindMongo, "":
			return DialMongo(ctx, dsn, logger)
		case KindPostgres:
			return DialPostgres(ctx, dsn, logger)
		default:
			return nil, fmt.Errorf("unsupported account kind %q", kind)
		}
	}
}
