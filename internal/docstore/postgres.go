// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// undefinedTable is the SQLSTATE for a missing relation. Reading a collection that
// was never written behaves like reading an empty one.
const undefinedTable = "42P01"

// PostgresClient stores documents in jsonb tables: one schema per database, one
// table per collection.
type PostgresClient struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// DialPostgres opens a pgx pool. The caller pings.
func DialPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresClient, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresClient{pool: pool, logger: logger}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *PostgresClient) Disconnect(context.Context) error {
	c.pool.Close()
	return nil
}

// ListDatabases lists user schemas.
func (c *PostgresClient) ListDatabases(ctx context.Context) ([]string, error) {
	return c.queryStrings(ctx, `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT LIKE 'pg\_%' AND schema_name <> 'information_schema'
		ORDER BY schema_name`)
}

func (c *PostgresClient) Database(name string) Database {
	return &pgDatabase{client: c, name: name}
}

func (c *PostgresClient) queryStrings(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type pgDatabase struct {
	client *PostgresClient
	name   string
}

func (d *pgDatabase) Name() string { return d.name }

func (d *pgDatabase) ListCollections(ctx context.Context) ([]string, error) {
	return d.client.queryStrings(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, d.name)
}

func (d *pgDatabase) CreateCollection(ctx context.Context, name string) error {
	return d.Collection(name).(*pgCollection).ensure(ctx, d.client.pool)
}

func (d *pgDatabase) Drop(ctx context.Context) error {
	_, err := d.client.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{d.name}.Sanitize()+" CASCADE")
	return err
}

func (d *pgDatabase) Collection(name string) Collection {
	return &pgCollection{db: d, name: name, table: pgx.Identifier{d.name, name}.Sanitize()}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgCollection struct {
	db    *pgDatabase
	name  string
	table string
}

func (c *pgCollection) Name() string { return c.name }

func (c *pgCollection) pool() *pgxpool.Pool { return c.db.client.pool }

func (c *pgCollection) logger() *zap.Logger { return c.db.client.logger }

func (c *pgCollection) ensure(ctx context.Context, q querier) error {
	if _, err := q.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.db.name}.Sanitize()); err != nil {
		return err
	}
	_, err := q.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+c.table+" (id text PRIMARY KEY, doc jsonb NOT NULL)")
	return err
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

type pgRow struct {
	id  string
	doc D
}

// selectRows runs SELECT id, doc with the filter and cursor options applied.
func (c *pgCollection) selectRows(ctx context.Context, q querier, filter D, opts FindOptions, suffix string) ([]pgRow, error) {
	f := &sqlFilter{}
	where, err := f.where(filter)
	if err != nil {
		return nil, err
	}
	order, err := f.orderBy(opts.Sort)
	if err != nil {
		return nil, err
	}
	sql := "SELECT id, doc::text FROM " + c.table + " WHERE " + where + order
	if opts.Limit > 0 {
		sql += " LIMIT " + f.arg(opts.Limit)
	}
	if opts.Skip > 0 {
		sql += " OFFSET " + f.arg(opts.Skip)
	}
	sql += suffix
	c.logger().Debug("postgres query", zap.String("sql", sql), zap.Int("args", len(f.args)))

	rows, err := q.Query(ctx, sql, f.args...)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []pgRow
	for rows.Next() {
		var (
			id  string
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := UnmarshalExtJSON([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		out = append(out, pgRow{id: id, doc: withIDFirst(doc)})
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// withIDFirst moves _id to the front; jsonb does not keep key order.
func withIDFirst(doc D) D {
	id, ok := doc.Get("_id")
	if !ok || doc[0].Key == "_id" {
		return doc
	}
	return append(D{{Key: "_id", Value: id}}, doc.Delete("_id")...)
}

func (c *pgCollection) Find(ctx context.Context, filter D, opts FindOptions) ([]D, error) {
	rows, err := c.selectRows(ctx, c.pool(), filter, opts, "")
	if err != nil {
		return nil, err
	}
	docs := make([]D, 0, len(rows))
	for _, r := range rows {
		doc, err := Project(r.doc, opts.Projection)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *pgCollection) FindOne(ctx context.Context, filter D, opts FindOptions) (D, error) {
	opts.Limit = 1
	docs, err := c.Find(ctx, filter, opts)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// withGeneratedID assigns a uuid _id when the document has none.
func withGeneratedID(doc D) (D, any) {
	if id, ok := doc.Get("_id"); ok {
		return doc, id
	}
	id := uuid.NewString()
	return append(D{{Key: "_id", Value: id}}, doc...), id
}

func (c *pgCollection) insert(ctx context.Context, q querier, doc D) (any, error) {
	doc, id := withGeneratedID(doc)
	key := IDString(id)
	raw, err := MarshalExtJSON(doc, false)
	if err != nil {
		return nil, err
	}
	if _, err := q.Exec(ctx, "INSERT INTO "+c.table+" (id, doc) VALUES ($1, $2::jsonb)", key, string(raw)); err != nil {
		return nil, err
	}
	return id, nil
}

// inTx runs fn in a transaction that is rolled back unless fn succeeds.
func (c *pgCollection) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.pool().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback if commit doesn't happen

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (c *pgCollection) InsertOne(ctx context.Context, doc D) (any, error) {
	var id any
	err := c.inTx(ctx, func(tx pgx.Tx) error {
		if err := c.ensure(ctx, tx); err != nil {
			return err
		}
		var err error
		id, err = c.insert(ctx, tx, doc)
		return err
	})
	return id, err
}

func (c *pgCollection) InsertMany(ctx context.Context, docs []D) ([]any, error) {
	ids := make([]any, 0, len(docs))
	err := c.inTx(ctx, func(tx pgx.Tx) error {
		if err := c.ensure(ctx, tx); err != nil {
			return err
		}
		for _, doc := range docs {
			id, err := c.insert(ctx, tx, doc)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// rewrite is the read-modify-write loop behind update and replace.
func (c *pgCollection) rewrite(ctx context.Context, filter D, many, upsert bool, change func(doc D, inserting bool) (D, bool, error)) (UpdateResult, error) {
	var res UpdateResult
	err := c.inTx(ctx, func(tx pgx.Tx) error {
		opts := FindOptions{}
		if !many {
			opts.Limit = 1
		}
		rows, err := c.selectRows(ctx, tx, filter, opts, " FOR UPDATE")
		if err != nil {
			return err
		}
		res.MatchedCount = int64(len(rows))

		if len(rows) == 0 && upsert {
			doc, _, err := change(UpsertSeed(filter), true)
			if err != nil {
				return err
			}
			if err := c.ensure(ctx, tx); err != nil {
				return err
			}
			res.UpsertedID, err = c.insert(ctx, tx, doc)
			return err
		}

		for _, r := range rows {
			doc, changed, err := change(r.doc, false)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			raw, err := MarshalExtJSON(doc, false)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, "UPDATE "+c.table+" SET doc = $2::jsonb WHERE id = $1", r.id, string(raw)); err != nil {
				return err
			}
			res.ModifiedCount++
		}
		return nil
	})
	return res, err
}

func (c *pgCollection) UpdateOne(ctx context.Context, filter, update D, upsert bool) (UpdateResult, error) {
	return c.rewrite(ctx, filter, false, upsert, func(doc D, inserting bool) (D, bool, error) {
		return ApplyUpdate(doc, update, inserting)
	})
}

func (c *pgCollection) UpdateMany(ctx context.Context, filter, update D, upsert bool) (UpdateResult, error) {
	return c.rewrite(ctx, filter, true, upsert, func(doc D, inserting bool) (D, bool, error) {
		return ApplyUpdate(doc, update, inserting)
	})
}

func (c *pgCollection) ReplaceOne(ctx context.Context, filter, replacement D, upsert bool) (UpdateResult, error) {
	return c.rewrite(ctx, filter, false, upsert, func(doc D, _ bool) (D, bool, error) {
		out, err := Replace(doc, replacement)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	})
}

func (c *pgCollection) delete(ctx context.Context, filter D, limit string) (int64, error) {
	f := &sqlFilter{}
	where, err := f.where(filter)
	if err != nil {
		return 0, err
	}
	sql := "DELETE FROM " + c.table + " WHERE " + where
	if limit != "" {
		sql = "DELETE FROM " + c.table + " WHERE id IN (SELECT id FROM " + c.table + " WHERE " + where + " " + limit + ")"
	}
	tag, err := c.pool().Exec(ctx, sql, f.args...)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgCollection) DeleteOne(ctx context.Context, filter D) (int64, error) {
	return c.delete(ctx, filter, "LIMIT 1")
}

func (c *pgCollection) DeleteMany(ctx context.Context, filter D) (int64, error) {
	return c.delete(ctx, filter, "")
}

func (c *pgCollection) CountDocuments(ctx context.Context, filter D, opts FindOptions) (int64, error) {
	f := &sqlFilter{}
	where, err := f.where(filter)
	if err != nil {
		return 0, err
	}
	inner := "SELECT 1 FROM " + c.table + " WHERE " + where
	if opts.Limit > 0 {
		inner += " LIMIT " + f.arg(opts.Limit)
	}
	if opts.Skip > 0 {
		inner += " OFFSET " + f.arg(opts.Skip)
	}
	var n int64
	if err := c.pool().QueryRow(ctx, "SELECT count(*) FROM ("+inner+") AS matched", f.args...).Scan(&n); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (c *pgCollection) Drop(ctx context.Context) error {
	_, err := c.pool().Exec(ctx, "DROP TABLE IF EXISTS "+c.table)
	return err
}
