package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := t.Context()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("scrapbook"),
		postgres.WithUsername("scrapbook"),
		postgres.WithPassword("scrapbook"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	defer func() {
		assert.NoError(t, container.Terminate(ctx))
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := DialPostgres(ctx, connStr, zap.NewNop())
	require.NoError(t, err)
	defer client.Disconnect(ctx)
	require.NoError(t, client.Ping(ctx))

	db := client.Database("shop")
	users := db.Collection("users")

	t.Run("missing table reads as empty", func(t *testing.T) {
		docs, err := users.Find(ctx, nil, FindOptions{})
		require.NoError(t, err)
		assert.Empty(t, docs)

		n, err := users.CountDocuments(ctx, nil, FindOptions{})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	ids, err := users.InsertMany(ctx, []D{
		{{Key: "_id", Value: int64(1)}, {Key: "name", Value: "ada"}, {Key: "age", Value: int64(36)}},
		{{Key: "_id", Value: int64(2)}, {Key: "name", Value: "bob"}, {Key: "age", Value: int64(25)}},
		{{Key: "_id", Value: int64(3)}, {Key: "name", Value: "cy"}, {Key: "age", Value: int64(41)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids)

	t.Run("find with comparison and sort", func(t *testing.T) {
		docs, err := users.Find(ctx,
			D{{Key: "age", Value: D{{Key: "$gt", Value: int64(30)}}}},
			FindOptions{Sort: D{{Key: "name", Value: int64(-1)}}})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "cy", docs[0][1].Value)
		assert.Equal(t, "ada", docs[1][1].Value)
	})

	t.Run("find one keeps _id first", func(t *testing.T) {
		doc, err := users.FindOne(ctx, D{{Key: "name", Value: "bob"}}, FindOptions{})
		require.NoError(t, err)
		require.NotEmpty(t, doc)
		assert.Equal(t, "_id", doc[0].Key)
		age, _ := doc.Get("age")
		assert.Equal(t, int64(25), age)
	})

	t.Run("update and upsert", func(t *testing.T) {
		res, err := users.UpdateOne(ctx,
			D{{Key: "name", Value: "bob"}},
			D{{Key: "$inc", Value: D{{Key: "age", Value: int64(1)}}}}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.MatchedCount)
		assert.Equal(t, int64(1), res.ModifiedCount)

		doc, err := users.FindOne(ctx, D{{Key: "_id", Value: int64(2)}}, FindOptions{})
		require.NoError(t, err)
		age, _ := doc.Get("age")
		assert.Equal(t, int64(26), age)

		res, err = users.UpdateOne(ctx,
			D{{Key: "name", Value: "dee"}},
			D{{Key: "$set", Value: D{{Key: "age", Value: int64(50)}}}}, true)
		require.NoError(t, err)
		assert.Zero(t, res.MatchedCount)
		assert.IsType(t, "", res.UpsertedID)

		n, err := users.CountDocuments(ctx, nil, FindOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("replace", func(t *testing.T) {
		res, err := users.ReplaceOne(ctx,
			D{{Key: "_id", Value: int64(3)}},
			D{{Key: "name", Value: "cyrus"}}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.ModifiedCount)

		doc, err := users.FindOne(ctx, D{{Key: "_id", Value: int64(3)}}, FindOptions{})
		require.NoError(t, err)
		assert.Equal(t, D{{Key: "_id", Value: int64(3)}, {Key: "name", Value: "cyrus"}}, doc)
	})

	t.Run("delete", func(t *testing.T) {
		n, err := users.DeleteMany(ctx, D{{Key: "age", Value: D{{Key: "$lt", Value: int64(40)}}}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = users.DeleteOne(ctx, D{{Key: "name", Value: "nobody"}})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("catalog", func(t *testing.T) {
		require.NoError(t, db.CreateCollection(ctx, "orders"))

		colls, err := db.ListCollections(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"orders", "users"}, colls)

		dbs, err := client.ListDatabases(ctx)
		require.NoError(t, err)
		assert.Contains(t, dbs, "shop")

		require.NoError(t, users.Drop(ctx))
		require.NoError(t, db.Drop(ctx))

		dbs, err = client.ListDatabases(ctx)
		require.NoError(t, err)
		assert.NotContains(t, dbs, "shop")
	})
}
