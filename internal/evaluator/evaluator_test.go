package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapbook/cli/internal/connection"
	"scrapbook/cli/internal/docstore"
	"scrapbook/cli/internal/docstore/docstoretest"
	apperrors "scrapbook/cli/internal/errors"
	"scrapbook/cli/internal/scrapbook"
)

type staticSource struct{ session *connection.Session }

func (s staticSource) Current() *connection.Session { return s.session }

func connected(t *testing.T) (*Evaluator, *docstoretest.Client) {
	t.Helper()
	client := docstoretest.NewClient()
	client.Seed("shop", "users",
		docstore.D{{Key: "_id", Value: int64(1)}, {Key: "name", Value: "ada"}, {Key: "age", Value: int64(36)}},
		docstore.D{{Key: "_id", Value: int64(2)}, {Key: "name", Value: "bob"}, {Key: "age", Value: int64(25)}},
		docstore.D{{Key: "_id", Value: int64(3)}, {Key: "name", Value: "cy"}, {Key: "age", Value: int64(41)}},
	)
	session := &connection.Session{
		Descriptor: connection.Descriptor{Account: "local", Kind: "mongo", Database: "shop"},
		Client:     client,
	}
	return New(staticSource{session}, nil), client
}

func parseOne(t *testing.T, text string) scrapbook.Command {
	t.Helper()
	cmds, _ := scrapbook.Parse(text)
	require.Len(t, cmds, 1)
	return cmds[0]
}

func TestEvaluate_NotConnectedMakesNoCall(t *testing.T) {
	client := docstoretest.NewClient()
	ev := New(staticSource{}, nil)

	res := ev.Evaluate(context.Background(), parseOne(t, "db.users.find()"))
	require.Error(t, res.Err)
	assert.Equal(t, apperrors.NotConnected, apperrors.KindOf(res.Err))
	assert.Empty(t, client.Calls())

	// Even a malformed command reports NotConnected first.
	res = ev.Evaluate(context.Background(), parseOne(t, "db.users.find({"))
	assert.Equal(t, apperrors.NotConnected, apperrors.KindOf(res.Err))
}

func TestEvaluate_ParseErrorMakesNoCall(t *testing.T) {
	ev, client := connected(t)
	res := ev.Evaluate(context.Background(), parseOne(t, "db.users.find({name: })"))
	require.Error(t, res.Err)
	assert.Equal(t, apperrors.ParseError, apperrors.KindOf(res.Err))
	assert.Empty(t, client.Calls())
}

func TestEvaluate_UnknownOperation(t *testing.T) {
	ev, client := connected(t)
	for _, text := range []string{"db.users.explode()", "db.frobnicate()", "db.users.find().batchSize(3)"} {
		res := ev.Evaluate(context.Background(), parseOne(t, text))
		assert.Equal(t, apperrors.UnknownOperation, apperrors.KindOf(res.Err), text)
	}
	assert.Empty(t, client.Calls())
}

func TestEvaluate_CollectionAddressedNeverReachesDatabaseOps(t *testing.T) {
	ev, client := connected(t)
	ctx := context.Background()

	res := ev.Evaluate(ctx, parseOne(t, `db.getCollection("").dropDatabase()`))
	assert.Equal(t, apperrors.ParseError, apperrors.KindOf(res.Err))

	for _, text := range []string{`db.getCollection("users").dropDatabase()`, "db.users.getName()"} {
		res = ev.Evaluate(ctx, parseOne(t, text))
		assert.Equal(t, apperrors.UnknownOperation, apperrors.KindOf(res.Err), text)
	}
	assert.Empty(t, client.Calls())
	assert.Len(t, client.Docs("shop", "users"), 3)
}

func TestEvaluate_Find(t *testing.T) {
	ev, client := connected(t)
	ctx := context.Background()

	res := ev.Evaluate(ctx, parseOne(t, "db.users.find({age: {$gt: 30}}).sort({age: -1}).limit(1)"))
	require.NoError(t, res.Err)
	docs := res.Value.([]docstore.D)
	require.Len(t, docs, 1)
	name, _ := docs[0].Get("name")
	assert.Equal(t, "cy", name)
	assert.Equal(t, []string{"find users"}, client.Calls())

	res = ev.Evaluate(ctx, parseOne(t, "db.users.find({}, {name: 1, _id: 0}).skip(2)"))
	require.NoError(t, res.Err)
	assert.Equal(t, []docstore.D{{{Key: "name", Value: "cy"}}}, res.Value)

	res = ev.Evaluate(ctx, parseOne(t, "db.users.find({nobody: true})"))
	require.NoError(t, res.Err)
	assert.Equal(t, []docstore.D{}, res.Value)
}

func TestEvaluate_CursorCountIgnoresLimit(t *testing.T) {
	ev, client := connected(t)
	res := ev.Evaluate(context.Background(), parseOne(t, "db.users.find().limit(1).count()"))
	require.NoError(t, res.Err)
	assert.Equal(t, int64(3), res.Value)
	assert.Equal(t, []string{"countDocuments users"}, client.Calls())
}

func TestEvaluate_Writes(t *testing.T) {
	ev, client := connected(t)
	ctx := context.Background()

	res := ev.Evaluate(ctx, parseOne(t, `db.users.insertOne({_id: 4, name: "dee"})`))
	require.NoError(t, res.Err)
	assert.Equal(t, docstore.D{{Key: "acknowledged", Value: true}, {Key: "insertedId", Value: int64(4)}}, res.Value)

	res = ev.Evaluate(ctx, parseOne(t, `db.users.insertMany([{_id: 5}, {_id: 6}])`))
	require.NoError(t, res.Err)
	ids, _ := res.Value.(docstore.D).Get("insertedIds")
	assert.Equal(t, []any{int64(5), int64(6)}, ids)

	res = ev.Evaluate(ctx, parseOne(t, `db.users.insert([{_id: 7}])`))
	require.NoError(t, res.Err)
	assert.Equal(t, docstore.D{{Key: "nInserted", Value: int64(1)}}, res.Value)

	res = ev.Evaluate(ctx, parseOne(t, `db.users.updateMany({age: {$lt: 40}}, {$inc: {age: 1}})`))
	require.NoError(t, res.Err)
	matched, _ := res.Value.(docstore.D).Get("matchedCount")
	assert.Equal(t, int64(2), matched)

	res = ev.Evaluate(ctx, parseOne(t, `db.users.deleteMany({_id: {$in: [5, 6, 7]}})`))
	require.NoError(t, res.Err)
	deleted, _ := res.Value.(docstore.D).Get("deletedCount")
	assert.Equal(t, int64(3), deleted)

	res = ev.Evaluate(ctx, parseOne(t, `db.users.remove({_id: 4}, true)`))
	require.NoError(t, res.Err)
	assert.Equal(t, docstore.D{{Key: "nRemoved", Value: int64(1)}}, res.Value)

	assert.Len(t, client.Docs("shop", "users"), 3)
}

func TestEvaluate_DatabaseOperations(t *testing.T) {
	ev, _ := connected(t)
	ctx := context.Background()

	res := ev.Evaluate(ctx, parseOne(t, `db.createCollection("orders")`))
	require.NoError(t, res.Err)

	res = ev.Evaluate(ctx, parseOne(t, `db.getCollectionNames()`))
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"orders", "users"}, res.Value)

	res = ev.Evaluate(ctx, parseOne(t, `db.getName()`))
	require.NoError(t, res.Err)
	assert.Equal(t, "shop", res.Value)
}

func TestEvaluate_InvalidArguments(t *testing.T) {
	ev, _ := connected(t)
	tests := []struct {
		text string
		want string
	}{
		{`db.users.find(1)`, "filter must be a document"},
		{`db.users.updateOne({}, {name: "x"})`, "requires atomic operators"},
		{`db.users.replaceOne({}, {$set: {a: 1}})`, "must not contain update operators"},
		{`db.users.insertOne()`, "expects 1 to 2 arguments, got 0"},
		{`db.users.insertOne({}).limit(1)`, "does not return a cursor"},
		{`db.users.find().limit("x")`, "limit must be a number"},
		{`db.users.find().count().limit(1)`, "cannot follow .count()"},
		{`db.createCollection("")`, "must be a non-empty string"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := ev.Evaluate(context.Background(), parseOne(t, tt.text))
			require.Error(t, res.Err)
			assert.Equal(t, apperrors.EvaluationError, apperrors.KindOf(res.Err))
			assert.Contains(t, res.Err.Error(), tt.want)
		})
	}
}

func TestEvaluate_DataPlaneErrorPassesThrough(t *testing.T) {
	ev, client := connected(t)
	client.Fail["find"] = errors.New("connection reset by peer")

	res := ev.Evaluate(context.Background(), parseOne(t, "db.users.find()"))
	require.Error(t, res.Err)
	assert.Equal(t, apperrors.EvaluationError, apperrors.KindOf(res.Err))
	assert.Contains(t, res.Err.Error(), "connection reset by peer")
	assert.Equal(t, []string{"find users"}, client.Calls(), "failed calls are not retried")
}

func TestEvaluateAll_ContinuesAfterFailure(t *testing.T) {
	ev, client := connected(t)
	cmds, _ := scrapbook.Parse("db.users.insertOne({_id: 9})\ndb.users.explode()\ndb.users.countDocuments({_id: 9})")
	require.Len(t, cmds, 3)

	results := ev.EvaluateAll(context.Background(), cmds)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, apperrors.UnknownOperation, apperrors.KindOf(results[1].Err))
	require.NoError(t, results[2].Err)
	assert.Equal(t, int64(1), results[2].Value, "later commands see earlier writes")
	for i, r := range results {
		assert.Equal(t, cmds[i], r.Command)
	}
	assert.Equal(t, []string{"insertOne users", "countDocuments users"}, client.Calls())
}

func TestEvaluate_ResolvesPlaceholdersPerRun(t *testing.T) {
	ev, client := connected(t)
	cmd := parseOne(t, "db.events.insertOne({_id: ObjectId()})")

	first := ev.Evaluate(context.Background(), cmd)
	second := ev.Evaluate(context.Background(), cmd)
	require.NoError(t, first.Err)
	require.NoError(t, second.Err)

	id1, _ := first.Value.(docstore.D).Get("insertedId")
	id2, _ := second.Value.(docstore.D).Get("insertedId")
	assert.IsType(t, docstore.ObjectID{}, id1)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, client.Docs("shop", "events"), 2)
}

func TestSelect(t *testing.T) {
	cmds, _ := scrapbook.Parse("db.a.find()\n\ndb.b.find()\n")

	got, err := Select(cmds, 0)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Collection)

	got, err = Select(cmds, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Collection)

	_, err = Select(cmds, 9)
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
	_, err = Select(nil, 0)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.Empty(t, Validate(parseOne(t, "db.users.find().sort({a: 1}).toArray()")))
	assert.Empty(t, Validate(parseOne(t, "db.users.find({")), "parse errors are reported by the parser")

	problems := Validate(parseOne(t, "db.users.fnid().batchSize(2)"))
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0].Message, `unknown collection operation "fnid"`)
	assert.Contains(t, problems[1].Message, `unknown cursor method "batchSize"`)
	assert.Equal(t, 1, problems[0].Range.Start.Line)
}

func TestRender(t *testing.T) {
	out, err := Render(docstore.D{{Key: "ok", Value: int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"ok\": 1\n}", out)

	out, err = Render("shop")
	require.NoError(t, err)
	assert.Equal(t, "shop", out)
}

// findOptionsRecorder keeps the options of the last Find instead of querying.
type findOptionsRecorder struct {
	docstore.Client
	last *docstore.FindOptions
}

func (r findOptionsRecorder) Database(name string) docstore.Database {
	return recordingDatabase{r.Client.Database(name), r.last}
}

type recordingDatabase struct {
	docstore.Database
	last *docstore.FindOptions
}

func (d recordingDatabase) Collection(name string) docstore.Collection {
	return recordingCollection{d.Database.Collection(name), d.last}
}

type recordingCollection struct {
	docstore.Collection
	last *docstore.FindOptions
}

func (c recordingCollection) Find(_ context.Context, _ docstore.D, opts docstore.FindOptions) ([]docstore.D, error) {
	*c.last = opts
	return nil, nil
}

func TestEvaluate_ChainArgumentsResolvePlaceholders(t *testing.T) {
	var last docstore.FindOptions
	session := &connection.Session{
		Descriptor: connection.Descriptor{Account: "local", Kind: "mongo", Database: "shop"},
		Client:     findOptionsRecorder{Client: docstoretest.NewClient(), last: &last},
	}
	ev := New(staticSource{session}, nil)

	cmd := parseOne(t, "db.users.find().sort({_id: ObjectId(), at: new Date()})")
	res := ev.Evaluate(context.Background(), cmd)
	require.NoError(t, res.Err)

	require.Len(t, last.Sort, 2)
	assert.IsType(t, docstore.ObjectID{}, last.Sort[0].Value)
	assert.IsType(t, time.Time{}, last.Sort[1].Value)

	// The parsed command itself keeps its placeholders for the next run.
	sortArg := cmd.Chain[0].Args[0].(docstore.D)
	assert.Equal(t, scrapbook.NewObjectID, sortArg[0].Value)
}
