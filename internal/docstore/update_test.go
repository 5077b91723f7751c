package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpdate(t *testing.T) {
	base := D{
		{Key: "_id", Value: "1"},
		{Key: "name", Value: "ada"},
		{Key: "visits", Value: int64(2)},
		{Key: "address", Value: D{{Key: "city", Value: "London"}}},
		{Key: "tags", Value: []any{"a"}},
	}

	tests := []struct {
		name        string
		update      D
		inserting   bool
		want        D
		wantChanged bool
	}{
		{
			name:   "set top level and nested",
			update: D{{Key: "$set", Value: D{{Key: "name", Value: "grace"}, {Key: "address.zip", Value: "N1"}}}},
			want: D{
				{Key: "_id", Value: "1"},
				{Key: "name", Value: "grace"},
				{Key: "visits", Value: int64(2)},
				{Key: "address", Value: D{{Key: "city", Value: "London"}, {Key: "zip", Value: "N1"}}},
				{Key: "tags", Value: []any{"a"}},
			},
			wantChanged: true,
		},
		{
			name:   "unset and inc",
			update: D{{Key: "$unset", Value: D{{Key: "address", Value: ""}}}, {Key: "$inc", Value: D{{Key: "visits", Value: int64(3)}, {Key: "score", Value: 0.5}}}},
			want: D{
				{Key: "_id", Value: "1"},
				{Key: "name", Value: "ada"},
				{Key: "visits", Value: int64(5)},
				{Key: "tags", Value: []any{"a"}},
				{Key: "score", Value: 0.5},
			},
			wantChanged: true,
		},
		{
			name:   "push each",
			update: D{{Key: "$push", Value: D{{Key: "tags", Value: D{{Key: "$each", Value: []any{"b", "c"}}}}}}},
			want: D{
				{Key: "_id", Value: "1"},
				{Key: "name", Value: "ada"},
				{Key: "visits", Value: int64(2)},
				{Key: "address", Value: D{{Key: "city", Value: "London"}}},
				{Key: "tags", Value: []any{"a", "b", "c"}},
			},
			wantChanged: true,
		},
		{
			name:        "set same value is not a change",
			update:      D{{Key: "$set", Value: D{{Key: "name", Value: "ada"}}}},
			want:        base,
			wantChanged: false,
		},
		{
			name:        "setOnInsert ignored on update",
			update:      D{{Key: "$setOnInsert", Value: D{{Key: "created", Value: true}}}},
			want:        base,
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := ApplyUpdate(base, tt.update, tt.inserting)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}

	// base must not be mutated by any case above
	assert.Equal(t, "ada", mustGet(t, base, "name"))
	assert.Equal(t, []any{"a"}, mustGet(t, base, "tags"))
}

func TestApplyUpdate_Errors(t *testing.T) {
	doc := D{{Key: "_id", Value: "1"}, {Key: "name", Value: "ada"}}
	tests := []struct {
		name   string
		update D
	}{
		{"replacement style", D{{Key: "name", Value: "x"}}},
		{"unknown operator", D{{Key: "$rename", Value: D{{Key: "name", Value: "n"}}}}},
		{"inc non numeric", D{{Key: "$inc", Value: D{{Key: "name", Value: int64(1)}}}}},
		{"push onto scalar", D{{Key: "$push", Value: D{{Key: "name", Value: "x"}}}}},
		{"change id", D{{Key: "$set", Value: D{{Key: "_id", Value: "2"}}}}},
		{"operator without document", D{{Key: "$set", Value: int64(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ApplyUpdate(doc, tt.update, false)
			assert.Error(t, err)
		})
	}
}

func TestReplace(t *testing.T) {
	doc := D{{Key: "_id", Value: "1"}, {Key: "a", Value: int64(1)}}

	got, err := Replace(doc, D{{Key: "b", Value: int64(2)}})
	require.NoError(t, err)
	assert.Equal(t, D{{Key: "_id", Value: "1"}, {Key: "b", Value: int64(2)}}, got)

	_, err = Replace(doc, D{{Key: "_id", Value: "2"}})
	assert.Error(t, err)

	_, err = Replace(doc, D{{Key: "$set", Value: D{}}})
	assert.Error(t, err)
}

func TestUpsertSeed(t *testing.T) {
	filter := D{
		{Key: "name", Value: "ada"},
		{Key: "age", Value: D{{Key: "$gt", Value: int64(3)}}},
		{Key: "kind", Value: D{{Key: "$eq", Value: "user"}}},
		{Key: "a.b", Value: int64(1)},
		{Key: "$or", Value: []any{}},
	}
	assert.Equal(t, D{{Key: "name", Value: "ada"}, {Key: "kind", Value: "user"}}, UpsertSeed(filter))
}

func TestProject(t *testing.T) {
	doc := D{{Key: "_id", Value: "1"}, {Key: "name", Value: "ada"}, {Key: "secret", Value: "x"}}

	got, err := Project(doc, D{{Key: "name", Value: int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, D{{Key: "_id", Value: "1"}, {Key: "name", Value: "ada"}}, got)

	got, err = Project(doc, D{{Key: "secret", Value: int64(0)}, {Key: "_id", Value: false}})
	require.NoError(t, err)
	assert.Equal(t, D{{Key: "name", Value: "ada"}}, got)

	_, err = Project(doc, D{{Key: "name", Value: "yes"}})
	assert.Error(t, err)
}

func mustGet(t *testing.T, d D, key string) any {
	t.Helper()
	v, ok := d.Get(key)
	require.True(t, ok, "missing %s", key)
	return v
}
