package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLFilter_Where(t *testing.T) {
	tests := []struct {
		name     string
		filter   D
		want     string
		wantArgs []any
	}{
		{
			name:   "empty",
			filter: nil,
			want:   "TRUE",
		},
		{
			name:     "equality uses containment",
			filter:   D{{Key: "address.city", Value: "Paris"}},
			want:     "doc @> $1::jsonb",
			wantArgs: []any{`{"address":{"city":"Paris"}}`},
		},
		{
			name:     "null matches missing",
			filter:   D{{Key: "deleted", Value: nil}},
			want:     "(doc #> $1::text[] IS NULL OR doc #> $1::text[] = 'null'::jsonb)",
			wantArgs: []any{[]string{"deleted"}},
		},
		{
			name:   "range on one field",
			filter: D{{Key: "age", Value: D{{Key: "$gte", Value: int64(18)}, {Key: "$lt", Value: int64(65)}}}},
			want: "((jsonb_typeof(doc #> $1::text[]) = jsonb_typeof($2::jsonb) AND doc #> $1::text[] >= $2::jsonb) AND " +
				"(jsonb_typeof(doc #> $3::text[]) = jsonb_typeof($4::jsonb) AND doc #> $3::text[] < $4::jsonb))",
			wantArgs: []any{[]string{"age"}, "18", []string{"age"}, "65"},
		},
		{
			name:     "in and nin",
			filter:   D{{Key: "s", Value: D{{Key: "$in", Value: []any{"a", "b"}}}}, {Key: "t", Value: D{{Key: "$nin", Value: []any{}}}}},
			want:     "(doc @> $1::jsonb OR doc @> $2::jsonb) AND TRUE",
			wantArgs: []any{`{"s":"a"}`, `{"s":"b"}`},
		},
		{
			name: "logical operators",
			filter: D{{Key: "$or", Value: []any{
				D{{Key: "a", Value: int64(1)}},
				D{{Key: "b", Value: D{{Key: "$exists", Value: false}}}},
			}}},
			want:     "((doc @> $1::jsonb) OR (doc #> $2::text[] IS NULL))",
			wantArgs: []any{`{"a":1}`, []string{"b"}},
		},
		{
			name:     "nor",
			filter:   D{{Key: "$nor", Value: []any{D{{Key: "a", Value: true}}}}},
			want:     "NOT ((doc @> $1::jsonb))",
			wantArgs: []any{`{"a":true}`},
		},
		{
			name:     "case insensitive regex",
			filter:   D{{Key: "name", Value: D{{Key: "$regex", Value: "^ad"}, {Key: "$options", Value: "i"}}}},
			want:     "doc #>> $1::text[] ~* $2",
			wantArgs: []any{[]string{"name"}, "^ad"},
		},
		{
			name:     "ne and not",
			filter:   D{{Key: "a", Value: D{{Key: "$ne", Value: int64(1)}}}, {Key: "b", Value: D{{Key: "$not", Value: D{{Key: "$exists", Value: true}}}}}},
			want:     "NOT doc @> $1::jsonb AND NOT doc #> $2::text[] IS NOT NULL",
			wantArgs: []any{`{"a":1}`, []string{"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &sqlFilter{}
			got, err := f.where(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantArgs, f.args)
		})
	}
}

func TestSQLFilter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		filter D
	}{
		{"unknown top level", D{{Key: "$where", Value: "1"}}},
		{"unknown field operator", D{{Key: "a", Value: D{{Key: "$near", Value: int64(1)}}}}},
		{"or needs array", D{{Key: "$or", Value: D{}}}},
		{"in needs array", D{{Key: "a", Value: D{{Key: "$in", Value: int64(1)}}}}},
		{"options without regex", D{{Key: "a", Value: D{{Key: "$options", Value: "i"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&sqlFilter{}).where(tt.filter)
			assert.Error(t, err)
		})
	}
}

func TestSQLFilter_OrderBy(t *testing.T) {
	f := &sqlFilter{}
	got, err := f.orderBy(D{{Key: "age", Value: int64(-1)}, {Key: "name", Value: 1.0}})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY doc #> $1::text[] DESC, doc #> $2::text[] ASC", got)

	_, err = f.orderBy(D{{Key: "age", Value: "up"}})
	assert.Error(t, err)
}
