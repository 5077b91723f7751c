package docstore

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMarshalExtJSON_KeepsOrderAndMarkers(t *testing.T) {
	id, err := ObjectIDFromHex("5f1b2c3d4e5f6a7b8c9d0e1f")
	require.NoError(t, err)
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	doc := D{
		{Key: "_id", Value: id},
		{Key: "zeta", Value: int64(1)},
		{Key: "alpha", Value: 2.0},
		{Key: "at", Value: when},
		{Key: "tags", Value: []any{"a", nil, true}},
		{Key: "html", Value: "<b>"},
	}

	b, err := MarshalExtJSON(doc, false)
	require.NoError(t, err)
	assert.Equal(t,
		`{"_id":{"$oid":"5f1b2c3d4e5f6a7b8c9d0e1f"},"zeta":1,"alpha":2.0,"at":{"$date":"2024-03-01T12:30:00.000Z"},"tags":["a",null,true],"html":"<b>"}`,
		string(b))

	back, err := UnmarshalExtJSON(b)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestMarshalExtJSON_Indent(t *testing.T) {
	b, err := MarshalExtJSON(D{{Key: "a", Value: D{{Key: "b", Value: int64(1)}}}}, true)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": {\n    \"b\": 1\n  }\n}", string(b))
}

func TestMarshalExtJSON_NonFinite(t *testing.T) {
	b, err := MarshalExtJSON(D{{Key: "x", Value: math.Inf(1)}}, false)
	require.NoError(t, err)
	assert.Equal(t, `{"x":{"$numberDouble":"+Inf"}}`, string(b))

	back, err := UnmarshalExtJSON(b)
	require.NoError(t, err)
	v, _ := back.Get("x")
	assert.True(t, math.IsInf(v.(float64), 1))
}

func TestUnmarshalExtJSON_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an object", `[1,2]`},
		{"bad oid", `{"_id":{"$oid":"xyz"}}`},
		{"bad date", `{"at":{"$date":"yesterday"}}`},
		{"trailing data", `{"a":1} {"b":2}`},
		{"truncated", `{"a":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalExtJSON([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalExtJSON_Numbers(t *testing.T) {
	d, err := UnmarshalExtJSON([]byte(`{"i":42,"f":1.5,"e":1e3,"neg":-7}`))
	require.NoError(t, err)
	assert.Equal(t, D{
		{Key: "i", Value: int64(42)},
		{Key: "f", Value: 1.5},
		{Key: "e", Value: 1000.0},
		{Key: "neg", Value: int64(-7)},
	}, d)
}

func TestObjectID(t *testing.T) {
	a := NewObjectID()
	b := NewObjectID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a.Hex(), 24)
	assert.WithinDuration(t, time.Now(), a.Timestamp(), 5*time.Second)

	parsed, err := ObjectIDFromHex(a.Hex())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ObjectIDFromHex("abc")
	assert.ErrorContains(t, err, `invalid ObjectId "abc"`)
	_, err = ObjectIDFromHex("zz1b2c3d4e5f6a7b8c9d0e1f")
	assert.Error(t, err)

	// Same bytes as the driver's ObjectID, so values convert without copying.
	driver := primitive.ObjectID(a)
	assert.Equal(t, driver.Hex(), a.Hex())
	assert.Equal(t, driver.Timestamp().UTC(), a.Timestamp())
}

func TestIDString(t *testing.T) {
	id, _ := ObjectIDFromHex("5f1b2c3d4e5f6a7b8c9d0e1f")
	assert.Equal(t, "5f1b2c3d4e5f6a7b8c9d0e1f", IDString(id))
	assert.Equal(t, "abc", IDString("abc"))
	assert.Equal(t, "7", IDString(int64(7)))
	assert.Equal(t, "", IDString(nil))
}
