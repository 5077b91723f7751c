// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Extended JSON markers for values plain JSON cannot carry.
const (
	markerOID    = "$oid"
	markerDate   = "$date"
	markerDouble = "$numberDouble"
)

// dateLayout has fixed millisecond width so encoded dates sort lexically.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalExtJSON encodes v as JSON, keeping document field order. ObjectIDs become
// {"$oid": hex} and times {"$date": RFC 3339}; floats always carry a decimal point so
// they decode back as floats.
func MarshalExtJSON(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	if !indent {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case int:
		buf.WriteString(strconv.Itoa(t))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		encodeFloat(buf, t)
	case string:
		encodeString(buf, t)
	case time.Time:
		buf.WriteString(`{"` + markerDate + `":`)
		encodeString(buf, t.UTC().Format(dateLayout))
		buf.WriteString("}")
	case ObjectID:
		buf.WriteString(`{"` + markerOID + `":"` + t.Hex() + `"}`)
	case D:
		buf.WriteByte('{')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, e.Key)
			buf.WriteByte(':')
			if err := encodeValue(buf, e.Value); err != nil {
				return fmt.Errorf("%s: %w", e.Key, err)
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, x := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, x); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []string:
		items := make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
		return encodeValue(buf, items)
	case []D:
		items := make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
		return encodeValue(buf, items)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(D, 0, len(t))
		for _, k := range keys {
			d = append(d, E{Key: k, Value: t[k]})
		}
		return encodeValue(buf, d)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func encodeFloat(buf *bytes.Buffer, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		buf.WriteString(`{"` + markerDouble + `":`)
		encodeString(buf, strconv.FormatFloat(f, 'g', -1, 64))
		buf.WriteString("}")
		return
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	buf.WriteString(s)
}

func encodeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
}

// UnmarshalExtJSON decodes a JSON object into an ordered document, turning the
// extended JSON markers back into ObjectID and time.Time values.
func UnmarshalExtJSON(data []byte) (D, error) {
	v, err := UnmarshalExtJSONValue(data)
	if err != nil {
		return nil, err
	}
	d, ok := v.(D)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return d, nil
}

// UnmarshalExtJSONValue decodes any JSON value.
func UnmarshalExtJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			items := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		if i, err := t.Int64(); err == nil && !strings.ContainsAny(t.String(), ".eE") {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		// string, bool or nil
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (any, error) {
	d := D{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		d = append(d, E{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fromMarker(d)
}

// fromMarker converts single-key marker objects back to their typed values.
func fromMarker(d D) (any, error) {
	if len(d) != 1 {
		return d, nil
	}
	s, isString := d[0].Value.(string)
	switch d[0].Key {
	case markerOID:
		if !isString {
			return nil, fmt.Errorf("%s must be a string", markerOID)
		}
		return ObjectIDFromHex(s)
	case markerDate:
		if !isString {
			if ms, ok := d[0].Value.(int64); ok {
				return time.UnixMilli(ms).UTC(), nil
			}
			return nil, fmt.Errorf("%s must be a string", markerDate)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", markerDate, s, err)
		}
		return t.UTC(), nil
	case markerDouble:
		if !isString {
			return nil, fmt.Errorf("%s must be a string", markerDouble)
		}
		return strconv.ParseFloat(s, 64)
	}
	return d, nil
}
