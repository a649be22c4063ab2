package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
)

// Object is a decoded JSON object that remembers its key order
type Object struct {
	Keys   []string
	Values map[string]any
}

func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// ParseOrdered decodes a single JSON document. Objects come back as *Object,
// arrays as []any and numbers as json.Number.
func ParseOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level JSON value")
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
			obj := &Object{Values: make(map[string]any)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key := keyTok.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.Values[key]; !dup {
					obj.Keys = append(obj.Keys, key)
				}
				obj.Values[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			list := make([]any, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	}
	return tok, nil
}

// Plain converts *Object trees into map[string]any so nested values can be
// stored in a dataset cell and re-encoded later.
func Plain(v any) any {
	switch val := v.(type) {
	case *Object:
		m := make(map[string]any, len(val.Keys))
		for _, k := range val.Keys {
			m[k] = Plain(val.Values[k])
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Plain(item)
		}
		return out
	}
	return dataset.Normalize(v)
}

// RecordsFromValues builds a record-form dataset from decoded array items.
// Columns follow the key order of the items, by first appearance. Items that
// are not objects are kept as a single "value" column.
func RecordsFromValues(items []any) (*dataset.Dataset, error) {
	var columns []string
	seen := make(map[string]struct{})
	records := make([]dataset.Record, len(items))

	for i, item := range items {
		obj, ok := item.(*Object)
		if !ok {
			obj = &Object{Keys: []string{"value"}, Values: map[string]any{"value": item}}
		}
		rec := make(dataset.Record, len(obj.Keys))
		for _, k := range obj.Keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
			rec[k] = Plain(obj.Values[k])
		}
		records[i] = rec
	}

	return dataset.FromOrderedRecords(columns, records)
}

// DecodeJSON accepts an array of records, an object of column arrays, or an
// object of column objects keyed by row label.
func DecodeJSON(data []byte) (*dataset.Dataset, error) {
	doc, err := ParseOrdered(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	switch v := doc.(type) {
	case []any:
		ds, err := RecordsFromValues(v)
		if err != nil {
			return nil, err
		}
		return ds.WithForm(dataset.FormTable), nil
	case *Object:
		return decodeColumns(v)
	}
	return nil, fmt.Errorf("parse json: top-level value must be an array or an object, got %T", doc)
}

func decodeColumns(obj *Object) (*dataset.Dataset, error) {
	if len(obj.Keys) == 0 {
		return dataset.New(nil, nil)
	}

	switch obj.Values[obj.Keys[0]].(type) {
	case []any:
		var n int
		for i, col := range obj.Keys {
			values, ok := obj.Values[col].([]any)
			if !ok {
				return nil, fmt.Errorf("parse json: column %q is not an array", col)
			}
			if i == 0 {
				n = len(values)
			} else if len(values) != n {
				return nil, fmt.Errorf("parse json: column %q has %d values, expected %d", col, len(values), n)
			}
		}
		rows := make([][]any, n)
		for r := range rows {
			rows[r] = make([]any, len(obj.Keys))
			for c, col := range obj.Keys {
				rows[r][c] = Plain(obj.Values[col].([]any)[r])
			}
		}
		return dataset.New(obj.Keys, rows)

	case *Object:
		var labels []string
		index := make(map[string]int)
		for _, col := range obj.Keys {
			inner, ok := obj.Values[col].(*Object)
			if !ok {
				return nil, fmt.Errorf("parse json: column %q is not an object", col)
			}
			for _, label := range inner.Keys {
				if _, ok := index[label]; !ok {
					index[label] = len(labels)
					labels = append(labels, label)
				}
			}
		}
		rows := make([][]any, len(labels))
		for r := range rows {
			rows[r] = make([]any, len(obj.Keys))
		}
		for c, col := range obj.Keys {
			inner := obj.Values[col].(*Object)
			for _, label := range inner.Keys {
				rows[index[label]][c] = Plain(inner.Values[label])
			}
		}
		return dataset.New(obj.Keys, rows)
	}

	row := make([]any, len(obj.Keys))
	for i, col := range obj.Keys {
		row[i] = Plain(obj.Values[col])
	}
	return dataset.New(obj.Keys, [][]any{row})
}

// EncodeJSON writes an array of records, keys in column order
func EncodeJSON(ds *dataset.Dataset) ([]byte, error) {
	columns := ds.Columns()

	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, row := range ds.Rows() {
		if r > 0 {
			buf.WriteByte(',')
		}
		raw, err := EncodeRecord(columns, row)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EncodeRecord marshals one row as a JSON object, keys in column order
func EncodeRecord(columns []string, row []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(row[i])
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
