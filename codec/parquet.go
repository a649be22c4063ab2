package codec

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
)

const parquetChunkSize = 4096

func DecodeParquet(data []byte) (*dataset.Dataset, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	table, err := reader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	columns := make([]string, len(schema.Fields()))
	rows := make([][]any, table.NumRows())
	for i := range rows {
		rows[i] = make([]any, len(columns))
	}

	for c := range columns {
		columns[c] = schema.Field(c).Name
		r := 0
		for _, chunk := range table.Column(c).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				v, err := arrowValue(chunk, i)
				if err != nil {
					return nil, fmt.Errorf("read parquet column %q: %w", columns[c], err)
				}
				rows[r][c] = v
				r++
			}
		}
	}

	return dataset.New(columns, rows)
}

func arrowValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Uint64:
		return a.Value(i), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Binary:
		return a.ValueString(i), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit), nil
	}
	return nil, fmt.Errorf("unsupported arrow type %s", arr.DataType())
}

// EncodeParquet writes one row group per chunk. Column types are inferred:
// all-integer columns become int64, numeric ones float64, all-bool ones
// boolean and everything else a string.
func EncodeParquet(ds *dataset.Dataset) ([]byte, error) {
	mem := memory.NewGoAllocator()
	columns := ds.Columns()
	rows := ds.Rows()

	fields := make([]arrow.Field, len(columns))
	arrays := make([]arrow.Array, len(columns))
	defer func() {
		for _, a := range arrays {
			if a != nil {
				a.Release()
			}
		}
	}()

	for c, name := range columns {
		values := make([]any, len(rows))
		for r, row := range rows {
			values[r] = row[c]
		}
		dt, arr := buildArrowColumn(mem, values)
		fields[c] = arrow.Field{Name: name, Type: dt, Nullable: true}
		arrays[c] = arr
	}

	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrays, int64(len(rows)))
	defer rec.Release()
	table := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer table.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithDictionaryDefault(false))
	if err := pqarrow.WriteTable(table, &buf, parquetChunkSize, props, pqarrow.DefaultWriterProps()); err != nil {
		return nil, fmt.Errorf("write parquet: %w", err)
	}
	return buf.Bytes(), nil
}

func buildArrowColumn(mem memory.Allocator, values []any) (arrow.DataType, arrow.Array) {
	allInt, allFloat, allBool := true, true, true
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64:
			allBool = false
		case float64:
			allInt, allBool = false, false
		case bool:
			allInt, allFloat = false, false
		default:
			allInt, allFloat, allBool = false, false, false
		}
	}

	switch {
	case allInt:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(int64))
		}
		return arrow.PrimitiveTypes.Int64, b.NewArray()
	case allFloat:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, v := range values {
			f, ok := dataset.ToFloat(v)
			if !ok {
				b.AppendNull()
				continue
			}
			b.Append(f)
		}
		return arrow.PrimitiveTypes.Float64, b.NewArray()
	case allBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(bool))
		}
		return arrow.FixedWidthTypes.Boolean, b.NewArray()
	}

	b := array.NewStringBuilder(mem)
	defer b.Release()
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.Append(dataset.Format(v))
	}
	return arrow.BinaryTypes.String, b.NewArray()
}
