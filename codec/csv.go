package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
)

// DecodeCSV reads a header row followed by data rows
func DecodeCSV(data []byte) (*dataset.Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return dataset.New(nil, nil)
	}

	header := all[0]
	for i, rec := range all[1:] {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("parse csv: line %d has %d fields, header has %d", i+2, len(rec), len(header))
		}
	}
	return inferTable(header, all[1:])
}

func EncodeCSV(ds *dataset.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ds.Columns()); err != nil {
		return nil, err
	}
	for _, row := range ds.Rows() {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = dataset.Format(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
