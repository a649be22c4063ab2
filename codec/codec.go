// Package codec converts datasets to and from the file formats the pipeline
// reads and writes: csv, json, parquet and excel.
package codec

import (
	"fmt"
	"path"
	"strings"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

const (
	ContentTypeCSV     = "text/csv"
	ContentTypeJSON    = "application/json"
	ContentTypeParquet = "application/octet-stream"
	ContentTypeExcel   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	ContentTypeOctetStream = "application/octet-stream"
)

// Decode parses a whole document of the given format into a table-form dataset
func Decode(format entity.FileFormat, data []byte) (*dataset.Dataset, error) {
	switch format.Normalize() {
	case entity.FileFormatCSV:
		return DecodeCSV(data)
	case entity.FileFormatJSON:
		return DecodeJSON(data)
	case entity.FileFormatParquet:
		return DecodeParquet(data)
	case entity.FileFormatExcel:
		return DecodeExcel(data)
	}
	return nil, fmt.Errorf("%w: %q", entity.ErrUnsupportedFormat, format)
}

// Encode serializes the record view of ds. JSON output is an array of records.
func Encode(format entity.FileFormat, ds *dataset.Dataset) ([]byte, error) {
	switch format.Normalize() {
	case entity.FileFormatCSV:
		return EncodeCSV(ds)
	case entity.FileFormatJSON:
		return EncodeJSON(ds)
	case entity.FileFormatParquet:
		return EncodeParquet(ds)
	case entity.FileFormatExcel:
		return EncodeExcel(ds)
	}
	return nil, fmt.Errorf("%w: %q", entity.ErrUnsupportedFormat, format)
}

func ContentType(format entity.FileFormat) string {
	switch format.Normalize() {
	case entity.FileFormatJSON:
		return ContentTypeJSON
	case entity.FileFormatParquet:
		return ContentTypeParquet
	case entity.FileFormatExcel:
		return ContentTypeExcel
	}
	return ContentTypeCSV
}

// FormatFromFilename guesses the format from the file extension
func FormatFromFilename(name string) (entity.FileFormat, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return entity.FileFormatCSV, nil
	case ".json":
		return entity.FileFormatJSON, nil
	case ".parquet":
		return entity.FileFormatParquet, nil
	case ".xlsx", ".xlsm", ".xls":
		return entity.FileFormatExcel, nil
	}
	return "", fmt.Errorf("%w: cannot infer format of %q", entity.ErrUnsupportedFormat, name)
}
