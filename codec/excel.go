package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
)

const excelSheet = "Sheet1"

// DecodeExcel reads the first sheet; its first row is the header
func DecodeExcel(data []byte) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("open workbook: no sheets")
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return dataset.New(nil, nil)
	}

	header := all[0]
	body := all[1:]
	// trailing empty cells are trimmed by excelize, so rows may be shorter than the header
	for i, rec := range body {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("read sheet %q: row %d is wider than the header", sheets[0], i+2)
		}
	}
	return inferTable(header, body)
}

func EncodeExcel(ds *dataset.Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, 0, ds.NumColumns())
	for _, col := range ds.Columns() {
		header = append(header, col)
	}
	if err := f.SetSheetRow(excelSheet, "A1", &header); err != nil {
		return nil, err
	}

	for r, row := range ds.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for i, v := range row {
			switch v.(type) {
			case nil, string, int64, float64, bool:
				values[i] = v
			default:
				values[i] = dataset.Format(v)
			}
		}
		if err := f.SetSheetRow(excelSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
