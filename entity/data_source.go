package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SourceKind selects the reader used to fetch a dataset
type SourceKind string

const (
	SourceKindAPI      SourceKind = "api"
	SourceKindDatabase SourceKind = "database"
	SourceKindFile     SourceKind = "file"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindAPI, SourceKindDatabase, SourceKindFile:
		return true
	}
	return false
}

type FileFormat string

const (
	FileFormatCSV     FileFormat = "csv"
	FileFormatJSON    FileFormat = "json"
	FileFormatParquet FileFormat = "parquet"
	FileFormatExcel   FileFormat = "excel"
)

// Normalize lower-cases the format so "CSV" and "csv" are the same thing
func (f FileFormat) Normalize() FileFormat {
	return FileFormat(strings.ToLower(strings.TrimSpace(string(f))))
}

func (f FileFormat) Valid() bool {
	switch f.Normalize() {
	case FileFormatCSV, FileFormatJSON, FileFormatParquet, FileFormatExcel:
		return true
	}
	return false
}

type TransformationType string

const (
	TransformFilter    TransformationType = "filter"
	TransformSelect    TransformationType = "select"
	TransformRename    TransformationType = "rename"
	TransformAggregate TransformationType = "aggregate"
	TransformCustom    TransformationType = "custom"
)

func (t TransformationType) Valid() bool {
	switch t {
	case TransformFilter, TransformSelect, TransformRename, TransformAggregate, TransformCustom:
		return true
	}
	return false
}

// Transformation is one step of the pipeline; which payload field is read depends on Type
type Transformation struct {
	Type         TransformationType `json:"type"`
	Condition    string             `json:"condition,omitempty"`
	Columns      []string           `json:"columns,omitempty"`
	Mapping      map[string]string  `json:"mapping,omitempty"`
	GroupBy      []string           `json:"group_by,omitempty"`
	Aggregations Aggregations       `json:"aggregations,omitempty"`
	Code         string             `json:"code,omitempty"`
}

// Aggregation applies Func to Column within each group
type Aggregation struct {
	Column string
	Func   string
}

// Aggregations keeps the key order of the JSON object it was decoded from,
// so aggregated columns come out in the order the caller wrote them.
type Aggregations []Aggregation

func (a *Aggregations) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("aggregations must be an object of column to function")
	}

	var out Aggregations
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var fn string
		if err := dec.Decode(&fn); err != nil {
			return fmt.Errorf("aggregation for %v must be a function name: %w", keyTok, err)
		}
		out = append(out, Aggregation{Column: keyTok.(string), Func: fn})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*a = out
	return nil
}

func (a Aggregations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, agg := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(agg.Column)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(agg.Func)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DataSourceConfig describes one ingestion request
type DataSourceConfig struct {
	SourceType      SourceKind       `json:"source_type"`
	SourceURL       string           `json:"source_url"`
	SourceParams    map[string]any   `json:"source_params,omitempty"`
	SourceQuery     string           `json:"source_query,omitempty"`
	FileFormat      FileFormat       `json:"file_format,omitempty"`
	Transformations []Transformation `json:"transformations,omitempty"`
	Destination     string           `json:"destination"`
}

// Validate checks the request once at submission time
func (c *DataSourceConfig) Validate() error {
	if !c.SourceType.Valid() {
		return &ValidationError{Field: "source_type", Message: fmt.Sprintf("unsupported source type %q", c.SourceType)}
	}

	if strings.TrimSpace(c.SourceURL) == "" {
		return &ValidationError{Field: "source_url", Message: "source_url is required"}
	}

	if c.SourceType == SourceKindDatabase && strings.TrimSpace(c.SourceQuery) == "" {
		return &ValidationError{Field: "source_query", Message: "source_query is required for database sources"}
	}

	if c.SourceType == SourceKindFile && c.FileFormat == "" {
		return &ValidationError{Field: "file_format", Message: "file_format is required for file sources"}
	}

	for i, t := range c.Transformations {
		if !t.Type.Valid() {
			return &ValidationError{
				Field:   fmt.Sprintf("transformations[%d].type", i),
				Message: fmt.Sprintf("unsupported transformation type %q", t.Type),
			}
		}
	}

	if _, err := ParseDestination(c.Destination); err != nil {
		return err
	}

	return nil
}
