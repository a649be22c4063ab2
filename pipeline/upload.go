package pipeline

import (
	"fmt"

	"github.com/tnqbao/gau-ingest-pipeline/codec"
	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

// decodeUpload picks the codec from the file extension
func decodeUpload(upload Upload) (*dataset.Dataset, entity.FileFormat, error) {
	format, err := codec.FormatFromFilename(upload.Filename)
	if err != nil {
		return nil, "", err
	}
	ds, err := codec.Decode(format, upload.Data)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", upload.Filename, err)
	}
	return ds, format, nil
}
