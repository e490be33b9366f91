package ingestion

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
	"github.com/synaptica-ai/hospital-insights/pkg/storage"
)

const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// Source supplies raw patient and visit records from the upstream producer.
type Source interface {
	LoadPatients(ctx context.Context) ([]models.RawRecord, error)
	LoadVisits(ctx context.Context) ([]models.RawRecord, error)
}

type fileSource struct {
	dir    string
	format string
}

// NewSource returns a Source that reads patients.<format> and visits.<format>
// from dir.
func NewSource(dir, format string) (Source, error) {
	v := NewValidator([]string{FormatParquet, FormatCSV})
	if err := v.Validate(dir, format); err != nil {
		return nil, err
	}
	return &fileSource{dir: dir, format: format}, nil
}

func (s *fileSource) LoadPatients(ctx context.Context) ([]models.RawRecord, error) {
	return s.load(ctx, "patients")
}

func (s *fileSource) LoadVisits(ctx context.Context) ([]models.RawRecord, error) {
	return s.load(ctx, "visits")
}

func (s *fileSource) load(ctx context.Context, entity string) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s.%s", entity, s.format))

	var (
		records []models.RawRecord
		err     error
	)
	switch s.format {
	case FormatCSV:
		records, err = ReadCSV(path)
	default:
		if entity == "patients" {
			records, err = readParquetRecords(path, RawPatientRow.toRecord)
		} else {
			records, err = readParquetRecords(path, RawVisitRow.toRecord)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", entity, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"entity": entity,
		"path":   path,
		"rows":   len(records),
	}).Info("Loaded raw records")
	return records, nil
}

func readParquetRecords[T any](path string, convert func(T, map[string]bool) models.RawRecord) ([]models.RawRecord, error) {
	rows, present, err := storage.ReadParquet[T](path)
	if err != nil {
		return nil, err
	}
	records := make([]models.RawRecord, len(rows))
	for i, row := range rows {
		records[i] = convert(row, present)
	}
	return records, nil
}
