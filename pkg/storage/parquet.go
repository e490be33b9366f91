package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const readBatch = 4096

// WriteParquet writes rows to path through a temp file and a rename so a
// reader never sees a partially written artifact.
func WriteParquet[T any](path string, rows []T) error {
	return publish(path, func(w io.Writer) error {
		writer := parquet.NewGenericWriter[T](w, writerOptions()...)
		if len(rows) > 0 {
			if _, err := writer.Write(rows); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return nil
	})
}

// WriteParquetRows writes rows laid out by schema. It serves tables whose
// columns are only known at run time.
func WriteParquetRows(path string, schema *parquet.Schema, rows []parquet.Row) error {
	return publish(path, func(w io.Writer) error {
		writer := parquet.NewWriter(w, append(writerOptions(), schema)...)
		if len(rows) > 0 {
			if _, err := writer.WriteRows(rows); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return nil
	})
}

func writerOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8 * 1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("hospital-insights", "1.0", ""),
	}
}

func publish(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	tmpName := tmp.Name()
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close parquet file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish parquet file: %w", err)
	}
	return nil
}

// FlatRecord is one row of a flat parquet table keyed by column name.
type FlatRecord map[string]parquet.Value

// ReadParquetRecords reads a flat table without a Go type for its rows. The
// returned names list the file's columns in schema order.
func ReadParquetRecords(path string) ([]string, []FlatRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat parquet: %w", err)
	}
	file, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("read parquet footer: %w", err)
	}
	reader := parquet.NewReader(file)
	defer reader.Close()

	fields := reader.Schema().Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return nil, nil, fmt.Errorf("parquet column %q is nested", field.Name())
		}
		names[i] = field.Name()
	}

	records := make([]FlatRecord, 0, reader.NumRows())
	for {
		buf := make([]parquet.Row, readBatch)
		n, readErr := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			rec := make(FlatRecord, len(names))
			row.Range(func(column int, values []parquet.Value) bool {
				if len(values) > 0 {
					rec[names[column]] = values[0].Clone()
				}
				return true
			})
			records = append(records, rec)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read parquet: %w", readErr)
		}
		if n == 0 {
			break
		}
	}
	return names, records, nil
}

// ReadParquet reads every row of path into T. The returned column set lists
// the leaf columns physically present in the file, which lets callers tell a
// missing column apart from a null value.
func ReadParquet[T any](path string) ([]T, map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat parquet: %w", err)
	}
	file, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("read parquet footer: %w", err)
	}
	columns := make(map[string]bool)
	for _, field := range file.Schema().Fields() {
		columns[field.Name()] = true
	}

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	rows := make([]T, 0, reader.NumRows())
	buf := make([]T, readBatch)
	for {
		n, readErr := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read parquet: %w", readErr)
		}
		if n == 0 {
			break
		}
	}
	return rows, columns, nil
}
