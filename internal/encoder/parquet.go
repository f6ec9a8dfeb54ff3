package encoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/chunkbuffer/pkg/record"
)

// parquetRow is the Parquet schema for a buffered record.Entry. Fields
// is stored as a JSON string rather than a nested group, since the
// entry's field set is caller-defined and schemaless.
type parquetRow struct {
	Time   time.Time `parquet:"time,timestamp(microsecond)"`
	Tag    string    `parquet:"tag,dict"`
	Fields string    `parquet:"fields"`
}

// ParquetFormatter implements record.Formatter using Apache parquet-go,
// producing one row group per Format call.
type ParquetFormatter struct {
	compressionName string
}

// NewParquetFormatter creates a Parquet formatter using the given
// compression codec name.
func NewParquetFormatter(compression string) *ParquetFormatter {
	return &ParquetFormatter{compressionName: compression}
}

// compressionCodec converts a compression name to a parquet.WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Format serializes batch to an in-memory Parquet file.
func (f *ParquetFormatter) Format(batch record.Batch) ([]byte, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	rows := make([]parquetRow, len(batch))
	for i, entry := range batch {
		row, err := toParquetRow(entry)
		if err != nil {
			return nil, fmt.Errorf("convert record %d: %w", i, err)
		}
		rows[i] = row
	}

	var buf bytes.Buffer
	schema := parquet.SchemaOf(new(parquetRow))
	writer := parquet.NewGenericWriter[parquetRow](
		&buf,
		schema,
		compressionCodec(f.compressionName),
		parquet.CreatedBy("chunkbuffer", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return nil, fmt.Errorf("write records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Count reports how many records a batch represents, unchanged by
// encoding.
func (f *ParquetFormatter) Count(batch record.Batch) int {
	return len(batch)
}

func toParquetRow(entry record.Entry) (parquetRow, error) {
	fieldsJSON, err := json.Marshal(entry.Fields)
	if err != nil {
		return parquetRow{}, fmt.Errorf("marshal fields: %w", err)
	}
	return parquetRow{
		Time:   entry.Time,
		Tag:    entry.Tag,
		Fields: string(fieldsJSON),
	}, nil
}
