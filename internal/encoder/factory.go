// Package encoder implements record.Formatter implementations producers
// can hand a buffer instead of calling Append record by record.
package encoder

import (
	"fmt"

	"github.com/jittakal/chunkbuffer/pkg/record"
)

// Format names a supported serialization for a batch of record.Entry
// values.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatAvro    Format = "avro"
)

// Factory creates a record.Formatter for a configured format and
// compression.
type Factory struct {
	format      Format
	compression string
}

// NewFactory creates a new formatter factory.
func NewFactory(format Format, compression string) *Factory {
	return &Factory{format: format, compression: compression}
}

// CreateFormatter creates a record.Formatter for the configured format.
func (f *Factory) CreateFormatter() (record.Formatter, error) {
	switch f.format {
	case FormatParquet:
		return NewParquetFormatter(f.compression), nil
	case FormatAvro:
		return NewAvroFormatter(f.compression)
	default:
		return nil, fmt.Errorf("unsupported format: %s", f.format)
	}
}

// SupportedFormats returns every format this package can produce.
func SupportedFormats() []Format {
	return []Format{FormatParquet, FormatAvro}
}

// SupportedCompressions returns the supported compression codecs for a
// given format.
func SupportedCompressions(format Format) []string {
	switch format {
	case FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case FormatAvro:
		return []string{"uncompressed", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format Format) string {
	switch format {
	case FormatParquet:
		return "snappy"
	case FormatAvro:
		return "gzip"
	default:
		return "uncompressed"
	}
}
