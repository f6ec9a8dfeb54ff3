package encoder

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/chunkbuffer/pkg/record"
)

// AvroFormatter implements record.Formatter using goavro, producing an
// Object Container File in memory for each Format call.
type AvroFormatter struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroFormatter creates an Avro formatter using the given
// compression ("gzip" or "" for none).
func NewAvroFormatter(compression string) (*AvroFormatter, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("create avro codec: %w", err)
	}
	return &AvroFormatter{codec: codec, compression: compression}, nil
}

// avroSchema returns the Avro schema for a buffered record.Entry.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "BufferedEntry",
		"namespace": "chunkbuffer",
		"fields": [
			{"name": "time", "type": "string"},
			{"name": "tag", "type": "string"},
			{"name": "fields", "type": "string"}
		]
	}`
}

// Format serializes batch to an in-memory Avro OCF file.
func (f *AvroFormatter) Format(batch record.Batch) ([]byte, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	var w io.Writer = &buf

	var gzipWriter *gzip.Writer
	if f.compression == "gzip" || f.compression == "GZIP" {
		gzipWriter = gzip.NewWriter(&buf)
		w = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{W: w, Codec: f.codec})
	if err != nil {
		return nil, fmt.Errorf("create OCF writer: %w", err)
	}

	for i, entry := range batch {
		avroMap, err := toAvroMap(entry)
		if err != nil {
			return nil, fmt.Errorf("convert record %d: %w", i, err)
		}
		if err := ocfWriter.Append([]interface{}{avroMap}); err != nil {
			return nil, fmt.Errorf("write record %d: %w", i, err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("close gzip writer: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Count reports how many records a batch represents, unchanged by
// encoding.
func (f *AvroFormatter) Count(batch record.Batch) int {
	return len(batch)
}

func toAvroMap(entry record.Entry) (map[string]interface{}, error) {
	fieldsJSON, err := json.Marshal(entry.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return map[string]interface{}{
		"time":   entry.Time.Format(time.RFC3339Nano),
		"tag":    entry.Tag,
		"fields": string(fieldsJSON),
	}, nil
}
