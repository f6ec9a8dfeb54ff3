// Package encoder provides record.Formatter implementations for
// serializing a batch of buffered record.Entry values.
//
// Use Factory to pick a formatter by configured format and compression:
//
//	factory := encoder.NewFactory(encoder.FormatParquet, "snappy")
//	formatter, err := factory.CreateFormatter()
//
// Both ParquetFormatter and AvroFormatter hold every record of a batch
// in memory and return a single serialized blob; they do not write to
// disk themselves.
package encoder
