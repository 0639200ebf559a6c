// Package dataset writes and consolidates parquet partitions.
package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/pncp-data/harvester/internal/schema"
	"github.com/pncp-data/harvester/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// PartitionKey builds the hive-partitioned key for one extraction day.
// date is YYYY-MM-DD.
func PartitionKey(dataset, date string) string {
	year := date[:4]
	month := date[5:7]
	compact := strings.ReplaceAll(date, "-", "")
	return fmt.Sprintf("raw-data/year=%s/month=%s/%s_%s.parquet", year, month, dataset, compact)
}

// ConsolidatedKey is the key of a monthly consolidated file. month is YYYYMM.
func ConsolidatedKey(dataset, month string) string {
	return fmt.Sprintf("consolidated/%s_%s_consolidated.parquet", dataset, month)
}

// Writer persists daily partitions.
type Writer struct {
	store   storage.Store
	dataset string
	logger  *slog.Logger
}

func NewWriter(store storage.Store, dataset string, logger *slog.Logger) *Writer {
	return &Writer{
		store:   store,
		dataset: dataset,
		logger:  logger.With("component", "dataset"),
	}
}

// WritePartition stamps the control columns and overwrites the day's
// partition. Re-running a day replaces its file wholesale.
func (w *Writer) WritePartition(ctx context.Context, date string, records []schema.Record) (string, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	for i := range records {
		records[i].ExtractionDate = now
		records[i].DataPublicacao = date
	}

	data, err := Encode(records)
	if err != nil {
		return "", fmt.Errorf("encoding partition for %s: %w", date, err)
	}

	key := PartitionKey(w.dataset, date)
	if err := w.store.Put(ctx, key, data, parquetContentType); err != nil {
		return "", fmt.Errorf("writing partition %s: %w", key, err)
	}
	w.logger.Info("partition written", "key", key, "records", len(records), "bytes", len(data))
	return key, nil
}

// Encode serializes records to a parquet file in memory.
func Encode(records []schema.Record) ([]byte, error) {
	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[schema.Record](&buf)
	if _, err := pw.Write(records); err != nil {
		return nil, fmt.Errorf("writing rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads every record from an in-memory parquet file.
func Decode(data []byte) ([]schema.Record, error) {
	records, err := parquet.Read[schema.Record](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return records, nil
}
