package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pncp-data/harvester/internal/filter"
	"github.com/pncp-data/harvester/internal/storage"
)

const metadataKey = "metadata/extraction_log.json"

// ExtractionEntry is one line of the extraction log: what a run produced
// for one date.
type ExtractionEntry struct {
	RunID            string               `json:"run_id"`
	Date             string               `json:"date"`
	RecordsExtracted int                  `json:"records_extracted"`
	RecordsKept      int                  `json:"records_kept"`
	Partition        string               `json:"partition"`
	Timestamp        string               `json:"timestamp"`
	FilterStats      filter.PipelineStats `json:"filter_stats"`
}

// extractionLog is the persisted layout. The wrapper object matches the
// historical extraction_log.json files so existing logs keep working.
type extractionLog struct {
	Extractions []ExtractionEntry `json:"extractions"`
}

// MetadataLog appends per-date entries to metadata/extraction_log.json.
// Re-running a date replaces its entry instead of duplicating it.
type MetadataLog struct {
	store storage.Store
	runID string
}

func NewMetadataLog(store storage.Store) *MetadataLog {
	return &MetadataLog{store: store, runID: uuid.NewString()}
}

// RunID identifies all entries written by this process.
func (m *MetadataLog) RunID() string { return m.runID }

// Record writes one entry, replacing any previous entry for the same date.
func (m *MetadataLog) Record(ctx context.Context, entry ExtractionEntry) error {
	entry.RunID = m.runID
	entry.Timestamp = time.Now().UTC().Format(time.RFC3339)

	entries, err := m.load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].Date == entry.Date {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(extractionLog{Extractions: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding extraction log: %w", err)
	}
	if err := m.store.Put(ctx, metadataKey, data, "application/json"); err != nil {
		return fmt.Errorf("writing extraction log: %w", err)
	}
	return nil
}

func (m *MetadataLog) load(ctx context.Context) ([]ExtractionEntry, error) {
	data, err := m.store.Get(ctx, metadataKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading extraction log: %w", err)
	}
	var log extractionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parsing extraction log: %w", err)
	}
	return log.Extractions, nil
}
