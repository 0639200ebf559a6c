// Package state tracks extraction progress across runs.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/pncp-data/harvester/internal/storage"
)

// State is the persisted checkpoint. Field names match the historical
// state.json layout so existing checkpoints keep working.
type State struct {
	LastExtractionDate      string   `json:"last_extraction_date"`
	TotalRecordsExtracted   int      `json:"total_records_extracted"`
	LastExtractionTimestamp string   `json:"last_extraction_timestamp"`
	ProcessedDates          []string `json:"processed_dates"`
}

// Processed reports whether a date was already fully extracted.
func (s State) Processed(date string) bool {
	return slices.Contains(s.ProcessedDates, date)
}

// Manager loads and saves the checkpoint, mirroring it to a local file
// so a run can recover when the remote store is unreachable.
type Manager struct {
	mu        sync.Mutex
	store     storage.Store
	key       string
	localPath string
	logger    *slog.Logger
	state     State
}

// NewManager does not touch storage; call Load before reading state.
func NewManager(store storage.Store, key, localPath string, logger *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		key:       key,
		localPath: localPath,
		logger:    logger.With("component", "state"),
	}
}

// Load reads the checkpoint from the store, falling back to the local
// mirror, then to a fresh state.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.store.Get(ctx, m.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("state unreadable from store, trying local mirror", "error", err)
		}
		data, err = os.ReadFile(m.localPath)
		if err != nil {
			m.logger.Info("no previous state, starting fresh")
			m.state = State{}
			return nil
		}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parsing state: %w", err)
	}
	m.state = st
	m.logger.Info("state loaded",
		"last_extraction_date", st.LastExtractionDate,
		"processed_dates", len(st.ProcessedDates))
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	st.ProcessedDates = slices.Clone(st.ProcessedDates)
	return st
}

// MarkProcessed records a finished date and advances the watermark.
func (m *Manager) MarkProcessed(date string, records int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.state.ProcessedDates, date) {
		m.state.ProcessedDates = append(m.state.ProcessedDates, date)
		slices.Sort(m.state.ProcessedDates)
	}
	if date > m.state.LastExtractionDate {
		m.state.LastExtractionDate = date
	}
	m.state.TotalRecordsExtracted += records
	m.state.LastExtractionTimestamp = time.Now().UTC().Format(time.RFC3339)
}

// Save writes the checkpoint to the store and the local mirror. A store
// failure is returned; the local mirror is best effort.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.WriteFile(m.localPath, data, 0o644); err != nil {
		m.logger.Warn("writing local state mirror failed", "error", err)
	}
	if err := m.store.Put(ctx, m.key, data, "application/json"); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}
