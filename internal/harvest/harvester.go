package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pncp-data/harvester/internal/schema"
)

// PageProcessor turns the raw records of one page into kept records.
// It runs concurrently across pages and must be safe for parallel use.
type PageProcessor func(ctx context.Context, raw []json.RawMessage) ([]schema.Record, error)

// Harvester fans page fetches out over a bounded worker pool.
type Harvester struct {
	client     *Client
	maxWorkers int
	logger     *slog.Logger
}

// NewHarvester wires a harvester over an already-configured client.
func NewHarvester(client *Client, maxWorkers int, logger *slog.Logger) *Harvester {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Harvester{
		client:     client,
		maxWorkers: maxWorkers,
		logger:     logger.With("component", "harvest"),
	}
}

// CountPages asks for the first page only to learn the pagination extent.
func (h *Harvester) CountPages(ctx context.Context, date string, modalidade int) (pages, records int, err error) {
	page, err := h.client.FetchPage(ctx, date, modalidade, 1)
	if err != nil {
		return 0, 0, err
	}
	return page.TotalPaginas, page.TotalRegistros, nil
}

// FetchPartition pulls every page for one date and modality, pushing each
// page through process as it lands. Records come back ordered by page so
// repeated runs over the same day produce the same output.
func (h *Harvester) FetchPartition(ctx context.Context, date string, modalidade int, process PageProcessor) ([]schema.Record, error) {
	totalPages, totalRecords, err := h.CountPages(ctx, date, modalidade)
	if err != nil {
		return nil, err
	}
	if totalRecords == 0 {
		return nil, nil
	}

	h.logger.Info("harvesting partition",
		"date", date,
		"modalidade", modalidade,
		"pages", totalPages,
		"records", totalRecords)

	var mu sync.Mutex
	byPage := make(map[int][]schema.Record, totalPages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.maxWorkers)
	for p := 1; p <= totalPages; p++ {
		g.Go(func() error {
			page, err := h.client.FetchPage(gctx, date, modalidade, p)
			if err != nil {
				return err
			}
			kept, err := process(gctx, page.Data)
			if err != nil {
				return fmt.Errorf("processing page %d: %w", p, err)
			}
			mu.Lock()
			byPage[p] = kept
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var out []schema.Record
	for _, p := range pages {
		out = append(out, byPage[p]...)
	}
	return out, nil
}
