package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pncp-data/harvester/internal/schema"
	"github.com/pncp-data/harvester/internal/storage"
)

// Consolidator merges aged daily partitions into monthly files.
type Consolidator struct {
	store   storage.Store
	dataset string
	logger  *slog.Logger

	now func() time.Time
}

func NewConsolidator(store storage.Store, dataset string, logger *slog.Logger) *Consolidator {
	return &Consolidator{
		store:   store,
		dataset: dataset,
		logger:  logger.With("component", "consolidator"),
		now:     time.Now,
	}
}

// Consolidate merges every daily partition older than thresholdDays into
// its month's consolidated file, deduplicates, and deletes the consumed
// dailies. Months are processed independently; one month failing does not
// abort the others.
func (c *Consolidator) Consolidate(ctx context.Context, thresholdDays int) error {
	keys, err := c.store.List(ctx, "raw-data/")
	if err != nil {
		return fmt.Errorf("listing daily partitions: %w", err)
	}

	cutoff := c.now().UTC().AddDate(0, 0, -thresholdDays)
	byMonth := make(map[string][]string)
	for _, key := range keys {
		date, ok := partitionDate(key)
		if !ok {
			continue
		}
		d, err := time.Parse("20060102", date)
		if err != nil || !d.Before(cutoff) {
			continue
		}
		month := date[:6]
		byMonth[month] = append(byMonth[month], key)
	}
	if len(byMonth) == 0 {
		c.logger.Info("no partitions eligible for consolidation")
		return nil
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	var errs []error
	for _, month := range months {
		if err := c.consolidateMonth(ctx, month, byMonth[month]); err != nil {
			c.logger.Error("month consolidation failed", "month", month, "error", err)
			errs = append(errs, fmt.Errorf("month %s: %w", month, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Consolidator) consolidateMonth(ctx context.Context, month string, dailies []string) error {
	sort.Strings(dailies)

	var records []schema.Record

	// Existing consolidated rows go first so keep-last dedup prefers the
	// fresher daily rows.
	target := ConsolidatedKey(c.dataset, month)
	existing, err := c.store.Get(ctx, target)
	switch {
	case err == nil:
		prev, err := Decode(existing)
		if err != nil {
			return fmt.Errorf("reading %s: %w", target, err)
		}
		records = append(records, prev...)
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("fetching %s: %w", target, err)
	}

	for _, key := range dailies {
		data, err := c.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", key, err)
		}
		rows, err := Decode(data)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		records = append(records, rows...)
	}

	before := len(records)
	records = dedupKeepLast(records, true)

	data, err := Encode(records)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", target, err)
	}
	if err := c.store.Put(ctx, target, data, parquetContentType); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}

	// Dailies are removed only after the consolidated file landed.
	for _, key := range dailies {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	}

	c.logger.Info("month consolidated",
		"month", month,
		"dailies", len(dailies),
		"rows_in", before,
		"rows_out", len(records),
		"duplicates_removed", before-len(records))
	return nil
}

// GenerateHistorical concatenates every raw and consolidated partition
// into a single export file. Source files are left in place.
func (c *Consolidator) GenerateHistorical(ctx context.Context) (string, int, error) {
	var records []schema.Record
	for _, prefix := range []string{"consolidated/" + c.dataset, "raw-data/"} {
		keys, err := c.store.List(ctx, prefix)
		if err != nil {
			return "", 0, fmt.Errorf("listing %s: %w", prefix, err)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !strings.HasSuffix(key, ".parquet") {
				continue
			}
			data, err := c.store.Get(ctx, key)
			if err != nil {
				return "", 0, fmt.Errorf("fetching %s: %w", key, err)
			}
			rows, err := Decode(data)
			if err != nil {
				return "", 0, fmt.Errorf("reading %s: %w", key, err)
			}
			records = append(records, rows...)
		}
	}

	records = dedupKeepLast(records, false)

	key := fmt.Sprintf("consolidated/historico/%s_historico_consolidado.parquet", c.dataset)
	data, err := Encode(records)
	if err != nil {
		return "", 0, fmt.Errorf("encoding historical export: %w", err)
	}
	if err := c.store.Put(ctx, key, data, parquetContentType); err != nil {
		return "", 0, fmt.Errorf("writing %s: %w", key, err)
	}
	c.logger.Info("historical export written", "key", key, "records", len(records))
	return key, len(records), nil
}

// dedupKeepLast removes duplicate rows on the business key, keeping the
// last occurrence while preserving first-seen order. Rows with no usable
// key components are always kept. Monthly consolidation keys on the
// objective text as well; the historical export does not.
func dedupKeepLast(records []schema.Record, withObjective bool) []schema.Record {
	out := make([]schema.Record, 0, len(records))
	index := make(map[string]int, len(records))
	for i, r := range records {
		key, ok := businessKey(r, withObjective)
		if !ok {
			key = fmt.Sprintf("row-%d", i)
		}
		if j, seen := index[key]; seen {
			out[j] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

func businessKey(r schema.Record, withObjective bool) (string, bool) {
	var parts []string
	usable := false

	add := func(s *string) {
		if s != nil && *s != "" {
			parts = append(parts, *s)
			usable = true
		} else {
			parts = append(parts, "")
		}
	}

	if r.SequencialCompra != nil {
		parts = append(parts, fmt.Sprintf("%d", *r.SequencialCompra))
		usable = true
	} else {
		parts = append(parts, "")
	}
	add(r.NumeroCompra)
	if r.UnidadeOrgao != nil {
		add(r.UnidadeOrgao.CodigoUnidade)
	} else {
		parts = append(parts, "")
	}
	add(r.DataPublicacaoPNCP)
	if withObjective {
		if r.ObjetoCompra != "" {
			parts = append(parts, r.ObjetoCompra)
			usable = true
		} else {
			parts = append(parts, "")
		}
	}

	return strings.Join(parts, "\x1f"), usable
}

// partitionDate extracts the compact YYYYMMDD date from a daily partition
// key like raw-data/year=2025/month=08/pncp_contratos_20250815.parquet.
func partitionDate(key string) (string, bool) {
	base := path.Base(key)
	if !strings.HasSuffix(base, ".parquet") {
		return "", false
	}
	base = strings.TrimSuffix(base, ".parquet")
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return "", false
	}
	date := base[i+1:]
	if len(date) != 8 {
		return "", false
	}
	return date, true
}
