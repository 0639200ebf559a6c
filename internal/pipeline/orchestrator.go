// Package pipeline orchestrates one extraction run end to end: plan the
// dates, harvest and filter each one, persist the partition, advance the
// checkpoint.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pncp-data/harvester/internal/config"
	"github.com/pncp-data/harvester/internal/dataset"
	"github.com/pncp-data/harvester/internal/domain"
	"github.com/pncp-data/harvester/internal/filter"
	"github.com/pncp-data/harvester/internal/harvest"
	"github.com/pncp-data/harvester/internal/schema"
	"github.com/pncp-data/harvester/internal/state"
)

// Fetcher pulls all pages of one date and modality. Satisfied by
// harvest.Harvester; tests substitute fakes.
type Fetcher interface {
	FetchPartition(ctx context.Context, date string, modalidade int, process harvest.PageProcessor) ([]schema.Record, error)
}

// Summarizer emits an end-of-run statistics line.
type Summarizer interface {
	LogSummary()
}

// Orchestrator drives a full extraction run.
type Orchestrator struct {
	cfg         config.Config
	fetcher     Fetcher
	filter      *filter.Pipeline
	writer      *dataset.Writer
	state       *state.Manager
	meta        *MetadataLog
	summarizers []Summarizer
	logger      *slog.Logger

	// raw records seen across the in-flight date's pages; dates run
	// sequentially, pages within a date concurrently.
	rawSeen atomic.Int64

	sleep func(context.Context, time.Duration)
	today func() time.Time
}

// New assembles an orchestrator. Extra summarizers (the oracle, usually)
// are reported alongside the filter at the end of the run.
func New(cfg config.Config, fetcher Fetcher, fp *filter.Pipeline, writer *dataset.Writer,
	st *state.Manager, meta *MetadataLog, logger *slog.Logger, extra ...Summarizer) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		fetcher:     fetcher,
		filter:      fp,
		writer:      writer,
		state:       st,
		meta:        meta,
		summarizers: append([]Summarizer{fp}, extra...),
		logger:      logger.With("component", "pipeline"),
		sleep:       sleepCtx,
		today:       time.Now,
	}
}

// Run executes the plan. A failed date aborts the run without being marked
// processed, so the next run picks it up again; already-processed dates in
// the plan are skipped.
func (o *Orchestrator) Run(ctx context.Context, plan state.Plan) error {
	if err := o.state.Load(ctx); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	dates, err := state.PlanDates(plan, o.state.Snapshot(), o.today())
	if err != nil {
		return fmt.Errorf("planning run: %w", err)
	}
	if len(dates) == 0 {
		o.logger.Info("nothing to extract, already up to date")
		return nil
	}
	o.logger.Info("run planned", "run_id", o.meta.RunID(), "dates", len(dates),
		"from", dates[0], "to", dates[len(dates)-1])

	totalKept := 0
	for _, date := range dates {
		if o.state.Snapshot().Processed(date) {
			o.logger.Info("date already processed, skipping", "date", date)
			continue
		}
		kept, err := o.processDate(ctx, date)
		if err != nil {
			return fmt.Errorf("date %s: %w", date, err)
		}
		totalKept += kept
	}

	for _, s := range o.summarizers {
		s.LogSummary()
	}
	o.logger.Info("run finished", "run_id", o.meta.RunID(), "dates", len(dates), "records_kept", totalKept)
	return nil
}

// processDate harvests every active modality for one date. Any modality
// failing means the date is incomplete: nothing is marked, the partial
// partition is not written.
func (o *Orchestrator) processDate(ctx context.Context, date string) (int, error) {
	o.logger.Info("processing date", "date", date)

	o.rawSeen.Store(0)

	var records []schema.Record
	modalidades := domain.ModalidadesAtivas()
	for i, m := range modalidades {
		kept, err := o.fetcher.FetchPartition(ctx, date, m, o.processPage)
		if err != nil {
			return 0, fmt.Errorf("modalidade %d: %w", m, err)
		}
		records = append(records, kept...)
		if i < len(modalidades)-1 && o.cfg.CategoryPause > 0 {
			o.sleep(ctx, o.cfg.CategoryPause)
		}
	}
	extracted := int(o.rawSeen.Load())

	partition := ""
	if len(records) > 0 {
		key, err := o.writer.WritePartition(ctx, date, records)
		if err != nil {
			return 0, err
		}
		partition = key
	} else {
		o.logger.Info("no records kept, skipping partition", "date", date)
	}

	if err := o.meta.Record(ctx, ExtractionEntry{
		Date:             date,
		RecordsExtracted: extracted,
		RecordsKept:      len(records),
		Partition:        partition,
		FilterStats:      o.filter.Stats(),
	}); err != nil {
		o.logger.Warn("extraction log update failed", "date", date, "error", err)
	}

	// The date is marked even when empty: an empty day is a completed day.
	o.state.MarkProcessed(date, len(records))
	if err := o.state.Save(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

// processPage decodes, filters, and enriches one page of raw records.
// Undecodable records are logged and dropped, never fail the page.
func (o *Orchestrator) processPage(ctx context.Context, raw []json.RawMessage) ([]schema.Record, error) {
	o.rawSeen.Add(int64(len(raw)))

	var kept []schema.Record
	for _, item := range raw {
		var rec schema.Record
		if err := json.Unmarshal(item, &rec); err != nil {
			o.logger.Warn("skipping undecodable record", "error", err)
			continue
		}

		d := o.filter.ShouldInclude(ctx, rec.ObjetoCompra)
		if !d.Include {
			continue
		}

		rec.FiltroAplicado = o.cfg.FilterEnabled
		rec.FiltroMotivo = d.Reason
		rec.FiltroGrupoMatched = d.Group
		rec.FiltroTermoMatched = d.Term
		rec.FiltroCriterio = d.Criterion

		o.enrich(&rec)
		schema.Normalize(&rec)
		kept = append(kept, rec)
	}
	return kept, nil
}

// enrich attaches the human-readable domain labels for the coded fields.
func (o *Orchestrator) enrich(rec *schema.Record) {
	if rec.ModalidadeID != nil {
		rec.ModalidadeNome = domain.ModalidadeNome(int(*rec.ModalidadeID))
	}
	if rec.SituacaoCompraID != nil {
		rec.SituacaoCompraNome = domain.SituacaoCompraNome(int(*rec.SituacaoCompraID))
	}
	if rec.ModoDisputaID != nil {
		rec.ModoDisputaNome = domain.ModoDisputaNome(int(*rec.ModoDisputaID))
	}
	if rec.CriterioJulgamentoID != nil {
		rec.CriterioJulgamentoNome = domain.CriterioJulgamentoNome(int(*rec.CriterioJulgamentoID))
	}
	if rec.OrgaoEntidade != nil {
		if rec.OrgaoEntidade.EsferaID != nil {
			rec.EsferaNome = domain.EsferaNome(*rec.OrgaoEntidade.EsferaID)
		}
		if rec.OrgaoEntidade.PoderID != nil {
			rec.PoderNome = domain.PoderNome(*rec.OrgaoEntidade.PoderID)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
