package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Verdict is the Stage 2 oracle's answer, expressed in pipeline terms.
type Verdict struct {
	Approve       bool
	Category      string
	Confidence    int
	Justification string
	Cached        bool
}

// Stage2 is the semantic oracle seam. Implementations must be safe for
// concurrent use; page-fetch workers call the pipeline in parallel.
type Stage2 interface {
	Classify(ctx context.Context, objective string, stage1 Decision) (Verdict, error)
}

// Pipeline composes the keyword filter with the semantic oracle into one
// admission decision per record.
type Pipeline struct {
	enabled bool
	keyword *KeywordFilter
	oracle  Stage2 // nil when Stage 2 is disabled
	logger  *slog.Logger

	mu              sync.Mutex
	stage2Approved  int
	stage2Rejected  int
	oracleAvoided   int
	oracleFallbacks int
}

// NewPipeline wires the two stages. A nil oracle disables Stage 2; enabled
// false disables filtering entirely (every record is admitted).
func NewPipeline(enabled bool, keyword *KeywordFilter, oracle Stage2, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		enabled: enabled,
		keyword: keyword,
		oracle:  oracle,
		logger:  logger,
	}
}

// ShouldInclude produces the admission decision for one objective text.
// Stage 1 rejections short-circuit: the oracle is the expensive resource and
// is only consulted for Stage-1-approved records.
func (p *Pipeline) ShouldInclude(ctx context.Context, objective string) Decision {
	if !p.enabled {
		return Decision{Include: true, Stage: 1, Reason: "Filtro desativado"}
	}

	decision := p.keyword.Classify(objective)
	if !decision.Include {
		if p.oracle != nil {
			p.mu.Lock()
			p.oracleAvoided++
			p.mu.Unlock()
		}
		return decision
	}

	if p.oracle == nil {
		return decision
	}

	verdict, err := p.oracle.Classify(ctx, objective, decision)
	if err != nil {
		// Oracle unavailable: fall back to the Stage 1 approval so a broken
		// oracle never blocks extraction. Flagged for observability.
		p.mu.Lock()
		p.oracleFallbacks++
		p.mu.Unlock()
		p.logger.Warn("stage 2 unavailable, keeping stage 1 decision",
			"error", err, "group", decision.Group)
		decision.Hybrid = false
		decision.OracleAvailable = true
		return decision
	}

	p.mu.Lock()
	if verdict.Approve {
		p.stage2Approved++
	} else {
		p.stage2Rejected++
	}
	p.mu.Unlock()

	final := Decision{
		Include:         verdict.Approve,
		Stage:           2,
		Group:           decision.Group,
		Term:            decision.Term,
		Category:        verdict.Category,
		Confidence:      verdict.Confidence,
		Criterion:       decision.Criterion,
		Hybrid:          true,
		OracleAvailable: true,
	}
	if verdict.Approve {
		final.Reason = fmt.Sprintf("LLM APROVAR (confiança: %d%%)", verdict.Confidence)
	} else {
		final.Reason = fmt.Sprintf("LLM REJEITAR (confiança: %d%%)", verdict.Confidence)
	}
	return final
}

// PipelineStats aggregates per-stage counters for the end-of-run summary
// and the extraction log.
type PipelineStats struct {
	Keyword         KeywordStats `json:"stage1"`
	Stage2Approved  int          `json:"stage2_aprovados"`
	Stage2Rejected  int          `json:"stage2_rejeitados"`
	OracleAvoided   int          `json:"chamadas_llm_evitadas"`
	OracleFallbacks int          `json:"fallbacks_stage1"`
}

// Stats snapshots the pipeline counters.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PipelineStats{
		Stage2Approved:  p.stage2Approved,
		Stage2Rejected:  p.stage2Rejected,
		OracleAvoided:   p.oracleAvoided,
		OracleFallbacks: p.oracleFallbacks,
	}
	if p.keyword != nil {
		s.Keyword = p.keyword.Stats()
	}
	return s
}

// LogSummary emits the end-of-run filtering statistics.
func (p *Pipeline) LogSummary() {
	s := p.Stats()
	p.logger.Info("filter summary",
		"analyzed", s.Keyword.Analyzed,
		"stage1_approved", s.Keyword.Approved,
		"stage1_rejected", s.Keyword.Rejected,
		"stage2_approved", s.Stage2Approved,
		"stage2_rejected", s.Stage2Rejected,
		"oracle_calls_avoided", s.OracleAvoided,
		"oracle_fallbacks", s.OracleFallbacks,
	)
}
