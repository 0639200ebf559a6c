// Package oracle implements the Stage 2 semantic filter: cached, rate-limited
// calls to an LLM that confirms or overrules the Stage 1 keyword match.
package oracle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pncp-data/harvester/internal/config"
	"github.com/pncp-data/harvester/internal/filter"
	"github.com/pncp-data/harvester/internal/textnorm"
)

// Decision values returned by the oracle.
const (
	DecisionApprove = "APROVAR"
	DecisionReject  = "REJEITAR"
)

const systemPrompt = "Você é um especialista em análise de licitações públicas."

// Response is one oracle answer.
type Response struct {
	Decision      string
	Category      string
	Confidence    int // 0..100
	Justification string
	TokensUsed    int
	Latency       time.Duration
	Cached        bool
}

// cost per 1K tokens in USD, input/output.
type tokenCost struct {
	input  float64
	output float64
}

var tokenCosts = map[string]tokenCost{
	"gpt-3.5-turbo":      {0.0015, 0.002},
	"gpt-3.5-turbo-1106": {0.001, 0.002},
	"gpt-4":              {0.03, 0.06},
	"gpt-4-turbo":        {0.01, 0.03},
	"gpt-4o-mini":        {0.00015, 0.0006},
}

// Client wraps the LLM call with a content-keyed TTL cache and a sliding
// per-minute rate limit. Safe for concurrent use by page-fetch workers.
type Client struct {
	llm       llms.Model
	modelName string
	maxTokens int
	temp      float64
	cache     *gocache.Cache
	limiter   *rateLimiter
	prompts   *PromptBuilder
	logger    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats tracks running oracle counters.
type Stats struct {
	TotalQueries int
	Approved     int
	Rejected     int
	CacheHits    int
	CacheMisses  int
	TotalTokens  int
	TotalCostUSD float64
	TotalLatency time.Duration
	Errors       int
}

// CacheHitRate is the percentage of lookups served from cache.
func (s Stats) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total) * 100
}

// AvgLatency is the mean latency across network queries.
func (s Stats) AvgLatency() time.Duration {
	if s.TotalQueries == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.TotalQueries)
}

// New creates an oracle client for the configured provider.
func New(cfg config.Config, groups map[string][]string, logger *slog.Logger) (*Client, error) {
	var model llms.Model
	var err error

	switch cfg.OracleProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.OracleModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.OracleModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.OracleModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.OracleProvider)
	}

	return NewWithModel(model, cfg, groups, logger), nil
}

// NewWithModel wires a client around an existing model. Test seam.
func NewWithModel(model llms.Model, cfg config.Config, groups map[string][]string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		llm:       model,
		modelName: cfg.OracleModel,
		maxTokens: cfg.OracleMaxTokens,
		temp:      cfg.OracleTemp,
		cache:     gocache.New(cfg.OracleCacheTTL, cfg.OracleCacheTTL),
		limiter:   newRateLimiter(cfg.OracleMaxPerMin, cfg.OracleDelay),
		prompts:   NewPromptBuilder(groups),
		logger:    logger.With("component", "oracle"),
	}
}

// Classify implements filter.Stage2. Internal transport and parse failures
// never propagate: they degrade to a conservative REJECT response so a flaky
// oracle cannot abort a date. The returned error is reserved for misuse
// (nil model), which the pipeline treats as "oracle unavailable".
func (c *Client) Classify(ctx context.Context, objective string, stage1 filter.Decision) (filter.Verdict, error) {
	if c.llm == nil {
		return filter.Verdict{}, fmt.Errorf("oracle model not configured")
	}
	resp := c.query(ctx, objective, stage1)
	return filter.Verdict{
		Approve:       resp.Decision == DecisionApprove,
		Category:      resp.Category,
		Confidence:    resp.Confidence,
		Justification: resp.Justification,
		Cached:        resp.Cached,
	}, nil
}

func (c *Client) query(ctx context.Context, objective string, stage1 filter.Decision) Response {
	key := cacheKey(objective)
	if entry, ok := c.cache.Get(key); ok {
		cached := entry.(Response)
		cached.Cached = true
		c.mu.Lock()
		c.stats.CacheHits++
		c.mu.Unlock()
		return cached
	}
	c.mu.Lock()
	c.stats.CacheMisses++
	c.stats.TotalQueries++
	c.mu.Unlock()

	prompt := c.prompts.Contextual(objective, stage1.Group, stage1.Term)

	c.limiter.wait(ctx)

	start := time.Now()
	content, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithMaxTokens(c.maxTokens),
		llms.WithTemperature(c.temp),
	)
	latency := time.Since(start)

	if err != nil || len(content.Choices) == 0 {
		if err == nil {
			err = fmt.Errorf("no response choices")
		}
		c.mu.Lock()
		c.stats.Errors++
		c.stats.Rejected++
		c.mu.Unlock()
		c.logger.Error("oracle query failed", "error", err, "objective", truncate(objective, 60))
		return Response{
			Decision:      DecisionReject,
			Justification: fmt.Sprintf("Erro na análise LLM: %v", err),
			Latency:       latency,
		}
	}

	choice := content.Choices[0]
	parsed := parseResponse(choice.Content)
	tokens := totalTokens(choice.GenerationInfo)
	cost := c.estimateCost(choice.GenerationInfo)

	resp := Response{
		Decision:      parsed.decision,
		Category:      parsed.category,
		Confidence:    parsed.confidence,
		Justification: parsed.justification,
		TokensUsed:    tokens,
		Latency:       latency,
	}

	c.mu.Lock()
	if resp.Decision == DecisionApprove {
		c.stats.Approved++
	} else {
		c.stats.Rejected++
	}
	c.stats.TotalTokens += tokens
	c.stats.TotalCostUSD += cost
	c.stats.TotalLatency += latency
	c.mu.Unlock()

	c.cache.SetDefault(key, resp)

	c.logger.Info("oracle decision",
		"decision", resp.Decision,
		"confidence", resp.Confidence,
		"tokens", tokens,
		"cost_usd", fmt.Sprintf("%.4f", cost),
		"objective", truncate(objective, 60),
	)
	return resp
}

// Stats returns a copy of the running counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LogSummary emits the end-of-run oracle statistics.
func (c *Client) LogSummary() {
	s := c.Stats()
	c.logger.Info("oracle summary",
		"model", c.modelName,
		"queries", s.TotalQueries,
		"approved", s.Approved,
		"rejected", s.Rejected,
		"errors", s.Errors,
		"cache_hits", s.CacheHits,
		"cache_hit_rate_percent", fmt.Sprintf("%.1f", s.CacheHitRate()),
		"total_tokens", s.TotalTokens,
		"total_cost_usd", fmt.Sprintf("%.4f", s.TotalCostUSD),
		"avg_latency", s.AvgLatency(),
	)
}

// cacheKey hashes the normalized objective so identical objectives across
// different records share one oracle call.
func cacheKey(objective string) string {
	sum := md5.Sum([]byte(textnorm.Normalize(objective)))
	return hex.EncodeToString(sum[:])
}

func (c *Client) estimateCost(info map[string]any) float64 {
	costs, ok := tokenCosts[c.modelName]
	if !ok {
		return 0
	}
	in := float64(infoInt(info, "PromptTokens"))
	out := float64(infoInt(info, "CompletionTokens"))
	return in/1000*costs.input + out/1000*costs.output
}

func totalTokens(info map[string]any) int {
	if t := infoInt(info, "TotalTokens"); t > 0 {
		return t
	}
	return infoInt(info, "PromptTokens") + infoInt(info, "CompletionTokens")
}

// infoInt reads a numeric GenerationInfo entry; providers disagree on the
// concrete type.
func infoInt(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
