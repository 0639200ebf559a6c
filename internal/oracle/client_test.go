package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/pncp-data/harvester/internal/config"
	"github.com/pncp-data/harvester/internal/filter"
)

// fakeModel is an llms.Model returning canned replies.
type fakeModel struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: m.reply,
				GenerationInfo: map[string]any{
					"PromptTokens":     100,
					"CompletionTokens": 20,
					"TotalTokens":      120,
				},
			},
		},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, nil, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testConfig() config.Config {
	return config.Config{
		OracleModel:     "gpt-3.5-turbo",
		OracleMaxTokens: 500,
		OracleTemp:      0.1,
		OracleMaxPerMin: 0, // no window limit in tests
		OracleDelay:     0,
		OracleCacheTTL:  time.Hour,
	}
}

func stage1Match() filter.Decision {
	return filter.Decision{Include: true, Stage: 1, Group: "CANETAS", Term: "caneta"}
}

func TestClassifyApproval(t *testing.T) {
	model := &fakeModel{reply: "DECISAO: APROVAR\nCATEGORIA: CANETAS\nCONFIANCA: 90%\nJUSTIFICATIVA: ok"}
	c := NewWithModel(model, testConfig(), map[string][]string{"CANETAS": {"caneta"}}, nil)

	v, err := c.Classify(context.Background(), "Aquisição de canetas azuis", stage1Match())

	require.NoError(t, err)
	assert.True(t, v.Approve)
	assert.Equal(t, "CANETAS", v.Category)
	assert.Equal(t, 90, v.Confidence)
	assert.False(t, v.Cached)

	s := c.Stats()
	assert.Equal(t, 1, s.TotalQueries)
	assert.Equal(t, 1, s.Approved)
	assert.Equal(t, 120, s.TotalTokens)
	assert.Greater(t, s.TotalCostUSD, 0.0)
}

func TestClassifyCacheSharesIdenticalObjectives(t *testing.T) {
	model := &fakeModel{reply: "DECISAO: APROVAR\nCONFIANCA: 80%"}
	c := NewWithModel(model, testConfig(), nil, nil)

	first, err := c.Classify(context.Background(), "Aquisição de CANETAS azuis", stage1Match())
	require.NoError(t, err)
	// Same text after normalization, different casing/accents on the wire.
	second, err := c.Classify(context.Background(), "aquisição de canetas AZUIS", stage1Match())
	require.NoError(t, err)

	assert.Equal(t, 1, model.callCount(), "second lookup must be served from cache")
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)

	s := c.Stats()
	assert.Equal(t, 1, s.CacheHits)
	assert.Equal(t, 1, s.CacheMisses)
}

func TestClassifyTransportErrorDegradesToReject(t *testing.T) {
	model := &fakeModel{err: errors.New("dial tcp: connection refused")}
	c := NewWithModel(model, testConfig(), nil, nil)

	v, err := c.Classify(context.Background(), "Aquisição de canetas", stage1Match())

	require.NoError(t, err, "transport failures must not propagate")
	assert.False(t, v.Approve)
	assert.Contains(t, v.Justification, "connection refused")
	assert.Equal(t, 1, c.Stats().Errors)
}

func TestClassifyErrorResponsesAreNotCached(t *testing.T) {
	model := &fakeModel{err: errors.New("timeout")}
	c := NewWithModel(model, testConfig(), nil, nil)

	_, err := c.Classify(context.Background(), "Aquisição de canetas", stage1Match())
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), "Aquisição de canetas", stage1Match())
	require.NoError(t, err)

	assert.Equal(t, 2, model.callCount(), "failures must be retried, not replayed from cache")
}

func TestContextualPromptUsesStage1Group(t *testing.T) {
	b := NewPromptBuilder(map[string][]string{"CANETAS": {"caneta", "marcador"}})

	prompt := b.Contextual("Aquisição de canetas", "CANETAS", "caneta")

	assert.Contains(t, prompt, `categoria "CANETAS"`)
	assert.Contains(t, prompt, "caneta, marcador")
	assert.Contains(t, prompt, "DECISAO:")
}

func TestContextualPromptFallsBackToGeneric(t *testing.T) {
	b := NewPromptBuilder(map[string][]string{"CANETAS": {"caneta"}})

	prompt := b.Contextual("Aquisição de mochilas", "", "")

	assert.Contains(t, prompt, "CATEGORIAS ALVO")
	assert.NotContains(t, prompt, "ANÁLISE PRÉVIA")
}
