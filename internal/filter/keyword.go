// Package filter implements the two-stage admission filter: a deterministic
// keyword matcher over normalized text, composed with the semantic oracle.
package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pncp-data/harvester/internal/textnorm"
)

// Decision is the outcome of filtering one record. Produced once, attached to
// the record, never mutated afterward.
type Decision struct {
	Include    bool
	Stage      int // 1 or 2, whichever produced the final verdict
	Group      string
	Term       string
	Criterion  string
	Category   string
	Confidence int // 0..100
	Reason     string

	// Hybrid is true when Stage 2 confirmed the decision; false when the
	// pipeline fell back to Stage 1 although the oracle was configured.
	Hybrid          bool
	OracleAvailable bool
}

type group struct {
	name           string
	normalizedName string
	terms          []string
	normalized     []string
}

// KeywordFilter is the deterministic Stage 1 matcher. Safe for concurrent use
// by page-fetch workers.
type KeywordFilter struct {
	groups []group

	mu       sync.Mutex
	analyzed int
	approved int
	rejected int
	byGroup  map[string]int
	byTerm   map[string]int
}

// NewKeywordFilter builds a matcher from the group dictionary. Groups are
// ordered by descending name length so a longer, more specific group name is
// tested before shorter names that might be substrings of it; equal lengths
// fall back to lexicographic order to keep the scan deterministic.
func NewKeywordFilter(groups map[string][]string) *KeywordFilter {
	ordered := make([]group, 0, len(groups))
	for name, terms := range groups {
		g := group{
			name:           name,
			normalizedName: textnorm.Normalize(name),
			terms:          terms,
			normalized:     make([]string, len(terms)),
		}
		for i, term := range terms {
			g.normalized[i] = textnorm.Normalize(term)
		}
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i].name) != len(ordered[j].name) {
			return len(ordered[i].name) > len(ordered[j].name)
		}
		return ordered[i].name < ordered[j].name
	})
	return &KeywordFilter{
		groups:  ordered,
		byGroup: make(map[string]int),
		byTerm:  make(map[string]int),
	}
}

// Classify runs the Stage 1 match over the objective text. The group's own
// name is tested before its member terms; the first word-boundary match wins.
func (f *KeywordFilter) Classify(objective string) Decision {
	f.mu.Lock()
	f.analyzed++
	f.mu.Unlock()

	if objective == "" {
		f.countReject()
		return Decision{Stage: 1, Reason: "objetoCompra vazio"}
	}

	normalized := textnorm.Normalize(objective)

	for _, g := range f.groups {
		if g.normalizedName != "" && textnorm.MatchesWord(normalized, g.normalizedName) {
			f.countMatch(g.name, g.name)
			return Decision{
				Include:   true,
				Stage:     1,
				Group:     g.name,
				Term:      g.name,
				Criterion: fmt.Sprintf("Nome do grupo %q (palavra exata)", g.name),
				Reason:    fmt.Sprintf("Match com grupo %q", g.name),
			}
		}
		for i, term := range g.normalized {
			if term != "" && textnorm.MatchesWord(normalized, term) {
				f.countMatch(g.name, g.terms[i])
				return Decision{
					Include:   true,
					Stage:     1,
					Group:     g.name,
					Term:      g.terms[i],
					Criterion: fmt.Sprintf("Termo %q do grupo %q (palavra exata)", g.terms[i], g.name),
					Reason:    fmt.Sprintf("Match com termo %q do grupo %q", g.terms[i], g.name),
				}
			}
		}
	}

	f.countReject()
	return Decision{Stage: 1, Reason: "Nenhum termo correspondente encontrado"}
}

func (f *KeywordFilter) countMatch(groupName, term string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved++
	f.byGroup[groupName]++
	f.byTerm[term]++
}

func (f *KeywordFilter) countReject() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected++
}

// KeywordStats is a snapshot of Stage 1 counters. JSON keys follow the
// extraction-log layout.
type KeywordStats struct {
	Analyzed        int            `json:"total_analisados"`
	Approved        int            `json:"filtrados_aprovados"`
	Rejected        int            `json:"filtrados_rejeitados"`
	MatchesPerGroup map[string]int `json:"matches_por_grupo"`
	MatchesPerTerm  map[string]int `json:"matches_por_termo"`
}

// Stats returns a copy of the running Stage 1 counters.
func (f *KeywordFilter) Stats() KeywordStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := KeywordStats{
		Analyzed:        f.analyzed,
		Approved:        f.approved,
		Rejected:        f.rejected,
		MatchesPerGroup: make(map[string]int, len(f.byGroup)),
		MatchesPerTerm:  make(map[string]int, len(f.byTerm)),
	}
	for k, v := range f.byGroup {
		s.MatchesPerGroup[k] = v
	}
	for k, v := range f.byTerm {
		s.MatchesPerTerm[k] = v
	}
	return s
}
