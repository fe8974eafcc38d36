package service

import (
	"sort"

	"faxorder-service/internal/resolve/model"
)

// MatchResult is the ranked outcome for one normalized text.
type MatchResult struct {
	Candidates []model.Candidate
	Status     model.Status
	Ambiguous  bool
}

// Best returns the top candidate, if any.
func (r MatchResult) Best() (model.Candidate, bool) {
	if len(r.Candidates) == 0 {
		return model.Candidate{}, false
	}
	return r.Candidates[0], true
}

// strategy is one step of the ordered match pipeline. A final strategy that
// yields candidates ends the pipeline.
type strategy struct {
	method model.MatchMethod
	final  bool
	run    func(norm string, products []model.Product) []model.Candidate
}

// Matcher ranks catalog products for normalized text: exact alias lookup
// first, then edit-distance similarity against every alias and canonical
// name.
type Matcher struct {
	index      *AliasIndex
	opts       model.Options
	strategies []strategy
}

func NewMatcher(index *AliasIndex, opts model.Options) *Matcher {
	m := &Matcher{index: index, opts: opts}
	m.strategies = []strategy{
		{method: model.MethodExact, final: true, run: m.exact},
		{method: model.MethodFuzzy, run: m.fuzzy},
	}
	return m
}

// Match ranks candidates and applies the status policy.
func (m *Matcher) Match(norm string, products []model.Product) MatchResult {
	cands := m.Rank(norm, products)
	status, ambiguous := m.Classify(cands)
	return MatchResult{Candidates: cands, Status: status, Ambiguous: ambiguous}
}

// Rank returns candidates deduplicated by product, best first.
func (m *Matcher) Rank(norm string, products []model.Product) []model.Candidate {
	if norm == "" {
		return nil
	}
	var out []model.Candidate
	for _, s := range m.strategies {
		found := s.run(norm, products)
		if len(found) == 0 {
			continue
		}
		out = append(out, found...)
		if s.final {
			break
		}
	}
	out = m.rankCandidates(out)
	if m.opts.MaxCandidates > 0 && len(out) > m.opts.MaxCandidates {
		out = out[:m.opts.MaxCandidates]
	}
	return out
}

// Classify derives matched / needs-review from ranked candidates. The top
// candidate is only applied when it clears the threshold and no other
// product scores within the ambiguity delta.
func (m *Matcher) Classify(cands []model.Candidate) (model.Status, bool) {
	if len(cands) == 0 {
		return model.StatusNeedsReview, false
	}
	ambiguous := len(cands) > 1 && cands[0].Score-cands[1].Score <= m.opts.AmbiguityDelta
	if cands[0].Score >= m.opts.MatchThreshold && !ambiguous {
		return model.StatusMatched, false
	}
	return model.StatusNeedsReview, ambiguous
}

func (m *Matcher) exact(norm string, _ []model.Product) []model.Candidate {
	pid, ok := m.index.LookupExact(norm)
	if !ok {
		return nil
	}
	return []model.Candidate{{ProductID: pid, Score: 1, Method: model.MethodExact, MatchedOn: norm}}
}

func (m *Matcher) fuzzy(norm string, products []model.Product) []model.Candidate {
	var out []model.Candidate
	add := func(pid, target string) {
		if target == "" {
			return
		}
		if s := m.score(norm, target); s > 0 {
			out = append(out, model.Candidate{ProductID: pid, Score: s, Method: model.MethodFuzzy, MatchedOn: target})
		}
	}
	for _, a := range m.index.refs() {
		add(a.productID, a.normalized)
	}
	for _, p := range products {
		add(p.ID, Normalize(p.Name))
	}
	return out
}

func (m *Matcher) score(a, b string) float64 {
	s := bestSimilarity(a, b)
	if s < m.opts.ContainmentFloor && contains(a, b, m.opts.MinContainment) {
		s = m.opts.ContainmentFloor
	}
	return min(max(s, 0), 1)
}

// rankCandidates keeps the best score per product and orders by score,
// then by the most recently used alias, then by product id.
func (m *Matcher) rankCandidates(in []model.Candidate) []model.Candidate {
	best := make(map[string]model.Candidate, len(in))
	for _, c := range in {
		if cur, ok := best[c.ProductID]; !ok || c.Score > cur.Score {
			best[c.ProductID] = c
		}
	}
	out := make([]model.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ti, tj := m.index.LastUsed(out[i].ProductID), m.index.LastUsed(out[j].ProductID)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
