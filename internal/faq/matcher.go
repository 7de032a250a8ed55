package faq

import (
	"strings"
)

// Normalizer is satisfied by *nlp.Normalizer.
type Normalizer interface {
	Normalize(text string) []string
}

type scoredEntry struct {
	entry          Entry
	keywords       []string
	questionTokens []string
}

// Matcher holds FAQ entries in store order with their question tokens precomputed.
type Matcher struct {
	norm    Normalizer
	entries []scoredEntry
}

func NewMatcher(norm Normalizer, entries []Entry) *Matcher {
	m := &Matcher{norm: norm, entries: make([]scoredEntry, 0, len(entries))}
	for _, e := range entries {
		kws := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			if k = lowerTrim(k); k != "" {
				kws = append(kws, k)
			}
		}
		m.entries = append(m.entries, scoredEntry{
			entry:          e,
			keywords:       kws,
			questionTokens: norm.Normalize(e.Question),
		})
	}
	return m
}

// query is a message prepared once per Match call.
type query struct {
	text     string
	rawLower string
	tokens   map[string]struct{}
}

func (m *Matcher) prepare(message string) query {
	userTokens := m.norm.Normalize(message)
	set := make(map[string]struct{}, len(userTokens))
	for _, t := range userTokens {
		set[t] = struct{}{}
	}
	return query{
		text:     strings.Join(userTokens, " "),
		rawLower: strings.ToLower(message),
		tokens:   set,
	}
}

func (se scoredEntry) score(q query) int {
	score := 0
	for _, k := range se.keywords {
		if strings.Contains(q.text, k) || strings.Contains(q.rawLower, k) {
			score++
		}
	}
	for _, qt := range se.questionTokens {
		if _, ok := q.tokens[qt]; ok {
			score++
		}
	}
	return score
}

// Match returns the best scoring entry when its score reaches MinScore.
// Ties keep the earliest entry.
func (m *Matcher) Match(message string) (MatchResult, bool) {
	q := m.prepare(message)
	var best MatchResult
	for _, se := range m.entries {
		if s := se.score(q); s > best.Score {
			best = MatchResult{Entry: se.entry, Score: s}
		}
	}
	if best.Score < MinScore {
		return MatchResult{}, false
	}
	return best, true
}

// scoreOf reports the score of a single entry against message.
func (m *Matcher) scoreOf(message string, id int) (int, bool) {
	for _, se := range m.entries {
		if se.entry.ID == id {
			return se.score(m.prepare(message)), true
		}
	}
	return 0, false
}
