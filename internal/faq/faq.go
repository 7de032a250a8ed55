// Package faq scores stored question/answer entries against a customer message.
package faq

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinScore is the lowest score that counts as a match.
const MinScore = 2

// Entry is a stored FAQ. Entries are immutable once loaded.
type Entry struct {
	ID       int      `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Response string   `json:"response" yaml:"response"`
}

type MatchResult struct {
	Entry Entry
	Score int
}

// Seed is the on-disk shape of the FAQ seed file.
type Seed struct {
	FAQs []Entry `json:"faqs" yaml:"faqs"`
}

// ParseSeed decodes a seed document in JSON or YAML.
func ParseSeed(b []byte) ([]Entry, error) {
	var s Seed
	var err error
	// tab-indented JSON is not valid YAML
	if trimmed := strings.TrimSpace(string(b)); strings.HasPrefix(trimmed, "{") {
		err = json.Unmarshal(b, &s)
	} else {
		err = yaml.Unmarshal(b, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode faq seed: %w", err)
	}
	seen := make(map[int]struct{}, len(s.FAQs))
	for _, e := range s.FAQs {
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("duplicate faq id %d", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return s.FAQs, nil
}

// ParseKeywords decodes a stored keyword list. Malformed input yields an empty set.
func ParseKeywords(raw string) []string {
	var kws []string
	if err := json.Unmarshal([]byte(raw), &kws); err != nil {
		return nil
	}
	return kws
}

// EncodeKeywords is the inverse of ParseKeywords.
func EncodeKeywords(kws []string) string {
	if kws == nil {
		kws = []string{}
	}
	b, _ := json.Marshal(kws)
	return string(b)
}

// lowerTrim is shared by the scorer for keyword comparison.
func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
