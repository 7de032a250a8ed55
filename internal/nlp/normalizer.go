// Package nlp turns free-text customer messages into comparable token lists.
package nlp

import (
	"bufio"
	_ "embed"
	"os"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

type Strategy string

const (
	// StrategyLinguistic scans words over any unicode whitespace and drops stopwords.
	StrategyLinguistic Strategy = "linguistic"
	// StrategyNaive splits on whitespace and keeps every token.
	StrategyNaive Strategy = "naive"
)

//go:embed stopwords_en.txt
var englishStopwords string

// Normalizer lowercases, strips, tokenizes and filters text. The strategy is
// fixed at construction; Normalize never fails.
type Normalizer struct {
	strategy  Strategy
	stopwords map[string]struct{}
}

type Option func(*normalizerOptions)

type normalizerOptions struct {
	stopwordsFile string
	logger        *zap.Logger
}

// WithStopwordsFile replaces the embedded English list with a newline separated file.
func WithStopwordsFile(path string) Option {
	return func(o *normalizerOptions) { o.stopwordsFile = strings.TrimSpace(path) }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *normalizerOptions) { o.logger = l }
}

// New builds a Normalizer. Unknown strategies fall back to linguistic.
func New(strategy Strategy, opts ...Option) *Normalizer {
	o := normalizerOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	n := &Normalizer{strategy: strategy}
	switch strategy {
	case StrategyNaive:
		return n
	case StrategyLinguistic:
	default:
		o.logger.Warn("unknown normalizer strategy, using linguistic", zap.String("strategy", string(strategy)))
		n.strategy = StrategyLinguistic
	}

	raw := englishStopwords
	if o.stopwordsFile != "" {
		b, err := os.ReadFile(o.stopwordsFile)
		if err != nil {
			// keep all tokens rather than guessing at a list
			o.logger.Warn("stopword list unavailable, keeping all tokens",
				zap.String("path", o.stopwordsFile), zap.Error(err))
			return n
		}
		raw = string(b)
	}
	n.stopwords = parseStopwords(raw)
	return n
}

// Normalize returns the ordered, stopword-free tokens of text. Duplicates are kept.
func (n *Normalizer) Normalize(text string) []string {
	clean := Clean(text)
	var tokens []string
	if n.strategy == StrategyNaive {
		tokens = strings.Fields(clean)
	} else {
		tokens = scanWords(clean)
	}
	if len(n.stopwords) == 0 {
		return tokens
	}
	out := tokens[:0]
	for _, t := range tokens {
		if _, stop := n.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Clean lowercases text and removes everything outside [a-z0-9] and unicode whitespace.
func Clean(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func scanWords(text string) []string {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 1024), len(text)+1)
	sc.Split(bufio.ScanWords)
	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

func parseStopwords(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		w := strings.ToLower(strings.TrimSpace(line))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
