package query

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultVocabulary is the built-in list of technology and workflow terms
// recognised in questions.
var DefaultVocabulary = []string{
	"frontend", "backend", "api", "database", "ui", "ux", "design",
	"mobile", "web", "server", "client", "testing", "qa", "devops",
	"infrastructure", "security", "auth", "payment", "dashboard",
	"admin", "user", "profile", "settings", "login", "signup",
	"checkout", "cart", "search", "filter", "notification", "email",
	"analytics", "reporting", "integration", "deployment", "bug",
	"feature", "enhancement", "refactor", "optimization", "performance",
}

var quotedRe = regexp.MustCompile(`"([^"]*)"`)

// KeywordExtractor pulls search terms out of a free-text question.
type KeywordExtractor struct {
	vocabulary []string
}

// NewKeywordExtractor returns an extractor over vocab; a nil or empty vocab
// uses DefaultVocabulary.
func NewKeywordExtractor(vocab []string) *KeywordExtractor {
	if len(vocab) == 0 {
		vocab = DefaultVocabulary
	}
	terms := make([]string, 0, len(vocab))
	for _, v := range vocab {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			terms = append(terms, v)
		}
	}
	return &KeywordExtractor{vocabulary: terms}
}

// Vocabulary returns a copy of the configured terms.
func (k *KeywordExtractor) Vocabulary() []string {
	out := make([]string, len(k.vocabulary))
	copy(out, k.vocabulary)
	return out
}

// Extract returns the vocabulary terms contained in the question plus any
// double-quoted phrases verbatim. The result is deduplicated
// case-insensitively and sorted; nil means no targeted filter.
func (k *KeywordExtractor) Extract(question string) []string {
	if strings.TrimSpace(question) == "" {
		return nil
	}
	lower := strings.ToLower(question)
	seen := map[string]bool{}
	var out []string
	add := func(term string) {
		key := strings.ToLower(term)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, term)
	}
	for _, term := range k.vocabulary {
		if strings.Contains(lower, term) {
			add(term)
		}
	}
	for _, m := range quotedRe.FindAllStringSubmatch(question, -1) {
		if strings.TrimSpace(m[1]) != "" {
			add(m[1])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
