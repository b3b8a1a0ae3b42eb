// Package keywords suggests tags for synced chunks whose remote records carry
// none, using part-of-speech tagging and named-entity recognition.
package keywords

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

const defaultMaxKeywords = 10

type Extractor struct {
	maxKeywords int
}

func NewExtractor(maxKeywords int) *Extractor {
	if maxKeywords <= 0 {
		maxKeywords = defaultMaxKeywords
	}
	return &Extractor{maxKeywords: maxKeywords}
}

// Extract returns candidate keywords for a chunk of text: named entities
// first, then repeated nouns, deduplicated case-insensitively and capped.
func (e *Extractor) Extract(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var keywords []string

	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if len(candidate) < 3 || len(keywords) >= e.maxKeywords {
			return
		}
		key := strings.ToLower(candidate)
		if seen[key] {
			return
		}
		seen[key] = true
		keywords = append(keywords, candidate)
	}

	for _, ent := range doc.Entities() {
		add(ent.Text)
	}

	nounCounts := make(map[string]int)
	nounText := make(map[string]string)
	for _, tok := range doc.Tokens() {
		if !strings.HasPrefix(tok.Tag, "NN") {
			continue
		}
		key := strings.ToLower(tok.Text)
		nounCounts[key]++
		if _, ok := nounText[key]; !ok {
			nounText[key] = tok.Text
		}
	}
	// Nouns that occur more than once carry the topic of the chunk.
	for key, count := range nounCounts {
		if count > 1 {
			add(nounText[key])
		}
	}
	if len(keywords) < e.maxKeywords {
		for key, text := range nounText {
			if nounCounts[key] == 1 {
				add(text)
			}
		}
	}

	return keywords, nil
}
