package keywords

import (
	"strings"
	"testing"
)

func TestExtractEmptyText(t *testing.T) {
	e := NewExtractor(0)
	got, err := e.Extract("   \n\t ")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no keywords for blank text, got %v", got)
	}
}

func TestExtractFindsNouns(t *testing.T) {
	e := NewExtractor(0)
	text := "The database stores every document. Each document links to a dataset, and the dataset tracks chunks."

	got, err := e.Extract(text)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected keywords for noun-heavy text")
	}

	joined := strings.ToLower(strings.Join(got, " "))
	if !strings.Contains(joined, "document") && !strings.Contains(joined, "dataset") {
		t.Fatalf("expected repeated nouns surfaced, got %v", got)
	}
}

func TestExtractDeduplicatesAndCaps(t *testing.T) {
	e := NewExtractor(3)
	text := "Server server SERVER network network storage storage memory memory kernel kernel"

	got, err := e.Extract(text)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(got) > 3 {
		t.Fatalf("expected cap at 3, got %d: %v", len(got), got)
	}

	seen := map[string]bool{}
	for _, kw := range got {
		key := strings.ToLower(kw)
		if seen[key] {
			t.Fatalf("duplicate keyword %q in %v", kw, got)
		}
		seen[key] = true
	}
}
