package mapper

import (
	"errors"
	"testing"
	"time"

	"github.com/kbmirror/backend/internal/storage/models"
)

func TestMapDatasetSkipsAbsentFields(t *testing.T) {
	ds := &models.Dataset{Name: "keep-me", Description: "keep this too"}

	MapDataset(map[string]interface{}{"id": "r1"}, ds)

	if ds.RemoteID != "r1" {
		t.Fatalf("expected remote id r1, got %q", ds.RemoteID)
	}
	if ds.Name != "keep-me" || ds.Description != "keep this too" {
		t.Fatalf("absent fields must keep prior values, got %q / %q", ds.Name, ds.Description)
	}
	if ds.LastSyncTime == nil {
		t.Fatal("expected last sync time stamped")
	}
}

func TestMapDatasetFull(t *testing.T) {
	ds := &models.Dataset{}
	MapDataset(map[string]interface{}{
		"id":              "r2",
		"name":            "handbook",
		"chunk_method":    "naive",
		"embedding_model": "BAAI/bge-m3",
		"document_count":  float64(12),
		"chunk_count":     float64(340),
		"parser_config":   map[string]interface{}{"chunk_token_num": float64(128)},
		"create_date":     "2026-08-01T10:00:00Z",
		"update_time":     float64(1756700000000),
	}, ds)

	if ds.DocumentCount != 12 || ds.ChunkCount != 340 {
		t.Fatalf("counts not mapped: %d / %d", ds.DocumentCount, ds.ChunkCount)
	}
	if ds.ParserConfig["chunk_token_num"] != float64(128) {
		t.Fatalf("parser config not mapped: %v", ds.ParserConfig)
	}
	if ds.RemoteCreateTime == nil || ds.RemoteCreateTime.UTC().Hour() != 10 {
		t.Fatalf("create date not parsed: %v", ds.RemoteCreateTime)
	}
	if ds.RemoteUpdateTime == nil {
		t.Fatal("epoch millisecond update time not parsed")
	}
	if y := ds.RemoteUpdateTime.Year(); y != 2026 {
		t.Fatalf("epoch milliseconds misread as seconds, year %d", y)
	}
}

func TestMapDocumentParseStateAppliedTogether(t *testing.T) {
	doc := &models.Document{Status: models.StatusProcessing, Progress: 30, ProgressMsg: "old"}

	ApplyParseState(map[string]interface{}{
		"run":          float64(3),
		"progress":     0.97,
		"progress_msg": "almost done",
	}, doc)

	if doc.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", doc.Status)
	}
	if doc.Progress != 97 {
		t.Fatalf("expected 97, got %v", doc.Progress)
	}
	if doc.ProgressMsg != "almost done" {
		t.Fatalf("expected message replaced, got %q", doc.ProgressMsg)
	}
}

func TestApplyParseStateKeepsPriorOnBadProgress(t *testing.T) {
	doc := &models.Document{Status: models.StatusProcessing, Progress: 30}

	ApplyParseState(map[string]interface{}{"progress": "garbage"}, doc)

	if doc.Progress != 30 {
		t.Fatalf("expected prior progress kept, got %v", doc.Progress)
	}
	if doc.Status != models.StatusProcessing {
		t.Fatalf("status must not move without a status field, got %s", doc.Status)
	}
}

func TestMapChunk(t *testing.T) {
	ch := &models.Chunk{}
	MapChunk(map[string]interface{}{
		"id":                 "c1",
		"content":            "The quick brown fox.",
		"position":           float64(4),
		"token_count":        float64(6),
		"important_keywords": []interface{}{"fox", "speed"},
		"embedding":          []interface{}{0.1, 0.2, 0.3},
	}, ch)

	if ch.RemoteID != "c1" || ch.Content != "The quick brown fox." {
		t.Fatalf("basic fields not mapped: %+v", ch)
	}
	if ch.Position != 4 || ch.TokenCount != 6 {
		t.Fatalf("numeric fields not mapped: %+v", ch)
	}
	if len(ch.Keywords) != 2 || ch.Keywords[0] != "fox" {
		t.Fatalf("keywords not mapped: %v", ch.Keywords)
	}
	if len(ch.Embedding) != 3 {
		t.Fatalf("embedding not mapped: %v", ch.Embedding)
	}
}

func TestMapChatAssistantFlattensNestedParams(t *testing.T) {
	a := &models.ChatAssistant{}
	MapChatAssistant(map[string]interface{}{
		"id":          "a1",
		"name":        "support bot",
		"dataset_ids": []interface{}{"ds1", "ds2"},
		"llm": map[string]interface{}{
			"model_name":  "gpt-4o",
			"temperature": 0.3,
			"max_tokens":  float64(2048),
		},
		"prompt": map[string]interface{}{
			"similarity_threshold": 0.2,
			"top_n":                float64(8),
			"prompt":               "You answer from the knowledge base.",
			"opener":               "Hi, how can I help?",
		},
	}, a)

	if a.ModelName != "gpt-4o" || a.Temperature != 0.3 || a.MaxTokens != 2048 {
		t.Fatalf("llm block not flattened: %+v", a)
	}
	if a.SimilarityThreshold != 0.2 || a.TopN != 8 {
		t.Fatalf("prompt block not flattened: %+v", a)
	}
	if a.OpeningGreeting != "Hi, how can I help?" {
		t.Fatalf("opener not mapped: %q", a.OpeningGreeting)
	}
	if len(a.DatasetRemoteIDs) != 2 {
		t.Fatalf("dataset ids not mapped: %v", a.DatasetRemoteIDs)
	}
}

func TestMapConversation(t *testing.T) {
	conv := &models.Conversation{}
	MapConversation(map[string]interface{}{
		"id":   "s1",
		"name": "onboarding questions",
		"messages": []interface{}{
			map[string]interface{}{"role": "user", "content": "hello"},
			map[string]interface{}{"role": "assistant", "content": "hi"},
		},
		"update_time": float64(1756700000000),
	}, conv)

	if conv.RemoteID != "s1" || conv.Title != "onboarding questions" {
		t.Fatalf("basic fields not mapped: %+v", conv)
	}
	if conv.MessageCount != 2 {
		t.Fatalf("expected message count 2, got %d", conv.MessageCount)
	}
	if conv.LastActivityTime == nil {
		t.Fatal("expected activity time from update_time")
	}
}

func TestMapLlmModelRequiresFid(t *testing.T) {
	if _, err := MapLlmModel(map[string]interface{}{"llm_name": "nameless"}, "openai", &models.LlmModel{}); !errors.Is(err, ErrMissingFid) {
		t.Fatalf("expected ErrMissingFid, got %v", err)
	}

	m, err := MapLlmModel(map[string]interface{}{
		"fid":        "gpt-4o",
		"llm_name":   "gpt-4o",
		"model_type": "chat",
		"available":  true,
		"is_tools":   true,
		"max_tokens": float64(128000),
	}, "openai", &models.LlmModel{})
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if m.Fid != "gpt-4o" || m.Provider != "openai" {
		t.Fatalf("identity fields not mapped: %+v", m)
	}
	if !m.Available || !m.SupportsTools || m.MaxTokens != 128000 {
		t.Fatalf("capability fields not mapped: %+v", m)
	}
}

func TestTimeValueFormats(t *testing.T) {
	cases := []struct {
		in   interface{}
		year int
	}{
		{"2026-08-30T12:00:00Z", 2026},
		{"2026-08-30 12:00:00", 2026},
		{"Thu, 25 Dec 2025 14:35:00 GMT", 2025},
		{float64(1756700000), 2025},
		{float64(1756700000000), 2025},
	}
	for _, tc := range cases {
		got, ok := timeValue(tc.in)
		if !ok {
			t.Errorf("timeValue(%v) not parsed", tc.in)
			continue
		}
		if got.Year() != tc.year {
			t.Errorf("timeValue(%v) year = %d, want %d", tc.in, got.Year(), tc.year)
		}
	}

	if _, ok := timeValue("not a date"); ok {
		t.Error("expected unparseable date rejected")
	}
	if _, ok := timeValue(nil); ok {
		t.Error("expected nil rejected")
	}
}

func TestTimeValueEpochMillisVsSeconds(t *testing.T) {
	ms, _ := timeValue(float64(1756700000000))
	s, _ := timeValue(float64(1756700000))
	if !ms.Truncate(time.Second).Equal(s.Truncate(time.Second)) {
		t.Fatalf("same instant decoded differently: %v vs %v", ms, s)
	}
}
