package syncer

import (
	"errors"
	"testing"

	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Client {
	t.Helper()
	store, err := sqlite.NewClient(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return store
}

func seedInstance(t *testing.T, store *sqlite.Client) *models.Instance {
	t.Helper()
	inst := &models.Instance{Name: "primary", BaseURL: "http://remote.local", APIKey: "key"}
	if err := store.SaveInstance(inst); err != nil {
		t.Fatalf("failed to seed instance: %v", err)
	}
	return inst
}

func seedDataset(t *testing.T, store *sqlite.Client, inst *models.Instance) *models.Dataset {
	t.Helper()
	ds := &models.Dataset{InstanceID: inst.ID, RemoteID: "ds-remote-1", Name: "kb"}
	if err := store.SaveDataset(ds); err != nil {
		t.Fatalf("failed to seed dataset: %v", err)
	}
	return ds
}

func TestSyncDatasetCreatesThenUpdates(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	engine := NewEngine(store)

	payload := map[string]interface{}{
		"id":          "remote-42",
		"name":        "handbook",
		"description": "company handbook",
	}

	first, err := engine.SyncDataset(inst, payload)
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if first.Name != "handbook" {
		t.Fatalf("expected name handbook, got %q", first.Name)
	}

	payload["name"] = "handbook-renamed"
	second, err := engine.SyncDataset(inst, payload)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected update of existing row, got new row %s vs %s", second.ID, first.ID)
	}
	if second.Name != "handbook-renamed" {
		t.Fatalf("expected renamed dataset, got %q", second.Name)
	}

	all, err := store.ListDatasets(inst.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one dataset row, got %d", len(all))
	}
}

func TestSyncDatasetMissingRemoteID(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	engine := NewEngine(store)

	cases := []map[string]interface{}{
		{"name": "no id at all"},
		{"id": "", "name": "empty id"},
		{"id": true, "name": "boolean id"},
		{"id": []interface{}{"x"}, "name": "list id"},
	}
	for _, payload := range cases {
		if _, err := engine.SyncDataset(inst, payload); !errors.Is(err, ErrMissingRemoteID) {
			t.Fatalf("payload %v: expected ErrMissingRemoteID, got %v", payload, err)
		}
	}

	all, err := store.ListDatasets(inst.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no rows persisted for malformed payloads, got %d", len(all))
	}
}

func TestSyncDatasetAcceptsNumericRemoteID(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	engine := NewEngine(store)

	// JSON decoding hands numbers over as float64; the id is stored as its
	// decimal string, same as every other mapped field.
	ds, err := engine.SyncDataset(inst, map[string]interface{}{
		"id":   float64(42),
		"name": "numbered",
	})
	if err != nil {
		t.Fatalf("sync with numeric id failed: %v", err)
	}
	if ds.RemoteID != "42" {
		t.Fatalf("expected remote id %q, got %q", "42", ds.RemoteID)
	}

	found, err := store.FindDatasetByRemoteID(inst.ID, "42")
	if err != nil {
		t.Fatalf("lookup by coerced remote id failed: %v", err)
	}
	if found.ID != ds.ID {
		t.Fatalf("expected row %s, got %s", ds.ID, found.ID)
	}
}

func TestSyncDocumentScopedByDataset(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	engine := NewEngine(store)

	dsA := &models.Dataset{InstanceID: inst.ID, RemoteID: "remote-a", Name: "a"}
	dsB := &models.Dataset{InstanceID: inst.ID, RemoteID: "remote-b", Name: "b"}
	for _, ds := range []*models.Dataset{dsA, dsB} {
		if err := store.SaveDataset(ds); err != nil {
			t.Fatalf("failed to seed dataset: %v", err)
		}
	}

	payload := map[string]interface{}{"id": "doc-1", "name": "report.pdf"}

	inA, err := engine.SyncDocument(dsA, payload)
	if err != nil {
		t.Fatalf("sync into dataset a failed: %v", err)
	}
	inB, err := engine.SyncDocument(dsB, payload)
	if err != nil {
		t.Fatalf("sync into dataset b failed: %v", err)
	}

	// The same remote id in two datasets is two distinct local rows.
	if inA.ID == inB.ID {
		t.Fatalf("expected distinct rows per dataset scope, both got %s", inA.ID)
	}
}

func TestSyncDocumentAppliesParseState(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	ds := seedDataset(t, store, inst)
	engine := NewEngine(store)

	payload := map[string]interface{}{
		"id":           "doc-9",
		"name":         "guide.md",
		"run":          "3",
		"progress":     0.5,
		"progress_msg": "chunking",
	}

	doc, err := engine.SyncDocument(ds, payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if doc.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", doc.Status)
	}
	if doc.Progress != 50 {
		t.Fatalf("expected fractional progress scaled to 50, got %v", doc.Progress)
	}
	if doc.ProgressMsg != "chunking" {
		t.Fatalf("expected progress message kept, got %q", doc.ProgressMsg)
	}
}

func TestSyncLlmModelsPartialFailure(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	engine := NewEngine(store)

	grouped := map[string][]map[string]interface{}{
		"openai": {
			{"fid": "gpt-4o", "llm_name": "gpt-4o", "model_type": "chat"},
			{"llm_name": "orphan without fid"},
			nil,
		},
		"ollama": {
			{"fid": "llama3", "llm_name": "llama3", "model_type": "chat"},
		},
	}

	result := engine.SyncLlmModels(inst, grouped)
	if result.Total != 4 {
		t.Fatalf("expected total 4, got %d", result.Total)
	}
	if result.Synced != 2 {
		t.Fatalf("expected 2 synced, got %d", result.Synced)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(result.Errors), result.Errors)
	}

	saved, err := store.ListLlmModels(inst.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 persisted models, got %d", len(saved))
	}
}

func TestSyncLlmModelsIdempotent(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	engine := NewEngine(store)

	grouped := map[string][]map[string]interface{}{
		"openai": {{"fid": "gpt-4o", "llm_name": "gpt-4o", "max_tokens": 128000}},
	}

	engine.SyncLlmModels(inst, grouped)
	grouped["openai"][0]["max_tokens"] = 200000
	engine.SyncLlmModels(inst, grouped)

	saved, err := store.ListLlmModels(inst.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected one model row after re-sync, got %d", len(saved))
	}
	if saved[0].MaxTokens != 200000 {
		t.Fatalf("expected updated max tokens, got %d", saved[0].MaxTokens)
	}
}
