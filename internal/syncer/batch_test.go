package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kbmirror/backend/internal/storage/models"
)

type fakeMirrorGateway struct {
	datasetPages   [][]map[string]interface{}
	datasetCalls   int
	documentPages  [][]map[string]interface{}
	assistantPages [][]map[string]interface{}
	sessionPages   [][]map[string]interface{}
	sessionsErr    error
	modelCatalog   map[string][]map[string]interface{}
	modelsErr      error
}

func pageOf(pages [][]map[string]interface{}, page int) []map[string]interface{} {
	if page > len(pages) {
		return nil
	}
	return pages[page-1]
}

func (f *fakeMirrorGateway) ListDatasets(_ context.Context, page, _ int) ([]map[string]interface{}, error) {
	f.datasetCalls++
	return pageOf(f.datasetPages, page), nil
}

func (f *fakeMirrorGateway) ListDocuments(_ context.Context, _ string, page, _ int, _ string) ([]map[string]interface{}, error) {
	return pageOf(f.documentPages, page), nil
}

func (f *fakeMirrorGateway) ListChatAssistants(_ context.Context, page, _ int) ([]map[string]interface{}, error) {
	return pageOf(f.assistantPages, page), nil
}

func (f *fakeMirrorGateway) ListSessions(_ context.Context, _ string, page, _ int) ([]map[string]interface{}, error) {
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	return pageOf(f.sessionPages, page), nil
}

func (f *fakeMirrorGateway) ListLlmModels(_ context.Context) (map[string][]map[string]interface{}, error) {
	return f.modelCatalog, f.modelsErr
}

func TestMirrorDatasetsPaginates(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	o := NewOrchestrator(store, NewEngine(store), nil, 2)

	gw := &fakeMirrorGateway{datasetPages: [][]map[string]interface{}{
		{
			{"id": "ds-1", "name": "alpha"},
			{"id": "ds-2", "name": "beta"},
		},
		{
			{"id": "ds-3", "name": "gamma"},
		},
	}}

	result, err := o.MirrorDatasets(context.Background(), gw, inst)
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}
	if result.Total != 3 || result.Synced != 3 {
		t.Fatalf("expected 3/3, got %d/%d", result.Synced, result.Total)
	}
	if gw.datasetCalls != 2 {
		t.Fatalf("expected 2 page fetches, got %d", gw.datasetCalls)
	}

	stored, err := store.ListDatasets(inst.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 mirrored datasets, got %d", len(stored))
	}
}

func TestMirrorDatasetsCollectsMalformed(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	o := NewOrchestrator(store, NewEngine(store), nil, 30)

	gw := &fakeMirrorGateway{datasetPages: [][]map[string]interface{}{
		{
			{"id": "ds-1", "name": "alpha"},
			{"name": "no remote id"},
		},
	}}

	result, err := o.MirrorDatasets(context.Background(), gw, inst)
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}
	if result.Total != 2 || result.Synced != 1 {
		t.Fatalf("expected 1/2, got %d/%d", result.Synced, result.Total)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], ErrMissingRemoteID) {
		t.Fatalf("expected one ErrMissingRemoteID, got %v", result.Errors)
	}
}

func TestMirrorDocumentsRequiresSyncedDataset(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	o := NewOrchestrator(store, NewEngine(store), nil, 30)

	local := &models.Dataset{InstanceID: inst.ID, Name: "local-only"}
	if err := store.SaveDataset(local); err != nil {
		t.Fatalf("failed to seed dataset: %v", err)
	}

	_, err := o.MirrorDocuments(context.Background(), &fakeMirrorGateway{}, local)
	if !errors.Is(err, ErrDatasetRemoteIDMissing) {
		t.Fatalf("expected ErrDatasetRemoteIDMissing, got %v", err)
	}
}

func TestMirrorDocumentsUpserts(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	ds := seedDataset(t, store, inst)
	o := NewOrchestrator(store, NewEngine(store), nil, 30)

	gw := &fakeMirrorGateway{documentPages: [][]map[string]interface{}{
		{
			{"id": "doc-1", "name": "guide.pdf", "run": "done", "progress": 1.0},
			{"id": "doc-2", "name": "notes.md"},
		},
	}}

	result, err := o.MirrorDocuments(context.Background(), gw, ds)
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}
	if result.Synced != 2 {
		t.Fatalf("expected 2 synced, got %d", result.Synced)
	}

	parsed, err := store.FindDocumentByRemoteID(ds.ID, "doc-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if parsed.Status != models.StatusCompleted || parsed.Progress != 100 {
		t.Fatalf("expected completed at 100, got %s at %v", parsed.Status, parsed.Progress)
	}
}

func TestMirrorChatAssistantsIncludesSessions(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	o := NewOrchestrator(store, NewEngine(store), nil, 30)

	gw := &fakeMirrorGateway{
		assistantPages: [][]map[string]interface{}{
			{{"id": "asst-1", "name": "helper"}},
		},
		sessionPages: [][]map[string]interface{}{
			{
				{"id": "sess-1", "name": "first chat"},
				{"id": "sess-2", "name": "second chat"},
			},
		},
	}

	result, err := o.MirrorChatAssistants(context.Background(), gw, inst)
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}
	if result.Total != 3 || result.Synced != 3 {
		t.Fatalf("expected 3/3 including sessions, got %d/%d", result.Synced, result.Total)
	}

	assistant, err := store.FindChatAssistantByRemoteID(inst.ID, "asst-1")
	if err != nil {
		t.Fatalf("assistant lookup failed: %v", err)
	}
	conversations, err := store.ListConversations(inst.ID)
	if err != nil {
		t.Fatalf("conversation list failed: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 mirrored sessions, got %d", len(conversations))
	}
	for _, conv := range conversations {
		if conv.AssistantID != assistant.ID {
			t.Fatalf("session not bound to assistant: %q", conv.AssistantID)
		}
	}
}

func TestMirrorChatAssistantsCollectsSessionFailure(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	o := NewOrchestrator(store, NewEngine(store), nil, 30)

	gw := &fakeMirrorGateway{
		assistantPages: [][]map[string]interface{}{
			{{"id": "asst-1", "name": "helper"}},
		},
		sessionsErr: fmt.Errorf("sessions unavailable"),
	}

	result, err := o.MirrorChatAssistants(context.Background(), gw, inst)
	if err != nil {
		t.Fatalf("expected session failure collected, got %v", err)
	}
	if result.Synced != 1 {
		t.Fatalf("expected assistant still synced, got %d", result.Synced)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 collected error, got %d", len(result.Errors))
	}
}

func TestMirrorLlmModels(t *testing.T) {
	store := newTestStore(t)
	inst := seedInstance(t, store)
	o := NewOrchestrator(store, NewEngine(store), nil, 30)

	gw := &fakeMirrorGateway{modelCatalog: map[string][]map[string]interface{}{
		"OpenAI": {
			{"fid": "gpt-4o@OpenAI", "llm_name": "gpt-4o", "model_type": "chat"},
		},
	}}

	result, err := o.MirrorLlmModels(context.Background(), gw, inst)
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}
	if result.Synced != 1 {
		t.Fatalf("expected 1 model synced, got %d", result.Synced)
	}

	stored, err := store.ListLlmModels(inst.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) != 1 || stored[0].Provider != "OpenAI" {
		t.Fatalf("unexpected stored models: %+v", stored)
	}
}
