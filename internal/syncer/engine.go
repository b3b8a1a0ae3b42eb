// Package syncer reconciles remote records into the local store. Every
// operation is an upsert keyed by (owning scope, remote id): an existing row
// is updated in place, an unseen remote id creates exactly one new row.
package syncer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/mapper"
	"github.com/kbmirror/backend/internal/metrics"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/pkg/logger"
)

// ErrMissingRemoteID marks a remote payload that cannot be scoped for upsert.
// Nothing is persisted for such a record.
var ErrMissingRemoteID = errors.New("remote payload missing id")

type Engine struct {
	store *sqlite.Client
}

func NewEngine(store *sqlite.Client) *Engine {
	return &Engine{store: store}
}

// remoteIDOf reads the upsert key off a raw payload with the same leniency
// the field mappers apply: a numeric id is accepted as its decimal string.
func remoteIDOf(payload map[string]interface{}) (string, error) {
	v, ok := payload["id"]
	if !ok {
		return "", ErrMissingRemoteID
	}
	id, ok := mapper.StringOf(v)
	if !ok || id == "" {
		return "", ErrMissingRemoteID
	}
	return id, nil
}

func (e *Engine) SyncDataset(inst *models.Instance, payload map[string]interface{}) (*models.Dataset, error) {
	remoteID, err := remoteIDOf(payload)
	if err != nil {
		metrics.SyncTotal.WithLabelValues("dataset", "error").Inc()
		return nil, fmt.Errorf("dataset sync: %w", err)
	}

	ds, err := e.store.FindDatasetByRemoteID(inst.ID, remoteID)
	isNew := false
	if errors.Is(err, sqlite.ErrNotFound) {
		ds = &models.Dataset{InstanceID: inst.ID, RemoteID: remoteID}
		isNew = true
	} else if err != nil {
		metrics.SyncTotal.WithLabelValues("dataset", "error").Inc()
		return nil, err
	}

	mapper.MapDataset(payload, ds)

	if err := e.store.SaveDataset(ds); err != nil {
		// A concurrent sync may have inserted the same (instance, remote id)
		// first; fold this update into that row instead of failing.
		if isNew && sqlite.IsUniqueViolation(err) {
			existing, ferr := e.store.FindDatasetByRemoteID(inst.ID, remoteID)
			if ferr != nil {
				metrics.SyncTotal.WithLabelValues("dataset", "error").Inc()
				return nil, err
			}
			mapper.MapDataset(payload, existing)
			if serr := e.store.SaveDataset(existing); serr != nil {
				metrics.SyncTotal.WithLabelValues("dataset", "error").Inc()
				return nil, serr
			}
			metrics.SyncTotal.WithLabelValues("dataset", "success").Inc()
			return existing, nil
		}
		metrics.SyncTotal.WithLabelValues("dataset", "error").Inc()
		return nil, err
	}

	metrics.SyncTotal.WithLabelValues("dataset", "success").Inc()
	return ds, nil
}

func (e *Engine) SyncDocument(dataset *models.Dataset, payload map[string]interface{}) (*models.Document, error) {
	remoteID, err := remoteIDOf(payload)
	if err != nil {
		metrics.SyncTotal.WithLabelValues("document", "error").Inc()
		return nil, fmt.Errorf("document sync: %w", err)
	}

	doc, err := e.store.FindDocumentByRemoteID(dataset.ID, remoteID)
	isNew := false
	if errors.Is(err, sqlite.ErrNotFound) {
		doc = &models.Document{DatasetID: dataset.ID, RemoteID: remoteID, Status: models.StatusPending}
		isNew = true
	} else if err != nil {
		metrics.SyncTotal.WithLabelValues("document", "error").Inc()
		return nil, err
	}

	mapper.MapDocument(payload, doc)

	if err := e.store.SaveDocument(doc); err != nil {
		if isNew && sqlite.IsUniqueViolation(err) {
			existing, ferr := e.store.FindDocumentByRemoteID(dataset.ID, remoteID)
			if ferr != nil {
				metrics.SyncTotal.WithLabelValues("document", "error").Inc()
				return nil, err
			}
			mapper.MapDocument(payload, existing)
			if serr := e.store.SaveDocument(existing); serr != nil {
				metrics.SyncTotal.WithLabelValues("document", "error").Inc()
				return nil, serr
			}
			metrics.SyncTotal.WithLabelValues("document", "success").Inc()
			return existing, nil
		}
		metrics.SyncTotal.WithLabelValues("document", "error").Inc()
		return nil, err
	}

	metrics.SyncTotal.WithLabelValues("document", "success").Inc()
	return doc, nil
}

func (e *Engine) SyncChunk(document *models.Document, payload map[string]interface{}) (*models.Chunk, error) {
	remoteID, err := remoteIDOf(payload)
	if err != nil {
		metrics.SyncTotal.WithLabelValues("chunk", "error").Inc()
		return nil, fmt.Errorf("chunk sync: %w", err)
	}

	ch, err := e.store.FindChunkByRemoteID(document.ID, remoteID)
	isNew := false
	if errors.Is(err, sqlite.ErrNotFound) {
		ch = &models.Chunk{DocumentID: document.ID, RemoteID: remoteID}
		isNew = true
	} else if err != nil {
		metrics.SyncTotal.WithLabelValues("chunk", "error").Inc()
		return nil, err
	}

	mapper.MapChunk(payload, ch)

	if err := e.store.SaveChunk(ch); err != nil {
		if isNew && sqlite.IsUniqueViolation(err) {
			existing, ferr := e.store.FindChunkByRemoteID(document.ID, remoteID)
			if ferr != nil {
				metrics.SyncTotal.WithLabelValues("chunk", "error").Inc()
				return nil, err
			}
			mapper.MapChunk(payload, existing)
			if serr := e.store.SaveChunk(existing); serr != nil {
				metrics.SyncTotal.WithLabelValues("chunk", "error").Inc()
				return nil, serr
			}
			metrics.SyncTotal.WithLabelValues("chunk", "success").Inc()
			return existing, nil
		}
		metrics.SyncTotal.WithLabelValues("chunk", "error").Inc()
		return nil, err
	}

	metrics.SyncTotal.WithLabelValues("chunk", "success").Inc()
	return ch, nil
}

func (e *Engine) SyncChatAssistant(inst *models.Instance, payload map[string]interface{}) (*models.ChatAssistant, error) {
	remoteID, err := remoteIDOf(payload)
	if err != nil {
		metrics.SyncTotal.WithLabelValues("chat_assistant", "error").Inc()
		return nil, fmt.Errorf("chat assistant sync: %w", err)
	}

	a, err := e.store.FindChatAssistantByRemoteID(inst.ID, remoteID)
	isNew := false
	if errors.Is(err, sqlite.ErrNotFound) {
		a = &models.ChatAssistant{InstanceID: inst.ID, RemoteID: remoteID}
		isNew = true
	} else if err != nil {
		metrics.SyncTotal.WithLabelValues("chat_assistant", "error").Inc()
		return nil, err
	}

	mapper.MapChatAssistant(payload, a)

	if err := e.store.SaveChatAssistant(a); err != nil {
		if isNew && sqlite.IsUniqueViolation(err) {
			existing, ferr := e.store.FindChatAssistantByRemoteID(inst.ID, remoteID)
			if ferr != nil {
				metrics.SyncTotal.WithLabelValues("chat_assistant", "error").Inc()
				return nil, err
			}
			mapper.MapChatAssistant(payload, existing)
			if serr := e.store.SaveChatAssistant(existing); serr != nil {
				metrics.SyncTotal.WithLabelValues("chat_assistant", "error").Inc()
				return nil, serr
			}
			metrics.SyncTotal.WithLabelValues("chat_assistant", "success").Inc()
			return existing, nil
		}
		metrics.SyncTotal.WithLabelValues("chat_assistant", "error").Inc()
		return nil, err
	}

	metrics.SyncTotal.WithLabelValues("chat_assistant", "success").Inc()
	return a, nil
}

func (e *Engine) SyncConversation(inst *models.Instance, assistantID string, payload map[string]interface{}) (*models.Conversation, error) {
	remoteID, err := remoteIDOf(payload)
	if err != nil {
		metrics.SyncTotal.WithLabelValues("conversation", "error").Inc()
		return nil, fmt.Errorf("conversation sync: %w", err)
	}

	conv, err := e.store.FindConversationByRemoteID(inst.ID, remoteID)
	isNew := false
	if errors.Is(err, sqlite.ErrNotFound) {
		conv = &models.Conversation{InstanceID: inst.ID, AssistantID: assistantID, RemoteID: remoteID}
		isNew = true
	} else if err != nil {
		metrics.SyncTotal.WithLabelValues("conversation", "error").Inc()
		return nil, err
	}

	if assistantID != "" {
		conv.AssistantID = assistantID
	}
	mapper.MapConversation(payload, conv)

	if err := e.store.SaveConversation(conv); err != nil {
		if isNew && sqlite.IsUniqueViolation(err) {
			existing, ferr := e.store.FindConversationByRemoteID(inst.ID, remoteID)
			if ferr != nil {
				metrics.SyncTotal.WithLabelValues("conversation", "error").Inc()
				return nil, err
			}
			mapper.MapConversation(payload, existing)
			if serr := e.store.SaveConversation(existing); serr != nil {
				metrics.SyncTotal.WithLabelValues("conversation", "error").Inc()
				return nil, serr
			}
			metrics.SyncTotal.WithLabelValues("conversation", "success").Inc()
			return existing, nil
		}
		metrics.SyncTotal.WithLabelValues("conversation", "error").Inc()
		return nil, err
	}

	metrics.SyncTotal.WithLabelValues("conversation", "success").Inc()
	return conv, nil
}

// BatchResult aggregates a batch sync: one record's failure never aborts the
// rest of the batch.
type BatchResult struct {
	Total  int
	Synced int
	Errors []error
}

// SyncLlmModels upserts the remote model catalog, a map of provider name to
// model records. Malformed records (non-objects, or records without the
// mandatory fid) are skipped and reported in the result.
func (e *Engine) SyncLlmModels(inst *models.Instance, grouped map[string][]map[string]interface{}) BatchResult {
	var result BatchResult

	for provider, payloads := range grouped {
		for _, payload := range payloads {
			result.Total++

			if payload == nil {
				result.Errors = append(result.Errors, fmt.Errorf("provider %q: malformed model record", provider))
				metrics.SyncTotal.WithLabelValues("llm_model", "error").Inc()
				continue
			}

			if err := e.syncLlmModel(inst, provider, payload); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("provider %q: %w", provider, err))
				metrics.SyncTotal.WithLabelValues("llm_model", "error").Inc()
				continue
			}

			result.Synced++
			metrics.SyncTotal.WithLabelValues("llm_model", "success").Inc()
		}
	}

	logger.Info("LLM model sync finished",
		zap.String("instance", inst.Name),
		zap.Int("synced", result.Synced),
		zap.Int("total", result.Total),
		zap.Int("errors", len(result.Errors)),
	)

	return result
}

func (e *Engine) syncLlmModel(inst *models.Instance, provider string, payload map[string]interface{}) error {
	fid, err := mapper.FidOf(payload)
	if err != nil {
		return err
	}

	m, err := e.store.FindLlmModelByFid(inst.ID, fid)
	isNew := false
	if errors.Is(err, sqlite.ErrNotFound) {
		m = &models.LlmModel{InstanceID: inst.ID}
		isNew = true
	} else if err != nil {
		return err
	}

	if _, err := mapper.MapLlmModel(payload, provider, m); err != nil {
		return err
	}

	if err := e.store.SaveLlmModel(m); err != nil {
		if isNew && sqlite.IsUniqueViolation(err) {
			existing, ferr := e.store.FindLlmModelByFid(inst.ID, fid)
			if ferr != nil {
				return err
			}
			if _, merr := mapper.MapLlmModel(payload, provider, existing); merr != nil {
				return merr
			}
			return e.store.SaveLlmModel(existing)
		}
		return err
	}

	return nil
}
