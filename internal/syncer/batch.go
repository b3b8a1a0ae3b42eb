package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/metrics"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/pkg/logger"
)

// MirrorGateway is the read side of the remote API the batch mirror uses.
type MirrorGateway interface {
	ListDatasets(ctx context.Context, page, pageSize int) ([]map[string]interface{}, error)
	ListDocuments(ctx context.Context, datasetID string, page, pageSize int, keywords string) ([]map[string]interface{}, error)
	ListChatAssistants(ctx context.Context, page, pageSize int) ([]map[string]interface{}, error)
	ListSessions(ctx context.Context, chatID string, page, pageSize int) ([]map[string]interface{}, error)
	ListLlmModels(ctx context.Context) (map[string][]map[string]interface{}, error)
}

// MirrorDatasets pulls every dataset page from the instance and upserts each
// record. Malformed records count as errors without stopping the pass.
func (o *Orchestrator) MirrorDatasets(ctx context.Context, gw MirrorGateway, inst *models.Instance) (BatchResult, error) {
	start := time.Now()
	var result BatchResult

	for page := 1; ; page++ {
		payloads, err := gw.ListDatasets(ctx, page, o.pageSize)
		if err != nil {
			return result, fmt.Errorf("failed to fetch dataset page %d: %w", page, err)
		}
		if len(payloads) == 0 {
			break
		}

		for _, payload := range payloads {
			result.Total++
			if _, err := o.engine.SyncDataset(inst, payload); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Synced++
		}

		if len(payloads) < o.pageSize {
			break
		}
	}

	metrics.BatchSyncDuration.WithLabelValues("datasets").Observe(time.Since(start).Seconds())
	logger.Info("dataset sync finished",
		zap.String("instance", inst.Name),
		zap.Int("synced", result.Synced),
		zap.Int("total", result.Total),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// MirrorDocuments pulls every document page of one dataset.
func (o *Orchestrator) MirrorDocuments(ctx context.Context, gw MirrorGateway, dataset *models.Dataset) (BatchResult, error) {
	var result BatchResult
	if dataset.RemoteID == "" {
		return result, ErrDatasetRemoteIDMissing
	}

	start := time.Now()
	for page := 1; ; page++ {
		payloads, err := gw.ListDocuments(ctx, dataset.RemoteID, page, o.pageSize, "")
		if err != nil {
			return result, fmt.Errorf("failed to fetch document page %d: %w", page, err)
		}
		if len(payloads) == 0 {
			break
		}

		for _, payload := range payloads {
			result.Total++
			if _, err := o.engine.SyncDocument(dataset, payload); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Synced++
		}

		if len(payloads) < o.pageSize {
			break
		}
	}

	metrics.BatchSyncDuration.WithLabelValues("documents").Observe(time.Since(start).Seconds())
	return result, nil
}

// MirrorChatAssistants pulls every assistant page and, for each assistant,
// its sessions. A session-list failure for one assistant is collected and the
// pass continues.
func (o *Orchestrator) MirrorChatAssistants(ctx context.Context, gw MirrorGateway, inst *models.Instance) (BatchResult, error) {
	start := time.Now()
	var result BatchResult

	for page := 1; ; page++ {
		payloads, err := gw.ListChatAssistants(ctx, page, o.pageSize)
		if err != nil {
			return result, fmt.Errorf("failed to fetch assistant page %d: %w", page, err)
		}
		if len(payloads) == 0 {
			break
		}

		for _, payload := range payloads {
			result.Total++
			assistant, err := o.engine.SyncChatAssistant(inst, payload)
			if err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Synced++

			sessions, err := o.mirrorSessions(ctx, gw, inst, assistant)
			result.Total += sessions.Total
			result.Synced += sessions.Synced
			result.Errors = append(result.Errors, sessions.Errors...)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("assistant %s sessions: %w", assistant.ID, err))
			}
		}

		if len(payloads) < o.pageSize {
			break
		}
	}

	metrics.BatchSyncDuration.WithLabelValues("chat_assistants").Observe(time.Since(start).Seconds())
	logger.Info("chat assistant sync finished",
		zap.String("instance", inst.Name),
		zap.Int("synced", result.Synced),
		zap.Int("total", result.Total),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (o *Orchestrator) mirrorSessions(ctx context.Context, gw MirrorGateway, inst *models.Instance, assistant *models.ChatAssistant) (BatchResult, error) {
	var result BatchResult

	for page := 1; ; page++ {
		payloads, err := gw.ListSessions(ctx, assistant.RemoteID, page, o.pageSize)
		if err != nil {
			return result, err
		}
		if len(payloads) == 0 {
			break
		}

		for _, payload := range payloads {
			result.Total++
			if _, err := o.engine.SyncConversation(inst, assistant.ID, payload); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Synced++
		}

		if len(payloads) < o.pageSize {
			break
		}
	}

	return result, nil
}

// MirrorLlmModels refreshes the instance's model catalog.
func (o *Orchestrator) MirrorLlmModels(ctx context.Context, gw MirrorGateway, inst *models.Instance) (BatchResult, error) {
	start := time.Now()

	grouped, err := gw.ListLlmModels(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to fetch model catalog: %w", err)
	}

	result := o.engine.SyncLlmModels(inst, grouped)
	metrics.BatchSyncDuration.WithLabelValues("llm_models").Observe(time.Since(start).Seconds())
	return result, nil
}
