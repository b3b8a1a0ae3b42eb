package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/mapper"
	"github.com/kbmirror/backend/internal/metrics"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/pkg/logger"
)

var (
	ErrDatasetRemoteIDMissing  = errors.New("dataset remote ID is missing")
	ErrDocumentFilePathMissing = errors.New("document file path is missing")
	ErrMissingUploadData       = errors.New("missing required data for upload")
)

// DocumentGateway is the slice of the remote API the document lifecycle
// needs. The per-instance gateway client satisfies it.
type DocumentGateway interface {
	UploadDocument(ctx context.Context, datasetID, filePath, displayName string) ([]map[string]interface{}, error)
	DeleteDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	StopParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	GetDocument(ctx context.Context, datasetID, documentID string) (map[string]interface{}, error)
	ListChunks(ctx context.Context, datasetID, documentID string, page, pageSize int) ([]map[string]interface{}, error)
}

// ChunkIndexer mirrors synced chunk embeddings into a vector index. Index
// failures never fail a chunk sync; the relational store is the source of
// truth.
type ChunkIndexer interface {
	InsertChunks(ctx context.Context, dataset *models.Dataset, doc *models.Document, chunks []*models.Chunk) error
}

// Orchestrator drives the document lifecycle against a remote instance:
// upload, retry, delete, parse control, status polling and chunk mirroring.
type Orchestrator struct {
	store    *sqlite.Client
	engine   *Engine
	indexer  ChunkIndexer
	pageSize int
}

func NewOrchestrator(store *sqlite.Client, engine *Engine, indexer ChunkIndexer, pageSize int) *Orchestrator {
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Orchestrator{
		store:    store,
		engine:   engine,
		indexer:  indexer,
		pageSize: pageSize,
	}
}

// SyncDocumentToRemote uploads a local document to its dataset's remote
// instance. The uploading state is persisted before the network call so a
// crash mid-upload is visible, and the outcome (uploaded or sync_failed) is
// persisted before returning.
func (o *Orchestrator) SyncDocumentToRemote(ctx context.Context, gw DocumentGateway, dataset *models.Dataset, doc *models.Document) error {
	if dataset == nil || doc == nil {
		return ErrMissingUploadData
	}
	if dataset.RemoteID == "" {
		return ErrDatasetRemoteIDMissing
	}
	if doc.FilePath == "" {
		return ErrDocumentFilePathMissing
	}

	doc.Status = models.StatusUploading
	doc.ProgressMsg = "uploading"
	if err := o.store.SaveDocument(doc); err != nil {
		return fmt.Errorf("failed to persist uploading state: %w", err)
	}

	created, err := gw.UploadDocument(ctx, dataset.RemoteID, doc.FilePath, doc.Name)
	if err != nil {
		doc.MarkUploadFailed(err.Error())
		if serr := o.store.SaveDocument(doc); serr != nil {
			logger.Error("failed to persist upload failure",
				zap.String("document", doc.ID),
				zap.Error(serr),
			)
		}
		metrics.UploadTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to upload document %s: %w", doc.Name, err)
	}

	remoteID := ""
	if len(created) > 0 {
		if id, ok := created[0]["id"].(string); ok {
			remoteID = id
		}
	}

	doc.MarkUploaded(remoteID)
	if err := o.store.SaveDocument(doc); err != nil {
		return fmt.Errorf("failed to persist upload result: %w", err)
	}

	metrics.UploadTotal.WithLabelValues("success").Inc()
	metrics.DocumentsUploaded.Inc()
	logger.Info("document uploaded",
		zap.String("document", doc.ID),
		zap.String("remote_id", doc.RemoteID),
	)
	return nil
}

// RetryUpload rewinds a failed document and uploads it again as a fresh
// remote document. Every precondition is checked before the rewind: the
// reset clears the document's remote binding, which must not happen for a
// retry that was never going to reach the gateway.
func (o *Orchestrator) RetryUpload(ctx context.Context, gw DocumentGateway, dataset *models.Dataset, doc *models.Document) error {
	if doc == nil || dataset == nil || dataset.RemoteID == "" || doc.FilePath == "" {
		return ErrMissingUploadData
	}

	doc.ResetForRetry()
	if err := o.store.SaveDocument(doc); err != nil {
		return fmt.Errorf("failed to persist retry state: %w", err)
	}

	return o.SyncDocumentToRemote(ctx, gw, dataset, doc)
}

// DeleteDocument removes a document locally and, when both remote ids exist,
// on the remote instance too. A remote delete failure is logged and swallowed:
// the local row is removed regardless, and the remote copy becomes an orphan
// the next full sync can surface.
func (o *Orchestrator) DeleteDocument(ctx context.Context, gw DocumentGateway, dataset *models.Dataset, doc *models.Document) error {
	if doc == nil {
		return ErrMissingUploadData
	}

	if dataset != nil && dataset.RemoteID != "" && doc.RemoteID != "" {
		if err := gw.DeleteDocuments(ctx, dataset.RemoteID, []string{doc.RemoteID}); err != nil {
			logger.Warn("remote document delete failed, removing local copy anyway",
				zap.String("document", doc.ID),
				zap.String("remote_id", doc.RemoteID),
				zap.Error(err),
			)
		}
	}

	return o.store.DeleteDocument(doc.ID)
}

// StartParse asks the remote instance to chunk the document and records the
// processing state locally.
func (o *Orchestrator) StartParse(ctx context.Context, gw DocumentGateway, dataset *models.Dataset, doc *models.Document) error {
	if dataset == nil || doc == nil {
		return ErrMissingUploadData
	}
	if dataset.RemoteID == "" {
		return ErrDatasetRemoteIDMissing
	}
	if doc.RemoteID == "" {
		return fmt.Errorf("document %s has no remote copy to parse", doc.ID)
	}

	if err := gw.ParseDocuments(ctx, dataset.RemoteID, []string{doc.RemoteID}); err != nil {
		return err
	}

	doc.StartProcessing()
	return o.store.SaveDocument(doc)
}

// StopParse cancels remote chunking and settles the document back into the
// completed state.
func (o *Orchestrator) StopParse(ctx context.Context, gw DocumentGateway, dataset *models.Dataset, doc *models.Document) error {
	if dataset == nil || doc == nil {
		return ErrMissingUploadData
	}
	if dataset.RemoteID == "" {
		return ErrDatasetRemoteIDMissing
	}
	if doc.RemoteID == "" {
		return fmt.Errorf("document %s has no remote copy", doc.ID)
	}

	if err := gw.StopParseDocuments(ctx, dataset.RemoteID, []string{doc.RemoteID}); err != nil {
		return err
	}

	doc.StopProcessing()
	return o.store.SaveDocument(doc)
}

// PollParseStatus refreshes one document's parse status, progress and
// progress message from the remote instance.
func (o *Orchestrator) PollParseStatus(ctx context.Context, gw DocumentGateway, dataset *models.Dataset, doc *models.Document) (*models.Document, error) {
	if dataset == nil || doc == nil {
		return nil, ErrMissingUploadData
	}
	if dataset.RemoteID == "" {
		return nil, ErrDatasetRemoteIDMissing
	}
	if doc.RemoteID == "" {
		return nil, fmt.Errorf("document %s has no remote copy", doc.ID)
	}

	payload, err := gw.GetDocument(ctx, dataset.RemoteID, doc.RemoteID)
	if err != nil {
		return nil, err
	}

	mapper.ApplyParseState(payload, doc)
	now := time.Now()
	doc.LastSyncTime = &now

	if err := o.store.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to persist parse status: %w", err)
	}
	return doc, nil
}

// ChunkSyncResult aggregates a chunk mirroring pass.
type ChunkSyncResult struct {
	Documents int
	Chunks    int
	Errors    []error
}

// SyncDocumentChunks pulls every chunk page for one parsed document and
// upserts them locally. Individual chunk failures are collected, not fatal.
func (o *Orchestrator) SyncDocumentChunks(ctx context.Context, gw DocumentGateway, dataset *models.Dataset, doc *models.Document) (*ChunkSyncResult, error) {
	if dataset == nil || doc == nil {
		return nil, ErrMissingUploadData
	}
	if !doc.EligibleForChunkSync() {
		return nil, fmt.Errorf("document %s is not ready for chunk sync", doc.ID)
	}

	result := &ChunkSyncResult{Documents: 1}
	var synced []*models.Chunk

	for page := 1; ; page++ {
		payloads, err := gw.ListChunks(ctx, dataset.RemoteID, doc.RemoteID, page, o.pageSize)
		if err != nil {
			result.Errors = append(result.Errors, err)
			break
		}
		if len(payloads) == 0 {
			break
		}

		for _, payload := range payloads {
			ch, err := o.engine.SyncChunk(doc, payload)
			if err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Chunks++
			metrics.ChunksSynced.Inc()
			if len(ch.Embedding) > 0 {
				synced = append(synced, ch)
			}
		}

		if len(payloads) < o.pageSize {
			break
		}
	}

	if o.indexer != nil && len(synced) > 0 {
		if err := o.indexer.InsertChunks(ctx, dataset, doc, synced); err != nil {
			logger.Warn("vector index insert failed",
				zap.String("document", doc.ID),
				zap.Int("chunks", len(synced)),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// SyncAllChunks mirrors chunks for every document in the dataset that has
// finished parsing. One document's failure does not stop the batch.
func (o *Orchestrator) SyncAllChunks(ctx context.Context, gw DocumentGateway, dataset *models.Dataset) (*ChunkSyncResult, error) {
	if dataset == nil {
		return nil, ErrMissingUploadData
	}

	start := time.Now()
	docs, err := o.store.ListDocumentsForChunkSync(dataset.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parsed documents: %w", err)
	}

	total := &ChunkSyncResult{}
	for i := range docs {
		doc := &docs[i]
		res, err := o.SyncDocumentChunks(ctx, gw, dataset, doc)
		if err != nil {
			total.Errors = append(total.Errors, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		total.Documents += res.Documents
		total.Chunks += res.Chunks
		total.Errors = append(total.Errors, res.Errors...)
	}

	metrics.BatchSyncDuration.WithLabelValues("chunks").Observe(time.Since(start).Seconds())
	logger.Info("chunk sync finished",
		zap.String("dataset", dataset.ID),
		zap.Int("documents", total.Documents),
		zap.Int("chunks", total.Chunks),
		zap.Int("errors", len(total.Errors)),
	)
	return total, nil
}
