package handlers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	rediscache "github.com/kbmirror/backend/internal/cache/redis"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/internal/syncer"
	"github.com/kbmirror/backend/internal/upload"
	"github.com/kbmirror/backend/internal/vector/milvus"
	"github.com/kbmirror/backend/pkg/logger"
)

type DocumentHandler struct {
	store        *sqlite.Client
	orchestrator *syncer.Orchestrator
	preparer     *upload.Preparer
	gatewayFor   GatewayFactory
	uploadDir    string

	// Optional; both degrade to nil when disabled.
	cache  *rediscache.Client
	vector *milvus.Client
}

func NewDocumentHandler(store *sqlite.Client, orchestrator *syncer.Orchestrator, preparer *upload.Preparer, gatewayFor GatewayFactory, uploadDir string, cache *rediscache.Client, vector *milvus.Client) *DocumentHandler {
	return &DocumentHandler{
		store:        store,
		orchestrator: orchestrator,
		preparer:     preparer,
		gatewayFor:   gatewayFor,
		uploadDir:    uploadDir,
		cache:        cache,
		vector:       vector,
	}
}

func documentJSON(doc *models.Document) fiber.Map {
	out := fiber.Map{
		"id":           doc.ID,
		"dataset_id":   doc.DatasetID,
		"remote_id":    doc.RemoteID,
		"name":         doc.Name,
		"filename":     doc.Filename,
		"type":         doc.Type,
		"size":         doc.Size,
		"status":       string(doc.Status),
		"progress":     doc.Progress,
		"progress_msg": doc.ProgressMsg,
		"chunk_count":  doc.ChunkCount,
	}
	if doc.LastSyncTime != nil {
		out["last_sync_time"] = doc.LastSyncTime.Unix()
	}
	return out
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	_, ds, ferr := loadDatasetChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	docs, err := h.store.ListDocuments(ds.ID)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return internalError(c, "failed to list documents")
	}

	out := make([]fiber.Map, 0, len(docs))
	for i := range docs {
		out = append(out, documentJSON(&docs[i]))
	}
	return c.JSON(fiber.Map{"documents": out})
}

func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	_, _, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}
	return c.JSON(documentJSON(doc))
}

// Upload receives a multipart file, stores it locally, and pushes it to the
// dataset's remote instance. The local row tracks the whole lifecycle; on
// upload failure it stays in sync_failed and can be retried.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	inst, ds, ferr := loadDatasetChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		logger.Error("Failed to create upload directory", zap.Error(err))
		return internalError(c, "failed to store file")
	}

	localPath := filepath.Join(h.uploadDir, uuid.New().String()+"_"+filepath.Base(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, localPath); err != nil {
		logger.Error("Failed to save uploaded file", zap.Error(err))
		return internalError(c, "failed to store file")
	}

	prepared, err := h.preparer.Prepare(localPath)
	if err != nil {
		os.Remove(localPath)
		return badRequest(c, err.Error())
	}

	doc := &models.Document{
		DatasetID: ds.ID,
		Name:      prepared.DisplayName,
		Filename:  fileHeader.Filename,
		FilePath:  prepared.Path,
		Type:      prepared.ContentType,
		Size:      prepared.Size,
		Status:    models.StatusPending,
	}
	if err := h.store.SaveDocument(doc); err != nil {
		logger.Error("Failed to create document record", zap.Error(err))
		return internalError(c, "failed to create document")
	}

	if err := h.orchestrator.SyncDocumentToRemote(c.Context(), h.gatewayFor(inst), ds, doc); err != nil {
		// The failed state is already persisted; report it with the row so the
		// client can offer a retry.
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":    err.Error(),
			"document": documentJSON(doc),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(documentJSON(doc))
}

// Retry re-uploads a document that previously failed to sync.
func (h *DocumentHandler) Retry(c *fiber.Ctx) error {
	inst, ds, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	err := h.orchestrator.RetryUpload(c.Context(), h.gatewayFor(inst), ds, doc)
	if errors.Is(err, syncer.ErrMissingUploadData) {
		return badRequest(c, "document or dataset is missing data required for re-upload")
	}
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":    err.Error(),
			"document": documentJSON(doc),
		})
	}
	return c.JSON(documentJSON(doc))
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	inst, ds, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	if err := h.orchestrator.DeleteDocument(c.Context(), h.gatewayFor(inst), ds, doc); err != nil {
		logger.Error("Failed to delete document", zap.Error(err))
		return internalError(c, "failed to delete document")
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove local file", zap.String("path", doc.FilePath), zap.Error(err))
		}
	}
	if h.vector != nil {
		if err := h.vector.DeleteByDocument(c.Context(), doc.ID); err != nil {
			logger.Warn("Failed to remove mirrored vectors", zap.String("document", doc.ID), zap.Error(err))
		}
	}
	if h.cache != nil {
		h.cache.InvalidateParseStatus(c.Context(), doc.ID)
	}

	return c.JSON(fiber.Map{"message": "document deleted"})
}

func (h *DocumentHandler) StartParse(c *fiber.Ctx) error {
	inst, ds, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	if err := h.orchestrator.StartParse(c.Context(), h.gatewayFor(inst), ds, doc); err != nil {
		logger.Error("Failed to start parsing", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to start parsing: " + err.Error(),
		})
	}
	if h.cache != nil {
		h.cache.InvalidateParseStatus(c.Context(), doc.ID)
	}
	return c.JSON(documentJSON(doc))
}

func (h *DocumentHandler) StopParse(c *fiber.Ctx) error {
	inst, ds, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	if err := h.orchestrator.StopParse(c.Context(), h.gatewayFor(inst), ds, doc); err != nil {
		logger.Error("Failed to stop parsing", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to stop parsing: " + err.Error(),
		})
	}
	if h.cache != nil {
		h.cache.InvalidateParseStatus(c.Context(), doc.ID)
	}
	return c.JSON(documentJSON(doc))
}

// Status polls the remote parse state, briefly cached to absorb UI poll
// loops.
func (h *DocumentHandler) Status(c *fiber.Ctx) error {
	inst, ds, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	if h.cache != nil {
		if cached, ok := h.cache.GetParseStatus(c.Context(), doc.ID); ok {
			return c.JSON(fiber.Map{
				"status":       cached.Status,
				"progress":     cached.Progress,
				"progress_msg": cached.ProgressMsg,
				"cached":       true,
			})
		}
	}

	updated, err := h.orchestrator.PollParseStatus(c.Context(), h.gatewayFor(inst), ds, doc)
	if err != nil {
		logger.Error("Parse status poll failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to poll parse status: " + err.Error(),
		})
	}

	if h.cache != nil {
		h.cache.SetParseStatus(c.Context(), doc.ID, rediscache.ParseStatus{
			Status:      string(updated.Status),
			Progress:    updated.Progress,
			ProgressMsg: updated.ProgressMsg,
		})
	}

	return c.JSON(fiber.Map{
		"status":       string(updated.Status),
		"progress":     updated.Progress,
		"progress_msg": updated.ProgressMsg,
	})
}

// SyncChunks pulls the parsed chunks of one document.
func (h *DocumentHandler) SyncChunks(c *fiber.Ctx) error {
	inst, ds, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	result, err := h.orchestrator.SyncDocumentChunks(c.Context(), h.gatewayFor(inst), ds, doc)
	if err != nil {
		return badRequest(c, fmt.Sprintf("chunk sync rejected: %v", err))
	}

	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		messages = append(messages, e.Error())
	}
	return c.JSON(fiber.Map{
		"chunks": result.Chunks,
		"errors": messages,
	})
}
