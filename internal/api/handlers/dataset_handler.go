package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/internal/syncer"
	"github.com/kbmirror/backend/pkg/logger"
)

type DatasetHandler struct {
	store        *sqlite.Client
	orchestrator *syncer.Orchestrator
	engine       *syncer.Engine
	gatewayFor   GatewayFactory
}

func NewDatasetHandler(store *sqlite.Client, orchestrator *syncer.Orchestrator, engine *syncer.Engine, gatewayFor GatewayFactory) *DatasetHandler {
	return &DatasetHandler{
		store:        store,
		orchestrator: orchestrator,
		engine:       engine,
		gatewayFor:   gatewayFor,
	}
}

func datasetJSON(ds *models.Dataset) fiber.Map {
	out := fiber.Map{
		"id":              ds.ID,
		"instance_id":     ds.InstanceID,
		"remote_id":       ds.RemoteID,
		"name":            ds.Name,
		"description":     ds.Description,
		"chunk_method":    ds.ChunkMethod,
		"embedding_model": ds.EmbeddingModel,
		"language":        ds.Language,
		"document_count":  ds.DocumentCount,
		"chunk_count":     ds.ChunkCount,
		"parser_config":   ds.ParserConfig,
	}
	if ds.LastSyncTime != nil {
		out["last_sync_time"] = ds.LastSyncTime.Unix()
	}
	return out
}

func (h *DatasetHandler) List(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	datasets, err := h.store.ListDatasets(inst.ID)
	if err != nil {
		logger.Error("Failed to list datasets", zap.Error(err))
		return internalError(c, "failed to list datasets")
	}

	out := make([]fiber.Map, 0, len(datasets))
	for i := range datasets {
		out = append(out, datasetJSON(&datasets[i]))
	}
	return c.JSON(fiber.Map{"datasets": out})
}

func (h *DatasetHandler) Get(c *fiber.Ctx) error {
	_, ds, ferr := loadDatasetChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}
	return c.JSON(datasetJSON(ds))
}

// Create provisions the dataset on the remote instance first, then mirrors
// the created record locally.
func (h *DatasetHandler) Create(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		ChunkMethod string `json:"chunk_method"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	body := map[string]interface{}{"name": req.Name}
	if req.Description != "" {
		body["description"] = req.Description
	}
	if req.ChunkMethod != "" {
		body["chunk_method"] = req.ChunkMethod
	}

	payload, err := h.gatewayFor(inst).CreateDataset(c.Context(), body)
	if err != nil {
		logger.Error("Remote dataset creation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "remote dataset creation failed: " + err.Error(),
		})
	}

	ds, err := h.engine.SyncDataset(inst, payload)
	if err != nil {
		logger.Error("Failed to mirror created dataset", zap.Error(err))
		return internalError(c, "dataset created remotely but could not be mirrored")
	}
	return c.Status(fiber.StatusCreated).JSON(datasetJSON(ds))
}

// Delete removes the dataset remotely when it has a remote copy, then
// locally. A remote failure is logged and swallowed.
func (h *DatasetHandler) Delete(c *fiber.Ctx) error {
	inst, ds, ferr := loadDatasetChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	if ds.RemoteID != "" {
		if err := h.gatewayFor(inst).DeleteDatasets(c.Context(), []string{ds.RemoteID}); err != nil {
			logger.Warn("Remote dataset delete failed, removing local copy anyway",
				zap.String("dataset", ds.ID),
				zap.Error(err),
			)
		}
	}

	if err := h.store.DeleteDataset(ds.ID); err != nil {
		logger.Error("Failed to delete dataset", zap.Error(err))
		return internalError(c, "failed to delete dataset")
	}
	return c.JSON(fiber.Map{"message": "dataset deleted"})
}

// SyncAll mirrors every dataset of the instance.
func (h *DatasetHandler) SyncAll(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	result, err := h.orchestrator.MirrorDatasets(c.Context(), h.gatewayFor(inst), inst)
	if err != nil {
		logger.Error("Dataset sync failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "dataset sync failed: " + err.Error(),
		})
	}
	return c.JSON(batchResultJSON(result.Total, result.Synced, result.Errors))
}

// SyncDocuments mirrors the remote document list of one dataset.
func (h *DatasetHandler) SyncDocuments(c *fiber.Ctx) error {
	inst, ds, ferr := loadDatasetChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	result, err := h.orchestrator.MirrorDocuments(c.Context(), h.gatewayFor(inst), ds)
	if err != nil {
		logger.Error("Document sync failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "document sync failed: " + err.Error(),
		})
	}
	return c.JSON(batchResultJSON(result.Total, result.Synced, result.Errors))
}

// SyncChunks mirrors chunks for every parsed document in the dataset.
func (h *DatasetHandler) SyncChunks(c *fiber.Ctx) error {
	inst, ds, ferr := loadDatasetChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	result, err := h.orchestrator.SyncAllChunks(c.Context(), h.gatewayFor(inst), ds)
	if err != nil {
		logger.Error("Chunk sync failed", zap.Error(err))
		return internalError(c, "chunk sync failed")
	}

	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		messages = append(messages, e.Error())
	}
	return c.JSON(fiber.Map{
		"documents": result.Documents,
		"chunks":    result.Chunks,
		"errors":    messages,
	})
}
