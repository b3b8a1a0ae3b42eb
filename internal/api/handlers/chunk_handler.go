package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/keywords"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/internal/syncer"
	"github.com/kbmirror/backend/pkg/logger"
)

type ChunkHandler struct {
	store      *sqlite.Client
	engine     *syncer.Engine
	extractor  *keywords.Extractor
	gatewayFor GatewayFactory
}

func NewChunkHandler(store *sqlite.Client, engine *syncer.Engine, extractor *keywords.Extractor, gatewayFor GatewayFactory) *ChunkHandler {
	return &ChunkHandler{store: store, engine: engine, extractor: extractor, gatewayFor: gatewayFor}
}

func chunkJSON(ch *models.Chunk) fiber.Map {
	return fiber.Map{
		"id":          ch.ID,
		"document_id": ch.DocumentID,
		"remote_id":   ch.RemoteID,
		"content":     ch.Content,
		"position":    ch.Position,
		"page_number": ch.PageNumber,
		"token_count": ch.TokenCount,
		"keywords":    ch.Keywords,
	}
}

// List returns a document's mirrored chunks. Chunks that arrived without
// keywords get locally suggested ones, marked as such.
func (h *ChunkHandler) List(c *fiber.Ctx) error {
	_, _, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}

	chunks, err := h.store.ListChunks(doc.ID)
	if err != nil {
		logger.Error("Failed to list chunks", zap.Error(err))
		return internalError(c, "failed to list chunks")
	}

	out := make([]fiber.Map, 0, len(chunks))
	for i := range chunks {
		ch := &chunks[i]
		entry := chunkJSON(ch)
		if len(ch.Keywords) == 0 && h.extractor != nil {
			if suggested, err := h.extractor.Extract(ch.Content); err == nil && len(suggested) > 0 {
				entry["keywords"] = suggested
				entry["keywords_suggested"] = true
			}
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"chunks": out})
}

func (h *ChunkHandler) loadChunkChain(c *fiber.Ctx) (*models.Instance, *models.Dataset, *models.Document, *models.Chunk, error) {
	ch, err := h.store.GetChunk(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, nil, nil, nil, notFound(c, "chunk")
	}
	if err != nil {
		return nil, nil, nil, nil, internalError(c, "failed to load chunk")
	}

	inst, ds, doc, ferr := loadDocumentChain(c, h.store, ch.DocumentID)
	if ferr != nil {
		return nil, nil, nil, nil, ferr
	}
	return inst, ds, doc, ch, nil
}

// Add creates a chunk on the remote document and mirrors the result. Chunks
// submitted without keywords get locally suggested ones before the push.
func (h *ChunkHandler) Add(c *fiber.Ctx) error {
	inst, ds, doc, ferr := loadDocumentChain(c, h.store, c.Params("id"))
	if ferr != nil {
		return ferr
	}
	if ds.RemoteID == "" || doc.RemoteID == "" {
		return badRequest(c, "document is not synced to the remote")
	}

	var req struct {
		Content  string   `json:"content"`
		Keywords []string `json:"keywords"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Content == "" {
		return badRequest(c, "content is required")
	}

	kw := req.Keywords
	if len(kw) == 0 && h.extractor != nil {
		if suggested, err := h.extractor.Extract(req.Content); err == nil {
			kw = suggested
		}
	}

	body := map[string]interface{}{"content": req.Content}
	if len(kw) > 0 {
		body["important_keywords"] = kw
	}

	created, err := h.gatewayFor(inst).AddChunk(c.Context(), ds.RemoteID, doc.RemoteID, body)
	if err != nil {
		logger.Error("Remote chunk creation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "remote chunk creation failed: " + err.Error(),
		})
	}

	ch, err := h.engine.SyncChunk(doc, created)
	if err != nil {
		logger.Error("Failed to mirror created chunk", zap.Error(err))
		return internalError(c, "chunk created remotely but not mirrored")
	}
	return c.Status(fiber.StatusCreated).JSON(chunkJSON(ch))
}

// Update edits a chunk remotely first, then applies the same edit locally.
func (h *ChunkHandler) Update(c *fiber.Ctx) error {
	inst, ds, doc, ch, ferr := h.loadChunkChain(c)
	if ferr != nil {
		return ferr
	}
	if ds.RemoteID == "" || doc.RemoteID == "" || ch.RemoteID == "" {
		return badRequest(c, "chunk is not synced to the remote")
	}

	var req struct {
		Content  *string   `json:"content"`
		Keywords *[]string `json:"keywords"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	body := map[string]interface{}{}
	if req.Content != nil {
		body["content"] = *req.Content
	}
	if req.Keywords != nil {
		body["important_keywords"] = *req.Keywords
	}
	if len(body) == 0 {
		return badRequest(c, "nothing to update")
	}

	if err := h.gatewayFor(inst).UpdateChunk(c.Context(), ds.RemoteID, doc.RemoteID, ch.RemoteID, body); err != nil {
		logger.Error("Remote chunk update failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "remote chunk update failed: " + err.Error(),
		})
	}

	if req.Content != nil {
		ch.Content = *req.Content
	}
	if req.Keywords != nil {
		ch.Keywords = *req.Keywords
	}
	if err := h.store.SaveChunk(ch); err != nil {
		logger.Error("Failed to save chunk", zap.Error(err))
		return internalError(c, "failed to save chunk")
	}
	return c.JSON(chunkJSON(ch))
}

// Delete removes a chunk. The remote delete is attempted when the chunk is
// bound; a remote failure never blocks the local removal.
func (h *ChunkHandler) Delete(c *fiber.Ctx) error {
	inst, ds, doc, ch, ferr := h.loadChunkChain(c)
	if ferr != nil {
		return ferr
	}

	if ds.RemoteID != "" && doc.RemoteID != "" && ch.RemoteID != "" {
		if err := h.gatewayFor(inst).DeleteChunks(c.Context(), ds.RemoteID, doc.RemoteID, []string{ch.RemoteID}); err != nil {
			logger.Warn("Remote chunk delete failed, removing local copy anyway",
				zap.String("chunk", ch.ID), zap.Error(err))
		}
	}

	if err := h.store.DeleteChunk(ch.ID); err != nil {
		logger.Error("Failed to delete chunk", zap.Error(err))
		return internalError(c, "failed to delete chunk")
	}
	return c.JSON(fiber.Map{"deleted": ch.ID})
}

// Retrieve runs a retrieval query against the remote instance across the
// datasets of that instance.
func (h *ChunkHandler) Retrieve(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	var req struct {
		Question            string   `json:"question"`
		DatasetIDs          []string `json:"dataset_ids"`
		TopK                int      `json:"top_k"`
		SimilarityThreshold float64  `json:"similarity_threshold"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Question == "" {
		return badRequest(c, "question is required")
	}

	// Local dataset ids map to the remote ids the retrieval endpoint expects.
	remoteIDs := make([]string, 0, len(req.DatasetIDs))
	for _, id := range req.DatasetIDs {
		ds, err := h.store.GetDataset(id)
		if err != nil || ds.RemoteID == "" {
			continue
		}
		remoteIDs = append(remoteIDs, ds.RemoteID)
	}
	if len(remoteIDs) == 0 {
		return badRequest(c, "no synced datasets to search")
	}

	results, err := h.gatewayFor(inst).RetrieveChunks(c.Context(), req.Question, remoteIDs, req.TopK, req.SimilarityThreshold)
	if err != nil {
		logger.Error("Retrieval failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "retrieval failed: " + err.Error(),
		})
	}
	return c.JSON(fiber.Map{"chunks": results})
}
