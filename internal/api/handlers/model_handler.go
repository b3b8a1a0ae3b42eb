package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	rediscache "github.com/kbmirror/backend/internal/cache/redis"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/internal/syncer"
	"github.com/kbmirror/backend/pkg/logger"
)

type ModelHandler struct {
	store      *sqlite.Client
	engine     *syncer.Engine
	gatewayFor GatewayFactory
	cache      *rediscache.Client
}

func NewModelHandler(store *sqlite.Client, engine *syncer.Engine, gatewayFor GatewayFactory, cache *rediscache.Client) *ModelHandler {
	return &ModelHandler{store: store, engine: engine, gatewayFor: gatewayFor, cache: cache}
}

func modelJSON(m *models.LlmModel) fiber.Map {
	return fiber.Map{
		"id":             m.ID,
		"fid":            m.Fid,
		"name":           m.Name,
		"provider":       m.Provider,
		"model_type":     m.ModelType,
		"available":      m.Available,
		"max_tokens":     m.MaxTokens,
		"supports_tools": m.SupportsTools,
		"tags":           m.Tags,
	}
}

func (h *ModelHandler) List(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	list, err := h.store.ListLlmModels(inst.ID)
	if err != nil {
		logger.Error("Failed to list models", zap.Error(err))
		return internalError(c, "failed to list models")
	}

	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, modelJSON(&list[i]))
	}
	return c.JSON(fiber.Map{"models": out})
}

// Sync refreshes the instance's model catalog. The raw catalog is cached so
// repeated syncs within the TTL do not hit the remote.
func (h *ModelHandler) Sync(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	var grouped map[string][]map[string]interface{}
	fromCache := false
	if h.cache != nil {
		grouped, fromCache = h.cache.GetModelList(c.Context(), inst.ID)
	}

	if !fromCache {
		var err error
		grouped, err = h.gatewayFor(inst).ListLlmModels(c.Context())
		if err != nil {
			logger.Error("Model catalog fetch failed", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "model catalog fetch failed: " + err.Error(),
			})
		}
		if h.cache != nil {
			h.cache.SetModelList(c.Context(), inst.ID, grouped)
		}
	}

	result := h.engine.SyncLlmModels(inst, grouped)
	out := batchResultJSON(result.Total, result.Synced, result.Errors)
	out["cached"] = fromCache
	return c.JSON(out)
}
