package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/pkg/logger"
)

type InstanceHandler struct {
	store      *sqlite.Client
	gatewayFor GatewayFactory
}

func NewInstanceHandler(store *sqlite.Client, gatewayFor GatewayFactory) *InstanceHandler {
	return &InstanceHandler{store: store, gatewayFor: gatewayFor}
}

func instanceJSON(inst *models.Instance) fiber.Map {
	// The api key never leaves the server.
	return fiber.Map{
		"id":         inst.ID,
		"name":       inst.Name,
		"base_url":   inst.BaseURL,
		"enabled":    inst.Enabled,
		"healthy":    inst.Healthy,
		"created_at": inst.CreatedAt.Unix(),
		"updated_at": inst.UpdatedAt.Unix(),
	}
}

func (h *InstanceHandler) List(c *fiber.Ctx) error {
	instances, err := h.store.ListInstances()
	if err != nil {
		logger.Error("Failed to list instances", zap.Error(err))
		return internalError(c, "failed to list instances")
	}

	out := make([]fiber.Map, 0, len(instances))
	for i := range instances {
		out = append(out, instanceJSON(&instances[i]))
	}
	return c.JSON(fiber.Map{"instances": out})
}

func (h *InstanceHandler) Get(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}
	return c.JSON(instanceJSON(inst))
}

func (h *InstanceHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name    string `json:"name"`
		BaseURL string `json:"base_url"`
		APIKey  string `json:"api_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || req.BaseURL == "" || req.APIKey == "" {
		return badRequest(c, "name, base_url and api_key are required")
	}

	if _, err := h.store.GetInstanceByName(req.Name); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "an instance with this name already exists",
		})
	} else if !errors.Is(err, sqlite.ErrNotFound) {
		return internalError(c, "failed to check instance name")
	}

	inst := &models.Instance{
		Name:    req.Name,
		BaseURL: req.BaseURL,
		APIKey:  req.APIKey,
		Enabled: true,
	}
	if err := h.store.SaveInstance(inst); err != nil {
		logger.Error("Failed to create instance", zap.Error(err))
		return internalError(c, "failed to create instance")
	}

	return c.Status(fiber.StatusCreated).JSON(instanceJSON(inst))
}

func (h *InstanceHandler) Update(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	var req struct {
		Name    *string `json:"name"`
		BaseURL *string `json:"base_url"`
		APIKey  *string `json:"api_key"`
		Enabled *bool   `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if req.Name != nil {
		inst.Name = *req.Name
	}
	if req.BaseURL != nil {
		inst.BaseURL = *req.BaseURL
	}
	if req.APIKey != nil {
		inst.APIKey = *req.APIKey
	}
	if req.Enabled != nil {
		inst.Enabled = *req.Enabled
	}

	if err := h.store.SaveInstance(inst); err != nil {
		logger.Error("Failed to update instance", zap.Error(err))
		return internalError(c, "failed to update instance")
	}
	return c.JSON(instanceJSON(inst))
}

func (h *InstanceHandler) Delete(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	if err := h.store.DeleteInstance(inst.ID); err != nil {
		logger.Error("Failed to delete instance", zap.Error(err))
		return internalError(c, "failed to delete instance")
	}
	return c.JSON(fiber.Map{"message": "instance deleted"})
}

// CheckHealth probes the instance and persists the outcome.
func (h *InstanceHandler) CheckHealth(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	err := h.gatewayFor(inst).Health(c.Context())
	inst.Healthy = err == nil
	if serr := h.store.SaveInstance(inst); serr != nil {
		logger.Error("Failed to persist health state", zap.Error(serr))
	}

	if err != nil {
		return c.JSON(fiber.Map{"healthy": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"healthy": true})
}
