package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/chat"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/internal/syncer"
	"github.com/kbmirror/backend/pkg/logger"
)

type AssistantHandler struct {
	store        *sqlite.Client
	orchestrator *syncer.Orchestrator
	engine       *syncer.Engine
	chat         *chat.Client
	gatewayFor   GatewayFactory
}

func NewAssistantHandler(store *sqlite.Client, orchestrator *syncer.Orchestrator, engine *syncer.Engine, chatClient *chat.Client, gatewayFor GatewayFactory) *AssistantHandler {
	return &AssistantHandler{
		store:        store,
		orchestrator: orchestrator,
		engine:       engine,
		chat:         chatClient,
		gatewayFor:   gatewayFor,
	}
}

func assistantJSON(a *models.ChatAssistant) fiber.Map {
	return fiber.Map{
		"id":                 a.ID,
		"instance_id":        a.InstanceID,
		"remote_id":          a.RemoteID,
		"name":               a.Name,
		"description":        a.Description,
		"model_name":         a.ModelName,
		"temperature":        a.Temperature,
		"dataset_remote_ids": a.DatasetRemoteIDs,
		"opening_greeting":   a.OpeningGreeting,
	}
}

func conversationJSON(conv *models.Conversation) fiber.Map {
	out := fiber.Map{
		"id":            conv.ID,
		"assistant_id":  conv.AssistantID,
		"remote_id":     conv.RemoteID,
		"title":         conv.Title,
		"message_count": conv.MessageCount,
		"dialog":        conv.Dialog,
	}
	if conv.LastActivityTime != nil {
		out["last_activity_time"] = conv.LastActivityTime.Unix()
	}
	return out
}

func (h *AssistantHandler) List(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	assistants, err := h.store.ListChatAssistants(inst.ID)
	if err != nil {
		logger.Error("Failed to list assistants", zap.Error(err))
		return internalError(c, "failed to list assistants")
	}

	out := make([]fiber.Map, 0, len(assistants))
	for i := range assistants {
		out = append(out, assistantJSON(&assistants[i]))
	}
	return c.JSON(fiber.Map{"assistants": out})
}

// SyncAll mirrors the instance's assistants and their sessions.
func (h *AssistantHandler) SyncAll(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	result, err := h.orchestrator.MirrorChatAssistants(c.Context(), h.gatewayFor(inst), inst)
	if err != nil {
		logger.Error("Assistant sync failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "assistant sync failed: " + err.Error(),
		})
	}
	return c.JSON(batchResultJSON(result.Total, result.Synced, result.Errors))
}

// Create provisions an assistant on the remote and mirrors it. Dataset
// references arrive as local ids and are translated to their remote ids.
func (h *AssistantHandler) Create(c *fiber.Ctx) error {
	inst, ferr := loadInstance(c, h.store)
	if ferr != nil {
		return ferr
	}

	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		ModelName   string   `json:"model_name"`
		DatasetIDs  []string `json:"dataset_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	remoteDatasetIDs := make([]string, 0, len(req.DatasetIDs))
	for _, id := range req.DatasetIDs {
		ds, err := h.store.GetDataset(id)
		if err != nil || ds.RemoteID == "" {
			return badRequest(c, "dataset " + id + " is not synced to the remote")
		}
		remoteDatasetIDs = append(remoteDatasetIDs, ds.RemoteID)
	}

	body := map[string]interface{}{
		"name":        req.Name,
		"dataset_ids": remoteDatasetIDs,
	}
	if req.Description != "" {
		body["description"] = req.Description
	}
	if req.ModelName != "" {
		body["llm"] = map[string]interface{}{"model_name": req.ModelName}
	}

	payload, err := h.gatewayFor(inst).CreateChatAssistant(c.Context(), body)
	if err != nil {
		logger.Error("Remote assistant creation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "remote assistant creation failed: " + err.Error(),
		})
	}

	a, err := h.engine.SyncChatAssistant(inst, payload)
	if err != nil {
		logger.Error("Failed to mirror created assistant", zap.Error(err))
		return internalError(c, "assistant created remotely but not mirrored")
	}
	return c.Status(fiber.StatusCreated).JSON(assistantJSON(a))
}

// Update edits the assistant remotely first, then applies the same fields
// locally.
func (h *AssistantHandler) Update(c *fiber.Ctx) error {
	inst, a, ferr := h.loadAssistant(c)
	if ferr != nil {
		return ferr
	}
	if a.RemoteID == "" {
		return badRequest(c, "assistant has no remote copy")
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		ModelName   *string `json:"model_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	body := map[string]interface{}{}
	if req.Name != nil {
		body["name"] = *req.Name
	}
	if req.Description != nil {
		body["description"] = *req.Description
	}
	if req.ModelName != nil {
		body["llm"] = map[string]interface{}{"model_name": *req.ModelName}
	}
	if len(body) == 0 {
		return badRequest(c, "nothing to update")
	}

	if err := h.gatewayFor(inst).UpdateChatAssistant(c.Context(), a.RemoteID, body); err != nil {
		logger.Error("Remote assistant update failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "remote assistant update failed: " + err.Error(),
		})
	}

	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.ModelName != nil {
		a.ModelName = *req.ModelName
	}
	if err := h.store.SaveChatAssistant(a); err != nil {
		logger.Error("Failed to save assistant", zap.Error(err))
		return internalError(c, "failed to save assistant")
	}
	return c.JSON(assistantJSON(a))
}

// Delete removes the assistant. A remote delete failure never blocks the
// local removal.
func (h *AssistantHandler) Delete(c *fiber.Ctx) error {
	inst, a, ferr := h.loadAssistant(c)
	if ferr != nil {
		return ferr
	}

	if a.RemoteID != "" {
		if err := h.gatewayFor(inst).DeleteChatAssistants(c.Context(), []string{a.RemoteID}); err != nil {
			logger.Warn("Remote assistant delete failed, removing local copy anyway",
				zap.String("assistant", a.ID), zap.Error(err))
		}
	}

	if err := h.store.DeleteChatAssistant(a.ID); err != nil {
		logger.Error("Failed to delete assistant", zap.Error(err))
		return internalError(c, "failed to delete assistant")
	}
	return c.JSON(fiber.Map{"deleted": a.ID})
}

func (h *AssistantHandler) loadAssistant(c *fiber.Ctx) (*models.Instance, *models.ChatAssistant, error) {
	a, err := h.store.GetChatAssistant(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, nil, notFound(c, "assistant")
	}
	if err != nil {
		return nil, nil, internalError(c, "failed to load assistant")
	}

	inst, err := h.store.GetInstance(a.InstanceID)
	if err != nil {
		return nil, nil, internalError(c, "failed to load instance")
	}
	return inst, a, nil
}

func (h *AssistantHandler) ListConversations(c *fiber.Ctx) error {
	_, a, ferr := h.loadAssistant(c)
	if ferr != nil {
		return ferr
	}

	conversations, err := h.store.ListConversations(a.InstanceID)
	if err != nil {
		logger.Error("Failed to list conversations", zap.Error(err))
		return internalError(c, "failed to list conversations")
	}

	out := make([]fiber.Map, 0, len(conversations))
	for i := range conversations {
		if conversations[i].AssistantID != a.ID {
			continue
		}
		out = append(out, conversationJSON(&conversations[i]))
	}
	return c.JSON(fiber.Map{"conversations": out})
}

// CreateConversation opens a remote session and mirrors it.
func (h *AssistantHandler) CreateConversation(c *fiber.Ctx) error {
	inst, a, ferr := h.loadAssistant(c)
	if ferr != nil {
		return ferr
	}
	if a.RemoteID == "" {
		return badRequest(c, "assistant has no remote copy")
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	payload, err := h.gatewayFor(inst).CreateSession(c.Context(), a.RemoteID, req.Name)
	if err != nil {
		logger.Error("Remote session creation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "remote session creation failed: " + err.Error(),
		})
	}

	conv, err := h.engine.SyncConversation(inst, a.ID, payload)
	if err != nil {
		logger.Error("Failed to mirror created session", zap.Error(err))
		return internalError(c, "session created remotely but could not be mirrored")
	}
	return c.Status(fiber.StatusCreated).JSON(conversationJSON(conv))
}

// SendMessage asks the remote assistant one question inside a session and
// refreshes the mirrored conversation with the answer.
func (h *AssistantHandler) SendMessage(c *fiber.Ctx) error {
	inst, a, ferr := h.loadAssistant(c)
	if ferr != nil {
		return ferr
	}
	if a.RemoteID == "" {
		return badRequest(c, "assistant has no remote copy")
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		Question       string `json:"question"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Question == "" {
		return badRequest(c, "question is required")
	}

	sessionRemoteID := ""
	var conv *models.Conversation
	if req.ConversationID != "" {
		var err error
		conv, err = h.store.GetConversation(req.ConversationID)
		if errors.Is(err, sqlite.ErrNotFound) {
			return notFound(c, "conversation")
		}
		if err != nil {
			return internalError(c, "failed to load conversation")
		}
		sessionRemoteID = conv.RemoteID
	}

	answer, err := h.gatewayFor(inst).Converse(c.Context(), a.RemoteID, sessionRemoteID, req.Question)
	if err != nil {
		logger.Error("Completion failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "completion failed: " + err.Error(),
		})
	}

	if conv != nil {
		// Track local activity; the authoritative history comes from the next
		// session sync.
		conv.MessageCount += 2
		if err := h.store.SaveConversation(conv); err != nil {
			logger.Warn("Failed to bump conversation activity", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"answer": answer})
}

// Complete answers one question through the assistant's OpenAI-compatible
// endpoint, optionally continuing a mirrored conversation.
func (h *AssistantHandler) Complete(c *fiber.Ctx) error {
	inst, a, ferr := h.loadAssistant(c)
	if ferr != nil {
		return ferr
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		Question       string `json:"question"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Question == "" {
		return badRequest(c, "question is required")
	}

	var messages []openai.ChatCompletionMessage
	if req.ConversationID != "" {
		if conv, err := h.store.GetConversation(req.ConversationID); err == nil {
			messages = chat.HistoryMessages(conv)
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Question,
	})

	answer, err := h.chat.Complete(c.Context(), inst, a, messages)
	if err != nil {
		logger.Error("OpenAI-compatible completion failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "completion failed: " + err.Error(),
		})
	}
	return c.JSON(fiber.Map{"answer": answer})
}
