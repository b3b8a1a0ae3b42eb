package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/chat"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/pkg/logger"
)

// WebSocketHandler streams assistant answers token by token.
type WebSocketHandler struct {
	store *sqlite.Client
	chat  *chat.Client
}

func NewWebSocketHandler(store *sqlite.Client, chatClient *chat.Client) *WebSocketHandler {
	return &WebSocketHandler{store: store, chat: chatClient}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type           string `json:"type"`
			AssistantID    string `json:"assistant_id"`
			ConversationID string `json:"conversation_id"`
			Question       string `json:"question"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}
		if msg.AssistantID == "" || msg.Question == "" {
			h.sendError(c, "assistant_id and question are required")
			continue
		}

		if err := h.streamAnswer(c, msg.AssistantID, msg.ConversationID, msg.Question); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "failed to answer question")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, assistantID, conversationID, question string) error {
	ctx := context.Background()

	assistant, err := h.store.GetChatAssistant(assistantID)
	if errors.Is(err, sqlite.ErrNotFound) {
		h.sendError(c, "assistant not found")
		return nil
	}
	if err != nil {
		return err
	}

	inst, err := h.store.GetInstance(assistant.InstanceID)
	if err != nil {
		return err
	}

	var messages []openai.ChatCompletionMessage
	if conversationID != "" {
		if conv, err := h.store.GetConversation(conversationID); err == nil {
			messages = chat.HistoryMessages(conv)
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	h.sendChunk(c, "status", "thinking")

	answer, err := h.chat.Stream(ctx, inst, assistant, messages, func(delta string) error {
		return h.sendChunk(c, "chunk", delta)
	})
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":    "complete",
		"content": answer,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
