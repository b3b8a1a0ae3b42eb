package gateway

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListChatAssistants(ctx context.Context, page, pageSize int) ([]map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/chats",
		query:     pageQuery(page, pageSize),
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chat assistants: %w", err)
	}
	return payloadList(data), nil
}

func (c *Client) CreateChatAssistant(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/chats",
		body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat assistant: %w", err)
	}
	payload, _ := data.(map[string]interface{})
	return payload, nil
}

func (c *Client) UpdateChatAssistant(ctx context.Context, chatID string, body map[string]interface{}) error {
	_, err := c.do(ctx, request{
		method:    http.MethodPut,
		path:      "/chats/" + chatID,
		body:      body,
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to update chat assistant: %w", err)
	}
	return nil
}

func (c *Client) DeleteChatAssistants(ctx context.Context, chatIDs []string) error {
	_, err := c.do(ctx, request{
		method:    http.MethodDelete,
		path:      "/chats",
		body:      map[string]interface{}{"ids": chatIDs},
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete chat assistants: %w", err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, chatID, name string) (map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/chats/" + chatID + "/sessions",
		body:   map[string]interface{}{"name": name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	payload, _ := data.(map[string]interface{})
	return payload, nil
}

func (c *Client) ListSessions(ctx context.Context, chatID string, page, pageSize int) ([]map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/chats/" + chatID + "/sessions",
		query:     pageQuery(page, pageSize),
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return payloadList(data), nil
}

func (c *Client) DeleteSessions(ctx context.Context, chatID string, sessionIDs []string) error {
	_, err := c.do(ctx, request{
		method:    http.MethodDelete,
		path:      "/chats/" + chatID + "/sessions",
		body:      map[string]interface{}{"ids": sessionIDs},
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// Converse sends one question through the remote assistant's native
// completion endpoint and returns the answer payload.
func (c *Client) Converse(ctx context.Context, chatID, sessionID, question string) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"question": question,
		"stream":   false,
	}
	if sessionID != "" {
		body["session_id"] = sessionID
	}

	data, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/chats/" + chatID + "/completions",
		body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	payload, _ := data.(map[string]interface{})
	return payload, nil
}

func (c *Client) ListAgents(ctx context.Context, page, pageSize int) ([]map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/agents",
		query:     pageQuery(page, pageSize),
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return payloadList(data), nil
}
