// Package chat talks to a remote assistant through its OpenAI-compatible
// completion endpoint, for both one-shot answers and token streaming.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kbmirror/backend/internal/storage/models"
)

type Options struct {
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type Client struct {
	opts Options
}

func NewClient(opts Options) *Client {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2048
	}
	if opts.TimeoutSec == 0 {
		opts.TimeoutSec = 120
	}
	return &Client{opts: opts}
}

// assistantAPI builds an OpenAI-compatible client bound to one remote
// assistant. The remote service exposes each assistant as its own completion
// endpoint under /api/v1/chats_openai/{assistant_id}.
func (c *Client) assistantAPI(inst *models.Instance, assistant *models.ChatAssistant) (*openai.Client, error) {
	if assistant.RemoteID == "" {
		return nil, errors.New("assistant has no remote copy")
	}

	cfg := openai.DefaultConfig(inst.APIKey)
	cfg.BaseURL = inst.BaseURL + "/api/v1/chats_openai/" + assistant.RemoteID
	cfg.HTTPClient = &http.Client{Timeout: time.Duration(c.opts.TimeoutSec) * time.Second}
	return openai.NewClientWithConfig(cfg), nil
}

func (c *Client) buildRequest(assistant *models.ChatAssistant, messages []openai.ChatCompletionMessage, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       "model",
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		Stream:      stream,
	}
	if assistant.ModelName != "" {
		req.Model = assistant.ModelName
	}
	if assistant.Temperature > 0 {
		req.Temperature = float32(assistant.Temperature)
	}
	if assistant.MaxTokens > 0 {
		req.MaxTokens = assistant.MaxTokens
	}
	return req
}

// Complete sends the conversation so far and returns the assistant's answer.
func (c *Client) Complete(ctx context.Context, inst *models.Instance, assistant *models.ChatAssistant, messages []openai.ChatCompletionMessage) (string, error) {
	api, err := c.assistantAPI(inst, assistant)
	if err != nil {
		return "", err
	}

	resp, err := api.CreateChatCompletion(ctx, c.buildRequest(assistant, messages, false))
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("remote assistant returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends the conversation and invokes onDelta for every token fragment.
// It returns the fully assembled answer.
func (c *Client) Stream(ctx context.Context, inst *models.Instance, assistant *models.ChatAssistant, messages []openai.ChatCompletionMessage, onDelta func(string) error) (string, error) {
	api, err := c.assistantAPI(inst, assistant)
	if err != nil {
		return "", err
	}

	stream, err := api.CreateChatCompletionStream(ctx, c.buildRequest(assistant, messages, true))
	if err != nil {
		return "", fmt.Errorf("stream request failed: %w", err)
	}
	defer stream.Close()

	var answer string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return answer, fmt.Errorf("stream read failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		answer += delta
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return answer, err
			}
		}
	}
	return answer, nil
}

// HistoryMessages converts a mirrored conversation dialog into completion
// messages, dropping records without a role or content.
func HistoryMessages(conv *models.Conversation) []openai.ChatCompletionMessage {
	if conv == nil || conv.Dialog == nil {
		return nil
	}
	raw, ok := conv.Dialog["messages"].([]interface{})
	if !ok {
		return nil
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		if role == "" || content == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: content})
	}
	return messages
}
