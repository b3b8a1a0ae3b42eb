package gateway

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListChunks(ctx context.Context, datasetID, documentID string, page, pageSize int) ([]map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/datasets/" + datasetID + "/documents/" + documentID + "/chunks",
		query:     pageQuery(page, pageSize),
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return nestedList(data, "chunks"), nil
}

func (c *Client) AddChunk(ctx context.Context, datasetID, documentID string, body map[string]interface{}) (map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/datasets/" + datasetID + "/documents/" + documentID + "/chunks",
		body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add chunk: %w", err)
	}

	if m, ok := data.(map[string]interface{}); ok {
		if chunk, ok := m["chunk"].(map[string]interface{}); ok {
			return chunk, nil
		}
		return m, nil
	}
	return nil, nil
}

func (c *Client) UpdateChunk(ctx context.Context, datasetID, documentID, chunkID string, body map[string]interface{}) error {
	_, err := c.do(ctx, request{
		method:    http.MethodPut,
		path:      "/datasets/" + datasetID + "/documents/" + documentID + "/chunks/" + chunkID,
		body:      body,
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to update chunk: %w", err)
	}
	return nil
}

func (c *Client) DeleteChunks(ctx context.Context, datasetID, documentID string, chunkIDs []string) error {
	_, err := c.do(ctx, request{
		method:    http.MethodDelete,
		path:      "/datasets/" + datasetID + "/documents/" + documentID + "/chunks",
		body:      map[string]interface{}{"chunk_ids": chunkIDs},
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// RetrieveChunks runs a retrieval query across the given remote datasets.
func (c *Client) RetrieveChunks(ctx context.Context, question string, datasetIDs []string, topK int, similarityThreshold float64) ([]map[string]interface{}, error) {
	body := map[string]interface{}{
		"question":    question,
		"dataset_ids": datasetIDs,
	}
	if topK > 0 {
		body["top_k"] = topK
	}
	if similarityThreshold > 0 {
		body["similarity_threshold"] = similarityThreshold
	}

	data, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/retrieval",
		body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	return nestedList(data, "chunks"), nil
}
