package gateway

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListDatasets(ctx context.Context, page, pageSize int) ([]map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/datasets",
		query:     pageQuery(page, pageSize),
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return payloadList(data), nil
}

func (c *Client) CreateDataset(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/datasets",
		body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	payload, _ := data.(map[string]interface{})
	return payload, nil
}

func (c *Client) UpdateDataset(ctx context.Context, datasetID string, body map[string]interface{}) error {
	_, err := c.do(ctx, request{
		method:    http.MethodPut,
		path:      "/datasets/" + datasetID,
		body:      body,
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	return nil
}

func (c *Client) DeleteDatasets(ctx context.Context, datasetIDs []string) error {
	_, err := c.do(ctx, request{
		method:    http.MethodDelete,
		path:      "/datasets",
		body:      map[string]interface{}{"ids": datasetIDs},
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete datasets: %w", err)
	}
	return nil
}
