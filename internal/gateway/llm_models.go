package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// ListLlmModels returns the remote model catalog as a map keyed by provider
// name, each value a list of model descriptors. The provider grouping is
// preserved because the records themselves do not name their provider.
func (c *Client) ListLlmModels(ctx context.Context) (map[string][]map[string]interface{}, error) {
	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/llm/list",
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list llm models: %w", err)
	}

	grouped, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected model list shape from remote")
	}

	result := make(map[string][]map[string]interface{}, len(grouped))
	for provider, items := range grouped {
		list, ok := items.([]interface{})
		if !ok {
			continue
		}
		payloads := make([]map[string]interface{}, 0, len(list))
		for _, item := range list {
			// Non-object entries are kept as nil so the sync engine can
			// count them as malformed instead of silently shrinking the
			// batch.
			payload, _ := item.(map[string]interface{})
			payloads = append(payloads, payload)
		}
		result[provider] = payloads
	}

	return result, nil
}
