// Package gateway is the HTTP client for the remote knowledge-base service.
// It owns transport concerns the sync core must not care about: bounded
// retries for idempotent calls, a per-instance circuit breaker, and decoding
// of the remote response envelope. Payloads are handed to callers as generic
// maps; the mappers decide what to keep.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/metrics"
	"github.com/kbmirror/backend/pkg/circuitbreaker"
	"github.com/kbmirror/backend/pkg/logger"
	"github.com/kbmirror/backend/pkg/retry"
)

const apiPrefix = "/api/v1"

type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// APIError is a non-success response from the remote service, either at the
// HTTP layer or inside the response envelope.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api error (http %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

func NewClient(name, baseURL, apiKey string, timeoutSec, maxRetries int) *Client {
	if timeoutSec == 0 {
		timeoutSec = 60
	}
	if maxRetries == 0 {
		maxRetries = 3
	}

	cb := circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    maxRetries,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		cb:          cb,
		retryConfig: retryConfig,
	}
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	// retryable marks idempotent requests; non-idempotent ones get one shot.
	retryable bool
}

func (c *Client) do(ctx context.Context, req request) (interface{}, error) {
	var data interface{}

	call := func() error {
		var err error
		data, err = c.doOnce(ctx, req)
		return err
	}

	var err error
	if req.retryable {
		err = c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, call)
		})
	} else {
		err = c.cb.Execute(ctx, call)
	}

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.GatewayRequests.WithLabelValues(req.method+" "+req.path, result).Inc()

	return data, err
}

func (c *Client) doOnce(ctx context.Context, req request) (interface{}, error) {
	endpoint := c.baseURL + apiPrefix + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

// decodeEnvelope unwraps the remote {code, message, data} envelope. A non-2xx
// status or a non-zero envelope code is an APIError.
func decodeEnvelope(resp *http.Response) (interface{}, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if envelope.Code != 0 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Code,
			Message:    envelope.Message,
		}
	}

	if len(envelope.Data) == 0 {
		return nil, nil
	}

	var data interface{}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}

	return data, nil
}

func pageQuery(page, pageSize int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	return q
}

// payloadList coerces a decoded JSON array into mapper-ready payloads,
// dropping non-object items.
func payloadList(data interface{}) []map[string]interface{} {
	items, ok := data.([]interface{})
	if !ok {
		return nil
	}

	payloads := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if payload, ok := item.(map[string]interface{}); ok {
			payloads = append(payloads, payload)
		} else {
			logger.Debug("Skipping non-object item in remote list")
		}
	}
	return payloads
}

// nestedList extracts data[key] as a payload list for endpoints that wrap
// their results, e.g. {"docs": [...], "total": n}.
func nestedList(data interface{}, key string) []map[string]interface{} {
	m, ok := data.(map[string]interface{})
	if !ok {
		return nil
	}
	return payloadList(m[key])
}

// Health probes the instance with a minimal list request.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/datasets",
		query:     pageQuery(1, 1),
		retryable: true,
	})
	if err != nil {
		logger.Warn("Instance health probe failed", zap.Error(err))
	}
	return err
}
