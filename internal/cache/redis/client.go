// Package redis caches remote responses that are expensive or rate-limited to
// re-fetch: the per-instance model catalog and per-document parse status.
// Every method degrades to a miss when the cache is down; callers always have
// the remote as fallback.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/metrics"
	"github.com/kbmirror/backend/pkg/logger"
	"github.com/kbmirror/backend/pkg/utils"
)

type Config struct {
	Host           string
	Port           int
	Password       string
	DB             int
	ModelListTTL   time.Duration
	ParseStatusTTL time.Duration
}

type Client struct {
	rdb            *redis.Client
	modelListTTL   time.Duration
	parseStatusTTL time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if cfg.ModelListTTL == 0 {
		cfg.ModelListTTL = 5 * time.Minute
	}
	if cfg.ParseStatusTTL == 0 {
		cfg.ParseStatusTTL = 5 * time.Second
	}

	logger.Info("Redis cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)))

	return &Client{
		rdb:            rdb,
		modelListTTL:   cfg.ModelListTTL,
		parseStatusTTL: cfg.ParseStatusTTL,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Keys hash the entity ID so key length stays fixed no matter where the ID
// came from.
func modelListKey(instanceID string) string {
	return "kbmirror:models:" + utils.HashString(instanceID)
}

func parseStatusKey(documentID string) string {
	return "kbmirror:parse:" + utils.HashString(documentID)
}

// SetModelList caches an instance's raw model catalog.
func (c *Client) SetModelList(ctx context.Context, instanceID string, grouped map[string][]map[string]interface{}) {
	data, err := json.Marshal(grouped)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, modelListKey(instanceID), data, c.modelListTTL).Err(); err != nil {
		logger.Warn("Failed to cache model list", zap.String("instance", instanceID), zap.Error(err))
	}
}

// GetModelList returns the cached catalog, or (nil, false) on miss or error.
func (c *Client) GetModelList(ctx context.Context, instanceID string) (map[string][]map[string]interface{}, bool) {
	data, err := c.rdb.Get(ctx, modelListKey(instanceID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Model list cache read failed", zap.Error(err))
		}
		metrics.CacheMisses.WithLabelValues("model_list").Inc()
		return nil, false
	}

	var grouped map[string][]map[string]interface{}
	if err := json.Unmarshal(data, &grouped); err != nil {
		metrics.CacheMisses.WithLabelValues("model_list").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("model_list").Inc()
	return grouped, true
}

// ParseStatus is the cached slice of a parse-status poll.
type ParseStatus struct {
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	ProgressMsg string  `json:"progress_msg"`
}

// SetParseStatus caches one document's parse state briefly, absorbing rapid
// poll loops from the UI.
func (c *Client) SetParseStatus(ctx context.Context, documentID string, status ParseStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, parseStatusKey(documentID), data, c.parseStatusTTL).Err(); err != nil {
		logger.Warn("Failed to cache parse status", zap.String("document", documentID), zap.Error(err))
	}
}

func (c *Client) GetParseStatus(ctx context.Context, documentID string) (*ParseStatus, bool) {
	data, err := c.rdb.Get(ctx, parseStatusKey(documentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Parse status cache read failed", zap.Error(err))
		}
		metrics.CacheMisses.WithLabelValues("parse_status").Inc()
		return nil, false
	}

	var status ParseStatus
	if err := json.Unmarshal(data, &status); err != nil {
		metrics.CacheMisses.WithLabelValues("parse_status").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("parse_status").Inc()
	return &status, true
}

// InvalidateInstance drops everything cached for an instance.
func (c *Client) InvalidateInstance(ctx context.Context, instanceID string) {
	if err := c.rdb.Del(ctx, modelListKey(instanceID)).Err(); err != nil {
		logger.Warn("Failed to invalidate instance cache", zap.String("instance", instanceID), zap.Error(err))
	}
}

// InvalidateParseStatus drops one document's cached parse state, used after
// a transition the caller initiated locally.
func (c *Client) InvalidateParseStatus(ctx context.Context, documentID string) {
	if err := c.rdb.Del(ctx, parseStatusKey(documentID)).Err(); err != nil {
		logger.Warn("Failed to invalidate parse status cache", zap.String("document", documentID), zap.Error(err))
	}
}
