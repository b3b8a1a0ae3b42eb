package mapper

import (
	"errors"
	"time"

	"github.com/kbmirror/backend/internal/storage/models"
)

// ErrMissingFid marks a model record without the mandatory feature id.
var ErrMissingFid = errors.New("model record missing fid")

// FidOf extracts the mandatory feature id from a model record.
func FidOf(payload map[string]interface{}) (string, error) {
	fid, ok := payload["fid"]
	if !ok {
		return "", ErrMissingFid
	}
	fidStr, ok := stringValue(fid)
	if !ok || fidStr == "" {
		return "", ErrMissingFid
	}
	return fidStr, nil
}

// MapLlmModel maps one model descriptor. The provider comes from the grouping
// key the model list was nested under, not from the record itself.
func MapLlmModel(payload map[string]interface{}, provider string, m *models.LlmModel) (*models.LlmModel, error) {
	fidStr, err := FidOf(payload)
	if err != nil {
		return nil, err
	}

	m.Fid = fidStr
	m.Provider = provider

	if v, ok := firstKey(payload, "llm_name", "name"); ok {
		if s, ok := stringValue(v); ok {
			m.Name = s
		}
	}
	if v, ok := firstKey(payload, "model_type", "type"); ok {
		if s, ok := stringValue(v); ok {
			m.ModelType = s
		}
	}

	setBool(payload, "available", &m.Available)
	setInt(payload, "max_tokens", &m.MaxTokens)
	setInt(payload, "status", &m.StatusCode)
	setBool(payload, "is_tools", &m.SupportsTools)

	if v, ok := payload["tags"]; ok {
		if tags, ok := stringSlice(v); ok {
			m.Tags = tags
		}
	}

	now := time.Now()
	m.LastSyncTime = &now

	return m, nil
}
