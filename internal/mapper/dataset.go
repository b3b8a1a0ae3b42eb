package mapper

import (
	"time"

	"github.com/kbmirror/backend/internal/storage/models"
)

func MapDataset(payload map[string]interface{}, ds *models.Dataset) *models.Dataset {
	setString(payload, "id", &ds.RemoteID)
	setString(payload, "name", &ds.Name)
	setString(payload, "description", &ds.Description)
	setString(payload, "chunk_method", &ds.ChunkMethod)
	setString(payload, "embedding_model", &ds.EmbeddingModel)
	setString(payload, "language", &ds.Language)
	setInt(payload, "document_count", &ds.DocumentCount)
	setInt(payload, "chunk_count", &ds.ChunkCount)

	if v, ok := payload["parser_config"]; ok {
		if m, ok := mapValue(v); ok {
			ds.ParserConfig = m
		}
	}

	if v, ok := firstKey(payload, "create_date", "create_time"); ok {
		if t, ok := timeValue(v); ok {
			ds.RemoteCreateTime = &t
		}
	}
	if v, ok := firstKey(payload, "update_date", "update_time"); ok {
		if t, ok := timeValue(v); ok {
			ds.RemoteUpdateTime = &t
		}
	}

	now := time.Now()
	ds.LastSyncTime = &now

	return ds
}
