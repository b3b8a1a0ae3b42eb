package mapper

import (
	"time"

	"github.com/kbmirror/backend/internal/storage/models"
)

func MapChunk(payload map[string]interface{}, ch *models.Chunk) *models.Chunk {
	setString(payload, "id", &ch.RemoteID)

	if v, ok := firstKey(payload, "content", "content_with_weight"); ok {
		if s, ok := stringValue(v); ok {
			ch.Content = s
		}
	}

	setInt(payload, "position", &ch.Position)
	setInt(payload, "page_number", &ch.PageNumber)
	setInt(payload, "span_start", &ch.SpanStart)
	setInt(payload, "span_end", &ch.SpanEnd)
	setInt(payload, "token_count", &ch.TokenCount)
	setFloat(payload, "similarity", &ch.Similarity)

	if v, ok := firstKey(payload, "embedding", "vector"); ok {
		if vec, ok := floatSlice(v); ok {
			ch.Embedding = vec
		}
	}

	if v, ok := firstKey(payload, "important_keywords", "keywords"); ok {
		if kw, ok := stringSlice(v); ok {
			ch.Keywords = kw
		}
	}

	if v, ok := payload["metadata"]; ok {
		if m, ok := mapValue(v); ok {
			ch.Metadata = m
		}
	}

	now := time.Now()
	ch.LastSyncTime = &now

	return ch
}
