package mapper

import (
	"time"

	"github.com/kbmirror/backend/internal/storage/models"
)

func MapDocument(payload map[string]interface{}, doc *models.Document) *models.Document {
	setString(payload, "id", &doc.RemoteID)
	setString(payload, "name", &doc.Name)
	setString(payload, "location", &doc.Filename)
	setString(payload, "type", &doc.Type)
	setString(payload, "language", &doc.Language)
	setInt64(payload, "size", &doc.Size)

	if v, ok := firstKey(payload, "chunk_count", "chunk_num"); ok {
		if n, ok := intValue(v); ok {
			doc.ChunkCount = n
		}
	}

	ApplyParseState(payload, doc)

	if v, ok := firstKey(payload, "create_date", "create_time"); ok {
		if t, ok := timeValue(v); ok {
			doc.RemoteCreateTime = &t
		}
	}
	if v, ok := firstKey(payload, "update_date", "update_time"); ok {
		if t, ok := timeValue(v); ok {
			doc.RemoteUpdateTime = &t
		}
	}

	now := time.Now()
	doc.LastSyncTime = &now

	return doc
}

// ApplyParseState sets status, progress and progress message together from
// one payload, so a poll result is never half-applied. Used both by the full
// document mapper and by the parse-status poll, whose responses carry only
// these three fields.
func ApplyParseState(payload map[string]interface{}, doc *models.Document) {
	if v, ok := firstKey(payload, "run", "status"); ok {
		doc.Status = NormalizeStatus(v)
	}
	if v, ok := payload["progress"]; ok {
		doc.Progress = NormalizeProgress(v, doc.Progress)
	}
	setString(payload, "progress_msg", &doc.ProgressMsg)
}
