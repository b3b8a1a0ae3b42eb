package mapper

import (
	"time"

	"github.com/kbmirror/backend/internal/storage/models"
)

func MapConversation(payload map[string]interface{}, conv *models.Conversation) *models.Conversation {
	setString(payload, "id", &conv.RemoteID)

	if v, ok := firstKey(payload, "name", "title"); ok {
		if s, ok := stringValue(v); ok {
			conv.Title = s
		}
	}

	setString(payload, "status", &conv.Status)

	// Message history is mirrored opaquely; only its length is lifted out.
	if v, ok := payload["messages"]; ok {
		if messages, ok := v.([]interface{}); ok {
			conv.MessageCount = len(messages)
			conv.Dialog = map[string]interface{}{"messages": messages}
		}
	}
	if v, ok := payload["message_count"]; ok {
		if n, ok := intValue(v); ok {
			conv.MessageCount = n
		}
	}
	if v, ok := payload["usage"]; ok {
		if m, ok := mapValue(v); ok {
			conv.Usage = m
		}
	}

	if v, ok := firstKey(payload, "update_date", "update_time"); ok {
		if t, ok := timeValue(v); ok {
			conv.LastActivityTime = &t
			conv.RemoteUpdateTime = &t
		}
	}
	if v, ok := firstKey(payload, "create_date", "create_time"); ok {
		if t, ok := timeValue(v); ok {
			conv.RemoteCreateTime = &t
		}
	}

	now := time.Now()
	conv.LastSyncTime = &now

	return conv
}
