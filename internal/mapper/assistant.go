package mapper

import (
	"time"

	"github.com/kbmirror/backend/internal/storage/models"
)

// MapChatAssistant flattens the remote assistant record, whose generation and
// retrieval parameters arrive in nested "llm" and "prompt" objects.
func MapChatAssistant(payload map[string]interface{}, a *models.ChatAssistant) *models.ChatAssistant {
	setString(payload, "id", &a.RemoteID)
	setString(payload, "name", &a.Name)
	setString(payload, "description", &a.Description)
	setString(payload, "avatar", &a.Avatar)
	setString(payload, "language", &a.Language)

	if v, ok := payload["dataset_ids"]; ok {
		if ids, ok := stringSlice(v); ok {
			a.DatasetRemoteIDs = ids
		}
	}

	if v, ok := payload["llm"]; ok {
		if llm, ok := mapValue(v); ok {
			setString(llm, "model_name", &a.ModelName)
			setFloat(llm, "temperature", &a.Temperature)
			setFloat(llm, "top_p", &a.TopP)
			setFloat(llm, "presence_penalty", &a.PresencePenalty)
			setFloat(llm, "frequency_penalty", &a.FrequencyPenalty)
			setInt(llm, "max_tokens", &a.MaxTokens)
		}
	}

	if v, ok := payload["prompt"]; ok {
		if prompt, ok := mapValue(v); ok {
			setFloat(prompt, "similarity_threshold", &a.SimilarityThreshold)
			setFloat(prompt, "keywords_similarity_weight", &a.KeywordWeight)
			setInt(prompt, "top_n", &a.TopN)
			setInt(prompt, "top_k", &a.TopK)
			setString(prompt, "prompt", &a.Prompt)
			setString(prompt, "empty_response", &a.EmptyResponse)
			setString(prompt, "opener", &a.OpeningGreeting)
		}
	}

	if v, ok := firstKey(payload, "create_date", "create_time"); ok {
		if t, ok := timeValue(v); ok {
			a.RemoteCreateTime = &t
		}
	}
	if v, ok := firstKey(payload, "update_date", "update_time"); ok {
		if t, ok := timeValue(v); ok {
			a.RemoteUpdateTime = &t
		}
	}

	now := time.Now()
	a.LastSyncTime = &now

	return a
}
