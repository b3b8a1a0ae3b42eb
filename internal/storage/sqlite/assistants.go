package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbmirror/backend/internal/storage/models"
)

const assistantColumns = `id, instance_id, remote_id, name, description, avatar, language, model_name,
	temperature, top_p, presence_penalty, frequency_penalty, max_tokens,
	similarity_threshold, keyword_weight, top_n, top_k, prompt, empty_response, opening_greeting,
	dataset_remote_ids, last_sync_time, remote_create_time, remote_update_time, created_at, updated_at`

func (c *Client) SaveChatAssistant(a *models.ChatAssistant) error {
	now := time.Now()
	a.UpdatedAt = now

	if a.ID == "" {
		a.ID = uuid.New().String()
		a.CreatedAt = now

		query := `
			INSERT INTO chat_assistants (id, instance_id, remote_id, name, description, avatar, language, model_name,
				temperature, top_p, presence_penalty, frequency_penalty, max_tokens,
				similarity_threshold, keyword_weight, top_n, top_k, prompt, empty_response, opening_greeting,
				dataset_remote_ids, last_sync_time, remote_create_time, remote_update_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := c.db.Exec(query,
			a.ID, a.InstanceID, nullString(a.RemoteID), a.Name, a.Description, a.Avatar, a.Language, a.ModelName,
			a.Temperature, a.TopP, a.PresencePenalty, a.FrequencyPenalty, a.MaxTokens,
			a.SimilarityThreshold, a.KeywordWeight, a.TopN, a.TopK, a.Prompt, a.EmptyResponse, a.OpeningGreeting,
			toJSON(a.DatasetRemoteIDs), nullUnix(a.LastSyncTime), nullUnix(a.RemoteCreateTime), nullUnix(a.RemoteUpdateTime),
			a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chat assistant: %w", err)
		}

		return nil
	}

	query := `
		UPDATE chat_assistants SET remote_id = ?, name = ?, description = ?, avatar = ?, language = ?, model_name = ?,
			temperature = ?, top_p = ?, presence_penalty = ?, frequency_penalty = ?, max_tokens = ?,
			similarity_threshold = ?, keyword_weight = ?, top_n = ?, top_k = ?, prompt = ?, empty_response = ?,
			opening_greeting = ?, dataset_remote_ids = ?, last_sync_time = ?, remote_create_time = ?,
			remote_update_time = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query,
		nullString(a.RemoteID), a.Name, a.Description, a.Avatar, a.Language, a.ModelName,
		a.Temperature, a.TopP, a.PresencePenalty, a.FrequencyPenalty, a.MaxTokens,
		a.SimilarityThreshold, a.KeywordWeight, a.TopN, a.TopK, a.Prompt, a.EmptyResponse,
		a.OpeningGreeting, toJSON(a.DatasetRemoteIDs), nullUnix(a.LastSyncTime), nullUnix(a.RemoteCreateTime),
		nullUnix(a.RemoteUpdateTime), a.UpdatedAt.Unix(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat assistant: %w", err)
	}

	return nil
}

func (c *Client) GetChatAssistant(id string) (*models.ChatAssistant, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_assistants WHERE id = ?`, assistantColumns)
	a, err := scanAssistantRow(c.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (c *Client) FindChatAssistantByRemoteID(instanceID, remoteID string) (*models.ChatAssistant, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_assistants WHERE instance_id = ? AND remote_id = ?`, assistantColumns)
	a, err := scanAssistantRow(c.db.QueryRow(query, instanceID, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (c *Client) ListChatAssistants(instanceID string) ([]models.ChatAssistant, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_assistants WHERE instance_id = ? ORDER BY name`, assistantColumns)

	rows, err := c.db.Query(query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat assistants: %w", err)
	}
	defer rows.Close()

	var assistants []models.ChatAssistant
	for rows.Next() {
		a, err := scanAssistantRow(rows)
		if err != nil {
			return nil, err
		}
		assistants = append(assistants, *a)
	}

	return assistants, rows.Err()
}

func (c *Client) DeleteChatAssistant(id string) error {
	_, err := c.db.Exec(`DELETE FROM chat_assistants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat assistant: %w", err)
	}
	return nil
}

func scanAssistantRow(row rowScanner) (*models.ChatAssistant, error) {
	var a models.ChatAssistant
	var remoteID, description, avatar, language, modelName sql.NullString
	var prompt, emptyResponse, openingGreeting, datasetIDs sql.NullString
	var lastSync, remoteCreate, remoteUpdate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&a.ID, &a.InstanceID, &remoteID, &a.Name, &description, &avatar, &language, &modelName,
		&a.Temperature, &a.TopP, &a.PresencePenalty, &a.FrequencyPenalty, &a.MaxTokens,
		&a.SimilarityThreshold, &a.KeywordWeight, &a.TopN, &a.TopK, &prompt, &emptyResponse, &openingGreeting,
		&datasetIDs, &lastSync, &remoteCreate, &remoteUpdate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan chat assistant: %w", err)
	}

	a.RemoteID = remoteID.String
	a.Description = description.String
	a.Avatar = avatar.String
	a.Language = language.String
	a.ModelName = modelName.String
	a.Prompt = prompt.String
	a.EmptyResponse = emptyResponse.String
	a.OpeningGreeting = openingGreeting.String
	fromJSON(datasetIDs.String, &a.DatasetRemoteIDs)
	a.LastSyncTime = timeFromNull(lastSync)
	a.RemoteCreateTime = timeFromNull(remoteCreate)
	a.RemoteUpdateTime = timeFromNull(remoteUpdate)
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)

	return &a, nil
}
