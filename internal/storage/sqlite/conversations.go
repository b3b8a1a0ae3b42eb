package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbmirror/backend/internal/storage/models"
)

const conversationColumns = `id, instance_id, assistant_id, remote_id, title, status, message_count,
	dialog, usage, last_activity_time, last_sync_time, remote_create_time, remote_update_time, created_at, updated_at`

func (c *Client) SaveConversation(conv *models.Conversation) error {
	now := time.Now()
	conv.UpdatedAt = now

	if conv.ID == "" {
		conv.ID = uuid.New().String()
		conv.CreatedAt = now

		query := `
			INSERT INTO conversations (id, instance_id, assistant_id, remote_id, title, status, message_count,
				dialog, usage, last_activity_time, last_sync_time, remote_create_time, remote_update_time,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := c.db.Exec(query,
			conv.ID, conv.InstanceID, nullString(conv.AssistantID), nullString(conv.RemoteID),
			conv.Title, conv.Status, conv.MessageCount,
			toJSON(conv.Dialog), toJSON(conv.Usage),
			nullUnix(conv.LastActivityTime), nullUnix(conv.LastSyncTime),
			nullUnix(conv.RemoteCreateTime), nullUnix(conv.RemoteUpdateTime),
			conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}

		return nil
	}

	query := `
		UPDATE conversations SET assistant_id = ?, remote_id = ?, title = ?, status = ?, message_count = ?,
			dialog = ?, usage = ?, last_activity_time = ?, last_sync_time = ?, remote_create_time = ?,
			remote_update_time = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query,
		nullString(conv.AssistantID), nullString(conv.RemoteID), conv.Title, conv.Status, conv.MessageCount,
		toJSON(conv.Dialog), toJSON(conv.Usage),
		nullUnix(conv.LastActivityTime), nullUnix(conv.LastSyncTime),
		nullUnix(conv.RemoteCreateTime), nullUnix(conv.RemoteUpdateTime),
		conv.UpdatedAt.Unix(), conv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	return nil
}

func (c *Client) GetConversation(id string) (*models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE id = ?`, conversationColumns)
	conv, err := scanConversationRow(c.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return conv, err
}

func (c *Client) FindConversationByRemoteID(instanceID, remoteID string) (*models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE instance_id = ? AND remote_id = ?`, conversationColumns)
	conv, err := scanConversationRow(c.db.QueryRow(query, instanceID, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return conv, err
}

func (c *Client) ListConversations(instanceID string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE instance_id = ? ORDER BY created_at DESC`, conversationColumns)

	rows, err := c.db.Query(query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		conv, err := scanConversationRow(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}

	return conversations, rows.Err()
}

func (c *Client) DeleteConversation(id string) error {
	_, err := c.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func scanConversationRow(row rowScanner) (*models.Conversation, error) {
	var conv models.Conversation
	var assistantID, remoteID, title, status, dialog, usage sql.NullString
	var lastActivity, lastSync, remoteCreate, remoteUpdate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&conv.ID, &conv.InstanceID, &assistantID, &remoteID, &title, &status, &conv.MessageCount,
		&dialog, &usage, &lastActivity, &lastSync, &remoteCreate, &remoteUpdate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	conv.AssistantID = assistantID.String
	conv.RemoteID = remoteID.String
	conv.Title = title.String
	conv.Status = status.String
	fromJSON(dialog.String, &conv.Dialog)
	fromJSON(usage.String, &conv.Usage)
	conv.LastActivityTime = timeFromNull(lastActivity)
	conv.LastSyncTime = timeFromNull(lastSync)
	conv.RemoteCreateTime = timeFromNull(remoteCreate)
	conv.RemoteUpdateTime = timeFromNull(remoteUpdate)
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)

	return &conv, nil
}
