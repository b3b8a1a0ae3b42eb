package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbmirror/backend/internal/storage/models"
)

const llmModelColumns = `id, instance_id, fid, name, provider, model_type, available, max_tokens,
	status_code, supports_tools, tags, last_sync_time, created_at, updated_at`

func (c *Client) SaveLlmModel(m *models.LlmModel) error {
	now := time.Now()
	m.UpdatedAt = now

	if m.ID == "" {
		m.ID = uuid.New().String()
		m.CreatedAt = now

		query := `
			INSERT INTO llm_models (id, instance_id, fid, name, provider, model_type, available, max_tokens,
				status_code, supports_tools, tags, last_sync_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := c.db.Exec(query,
			m.ID, m.InstanceID, m.Fid, m.Name, m.Provider, m.ModelType,
			boolToInt(m.Available), m.MaxTokens, m.StatusCode, boolToInt(m.SupportsTools),
			toJSON(m.Tags), nullUnix(m.LastSyncTime), m.CreatedAt.Unix(), m.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert llm model: %w", err)
		}

		return nil
	}

	query := `
		UPDATE llm_models SET fid = ?, name = ?, provider = ?, model_type = ?, available = ?, max_tokens = ?,
			status_code = ?, supports_tools = ?, tags = ?, last_sync_time = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query,
		m.Fid, m.Name, m.Provider, m.ModelType, boolToInt(m.Available), m.MaxTokens,
		m.StatusCode, boolToInt(m.SupportsTools), toJSON(m.Tags), nullUnix(m.LastSyncTime),
		m.UpdatedAt.Unix(), m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update llm model: %w", err)
	}

	return nil
}

func (c *Client) FindLlmModelByFid(instanceID, fid string) (*models.LlmModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM llm_models WHERE instance_id = ? AND fid = ?`, llmModelColumns)
	m, err := scanLlmModelRow(c.db.QueryRow(query, instanceID, fid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (c *Client) ListLlmModels(instanceID string) ([]models.LlmModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM llm_models WHERE instance_id = ? ORDER BY provider, name`, llmModelColumns)

	rows, err := c.db.Query(query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list llm models: %w", err)
	}
	defer rows.Close()

	var llmModels []models.LlmModel
	for rows.Next() {
		m, err := scanLlmModelRow(rows)
		if err != nil {
			return nil, err
		}
		llmModels = append(llmModels, *m)
	}

	return llmModels, rows.Err()
}

func (c *Client) DeleteLlmModel(id string) error {
	_, err := c.db.Exec(`DELETE FROM llm_models WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete llm model: %w", err)
	}
	return nil
}

func scanLlmModelRow(row rowScanner) (*models.LlmModel, error) {
	var m models.LlmModel
	var name, provider, modelType, tags sql.NullString
	var available, supportsTools int
	var lastSync sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&m.ID, &m.InstanceID, &m.Fid, &name, &provider, &modelType, &available, &m.MaxTokens,
		&m.StatusCode, &supportsTools, &tags, &lastSync, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan llm model: %w", err)
	}

	m.Name = name.String
	m.Provider = provider.String
	m.ModelType = modelType.String
	m.Available = available != 0
	m.SupportsTools = supportsTools != 0
	fromJSON(tags.String, &m.Tags)
	m.LastSyncTime = timeFromNull(lastSync)
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)

	return &m, nil
}
