package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/pkg/logger"
)

func (c *Client) SaveInstance(inst *models.Instance) error {
	now := time.Now()
	inst.UpdatedAt = now

	if inst.ID == "" {
		inst.ID = uuid.New().String()
		inst.CreatedAt = now

		query := `
			INSERT INTO instances (id, name, base_url, api_key, enabled, healthy, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := c.db.Exec(query,
			inst.ID, inst.Name, inst.BaseURL, inst.APIKey,
			boolToInt(inst.Enabled), boolToInt(inst.Healthy),
			inst.CreatedAt.Unix(), inst.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert instance: %w", err)
		}

		logger.Debug("Instance created", zap.String("instance_id", inst.ID), zap.String("name", inst.Name))
		return nil
	}

	query := `
		UPDATE instances SET name = ?, base_url = ?, api_key = ?, enabled = ?, healthy = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query,
		inst.Name, inst.BaseURL, inst.APIKey,
		boolToInt(inst.Enabled), boolToInt(inst.Healthy),
		inst.UpdatedAt.Unix(), inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}

	return nil
}

func (c *Client) GetInstance(id string) (*models.Instance, error) {
	query := `SELECT id, name, base_url, api_key, enabled, healthy, created_at, updated_at FROM instances WHERE id = ?`
	return c.scanInstance(c.db.QueryRow(query, id))
}

func (c *Client) GetInstanceByName(name string) (*models.Instance, error) {
	query := `SELECT id, name, base_url, api_key, enabled, healthy, created_at, updated_at FROM instances WHERE name = ?`
	return c.scanInstance(c.db.QueryRow(query, name))
}

func (c *Client) ListInstances() ([]models.Instance, error) {
	query := `SELECT id, name, base_url, api_key, enabled, healthy, created_at, updated_at FROM instances ORDER BY name`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []models.Instance
	for rows.Next() {
		inst, err := scanInstanceRow(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}

	return instances, rows.Err()
}

func (c *Client) DeleteInstance(id string) error {
	_, err := c.db.Exec(`DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (c *Client) scanInstance(row *sql.Row) (*models.Instance, error) {
	inst, err := scanInstanceRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inst, err
}

func scanInstanceRow(row rowScanner) (*models.Instance, error) {
	var inst models.Instance
	var enabled, healthy int
	var createdAt, updatedAt int64

	err := row.Scan(&inst.ID, &inst.Name, &inst.BaseURL, &inst.APIKey, &enabled, &healthy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	inst.Enabled = enabled != 0
	inst.Healthy = healthy != 0
	inst.CreatedAt = time.Unix(createdAt, 0)
	inst.UpdatedAt = time.Unix(updatedAt, 0)

	return &inst, nil
}
