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

const datasetColumns = `id, instance_id, remote_id, name, description, chunk_method, parser_config,
	embedding_model, language, document_count, chunk_count,
	last_sync_time, remote_create_time, remote_update_time, created_at, updated_at`

func (c *Client) SaveDataset(ds *models.Dataset) error {
	now := time.Now()
	ds.UpdatedAt = now

	if ds.ID == "" {
		ds.ID = uuid.New().String()
		ds.CreatedAt = now

		query := `
			INSERT INTO datasets (id, instance_id, remote_id, name, description, chunk_method, parser_config,
				embedding_model, language, document_count, chunk_count,
				last_sync_time, remote_create_time, remote_update_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := c.db.Exec(query,
			ds.ID, ds.InstanceID, nullString(ds.RemoteID), ds.Name, ds.Description,
			ds.ChunkMethod, toJSON(ds.ParserConfig), ds.EmbeddingModel, ds.Language,
			ds.DocumentCount, ds.ChunkCount,
			nullUnix(ds.LastSyncTime), nullUnix(ds.RemoteCreateTime), nullUnix(ds.RemoteUpdateTime),
			ds.CreatedAt.Unix(), ds.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert dataset: %w", err)
		}

		logger.Debug("Dataset created", zap.String("dataset_id", ds.ID), zap.String("remote_id", ds.RemoteID))
		return nil
	}

	query := `
		UPDATE datasets SET remote_id = ?, name = ?, description = ?, chunk_method = ?, parser_config = ?,
			embedding_model = ?, language = ?, document_count = ?, chunk_count = ?,
			last_sync_time = ?, remote_create_time = ?, remote_update_time = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query,
		nullString(ds.RemoteID), ds.Name, ds.Description, ds.ChunkMethod, toJSON(ds.ParserConfig),
		ds.EmbeddingModel, ds.Language, ds.DocumentCount, ds.ChunkCount,
		nullUnix(ds.LastSyncTime), nullUnix(ds.RemoteCreateTime), nullUnix(ds.RemoteUpdateTime),
		ds.UpdatedAt.Unix(), ds.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}

	return nil
}

func (c *Client) GetDataset(id string) (*models.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE id = ?`, datasetColumns)
	ds, err := scanDatasetRow(c.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ds, err
}

func (c *Client) FindDatasetByRemoteID(instanceID, remoteID string) (*models.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE instance_id = ? AND remote_id = ?`, datasetColumns)
	ds, err := scanDatasetRow(c.db.QueryRow(query, instanceID, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ds, err
}

func (c *Client) ListDatasets(instanceID string) ([]models.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE instance_id = ? ORDER BY name`, datasetColumns)

	rows, err := c.db.Query(query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []models.Dataset
	for rows.Next() {
		ds, err := scanDatasetRow(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, *ds)
	}

	return datasets, rows.Err()
}

func (c *Client) DeleteDataset(id string) error {
	_, err := c.db.Exec(`DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}

func scanDatasetRow(row rowScanner) (*models.Dataset, error) {
	var ds models.Dataset
	var remoteID, description, chunkMethod, parserConfig, embeddingModel, language sql.NullString
	var lastSync, remoteCreate, remoteUpdate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&ds.ID, &ds.InstanceID, &remoteID, &ds.Name, &description, &chunkMethod, &parserConfig,
		&embeddingModel, &language, &ds.DocumentCount, &ds.ChunkCount,
		&lastSync, &remoteCreate, &remoteUpdate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dataset: %w", err)
	}

	ds.RemoteID = remoteID.String
	ds.Description = description.String
	ds.ChunkMethod = chunkMethod.String
	ds.EmbeddingModel = embeddingModel.String
	ds.Language = language.String
	fromJSON(parserConfig.String, &ds.ParserConfig)
	ds.LastSyncTime = timeFromNull(lastSync)
	ds.RemoteCreateTime = timeFromNull(remoteCreate)
	ds.RemoteUpdateTime = timeFromNull(remoteUpdate)
	ds.CreatedAt = time.Unix(createdAt, 0)
	ds.UpdatedAt = time.Unix(updatedAt, 0)

	return &ds, nil
}
