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

const documentColumns = `id, dataset_id, remote_id, name, filename, file_path, type, size, language,
	status, progress, progress_msg, chunk_count,
	last_sync_time, remote_create_time, remote_update_time, created_at, updated_at`

func (c *Client) SaveDocument(doc *models.Document) error {
	now := time.Now()
	doc.UpdatedAt = now

	if doc.Status == "" {
		doc.Status = models.StatusPending
	}

	if doc.ID == "" {
		doc.ID = uuid.New().String()
		doc.CreatedAt = now

		query := `
			INSERT INTO documents (id, dataset_id, remote_id, name, filename, file_path, type, size, language,
				status, progress, progress_msg, chunk_count,
				last_sync_time, remote_create_time, remote_update_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := c.db.Exec(query,
			doc.ID, doc.DatasetID, nullString(doc.RemoteID), doc.Name, doc.Filename, doc.FilePath,
			doc.Type, doc.Size, doc.Language,
			string(doc.Status), doc.Progress, doc.ProgressMsg, doc.ChunkCount,
			nullUnix(doc.LastSyncTime), nullUnix(doc.RemoteCreateTime), nullUnix(doc.RemoteUpdateTime),
			doc.CreatedAt.Unix(), doc.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}

		logger.Debug("Document created", zap.String("document_id", doc.ID), zap.String("name", doc.Name))
		return nil
	}

	query := `
		UPDATE documents SET remote_id = ?, name = ?, filename = ?, file_path = ?, type = ?, size = ?, language = ?,
			status = ?, progress = ?, progress_msg = ?, chunk_count = ?,
			last_sync_time = ?, remote_create_time = ?, remote_update_time = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query,
		nullString(doc.RemoteID), doc.Name, doc.Filename, doc.FilePath, doc.Type, doc.Size, doc.Language,
		string(doc.Status), doc.Progress, doc.ProgressMsg, doc.ChunkCount,
		nullUnix(doc.LastSyncTime), nullUnix(doc.RemoteCreateTime), nullUnix(doc.RemoteUpdateTime),
		doc.UpdatedAt.Unix(), doc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	return nil
}

func (c *Client) GetDocument(id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = ?`, documentColumns)
	doc, err := scanDocumentRow(c.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (c *Client) FindDocumentByRemoteID(datasetID, remoteID string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE dataset_id = ? AND remote_id = ?`, documentColumns)
	doc, err := scanDocumentRow(c.db.QueryRow(query, datasetID, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (c *Client) ListDocuments(datasetID string) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE dataset_id = ? ORDER BY created_at`, documentColumns)
	return c.queryDocuments(query, datasetID)
}

// ListDocumentsForChunkSync returns documents whose parsed chunks can be
// pulled from the remote: completed, remote id present, progress at 100.
func (c *Client) ListDocumentsForChunkSync(datasetID string) ([]models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE dataset_id = ? AND status = ? AND remote_id IS NOT NULL AND progress >= 100
		ORDER BY created_at`, documentColumns)
	return c.queryDocuments(query, datasetID, string(models.StatusCompleted))
}

func (c *Client) DeleteDocument(id string) error {
	_, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (c *Client) queryDocuments(query string, args ...interface{}) ([]models.Document, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var documents []models.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, *doc)
	}

	return documents, rows.Err()
}

func scanDocumentRow(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var remoteID, filename, filePath, docType, language, progressMsg sql.NullString
	var status string
	var lastSync, remoteCreate, remoteUpdate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&doc.ID, &doc.DatasetID, &remoteID, &doc.Name, &filename, &filePath, &docType,
		&doc.Size, &language, &status, &doc.Progress, &progressMsg, &doc.ChunkCount,
		&lastSync, &remoteCreate, &remoteUpdate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.RemoteID = remoteID.String
	doc.Filename = filename.String
	doc.FilePath = filePath.String
	doc.Type = docType.String
	doc.Language = language.String
	doc.Status = models.DocumentStatus(status)
	doc.ProgressMsg = progressMsg.String
	doc.LastSyncTime = timeFromNull(lastSync)
	doc.RemoteCreateTime = timeFromNull(remoteCreate)
	doc.RemoteUpdateTime = timeFromNull(remoteUpdate)
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return &doc, nil
}
