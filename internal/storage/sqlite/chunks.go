package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbmirror/backend/internal/storage/models"
)

const chunkColumns = `id, document_id, remote_id, content, position, page_number, span_start, span_end,
	token_count, similarity, embedding, keywords, metadata, last_sync_time, created_at, updated_at`

func (c *Client) SaveChunk(ch *models.Chunk) error {
	now := time.Now()
	ch.UpdatedAt = now

	if ch.ID == "" {
		ch.ID = uuid.New().String()
		ch.CreatedAt = now

		query := `
			INSERT INTO chunks (id, document_id, remote_id, content, position, page_number, span_start, span_end,
				token_count, similarity, embedding, keywords, metadata, last_sync_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := c.db.Exec(query,
			ch.ID, ch.DocumentID, nullString(ch.RemoteID), ch.Content, ch.Position, ch.PageNumber,
			ch.SpanStart, ch.SpanEnd, ch.TokenCount, ch.Similarity,
			toJSON(ch.Embedding), toJSON(ch.Keywords), toJSON(ch.Metadata),
			nullUnix(ch.LastSyncTime), ch.CreatedAt.Unix(), ch.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		return nil
	}

	query := `
		UPDATE chunks SET remote_id = ?, content = ?, position = ?, page_number = ?, span_start = ?, span_end = ?,
			token_count = ?, similarity = ?, embedding = ?, keywords = ?, metadata = ?, last_sync_time = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query,
		nullString(ch.RemoteID), ch.Content, ch.Position, ch.PageNumber, ch.SpanStart, ch.SpanEnd,
		ch.TokenCount, ch.Similarity, toJSON(ch.Embedding), toJSON(ch.Keywords), toJSON(ch.Metadata),
		nullUnix(ch.LastSyncTime), ch.UpdatedAt.Unix(), ch.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk: %w", err)
	}

	return nil
}

func (c *Client) GetChunk(id string) (*models.Chunk, error) {
	query := fmt.Sprintf(`SELECT %s FROM chunks WHERE id = ?`, chunkColumns)
	ch, err := scanChunkRow(c.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ch, err
}

func (c *Client) FindChunkByRemoteID(documentID, remoteID string) (*models.Chunk, error) {
	query := fmt.Sprintf(`SELECT %s FROM chunks WHERE document_id = ? AND remote_id = ?`, chunkColumns)
	ch, err := scanChunkRow(c.db.QueryRow(query, documentID, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ch, err
}

func (c *Client) ListChunks(documentID string) ([]models.Chunk, error) {
	query := fmt.Sprintf(`SELECT %s FROM chunks WHERE document_id = ? ORDER BY position`, chunkColumns)

	rows, err := c.db.Query(query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		ch, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *ch)
	}

	return chunks, rows.Err()
}

func (c *Client) DeleteChunk(id string) error {
	_, err := c.db.Exec(`DELETE FROM chunks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chunk: %w", err)
	}
	return nil
}

func (c *Client) DeleteChunksByDocument(documentID string) error {
	_, err := c.db.Exec(`DELETE FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func scanChunkRow(row rowScanner) (*models.Chunk, error) {
	var ch models.Chunk
	var remoteID, content, embedding, keywords, metadata sql.NullString
	var lastSync sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&ch.ID, &ch.DocumentID, &remoteID, &content, &ch.Position, &ch.PageNumber,
		&ch.SpanStart, &ch.SpanEnd, &ch.TokenCount, &ch.Similarity,
		&embedding, &keywords, &metadata, &lastSync, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	ch.RemoteID = remoteID.String
	ch.Content = content.String
	fromJSON(embedding.String, &ch.Embedding)
	fromJSON(keywords.String, &ch.Keywords)
	fromJSON(metadata.String, &ch.Metadata)
	ch.LastSyncTime = timeFromNull(lastSync)
	ch.CreatedAt = time.Unix(createdAt, 0)
	ch.UpdatedAt = time.Unix(updatedAt, 0)

	return &ch, nil
}
