// Package milvus mirrors chunk embeddings into a local vector collection so
// similarity search works even when the remote instance is unreachable.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/pkg/logger"
)

const (
	maxContentLength = 4096
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

type SearchResult struct {
	ChunkID    string
	Content    string
	DatasetID  string
	DocumentID string
	Position   int64
	Score      float32
}

func NewClient(ctx context.Context, endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Mirrored knowledge-base chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			{
				Name:       "content",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": fmt.Sprintf("%d", maxContentLength)},
			},
			{
				Name:       "dataset_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "document_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "position",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

// InsertChunks mirrors the embeddings of synced chunks. Chunks whose vectors
// do not match the collection dimension are skipped.
func (m *Client) InsertChunks(ctx context.Context, dataset *models.Dataset, doc *models.Document, chunks []*models.Chunk) error {
	var chunkIDs []string
	var embeddings [][]float32
	var contents []string
	var datasetIDs []string
	var documentIDs []string
	var positions []int64

	for _, ch := range chunks {
		if len(ch.Embedding) != m.vectorDim {
			continue
		}
		content := ch.Content
		if len(content) > maxContentLength {
			content = content[:maxContentLength]
		}
		chunkIDs = append(chunkIDs, ch.ID)
		embeddings = append(embeddings, ch.Embedding)
		contents = append(contents, content)
		datasetIDs = append(datasetIDs, dataset.ID)
		documentIDs = append(documentIDs, doc.ID)
		positions = append(positions, int64(ch.Position))
	}

	if len(chunkIDs) == 0 {
		return nil
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("dataset_id", datasetIDs),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnInt64("position", positions),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunk embeddings mirrored",
		zap.String("document", doc.ID),
		zap.Int("count", len(chunkIDs)),
	)
	return nil
}

// DeleteByDocument removes all mirrored vectors of one document, used when
// the document is deleted or re-uploaded.
func (m *Client) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`document_id == "%s"`, documentID)
	if err := m.client.Delete(ctx, m.collectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}
	return nil
}

// Search runs a similarity query, optionally restricted to one dataset.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, datasetID string) ([]SearchResult, error) {
	expr := ""
	if datasetID != "" {
		expr = fmt.Sprintf(`dataset_id == "%s"`, datasetID)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "content", "dataset_id", "document_id", "position"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		contentCol := sr.Fields.GetColumn("content")
		datasetCol := sr.Fields.GetColumn("dataset_id")
		documentCol := sr.Fields.GetColumn("document_id")
		positionCol := sr.Fields.GetColumn("position")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			content, _ := contentCol.Get(i)
			dsID, _ := datasetCol.Get(i)
			docID, _ := documentCol.Get(i)
			position, _ := positionCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:    chunkID.(string),
				Content:    content.(string),
				DatasetID:  dsID.(string),
				DocumentID: docID.(string),
				Position:   position.(int64),
				Score:      sr.Scores[i],
			})
		}
	}

	return results, nil
}
