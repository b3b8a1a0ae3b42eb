package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

func (c *Client) ListDocuments(ctx context.Context, datasetID string, page, pageSize int, keywords string) ([]map[string]interface{}, error) {
	q := pageQuery(page, pageSize)
	if keywords != "" {
		q.Set("keywords", keywords)
	}

	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/datasets/" + datasetID + "/documents",
		query:     q,
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return nestedList(data, "docs"), nil
}

// GetDocument fetches one remote document record by its remote id. The remote
// service has no single-document endpoint; filtering the list is the
// supported way to poll one document's parse status.
func (c *Client) GetDocument(ctx context.Context, datasetID, documentID string) (map[string]interface{}, error) {
	q := url.Values{}
	q.Set("id", documentID)

	data, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/datasets/" + datasetID + "/documents",
		query:     q,
		retryable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	docs := nestedList(data, "docs")
	if len(docs) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "document not found on remote"}
	}
	return docs[0], nil
}

// UploadDocument sends one local file as a multipart upload and returns the
// remote document descriptors created for it. Uploads are not retried: the
// remote side may have registered the document even when the response is
// lost.
func (c *Client) UploadDocument(ctx context.Context, datasetID, filePath, displayName string) ([]map[string]interface{}, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := displayName
	if name == "" {
		name = filepath.Base(filePath)
	}

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	endpoint := c.baseURL + apiPrefix + "/datasets/" + datasetID + "/documents"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var data interface{}
	err = c.cb.Execute(ctx, func() error {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("upload request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err = decodeEnvelope(resp)
		return err
	})
	if err != nil {
		return nil, err
	}

	return payloadList(data), nil
}

func (c *Client) UpdateDocument(ctx context.Context, datasetID, documentID string, body map[string]interface{}) error {
	_, err := c.do(ctx, request{
		method:    http.MethodPut,
		path:      "/datasets/" + datasetID + "/documents/" + documentID,
		body:      body,
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (c *Client) DeleteDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	_, err := c.do(ctx, request{
		method:    http.MethodDelete,
		path:      "/datasets/" + datasetID + "/documents",
		body:      map[string]interface{}{"ids": documentIDs},
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// ParseDocuments asks the remote service to start chunking the given
// documents. Not retried: parsing kicks off work on the remote side.
func (c *Client) ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/datasets/" + datasetID + "/chunks",
		body:   map[string]interface{}{"document_ids": documentIDs},
	})
	if err != nil {
		return fmt.Errorf("failed to start parsing: %w", err)
	}
	return nil
}

func (c *Client) StopParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	_, err := c.do(ctx, request{
		method:    http.MethodDelete,
		path:      "/datasets/" + datasetID + "/chunks",
		body:      map[string]interface{}{"document_ids": documentIDs},
		retryable: true,
	})
	if err != nil {
		return fmt.Errorf("failed to stop parsing: %w", err)
	}
	return nil
}
