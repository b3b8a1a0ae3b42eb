package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func newTestClient(url string) *Client {
	return NewClient("test", url, "test-key", 5, 2)
}

func envelope(data interface{}) string {
	raw, _ := json.Marshal(map[string]interface{}{"code": 0, "data": data})
	return string(raw)
}

func TestListDatasetsDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/datasets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.URL.Query().Get("page_size"); got != "30" {
			t.Errorf("unexpected page_size %q", got)
		}
		w.Write([]byte(envelope([]interface{}{
			map[string]interface{}{"id": "ds1", "name": "kb"},
			"not an object",
		})))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	datasets, err := c.ListDatasets(context.Background(), 1, 30)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(datasets) != 1 {
		t.Fatalf("expected non-object items dropped, got %d payloads", len(datasets))
	}
	if datasets[0]["id"] != "ds1" {
		t.Fatalf("unexpected payload %v", datasets[0])
	}
}

func TestEnvelopeErrorCodeBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 102, "message": "dataset not owned by you"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.CreateDataset(context.Background(), map[string]interface{}{"name": "kb"})
	if err == nil {
		t.Fatal("expected error from non-zero envelope code")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != 102 || apiErr.Message != "dataset not owned by you" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestRetryableRequestRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(envelope([]interface{}{})))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.ListDatasets(context.Background(), 1, 30); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestNonIdempotentRequestGetsOneShot(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.CreateDataset(context.Background(), map[string]interface{}{"name": "kb"}); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 attempt for POST, got %d", got)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(envelope(map[string]interface{}{"docs": []interface{}{}, "total": 0})))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetDocument(context.Background(), "ds1", "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}

func TestListDocumentsUnwrapsDocs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(envelope(map[string]interface{}{
			"docs":  []interface{}{map[string]interface{}{"id": "doc1", "run": "1"}},
			"total": 1,
		})))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	docs, err := c.ListDocuments(context.Background(), "ds1", 1, 30, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 || docs[0]["id"] != "doc1" {
		t.Fatalf("unexpected docs %v", docs)
	}
}

func TestUploadDocumentMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/datasets/ds1/documents" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart body: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			file.Close()
			if header.Filename != "renamed.txt" {
				t.Errorf("expected display name used as filename, got %q", header.Filename)
			}
		}
		w.Write([]byte(envelope([]interface{}{map[string]interface{}{"id": "remote-doc"}})))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "upload.txt")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	c := newTestClient(server.URL)
	created, err := c.UploadDocument(context.Background(), "ds1", path, "renamed.txt")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if len(created) != 1 || created[0]["id"] != "remote-doc" {
		t.Fatalf("unexpected upload result %v", created)
	}
}

func TestListLlmModelsKeepsMalformedEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/llm/list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(envelope(map[string]interface{}{
			"openai": []interface{}{
				map[string]interface{}{"fid": "gpt-4o"},
				"garbage entry",
			},
		})))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	grouped, err := c.ListLlmModels(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	payloads := grouped["openai"]
	if len(payloads) != 2 {
		t.Fatalf("expected malformed entry preserved, got %d payloads", len(payloads))
	}
	if payloads[0] == nil || payloads[1] != nil {
		t.Fatalf("expected [object, nil], got %v", payloads)
	}
}
