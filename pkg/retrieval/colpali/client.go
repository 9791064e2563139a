// Package colpali talks to a byaldi/ColPali indexing sidecar over HTTP.
// The sidecar shares the index and static folders with this service, so
// index_path and image_dir are passed as file system paths.
package colpali

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docqa-be/pkg/retrieval"
)

type Backend struct {
	options retrieval.Options
	client  *http.Client
}

var _ retrieval.Backend = &Backend{}

func NewBackend(opts ...retrieval.Option) *Backend {
	options := retrieval.NewOptions(opts...)
	if options.BaseURL == "" {
		options.BaseURL = "http://localhost:8001"
	}
	return &Backend{
		options: options,
		client: &http.Client{
			Timeout: options.Timeout,
		},
	}
}

func (b *Backend) Name() string { return "colpali" }

// --- Request/Response structs ---

type indexRequest struct {
	IndexName string `json:"index_name"`
	SourceDir string `json:"source_dir"`
	IndexPath string `json:"index_path"`
	ImageDir  string `json:"image_dir"`
	Model     string `json:"model"`
	Overwrite bool   `json:"overwrite"`
}

type loadRequest struct {
	IndexName string `json:"index_name"`
	IndexPath string `json:"index_path"`
}

type searchRequest struct {
	IndexName string `json:"index_name"`
	Query     string `json:"query"`
	K         int    `json:"k"`
}

type unloadRequest struct {
	IndexName string `json:"index_name"`
}

type indexResponse struct {
	IndexName string `json:"index_name"`
	Documents int    `json:"documents"`
}

type searchResult struct {
	DocId     int               `json:"doc_id"`
	PageNum   int               `json:"page_num"`
	Score     float64           `json:"score"`
	ImagePath string            `json:"image_path"`
	Metadata  map[string]string `json:"metadata"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// --- retrieval.Backend ---

func (b *Backend) Index(ctx context.Context, req retrieval.IndexRequest) (retrieval.Handle, error) {
	model := req.Model
	if model == "" {
		model = b.options.DefaultModel
	}

	var res indexResponse
	err := b.post(ctx, "/index", indexRequest{
		IndexName: req.SessionId,
		SourceDir: req.SourceDir,
		IndexPath: req.IndexPath,
		ImageDir:  req.ImageDir,
		Model:     model,
		Overwrite: true,
	}, &res)
	if err != nil {
		return nil, err
	}

	return &handle{backend: b, indexName: req.SessionId}, nil
}

func (b *Backend) Load(ctx context.Context, sessionId string, indexPath string) (retrieval.Handle, error) {
	err := b.post(ctx, "/load", loadRequest{
		IndexName: sessionId,
		IndexPath: indexPath,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &handle{backend: b, indexName: sessionId}, nil
}

type handle struct {
	backend   *Backend
	indexName string
}

func (h *handle) Search(ctx context.Context, query string, k int) ([]retrieval.DocumentRef, error) {
	var res searchResponse
	err := h.backend.post(ctx, "/search", searchRequest{
		IndexName: h.indexName,
		Query:     query,
		K:         k,
	}, &res)
	if err != nil {
		return nil, err
	}

	refs := make([]retrieval.DocumentRef, 0, len(res.Results))
	for _, r := range res.Results {
		refs = append(refs, retrieval.DocumentRef{
			DocId:     r.DocId,
			Filename:  r.Metadata["filename"],
			PageNum:   r.PageNum,
			Score:     r.Score,
			ImagePath: r.ImagePath,
		})
	}
	return refs, nil
}

// Close asks the sidecar to drop the in-memory index. The artifact on disk is untouched.
func (h *handle) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.backend.post(ctx, "/unload", unloadRequest{IndexName: h.indexName}, nil)
}

func (b *Backend) post(ctx context.Context, path string, payload any, out any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.options.BaseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("colpali request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(bodyBytes, &e) == nil && e.Detail != "" {
			return fmt.Errorf("colpali error: status %d: %s", resp.StatusCode, e.Detail)
		}
		return fmt.Errorf("colpali error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
