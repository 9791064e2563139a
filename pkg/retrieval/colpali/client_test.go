package colpali

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendIndexSearchClose(t *testing.T) {
	var gotIndex indexRequest
	var unloaded string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotIndex))
			_ = json.NewEncoder(w).Encode(indexResponse{IndexName: gotIndex.IndexName, Documents: 2})
		case "/search":
			var req searchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "s1", req.IndexName)
			assert.Equal(t, 3, req.K)
			_ = json.NewEncoder(w).Encode(searchResponse{Results: []searchResult{
				{DocId: 0, PageNum: 2, Score: 17.5, ImagePath: "static/images/s1/page_0_2.png", Metadata: map[string]string{"filename": "a.pdf"}},
			}})
		case "/unload":
			var req unloadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			unloaded = req.IndexName
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewBackend(retrieval.WithBaseURL(srv.URL))
	h, err := b.Index(context.Background(), retrieval.IndexRequest{
		SessionId: "s1",
		SourceDir: "uploaded_documents/s1",
		IndexPath: ".byaldi/s1",
		ImageDir:  "static/images/s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "vidore/colpali", gotIndex.Model)
	assert.True(t, gotIndex.Overwrite)

	refs, err := h.Search(context.Background(), "what is revenue?", 3)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "a.pdf", refs[0].Filename)
	assert.Equal(t, 2, refs[0].PageNum)

	require.NoError(t, h.Close())
	assert.Equal(t, "s1", unloaded)
}

func TestBackendSurfacesSidecarErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(errorResponse{Detail: "index format v0 not supported"})
	}))
	defer srv.Close()

	b := NewBackend(retrieval.WithBaseURL(srv.URL))
	_, err := b.Load(context.Background(), "s1", ".byaldi/s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index format v0 not supported")
}
