package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatAttachesRawBase64Images(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "two invoices"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL+"/", "llama3.2-vision")
	out, err := p.Chat(context.Background(), []llm.Message{{
		Role:    "user",
		Content: "how many invoices?",
		Images:  []llm.Image{{MIMEType: "image/png", Data: []byte("png")}},
	}}, llm.WithMaxTokens(64))
	require.NoError(t, err)

	assert.Equal(t, "two invoices", out)
	assert.Equal(t, "llama3.2-vision", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, []string{"cG5n"}, got.Messages[0].Images)
	assert.Equal(t, 64, got.Options.NumPredict)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "Non OK status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			want: "404",
		},
		{
			name: "Error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(chatResponse{Error: "out of memory"})
			},
			want: "out of memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewProvider(srv.URL, "missing").Generate(context.Background(), "hi")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
