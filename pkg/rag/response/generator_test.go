package response

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/llm"
	"docqa-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureProvider struct {
	history []llm.Message
	reply   string
	err     error
}

func (p *captureProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.history = history
	return p.reply, p.err
}

func (p *captureProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

type staticSource map[string]llm.LLMProvider

func (s staticSource) Get(ctx context.Context, name string) (llm.LLMProvider, error) {
	if p, ok := s[name]; ok {
		return p, nil
	}
	return nil, errors.New("unsupported generation model: " + name)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestGenerateAttachesResizedImages(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "s1", "page_1.png"), 600, 800)

	provider := &captureProvider{reply: "  The total is 42.\n"}
	g := NewGenerator(staticSource{"qwen": provider}, root, logger.NewNopLogger())

	refs := []retrieval.DocumentRef{
		{Filename: "invoice.pdf", PageNum: 1, ImagePath: filepath.Join("s1", "page_1.png")},
		{Filename: "invoice.pdf", PageNum: 2, ImagePath: filepath.Join("s1", "missing.png")},
	}
	out, err := g.Generate(context.Background(), refs, "what is the total?", DisplayParams{
		ResizedHeight: 280,
		ResizedWidth:  308,
		Model:         "qwen",
	})
	require.NoError(t, err)
	assert.Equal(t, "The total is 42.", out)

	require.Len(t, provider.history, 1)
	msg := provider.history[0]
	assert.Contains(t, msg.Content, "Question: what is the total?")
	require.Len(t, msg.Images, 1)

	decoded, err := png.Decode(bytes.NewReader(msg.Images[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 308, decoded.Bounds().Dx())
	assert.Equal(t, 280, decoded.Bounds().Dy())
}

func TestGenerateErrorsAreExternal(t *testing.T) {
	g := NewGenerator(staticSource{"gpt4": &captureProvider{err: errors.New("quota exceeded")}}, "", logger.NewNopLogger())

	_, err := g.Generate(context.Background(), nil, "q", DisplayParams{Model: "gpt4"})
	require.Error(t, err)
	assert.True(t, apperr.IsExternalError(err))

	_, err = g.Generate(context.Background(), nil, "q", DisplayParams{Model: "unknown"})
	require.Error(t, err)
	assert.True(t, apperr.IsExternalError(err))
}

func TestBuildPromptIncludesTextPages(t *testing.T) {
	prompt := BuildPrompt("who signed?", []retrieval.DocumentRef{
		{Filename: "contract.txt", PageNum: 3, Text: "Signed by A. Lee"},
	})
	assert.Contains(t, prompt, "1. contract.txt, page 3")
	assert.Contains(t, prompt, "Signed by A. Lee")
	assert.Contains(t, prompt, "Question: who signed?")
}
