package response

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/llm"
	"docqa-be/pkg/retrieval"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/image/draw"
)

const moduleName = "ResponseGenerator"

// DisplayParams controls how retrieved page images are sent to the model.
type DisplayParams struct {
	ResizedHeight int
	ResizedWidth  int
	Model         string
}

// ProviderSource resolves a generation model name to a provider.
type ProviderSource interface {
	Get(ctx context.Context, name string) (llm.LLMProvider, error)
}

// Generator answers a query from retrieved pages using a vision-language model.
type Generator struct {
	providers ProviderSource
	imageRoot string
	logger    logger.ILogger
}

func NewGenerator(providers ProviderSource, imageRoot string, log logger.ILogger) *Generator {
	return &Generator{
		providers: providers,
		imageRoot: imageRoot,
		logger:    log,
	}
}

// Generate builds one multimodal user message from refs and query and
// returns the model's answer. Provider failures come back as
// *apperr.ExternalError.
func (g *Generator) Generate(ctx context.Context, refs []retrieval.DocumentRef, query string, params DisplayParams) (string, error) {
	ctx, span := otel.Tracer("docqa/response").Start(ctx, "ResponseGenerator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generation.model", params.Model),
		attribute.Int("refs.count", len(refs)),
	)

	provider, err := g.providers.Get(ctx, params.Model)
	if err != nil {
		return "", apperr.External("generate", err)
	}

	images := make([]llm.Image, 0, len(refs))
	for _, ref := range refs {
		if ref.ImagePath == "" {
			continue
		}
		img, err := g.loadImage(ref.ImagePath, params.ResizedWidth, params.ResizedHeight)
		if err != nil {
			g.logger.Warn(moduleName, "Skipping page image", map[string]interface{}{
				"image_path": ref.ImagePath,
				"error":      err.Error(),
			})
			continue
		}
		images = append(images, img)
	}

	msg := llm.Message{
		Role:    "user",
		Content: BuildPrompt(query, refs),
		Images:  images,
	}

	answer, err := provider.Chat(ctx, []llm.Message{msg})
	if err != nil {
		span.RecordError(err)
		g.logger.Error(moduleName, "Generation failed", map[string]interface{}{
			"model": params.Model,
			"error": err.Error(),
		})
		return "", apperr.External("generate", err)
	}

	g.logger.Info(moduleName, "Response generated", map[string]interface{}{
		"model":  params.Model,
		"images": len(images),
		"refs":   len(refs),
	})
	return strings.TrimSpace(answer), nil
}

// BuildPrompt renders the instruction text. Pages without an image
// contribute their extracted text instead.
func BuildPrompt(query string, refs []retrieval.DocumentRef) string {
	var prompt strings.Builder

	prompt.WriteString("You are a helpful assistant answering questions about the attached document pages.\n")
	prompt.WriteString("Answer ONLY from what the pages show. If the answer is not on the pages, say so.\n\n")

	if len(refs) > 0 {
		prompt.WriteString("<retrieved_pages>\n")
		for i, ref := range refs {
			prompt.WriteString(fmt.Sprintf("%d. %s, page %d", i+1, ref.Filename, ref.PageNum))
			if ref.ImagePath != "" {
				prompt.WriteString(" (image attached)\n")
				continue
			}
			prompt.WriteString("\n")
			if ref.Text != "" {
				prompt.WriteString(ref.Text)
				prompt.WriteString("\n")
			}
		}
		prompt.WriteString("</retrieved_pages>\n\n")
	}

	prompt.WriteString("Question: ")
	prompt.WriteString(query)
	return prompt.String()
}

func (g *Generator) loadImage(path string, width, height int) (llm.Image, error) {
	if !filepath.IsAbs(path) && g.imageRoot != "" {
		rel, ok := retrieval.RelativeImagePath(g.imageRoot, path)
		if !ok {
			return llm.Image{}, fmt.Errorf("image path %s escapes the image root", path)
		}
		path = filepath.Join(g.imageRoot, rel)
	}

	f, err := os.Open(path)
	if err != nil {
		return llm.Image{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return llm.Image{}, fmt.Errorf("decode %s: %w", path, err)
	}

	data, err := EncodeResized(src, width, height)
	if err != nil {
		return llm.Image{}, err
	}
	return llm.Image{MIMEType: "image/png", Data: data}, nil
}

// EncodeResized scales src to width x height and encodes it as PNG. A
// non-positive dimension keeps the source size.
func EncodeResized(src image.Image, width, height int) ([]byte, error) {
	out := src
	b := src.Bounds()
	if width > 0 && height > 0 && (b.Dx() != width || b.Dy() != height) {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
