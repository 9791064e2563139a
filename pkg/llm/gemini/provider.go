package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa-be/pkg/llm"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"
)

type Provider struct {
	client *genai.Client
	model  string
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(ctx context.Context, apiKey, model string) (*Provider, error) {
	client, err := genai.NewClient(ctx, genaiopt.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Chat sends the conversation as a single multi-part request. Earlier
// turns are flattened into text; images are attached from every user turn.
func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.NewOptions(p.model, opts...)

	model := p.client.GenerativeModel(options.Model)
	model.SetTemperature(float32(options.Temperature))
	if options.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(options.MaxTokens))
	}

	var parts []genai.Part
	for _, msg := range history {
		if msg.Role == "system" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(msg.Content))
			continue
		}
		for _, img := range msg.Images {
			parts = append(parts, genai.ImageData(imageFormat(img.MIMEType), img.Data))
		}
		parts = append(parts, genai.Text(msg.Content))
	}

	rsp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil || len(rsp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini")
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (p *Provider) Close() error {
	return p.client.Close()
}

// imageFormat turns "image/png" into "png".
func imageFormat(mimeType string) string {
	if i := strings.Index(mimeType, "/"); i >= 0 {
		return mimeType[i+1:]
	}
	return mimeType
}
