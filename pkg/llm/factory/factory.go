package factory

import (
	"context"
	"fmt"
	"sync"

	"docqa-be/pkg/llm"
	"docqa-be/pkg/llm/anthropic"
	"docqa-be/pkg/llm/gemini"
	"docqa-be/pkg/llm/huggingface"
	"docqa-be/pkg/llm/ollama"
	"docqa-be/pkg/llm/openai"
)

// Generation model names accepted by the API, in display order.
const (
	ModelGemini          = "gemini"
	ModelQwen            = "qwen"
	ModelGPT4            = "gpt4"
	ModelLlamaVision     = "llama-vision"
	ModelPixtral         = "pixtral"
	ModelMolmo           = "molmo"
	ModelGroqLlamaVision = "groq-llama-vision"
	ModelClaude          = "claude"
)

var Models = []string{
	ModelGemini, ModelQwen, ModelGPT4, ModelLlamaVision,
	ModelPixtral, ModelMolmo, ModelGroqLlamaVision, ModelClaude,
}

const (
	dashscopeURL = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	mistralURL   = "https://api.mistral.ai/v1"
	groqURL      = "https://api.groq.com/openai/v1"
)

// Settings carries credentials and endpoints for every provider.
type Settings struct {
	OpenAIKey      string
	DashscopeKey   string
	MistralKey     string
	GroqKey        string
	GeminiKey      string
	AnthropicKey   string
	HuggingFaceKey string
	OllamaURL      string

	// Overrides maps a generation model name to a concrete upstream model id.
	Overrides map[string]string
}

var defaultUpstream = map[string]string{
	ModelGemini:          "gemini-1.5-flash",
	ModelQwen:            "qwen-vl-max",
	ModelGPT4:            "gpt-4o",
	ModelLlamaVision:     "llama3.2-vision",
	ModelPixtral:         "pixtral-12b-2409",
	ModelMolmo:           "allenai/Molmo-7B-D-0924",
	ModelGroqLlamaVision: "llama-3.2-90b-vision-preview",
	ModelClaude:          "claude-3-5-sonnet-latest",
}

func IsSupported(name string) bool {
	_, ok := defaultUpstream[name]
	return ok
}

func (s Settings) upstream(name string) string {
	if m, ok := s.Overrides[name]; ok && m != "" {
		return m
	}
	return defaultUpstream[name]
}

func NewLLMProvider(ctx context.Context, name string, s Settings) (llm.LLMProvider, error) {
	model := s.upstream(name)
	switch name {
	case ModelGPT4:
		return requireKey(name, s.OpenAIKey, func() llm.LLMProvider {
			return openai.NewProvider(s.OpenAIKey, "", model)
		})
	case ModelQwen:
		return requireKey(name, s.DashscopeKey, func() llm.LLMProvider {
			return openai.NewProvider(s.DashscopeKey, dashscopeURL, model)
		})
	case ModelPixtral:
		return requireKey(name, s.MistralKey, func() llm.LLMProvider {
			return openai.NewProvider(s.MistralKey, mistralURL, model)
		})
	case ModelGroqLlamaVision:
		return requireKey(name, s.GroqKey, func() llm.LLMProvider {
			return openai.NewProvider(s.GroqKey, groqURL, model)
		})
	case ModelClaude:
		return requireKey(name, s.AnthropicKey, func() llm.LLMProvider {
			return anthropic.NewProvider(s.AnthropicKey, model)
		})
	case ModelGemini:
		if s.GeminiKey == "" {
			return nil, fmt.Errorf("generation model %s: missing API key", name)
		}
		return gemini.NewProvider(ctx, s.GeminiKey, model)
	case ModelLlamaVision:
		baseURL := s.OllamaURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewProvider(baseURL, model), nil
	case ModelMolmo:
		return huggingface.NewProvider(s.HuggingFaceKey, "", model), nil
	default:
		return nil, fmt.Errorf("unsupported generation model: %s", name)
	}
}

func requireKey(name, key string, build func() llm.LLMProvider) (llm.LLMProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("generation model %s: missing API key", name)
	}
	return build(), nil
}

// Registry builds each provider once and reuses it across requests.
type Registry struct {
	mu        sync.Mutex
	settings  Settings
	providers map[string]llm.LLMProvider
}

func NewRegistry(s Settings) *Registry {
	return &Registry{settings: s, providers: map[string]llm.LLMProvider{}}
}

func (r *Registry) Get(ctx context.Context, name string) (llm.LLMProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	p, err := NewLLMProvider(ctx, name, r.settings)
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	return p, nil
}

// Register installs a provider under name, replacing any built one.
func (r *Registry) Register(name string, p llm.LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}
