package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/mikelady/commitcast/internal/services"
)

// Generative providers served through langchaingo
const (
	ProviderAnthropic = "anthropic"
	ProviderGoogleAI  = "googleai"
	ProviderOllama    = "ollama"
	ProviderCohere    = "cohere"
)

// LangChainOptions selects and configures a langchaingo backend
type LangChainOptions struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// defaultModels are used when LangChainOptions.Model is empty
var defaultModels = map[string]string{
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderGoogleAI:  "gemini-1.5-flash",
	ProviderOllama:    "llama3",
	ProviderCohere:    "command-r",
}

// LangChainClient implements services.ChatClient over any langchaingo model
type LangChainClient struct {
	llm     llms.Model
	options LangChainOptions
}

var _ services.ChatClient = (*LangChainClient)(nil)

// NewLangChainClient builds the backend named by options.Provider
func NewLangChainClient(ctx context.Context, options LangChainOptions) (*LangChainClient, error) {
	if options.Model == "" {
		options.Model = defaultModels[options.Provider]
	}

	var (
		model llms.Model
		err   error
	)
	switch options.Provider {
	case ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithToken(options.APIKey),
			anthropic.WithModel(options.Model),
		}
		if options.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(options.BaseURL))
		}
		model, err = anthropic.New(opts...)
	case ProviderGoogleAI:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(options.APIKey),
			googleai.WithDefaultModel(options.Model),
		)
	case ProviderOllama:
		serverURL := options.BaseURL
		if serverURL == "" {
			serverURL = "http://localhost:11434"
		}
		model, err = ollama.New(
			ollama.WithServerURL(serverURL),
			ollama.WithModel(options.Model),
		)
	case ProviderCohere:
		opts := []cohere.Option{
			cohere.WithToken(options.APIKey),
			cohere.WithModel(options.Model),
		}
		if options.BaseURL != "" {
			opts = append(opts, cohere.WithBaseURL(options.BaseURL))
		}
		model, err = cohere.New(opts...)
	default:
		return nil, fmt.Errorf("%w: unsupported AI provider %q", services.ErrValidation, options.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", options.Provider, err)
	}

	return NewLangChainClientWithModel(model, options), nil
}

// NewLangChainClientWithModel wraps an already constructed model
func NewLangChainClientWithModel(model llms.Model, options LangChainOptions) *LangChainClient {
	if options.Temperature == 0 {
		options.Temperature = 0.7
	}
	if options.MaxTokens == 0 {
		options.MaxTokens = 500
	}
	return &LangChainClient{llm: model, options: options}
}

// CreateChatCompletion sends prompt as a single human message
func (c *LangChainClient) CreateChatCompletion(ctx context.Context, prompt string) (string, error) {
	callOptions := []llms.CallOption{
		llms.WithTemperature(c.options.Temperature),
		llms.WithMaxTokens(c.options.MaxTokens),
	}
	if c.options.Provider == ProviderGoogleAI {
		callOptions = append(callOptions, llms.WithModel(c.options.Model))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, callOptions...)
	if err != nil {
		return "", classifyLLMError(c.options.Provider, err)
	}
	return text, nil
}

// classifyLLMError maps provider errors onto the shared taxonomy. langchaingo
// backends do not share typed errors, so the message is inspected.
func classifyLLMError(provider string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %s: %v", services.ErrQuotaExceeded, provider, err)
	case strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "api key"), strings.Contains(msg, "authentication"):
		return fmt.Errorf("%w: %s: %v", services.ErrAuthFailed, provider, err)
	default:
		return fmt.Errorf("%w: %s: %v", services.ErrProviderFailed, provider, err)
	}
}
