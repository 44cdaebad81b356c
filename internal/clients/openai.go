// Package clients provides the adapters for external APIs: source hosts
// (GitHub, GitLab), generative text providers (OpenAI, langchaingo backends),
// social platforms (Twitter/X, Bluesky) and Discord webhook notifications.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikelady/commitcast/internal/services"
)

// DefaultChatModel is cheap enough for drafting short posts
const DefaultChatModel = "gpt-4o-mini"

// OpenAIClient is the production client for the OpenAI chat completions API
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	chatModel   string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOpenAIClient creates a new OpenAI API client. chatModel can be empty to
// use DefaultChatModel.
func NewOpenAIClient(apiKey, baseURL, chatModel string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	return &OpenAIClient{
		apiKey:      apiKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		chatModel:   chatModel,
		temperature: 0.7,
		maxTokens:   500,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

var _ services.ChatClient = (*OpenAIClient)(nil)

// CreateChatCompletion sends prompt as a single user message and returns the
// first choice.
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model": c.chatModel,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %v", services.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", services.ErrProviderFailed, err)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if resp.StatusCode != http.StatusOK {
		// error bodies are JSON when the API produced them, anything else is kept raw
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &response) == nil && response.Error.Message != "" {
			detail = response.Error.Message
		}
		return "", openAIStatusError(resp.StatusCode, response.Error.Code, detail)
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", services.ErrProviderFailed, err)
	}

	if response.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", services.ErrProviderFailed, response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", services.ErrProviderFailed)
	}

	return response.Choices[0].Message.Content, nil
}

// openAIStatusError maps an API error response onto the shared taxonomy
func openAIStatusError(status int, code, detail string) error {
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: OpenAI API error %d: %s", services.ErrAuthFailed, status, detail)
	case status == http.StatusTooManyRequests || code == "insufficient_quota":
		return fmt.Errorf("%w: OpenAI API error %d: %s", services.ErrQuotaExceeded, status, detail)
	default:
		return fmt.Errorf("%w: OpenAI API error %d: %s", services.ErrProviderFailed, status, detail)
	}
}
