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
	"unicode/utf8"

	"github.com/mikelady/commitcast/internal/services"
)

// Twitter platform constants
const (
	TwitterCharLimit      = 280
	TwitterDefaultBaseURL = "https://api.twitter.com"
)

// Compile-time interface compliance check
var _ services.SocialClient = (*TwitterClient)(nil)

// TwitterClient implements SocialClient for the X (Twitter) API v2 using an
// OAuth 2.0 user-context access token.
type TwitterClient struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

// NewTwitterClient creates a new X API client
func NewTwitterClient(accessToken, baseURL string) *TwitterClient {
	if baseURL == "" {
		baseURL = TwitterDefaultBaseURL
	}

	return &TwitterClient{
		accessToken: accessToken,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Platform returns the platform identifier
func (c *TwitterClient) Platform() string {
	return services.PlatformTwitter
}

// Post creates a tweet, as a reply when ThreadID is set
func (c *TwitterClient) Post(ctx context.Context, content services.PostContent) (*services.PostResult, error) {
	if err := c.ValidateContent(content); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"text": content.Text,
	}
	if content.ThreadID != nil && *content.ThreadID != "" {
		payload["reply"] = map[string]string{
			"in_reply_to_tweet_id": *content.ThreadID,
		}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create tweet: %v", services.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", services.ErrProviderFailed, err)
	}

	if err := twitterStatusError(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var tweetResp struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &tweetResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", services.ErrProviderFailed, err)
	}
	if tweetResp.Data.ID == "" {
		return nil, fmt.Errorf("%w: response carried no tweet id", services.ErrProviderFailed)
	}

	return &services.PostResult{
		PostID:   tweetResp.Data.ID,
		PostURL:  "https://x.com/i/status/" + tweetResp.Data.ID,
		Platform: services.PlatformTwitter,
	}, nil
}

// ValidateContent checks the text against the tweet length limit
func (c *TwitterClient) ValidateContent(content services.PostContent) error {
	if strings.TrimSpace(content.Text) == "" {
		return fmt.Errorf("%w: tweet must have text", services.ErrValidation)
	}
	if n := utf8.RuneCountInString(content.Text); n > TwitterCharLimit {
		return fmt.Errorf("%w: text exceeds %d character limit (got %d)", services.ErrValidation, TwitterCharLimit, n)
	}
	return nil
}

// twitterStatusError maps X API failures onto the shared taxonomy. 402 is
// returned when the account has no posting credits left.
func twitterStatusError(status int, body []byte) error {
	var apiErr struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	detail := truncateBody(body)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
		detail = apiErr.Detail
	}

	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		return nil
	case status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", services.ErrCreditsDepleted, detail)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", services.ErrInsufficientPermissions, detail)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", services.ErrAuthFailed, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", services.ErrQuotaExceeded, detail)
	default:
		return fmt.Errorf("%w: X API %d: %s", services.ErrProviderFailed, status, detail)
	}
}
