package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mikelady/commitcast/internal/services"
)

// Bluesky platform constants
const (
	BlueskyCharLimit  = 300
	BlueskyDefaultPDS = "https://bsky.social"
)

// Compile-time interface compliance check
var _ services.SocialClient = (*BlueskyClient)(nil)

// BlueskyClient implements SocialClient for Bluesky (AT Protocol) using an
// app password.
type BlueskyClient struct {
	handle      string
	appPassword string
	pdsURL      string
	client      *http.Client
	now         func() time.Time

	// Session state (populated after auth)
	mu        sync.Mutex
	accessJwt string
	did       string
}

// NewBlueskyClient creates a new Bluesky API client
func NewBlueskyClient(handle, appPassword, pdsURL string) *BlueskyClient {
	if pdsURL == "" {
		pdsURL = BlueskyDefaultPDS
	}

	return &BlueskyClient{
		handle:      handle,
		appPassword: appPassword,
		pdsURL:      strings.TrimSuffix(pdsURL, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
}

// Platform returns the platform identifier
func (c *BlueskyClient) Platform() string {
	return services.PlatformBluesky
}

// Authenticate creates a session with Bluesky
func (c *BlueskyClient) Authenticate(ctx context.Context) error {
	_, _, err := c.createSession(ctx)
	return err
}

// createSession authenticates with Bluesky and stores the session tokens
func (c *BlueskyClient) createSession(ctx context.Context) (string, string, error) {
	payload := map[string]string{
		"identifier": c.handle,
		"password":   c.appPassword,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/xrpc/com.atproto.server.createSession", c.pdsURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to create session: %v", services.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to read response: %v", services.ErrProviderFailed, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return "", "", fmt.Errorf("%w: Bluesky rejected the app password", services.ErrAuthFailed)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: Bluesky session %d - %s", services.ErrProviderFailed, resp.StatusCode, truncateBody(body))
	}

	var sessionResp struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return "", "", fmt.Errorf("%w: failed to parse session response: %v", services.ErrProviderFailed, err)
	}

	c.mu.Lock()
	c.accessJwt = sessionResp.AccessJwt
	c.did = sessionResp.DID
	c.mu.Unlock()

	return sessionResp.AccessJwt, sessionResp.DID, nil
}

// session returns the current tokens, authenticating first if needed
func (c *BlueskyClient) session(ctx context.Context) (string, string, error) {
	c.mu.Lock()
	jwt, did := c.accessJwt, c.did
	c.mu.Unlock()

	if jwt != "" {
		return jwt, did, nil
	}
	return c.createSession(ctx)
}

// Post creates a new Bluesky post
func (c *BlueskyClient) Post(ctx context.Context, content services.PostContent) (*services.PostResult, error) {
	if err := c.ValidateContent(content); err != nil {
		return nil, err
	}

	jwt, did, err := c.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	record := map[string]interface{}{
		"$type":     "app.bsky.feed.post",
		"text":      content.Text,
		"createdAt": c.now().UTC().Format(time.RFC3339),
	}

	if content.ThreadID != nil && *content.ThreadID != "" {
		ref := map[string]string{"uri": *content.ThreadID, "cid": ""}
		record["reply"] = map[string]interface{}{
			"root":   ref,
			"parent": ref,
		}
	}

	payload := map[string]interface{}{
		"repo":       did,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/xrpc/com.atproto.repo.createRecord", c.pdsURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+jwt)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create post: %v", services.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", services.ErrProviderFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: Bluesky rate limit reached", services.ErrQuotaExceeded)
	case resp.StatusCode == http.StatusUnauthorized:
		// Clear session to force re-auth on the next attempt
		c.mu.Lock()
		c.accessJwt = ""
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: Bluesky session expired", services.ErrAuthFailed)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: Bluesky refused the post", services.ErrInsufficientPermissions)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: Bluesky post %d - %s", services.ErrProviderFailed, resp.StatusCode, truncateBody(body))
	}

	var postResp struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := json.Unmarshal(body, &postResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", services.ErrProviderFailed, err)
	}

	return &services.PostResult{
		PostID:   postResp.URI,
		PostURL:  c.ATURIToWebURL(postResp.URI),
		Platform: services.PlatformBluesky,
	}, nil
}

// ATURIToWebURL converts an AT Protocol URI to a Bluesky web URL:
// at://did:plc:xxx/app.bsky.feed.post/rkey becomes
// https://bsky.app/profile/handle/post/rkey
func (c *BlueskyClient) ATURIToWebURL(atURI string) string {
	parts := strings.Split(atURI, "/")
	if len(parts) >= 5 {
		rkey := parts[len(parts)-1]
		return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", c.handle, rkey)
	}

	return atURI
}

// ValidateContent checks if content is valid for Bluesky. The limit counts
// characters, not bytes.
func (c *BlueskyClient) ValidateContent(content services.PostContent) error {
	if strings.TrimSpace(content.Text) == "" {
		return fmt.Errorf("%w: post must have text", services.ErrValidation)
	}

	if n := utf8.RuneCountInString(content.Text); n > BlueskyCharLimit {
		return fmt.Errorf("%w: text exceeds %d character limit (got %d)", services.ErrValidation, BlueskyCharLimit, n)
	}

	return nil
}

// IsAuthenticated returns true if the client has a valid session
func (c *BlueskyClient) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessJwt != ""
}
