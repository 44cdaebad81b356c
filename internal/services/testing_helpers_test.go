package services

import (
	"context"
	"errors"
	"sync"
)

// MockChatClient replays scripted responses in order and records prompts
type MockChatClient struct {
	mu        sync.Mutex
	Responses []string
	Errors    []error
	Prompts   []string
}

func (m *MockChatClient) CreateChatCompletion(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.Prompts)
	m.Prompts = append(m.Prompts, prompt)

	if i < len(m.Errors) && m.Errors[i] != nil {
		return "", m.Errors[i]
	}
	if i < len(m.Responses) {
		return m.Responses[i], nil
	}
	if len(m.Responses) > 0 {
		return m.Responses[len(m.Responses)-1], nil
	}
	return "", errors.New("mock: no response scripted")
}

// Calls returns the number of completions requested
func (m *MockChatClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// MockSocialClient records posts and returns a scripted result
type MockSocialClient struct {
	mu          sync.Mutex
	PostErr     error
	ValidateErr error
	NilResult   bool
	Posted      []PostContent
}

func (m *MockSocialClient) Post(ctx context.Context, content PostContent) (*PostResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Posted = append(m.Posted, content)
	if m.PostErr != nil {
		return nil, m.PostErr
	}
	if m.NilResult {
		return nil, nil
	}
	return &PostResult{PostID: "post-1", PostURL: "https://example.com/post-1"}, nil
}

func (m *MockSocialClient) ValidateContent(content PostContent) error {
	return m.ValidateErr
}

func (m *MockSocialClient) Platform() string {
	return PlatformTwitter
}
