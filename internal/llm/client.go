// Package llm is a minimal client for the Ollama chat API. The query engine
// uses it to reach the middleware, and the middleware uses it to reach the
// model server.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/liliang-cn/ragchat/internal/domain"
)

// Config configures a Client
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client talks to POST <base_url>/api/chat with streaming disabled
type Client struct {
	config     Config
	httpClient *http.Client
}

// StatusError is returned when the server answers with a non-200 status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// NewClient creates a new chat client
func NewClient(cfg Config) *Client {
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the model name attached to every request
func (c *Client) Model() string {
	return c.config.Model
}

// Do sends one chat request and decodes the response. The request's model and
// stream fields are overwritten with the client's model and false.
func (c *Client) Do(ctx context.Context, messages []domain.Message) (*domain.BackendChatResponse, error) {
	reqBody := domain.BackendChatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp domain.BackendChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return &chatResp, nil
}

// Chat sends the messages and returns the assistant's reply text
func (c *Client) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	resp, err := c.Do(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp.Message == nil {
		return "", nil
	}
	return resp.Message.Content, nil
}

// Complete sends a single user prompt
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []domain.Message{{Role: domain.RoleUser, Content: prompt}})
}
