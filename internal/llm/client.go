package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hession/memochat/internal/errs"
)

// Temperature is fixed for every outbound request
const Temperature = 0.7

// Client chat-completions client for one provider
type Client struct {
	provider     Provider
	apiKey       string
	baseURL      string
	temperature  float64
	genericError string
	httpClient   *http.Client
}

// Message message structure
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in outbound messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// chatRequest chat request
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// chatResponse API response
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// New creates a new provider client. timeout bounds the whole request.
func New(provider Provider, apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		provider:     provider,
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		temperature:  Temperature,
		genericError: fmt.Sprintf("Error calling the %s API", provider.DisplayName()),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithGenericError sets the message used when a failed response carries none
func (c *Client) WithGenericError(msg string) *Client {
	if msg != "" {
		c.genericError = msg
	}
	return c
}

// Provider returns the provider this client talks to
func (c *Client) Provider() Provider {
	return c.provider
}

// Complete sends one chat request and returns the first choice's content
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to serialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.ProviderError, "llm.complete", c.genericError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return "", errs.New(errs.ProviderError, "llm.complete", c.errorMessage(body))
	}

	return c.handleResponse(resp.Body)
}

// errorMessage extracts error.message from a failed response body
func (c *Client) errorMessage(body []byte) string {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	return c.genericError
}

// handleResponse handles a 2xx response
func (c *Client) handleResponse(body io.Reader) (string, error) {
	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", errs.Wrap(errs.ProviderError, "llm.complete", "failed to parse response", err)
	}

	if resp.Error != nil && resp.Error.Message != "" {
		return "", errs.New(errs.ProviderError, "llm.complete", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", errs.New(errs.ProviderError, "llm.complete", "API returned empty response")
	}

	return resp.Choices[0].Message.Content, nil
}
