package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal OpenAI API client covering chat completions and
// audio transcriptions.
type Client struct {
	apiKey        string
	chatURL       string
	transcribeURL string
	httpClient    *http.Client
}

// NewClient creates an OpenAI client.
func NewClient(apiKey, chatURL, transcribeURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:        apiKey,
		chatURL:       chatURL,
		transcribeURL: transcribeURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Message represents a chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError is a failed OpenAI call. Code carries the structured error code
// from the response body when the API provided one.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai status=%d code=%s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("openai status=%d: %s", e.Status, e.Message)
}

// QuotaExhausted reports whether the failure is the account running out of
// credits. The structured code is authoritative; the substring check is a
// fallback for gateways that only return freeform text.
func (e *APIError) QuotaExhausted() bool {
	if e.Code == "insufficient_quota" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "insufficient_quota")
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// ChatCompletion sends a chat completion request for the given model and
// returns the assistant's reply text.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:    model,
		Messages: messages,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed reading openai response: %w", err)
	}

	var parsed chatResponse
	if unmarshalErr := json.Unmarshal(body, &parsed); unmarshalErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", &APIError{Status: resp.StatusCode, Message: truncate(string(body), 400)}
		}
		return "", fmt.Errorf("failed to parse openai response: %s", truncate(string(body), 400))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: truncate(string(body), 400)}
		if parsed.Error != nil {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		}
		return "", apiErr
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai returned empty content")
	}
	return content, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
