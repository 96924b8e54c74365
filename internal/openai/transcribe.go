package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

type transcribeResponse struct {
	Text  string        `json:"text"`
	Error *apiErrorBody `json:"error"`
}

// Transcribe uploads WAV audio to the transcription endpoint and returns the
// transcript text.
func (c *Client) Transcribe(ctx context.Context, model string, wavData []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("model", model); err != nil {
		return "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	part, err := writer.CreateFormFile("file", "voice.wav")
	if err != nil {
		return "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.transcribeURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed reading transcription response: %w", err)
	}

	var parsed transcribeResponse
	if unmarshalErr := json.Unmarshal(body, &parsed); unmarshalErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", &APIError{Status: resp.StatusCode, Message: truncate(string(body), 400)}
		}
		return "", fmt.Errorf("failed to parse transcription response: %s", truncate(string(body), 400))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: truncate(string(body), 400)}
		if parsed.Error != nil {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		}
		return "", apiErr
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", fmt.Errorf("transcription returned empty text")
	}
	return text, nil
}
