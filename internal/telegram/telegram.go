package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Telegram Bot API client.
type Client struct {
	apiBase     string
	fileAPIBase string
	httpClient  *http.Client
}

// NewClient creates a Telegram client for the given bot API base URL
// (e.g. "https://api.telegram.org/bot<token>") and file API base URL
// (e.g. "https://api.telegram.org/file/bot<token>").
func NewClient(apiBase, fileAPIBase string, requestTimeout time.Duration) *Client {
	return &Client{
		apiBase:     apiBase,
		fileAPIBase: fileAPIBase,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Response is the generic Telegram API response wrapper.
type Response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// Update represents an incoming update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents an inbound message.
type Message struct {
	Chat  Chat    `json:"chat"`
	Text  *string `json:"text,omitempty"`
	Voice *Voice  `json:"voice,omitempty"`
	Date  int64   `json:"date"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Voice is a voice-note attachment; FileID resolves to the audio bytes via
// GetFile + DownloadFile.
type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type,omitempty"`
}

// GetUpdates calls the getUpdates API with long-poll timeout in seconds.
func (c *Client) GetUpdates(offset int64, timeout int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeout))

	resp, err := c.httpClient.Get(c.apiBase + "/getUpdates?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read getUpdates response: %w", err)
	}

	var tgResp Response
	if err := json.Unmarshal(body, &tgResp); err != nil {
		return nil, fmt.Errorf("failed to parse getUpdates response: %w", err)
	}

	if !tgResp.OK {
		return nil, nil
	}

	var updates []Update
	if err := json.Unmarshal(tgResp.Result, &updates); err != nil {
		return nil, fmt.Errorf("failed to parse getUpdates result: %w", err)
	}
	return updates, nil
}

// SendMessage sends a plain-text message to the given chat.
func (c *Client) SendMessage(chatID int64, text string) error {
	return c.send(chatID, text, "")
}

// SendMarkdown sends a Markdown-formatted message to the given chat.
func (c *Client) SendMarkdown(chatID int64, text string) error {
	return c.send(chatID, text, "Markdown")
}

func (c *Client) send(chatID int64, text, parseMode string) error {
	limited := truncate(text, 3900)
	payload := fmt.Sprintf(`{"chat_id":%d,"text":%s}`, chatID, jsonString(limited))
	if parseMode != "" {
		payload = fmt.Sprintf(`{"chat_id":%d,"text":%s,"parse_mode":%s}`,
			chatID, jsonString(limited), jsonString(parseMode))
	}

	resp, err := c.httpClient.Post(
		c.apiBase+"/sendMessage",
		"application/json",
		strings.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("telegram sendMessage request failed: %w", err)
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body) // drain
	return nil
}

// SendChatAction sends a chat action (e.g. "typing") to the given chat.
func (c *Client) SendChatAction(chatID int64, action string) error {
	payload := fmt.Sprintf(`{"chat_id":%d,"action":%s}`, chatID, jsonString(action))
	resp, err := c.httpClient.Post(
		c.apiBase+"/sendChatAction",
		"application/json",
		strings.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("telegram sendChatAction request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.ReadAll(resp.Body)
	return nil
}

type tgFile struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// FetchFile resolves a file_id to its server path and downloads the bytes.
func (c *Client) FetchFile(fileID string) ([]byte, error) {
	params := url.Values{}
	params.Set("file_id", fileID)

	resp, err := c.httpClient.Get(c.apiBase + "/getFile?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("telegram getFile request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read getFile response: %w", err)
	}

	var tgResp Response
	if err := json.Unmarshal(body, &tgResp); err != nil {
		return nil, fmt.Errorf("failed to parse getFile response: %w", err)
	}
	if !tgResp.OK {
		return nil, fmt.Errorf("telegram getFile rejected file_id=%s", fileID)
	}

	var file tgFile
	if err := json.Unmarshal(tgResp.Result, &file); err != nil {
		return nil, fmt.Errorf("failed to parse getFile result: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile returned empty file_path for file_id=%s", fileID)
	}

	dlResp, err := c.httpClient.Get(c.fileAPIBase + "/" + file.FilePath)
	if err != nil {
		return nil, fmt.Errorf("telegram file download failed: %w", err)
	}
	defer dlResp.Body.Close()

	if dlResp.StatusCode < 200 || dlResp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram file download non-success status=%d", dlResp.StatusCode)
	}
	data, err := io.ReadAll(dlResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloaded file: %w", err)
	}
	return data, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
