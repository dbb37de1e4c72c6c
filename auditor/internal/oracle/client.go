package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxReplyBody caps the response read from the chat server (4 MiB).
const maxReplyBody = 4 << 20

// chatClient talks to an OpenAI-compatible /v1/chat/completions endpoint.
// This covers OpenAI, Gemini's OpenAI endpoint, vLLM and Ollama.
type chatClient struct {
	endpoint string
	cfg      Config
	client   *http.Client
}

func newChatClient(cfg Config) *chatClient {
	return &chatClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/") + "/v1/chat/completions",
		cfg:      cfg,
		// Per-attempt deadlines come from WithTimeout.
		client: &http.Client{},
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *chatClient) Complete(ctx context.Context, p Prompt) (string, error) {
	msg := chatMessage{Role: "user", Content: p.Text}
	if p.ImagePNG != "" {
		msg.Content = []contentPart{
			{Type: "text", Text: p.Text},
			{Type: "image_url", ImageURL: &imageURL{URL: "data:image/png;base64," + p.ImagePNG}},
		}
	}

	temp := c.cfg.Temperature
	if p.Temperature > 0 {
		temp = p.Temperature
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.cfg.Model,
		Messages:       []chatMessage{msg},
		Temperature:    temp,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle: POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		return "", fmt.Errorf("oracle: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(data) > 512 {
			data = data[:512]
		}
		return "", fmt.Errorf("oracle: HTTP %d: %s", resp.StatusCode, data)
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("oracle: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("oracle: no choices returned")
	}
	return cr.Choices[0].Message.Content, nil
}
