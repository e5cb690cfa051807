// Package ollama provides the default EmbeddingClient/ChatClient
// implementation, talking to a local Ollama-compatible HTTP endpoint.
// Adapted from the teacher's internal/ai Ollama client: same request
// shapes against /api/embeddings and /api/chat, same availability
// probe against /api/tags.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sporenet/sporenet/internal/providers"
)

// Client is an HTTP-backed EmbeddingClient and ChatClient.
type Client struct {
	baseURL        string
	embeddingModel string
	chatModel      string
	httpClient     *http.Client
}

// Config configures a Client.
type Config struct {
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Timeout        time.Duration
}

// New creates a Client, filling in the teacher's verified defaults for
// any zero-valued field.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:        cfg.BaseURL,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if c.baseURL == "" {
		c.baseURL = "http://localhost:11434"
	}
	if c.embeddingModel == "" {
		c.embeddingModel = "nomic-embed-text"
	}
	if c.chatModel == "" {
		c.chatModel = "qwen2.5:3b"
	}
	if c.httpClient.Timeout == 0 {
		c.httpClient.Timeout = 60 * time.Second
	}
	return c
}

// IsAvailable probes the server for reachability.
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements providers.EmbeddingClient.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.embeddingModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	return er.Embedding, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponseEnvelope struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Chat implements providers.ChatClient.
func (c *Client) Chat(ctx context.Context, messages []providers.ChatMessage, opts *providers.ChatOptions) (*providers.ChatResult, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	reqBody := chatRequest{Model: c.chatModel, Messages: msgs, Stream: false}
	if opts != nil {
		reqBody.Options = chatOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	return &providers.ChatResult{Text: cr.Message.Content}, nil
}

var _ providers.EmbeddingClient = (*Client)(nil)
var _ providers.ChatClient = (*Client)(nil)
