package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Lideeyah/DevAssist-sub000/internal/config"
)

// maxResponseSize limits the inference response body to prevent memory
// exhaustion on a misbehaving provider.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message is one entry in a conversational request.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// GenParams are the fixed generation parameters applied per attempt.
type GenParams struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// RemoteClient is the remote inference surface the orchestrator
// dispatches against. Chat sends a messages array; Complete sends a
// flat prompt. Both return trimmed generated text.
type RemoteClient interface {
	Chat(ctx context.Context, model string, messages []Message, p GenParams) (string, error)
	Complete(ctx context.Context, model, prompt string, p GenParams) (string, error)
}

// Client calls a Hugging-Face-style inference provider over HTTP.
// The chat convention goes through an OpenAI-compatible router; the
// completion convention posts directly to the model's inference URL.
type Client struct {
	httpClient    *http.Client
	token         string
	chatBaseURL   string
	completionURL string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// NewClient creates an inference client from config.
func NewClient(cfg config.InferenceConfig, opts ...ClientOption) *Client {
	c := &Client{
		token:         cfg.APIToken,
		chatBaseURL:   strings.TrimSuffix(cfg.ChatBaseURL, "/"),
		completionURL: strings.TrimSuffix(cfg.CompletionURL, "/"),
		httpClient: &http.Client{
			// Per-attempt deadlines come from the caller's context; this is
			// a hard stop for attempts dispatched without one.
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CredentialOK is the basic shape check applied before any remote
// attempt: Hugging Face API tokens start with "hf_" and are well over
// twenty characters.
func CredentialOK(token string) bool {
	return strings.HasPrefix(token, "hf_") && len(token) >= 20
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat dispatches via the conversational convention and decodes
// choices[0].message.content. Any other shape fails the attempt.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, p GenParams) (string, error) {
	body := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		TopP:        p.TopP,
	}

	data, err := c.post(ctx, c.chatBaseURL+"/chat/completions", body)
	if err != nil {
		return "", err
	}

	var decoded chatResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat response content is empty")
	}
	return text, nil
}

type completionRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters completionParameters `json:"parameters"`
}

type completionParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

// Complete dispatches via the plain completion convention. The provider
// answers in one of three known shapes: an array whose first element
// carries generated_text, a bare object with generated_text, or a plain
// JSON string. Anything else fails closed as an attempt failure.
func (c *Client) Complete(ctx context.Context, model, promptText string, p GenParams) (string, error) {
	body := completionRequest{
		Inputs: promptText,
		Parameters: completionParameters{
			MaxNewTokens:   p.MaxTokens,
			Temperature:    p.Temperature,
			TopP:           p.TopP,
			ReturnFullText: false,
		},
	}

	data, err := c.post(ctx, c.completionURL+"/"+model, body)
	if err != nil {
		return "", err
	}

	text, err := decodeCompletion(data)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("completion response text is empty")
	}
	return text, nil
}

type generatedText struct {
	GeneratedText string `json:"generated_text"`
}

// decodeCompletion resolves the completion response's tagged union
// explicitly instead of probing fields at call sites.
func decodeCompletion(data []byte) (string, error) {
	var asArray []generatedText
	if err := json.Unmarshal(data, &asArray); err == nil {
		if len(asArray) == 0 {
			return "", fmt.Errorf("completion response array is empty")
		}
		return asArray[0].GeneratedText, nil
	}

	var asObject generatedText
	if err := json.Unmarshal(data, &asObject); err == nil && asObject.GeneratedText != "" {
		return asObject.GeneratedText, nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		return asString, nil
	}

	return "", fmt.Errorf("unrecognized completion response shape")
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return data, nil
}
