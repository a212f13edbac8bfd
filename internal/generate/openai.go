package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes bounds provider response bodies. b64 images are large.
const maxResponseBytes = 32 << 20

// OpenAIOptions configures an OpenAIProvider.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string // default: https://api.openai.com/v1
	TextModel  string // default: gpt-4o
	ImageModel string // default: dall-e-3
	HTTPClient *http.Client
}

// OpenAIProvider talks to the OpenAI chat completions and image generation
// endpoints, or any server that speaks the same JSON.
//
// The images endpoint takes no reference photos; the prompt carries the
// subject and style and the references only count toward the prompt note.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	httpClient *http.Client
}

// NewOpenAIProvider returns a provider for opts. The API key is required.
func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai: API key not configured")
	}
	p := &OpenAIProvider{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		textModel:  opts.TextModel,
		imageModel: opts.ImageModel,
		httpClient: opts.HTTPClient,
	}
	if p.baseURL == "" {
		p.baseURL = "https://api.openai.com/v1"
	}
	if p.textModel == "" {
		p.textModel = "gpt-4o"
	}
	if p.imageModel == "" {
		p.imageModel = "dall-e-3"
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	return p, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type imageGenRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageGenResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText sends one system and one user message and returns the first choice.
func (p *OpenAIProvider) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	var resp chatResponse
	if err := p.post(ctx, "/chat/completions", chatRequest{
		Model:     p.textModel,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateImage requests one 1024x1024 image and returns its URL, or a data
// URI when the server answers with b64_json.
func (p *OpenAIProvider) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	var resp imageGenResponse
	if err := p.post(ctx, "/images/generations", imageGenRequest{
		Model:  p.imageModel,
		Prompt: req.Prompt,
		N:      1,
		Size:   "1024x1024",
	}, &resp); err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "", fmt.Errorf("openai: no image returned")
	}
	if u := resp.Data[0].URL; u != "" {
		return u, nil
	}
	if b := resp.Data[0].B64JSON; b != "" {
		return "data:image/png;base64," + b, nil
	}
	return "", fmt.Errorf("openai: image has neither url nor b64_json")
}

func (p *OpenAIProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("openai: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("openai: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		var apiErr apiErrorBody
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != nil {
			msg = apiErr.Error.Message
		}
		return &StatusError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("openai: failed to parse response: %w", err)
	}
	return nil
}
