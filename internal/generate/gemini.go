package generate

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/errors"
)

// GeminiOptions configures a GeminiProvider.
type GeminiOptions struct {
	APIKey     string
	TextModel  string // default: gemini-2.5-flash
	ImageModel string // default: gemini-2.5-flash-image
}

// GeminiProvider generates through the Gemini API. Unlike the OpenAI images
// endpoint it sends every reference photo along with the prompt.
type GeminiProvider struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

// NewGeminiProvider creates a Gemini API client for opts.
func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	p := &GeminiProvider{
		client:     client,
		textModel:  opts.TextModel,
		imageModel: opts.ImageModel,
	}
	if p.textModel == "" {
		p.textModel = "gemini-2.5-flash"
	}
	if p.imageModel == "" {
		p.imageModel = "gemini-2.5-flash-image"
	}
	return p, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// NeedsImageBytes reports that references are uploaded as inline bytes.
func (p *GeminiProvider) NeedsImageBytes() bool { return true }

// GenerateText runs the prompt against the text model.
func (p *GeminiProvider) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.textModel,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}, cfg)
	if err != nil {
		return "", p.wrap(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: no text returned")
	}
	return text, nil
}

// GenerateImage sends the prompt followed by the main reference and the
// auxiliary references, in order, and returns the first inline image as a
// data URI.
func (p *GeminiProvider) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	refs := append([]creation.Image{req.Main}, req.Auxiliary...)
	for _, ref := range refs {
		part, err := imagePart(ref)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.imageModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}})
	if err != nil {
		return "", p.wrap(err)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return encodeDataURI(part.InlineData.MIMEType, part.InlineData.Data), nil
		}
	}
	return "", fmt.Errorf("gemini: no image returned")
}

// wrap turns API errors into StatusErrors so the service can classify them.
func (p *GeminiProvider) wrap(err error) error {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return &StatusError{Provider: p.Name(), StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if stderrors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Provider: p.Name(), StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini: %w", err)
}

// imagePart decodes a data URI reference into an inline part.
func imagePart(img creation.Image) (*genai.Part, error) {
	data, err := img.Decode()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.NewInvalidImage(-1, "image payload is empty")
	}
	return genai.NewPartFromBytes(data, img.MIMEType()), nil
}

func encodeDataURI(mime string, data []byte) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
