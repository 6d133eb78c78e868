package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenerationService wraps the one-shot Gemini calls used outside the live
// stream: turn translation, phrasing suggestions, and scene images. It
// implements ports.TextGenerator and ports.ImageGenerator.
type GenerationService struct {
	cfg    Config
	client *genai.Client
}

func NewGenerationService(ctx context.Context, cfg Config) (*GenerationService, error) {
	cfg = normalize(cfg)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GenerationService{cfg: cfg, client: client}, nil
}

func (s *GenerationService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.cfg.TextModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("text generation returned an empty response")
	}
	return text, nil
}

func (s *GenerationService) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.cfg.ImageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, errors.New("image generation returned no image data")
}
