package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ImageGenerator is the image half of the generative backend.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (data []byte, mimeType string, err error)
}

// ImageService talks to the image model through the unified genai SDK; the
// legacy SDK used for text cannot request image output.
type ImageService struct {
	client    *genai.Client
	modelName string
	logger    *zap.SugaredLogger
}

func NewImageService(ctx context.Context, apiKey, modelName string, logger *zap.SugaredLogger) (*ImageService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI image client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ImageService{client: client, modelName: modelName, logger: logger}, nil
}

func (s *ImageService) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.modelName, genai.Text(prompt), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
	})
	if err != nil {
		return nil, "", fmt.Errorf("gemini image request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", ErrNoImage
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return part.InlineData.Data, mime, nil
		}
	}
	s.logger.Debug("Gemini image response carried no inline data")
	return nil, "", ErrNoImage
}
