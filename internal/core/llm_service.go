package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// TextGenerator is the text half of the generative backend. A non-nil
// schema asks for schema-conformant JSON instead of free text.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

type LLMService struct {
	client    *genai.Client
	modelName string
	logger    *zap.SugaredLogger
}

func NewLLMService(ctx context.Context, apiKey, modelName string, logger *zap.SugaredLogger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Errorf("Error closing GenAI client: %v", err)
		} else {
			s.logger.Info("GenAI client closed.")
		}
	}
}

func (s *LLMService) GenerateText(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	model := s.client.GenerativeModel(s.modelName)
	if schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("Gemini response was empty or had no valid candidates/parts.")
		return "", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debugf("Gemini response part was not text: %T", part)
		}
	}
	return responseText.String(), nil
}
