package ai

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"

	"github.com/zhouzirui/clone-chat/backend/internal/config"
)

// GeminiGenerator calls the Gemini API with fixed sampling parameters.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiGenerator creates a generator from the AI configuration.
func NewGeminiGenerator(ctx context.Context, cfg config.AIConfig) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, ErrMissingCredential
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.GeminiAPIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.GeminiBaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  cfg.GeminiModel,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(cfg.Temperature)),
			TopP:            genai.Ptr(float32(cfg.TopP)),
			TopK:            genai.Ptr(float32(cfg.TopK)),
			MaxOutputTokens: int32(cfg.MaxTokens),
		},
	}, nil
}

// Generate sends the prompt as a single user turn and returns the reply
// text verbatim, which may be empty.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	if len(result.Candidates) > 0 {
		candidate := result.Candidates[0]
		switch candidate.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
			log.Printf("[ai] gemini output blocked, model=%s, finish_reason=%s", g.model, candidate.FinishReason)
			return "", fmt.Errorf("gemini content blocked (%s)", candidate.FinishReason)
		case genai.FinishReasonMaxTokens:
			log.Printf("[ai] gemini output truncated at token limit, model=%s", g.model)
		}
	}

	text := result.Text()
	if text == "" {
		log.Printf("[ai] gemini returned empty text, model=%s", g.model)
	}
	return text, nil
}
