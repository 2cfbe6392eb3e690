package ai

import (
	"context"

	"github.com/zhouzirui/clone-chat/backend/internal/config"
)

// Generator turns one prompt into one reply using a hosted model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewGenerator selects the generator of the configured provider. It returns
// nil without error when no credential is configured so the client can
// report ErrMissingCredential per request.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case config.ProviderArk:
		gen, err := NewArkGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		gen, err := NewGeminiGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return gen, nil
	}
}
