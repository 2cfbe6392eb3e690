package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/clone-chat/backend/internal/config"
)

// ChainGenerator runs the flattened prompt through an Eino chain ending in
// a chat model.
type ChainGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkGenerator creates a chain generator backed by Volcengine Ark.
func NewArkGenerator(ctx context.Context, cfg config.AIConfig) (*ChainGenerator, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChainGenerator(ctx, chatModel)
}

// NewChainGenerator compiles a single-message chain around chatModel.
func NewChainGenerator(ctx context.Context, chatModel model.ChatModel) (*ChainGenerator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &ChainGenerator{chain: runnable}, nil
}

// Generate invokes the chain with the prompt as the only user message.
func (g *ChainGenerator) Generate(ctx context.Context, text string) (string, error) {
	response, err := g.chain.Invoke(ctx, map[string]any{"prompt": text})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", errors.New("chat model returned no message")
	}
	return response.Content, nil
}
