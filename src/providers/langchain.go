// Package providers implements the uniform prompt-in, completion-out
// adapters the selector calls. Each adapter owns the translation to its
// provider's actual wire protocol.
package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/utils"
)

// LangChainClient adapts any langchaingo-supported OpenAI-style model.
type LangChainClient struct {
	id        string
	model     string
	maxTokens int
	llm       llms.Model
}

func NewLangChainClient(cfg *config.ProviderConfig) (*LangChainClient, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain client %q: %w", cfg.ID, err)
	}

	return &LangChainClient{
		id:        cfg.ID,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		llm:       llm,
	}, nil
}

func (c *LangChainClient) ID() string {
	return c.id
}

func (c *LangChainClient) Complete(ctx context.Context, prompt string) (*models.Completion, error) {
	callOptions := []llms.CallOption{
		llms.WithTemperature(0.7),
	}
	if c.maxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(c.maxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, callOptions...)
	if err != nil {
		return nil, fmt.Errorf("provider %s generation failed: %w", c.id, err)
	}

	// langchaingo's single-prompt helper does not surface usage, so
	// token counts are estimated.
	return &models.Completion{
		Text:         text,
		Model:        c.model,
		InputTokens:  utils.EstimateTokenCount(prompt),
		OutputTokens: utils.EstimateTokenCount(text),
	}, nil
}
