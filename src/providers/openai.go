package providers

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/utils"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint
// (OpenAI itself, Groq, local gateways) and surfaces real usage counts.
type OpenAIClient struct {
	id        string
	model     string
	maxTokens int
	client    *openai.Client
}

func NewOpenAIClient(cfg *config.ProviderConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q: missing API key", cfg.ID)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &OpenAIClient{
		id:        cfg.ID,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    openai.NewClientWithConfig(clientCfg),
	}, nil
}

func (c *OpenAIClient) ID() string {
	return c.id
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (*models.Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("provider %s completion failed: %w", c.id, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider %s returned no choices", c.id)
	}

	completion := &models.Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if completion.InputTokens == 0 {
		completion.InputTokens = utils.EstimateTokenCount(prompt)
	}
	if completion.OutputTokens == 0 {
		completion.OutputTokens = utils.EstimateTokenCount(completion.Text)
	}

	return completion, nil
}
