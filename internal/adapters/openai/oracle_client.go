package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/core"
)

// OpenAIOracle is an implementation of the NamingOracle interface using OpenAI
type OpenAIOracle struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewOpenAIOracle creates a new OpenAI naming oracle
func NewOpenAIOracle(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *OpenAIOracle {
	return &OpenAIOracle{
		client:      openai.NewClient(apiKey),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// ProposeCategory asks the model whether a cluster deserves a new category
func (c *OpenAIOracle) ProposeCategory(ctx context.Context, req *core.NamingRequest) (*core.NamingResponse, error) {
	request := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email taxonomy curator. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt(),
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: "json_object"}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := core.ParseNamingResponse(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("Unparseable oracle response",
			zap.String("provider", "openai"),
			zap.String("model", c.modelName))
		return nil, err
	}
	return parsed, nil
}
