package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/perry/email-evolve/internal/core"
)

// GeminiOracle is an implementation of the NamingOracle interface using Google Gemini
type GeminiOracle struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

// NewGeminiOracle creates a new Gemini naming oracle
func NewGeminiOracle(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) (*GeminiOracle, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiOracle{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiOracle) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ProposeCategory asks the model whether a cluster deserves a new category
func (c *GeminiOracle) ProposeCategory(ctx context.Context, req *core.NamingRequest) (*core.NamingResponse, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(req.Prompt()))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	parsed, err := core.ParseNamingResponse(responseText)
	if err != nil {
		c.logger.Warn("Unparseable oracle response",
			zap.String("provider", "gemini"),
			zap.String("model", c.modelName))
		return nil, err
	}
	return parsed, nil
}
