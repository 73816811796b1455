package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/adapters/bedrock"
	"github.com/perry/email-evolve/internal/adapters/gemini"
	"github.com/perry/email-evolve/internal/adapters/openai"
	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
)

// OracleFactory creates naming oracle clients
type OracleFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewOracleFactory creates a new oracle factory
func NewOracleFactory(cfg *config.Config, logger *zap.Logger) *OracleFactory {
	return &OracleFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateOracle creates a naming oracle based on the configuration
func (f *OracleFactory) CreateOracle() (core.NamingOracle, error) {
	oracleCfg := f.cfg.GetOracle()

	switch oracleCfg.Provider {
	case "openai":
		return f.createOpenAI()
	case "gemini":
		return f.createGemini()
	case "bedrock":
		return f.createBedrock()
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", oracleCfg.Provider)
	}
}

func (f *OracleFactory) createOpenAI() (core.NamingOracle, error) {
	cfg := f.cfg.GetOpenAI()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return openai.NewOpenAIOracle(
		cfg.APIKey,
		cfg.ModelName,
		cfg.MaxTokens,
		cfg.Temperature,
		cfg.TopP,
		f.logger,
	), nil
}

func (f *OracleFactory) createGemini() (core.NamingOracle, error) {
	cfg := f.cfg.GetGemini()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	return gemini.NewGeminiOracle(
		cfg.APIKey,
		cfg.ModelName,
		cfg.MaxTokens,
		cfg.Temperature,
		cfg.TopP,
		f.logger,
	)
}

func (f *OracleFactory) createBedrock() (core.NamingOracle, error) {
	cfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	return bedrock.NewBedrockOracle(
		client,
		cfg.ModelID,
		cfg.MaxTokens,
		cfg.Temperature,
		cfg.TopP,
		f.logger,
	), nil
}
