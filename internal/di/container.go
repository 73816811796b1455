package di

import (
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/api"
	"github.com/perry/email-evolve/internal/classifier"
	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/discovery"
	"github.com/perry/email-evolve/internal/evolve"
	"github.com/perry/email-evolve/internal/factory"
	"github.com/perry/email-evolve/internal/logging"
	"github.com/perry/email-evolve/internal/training"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register taxonomy
	if err := container.Provide(config.DefaultTaxonomy); err != nil {
		return nil, err
	}

	// Register typed configuration sections
	if err := container.Provide(func(cfg *config.Config) config.EvolveConfig {
		return cfg.GetEvolve()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) config.DiscoveryConfig {
		return cfg.GetDiscovery()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) config.TrainingConfig {
		return cfg.GetTraining()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) config.APIConfig {
		return cfg.GetAPI()
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewOracleFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewMailFactory); err != nil {
		return nil, err
	}

	// Register email store
	if err := container.Provide(func(f *factory.StoreFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register naming oracle
	if err := container.Provide(func(f *factory.OracleFactory) (core.NamingOracle, error) {
		return f.CreateOracle()
	}); err != nil {
		return nil, err
	}

	// Register mail ingestion sources
	if err := container.Provide(func(f *factory.MailFactory) core.AccountSource {
		return f.CreateAccountSource()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) core.MailSource {
		return f.CreateMailSource()
	}); err != nil {
		return nil, err
	}

	// Register model provider
	if err := container.Provide(func(cfg config.TrainingConfig) core.ModelProvider {
		return training.NewProvider(cfg)
	}); err != nil {
		return nil, err
	}

	// Register domain services
	if err := container.Provide(classifier.New); err != nil {
		return nil, err
	}
	if err := container.Provide(discovery.New); err != nil {
		return nil, err
	}
	if err := container.Provide(training.New); err != nil {
		return nil, err
	}
	if err := container.Provide(evolve.New); err != nil {
		return nil, err
	}

	// Register scheduler
	if err := container.Provide(func(o *evolve.Orchestrator, cfg *config.Config, logger *zap.Logger) (*evolve.Scheduler, error) {
		interval, err := cfg.GetDuration("evolve.schedule_interval")
		if err != nil {
			return nil, fmt.Errorf("invalid schedule interval: %w", err)
		}
		return evolve.NewScheduler(o, interval, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register API server
	if err := container.Provide(api.NewServer); err != nil {
		return nil, err
	}

	return container, nil
}
