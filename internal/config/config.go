package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/email-evolve/")
	v.AddConfigPath("$HOME/.email-evolve")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("EMAIL_EVOLVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Evolution loop defaults
	v.SetDefault("evolve.margin_threshold", 0.15)
	v.SetDefault("evolve.confidence_threshold", 0.5)
	v.SetDefault("evolve.min_cluster_size", 20)
	v.SetDefault("evolve.min_new_labels_for_retrain", 50)
	v.SetDefault("evolve.schedule_interval", "6h")
	v.SetDefault("evolve.batch_size", 100)
	v.SetDefault("evolve.homogeneity_threshold", 0.8)
	v.SetDefault("evolve.regression_threshold", 0.05)

	// Discovery defaults
	v.SetDefault("discovery.eps", 0.5)
	v.SetDefault("discovery.min_samples", 10)
	v.SetDefault("discovery.max_vocab", 3000)
	v.SetDefault("discovery.top_terms", 10)
	v.SetDefault("discovery.sample_count", 3)
	v.SetDefault("discovery.candidate_limit", 500)

	// Training defaults
	v.SetDefault("training.max_vocab", 5000)
	v.SetDefault("training.num_trees", 100)
	v.SetDefault("training.test_fraction", 0.2)
	v.SetDefault("training.min_eval_samples", 10)
	v.SetDefault("training.model_dir", "data/model")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite_path", "data/emails.db")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/email_evolve")

	// Oracle provider defaults
	v.SetDefault("oracle.provider", "openai")

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 500)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 500)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	// Mail ingestion defaults
	v.SetDefault("mail.spool_dir", "data/spool")
	v.SetDefault("mail.tokens_dir", "tokens")

	// API defaults
	v.SetDefault("api.listen_address", "127.0.0.1:5544")
	v.SetDefault("api.max_batch_ids", 200)
	v.SetDefault("api.cache_ttl", "5m")
	v.SetDefault("api.cache_cleanup_frequency", "1m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
