package config

import "time"

// EvolveConfig represents the tuning knobs for the evolution loop
type EvolveConfig struct {
	MarginThreshold        float64
	ConfidenceThreshold    float64
	MinClusterSize         int
	MinNewLabelsForRetrain int
	BatchSize              int
	HomogeneityThreshold   float64
	RegressionThreshold    float64
}

// DiscoveryConfig represents the configuration for category discovery
type DiscoveryConfig struct {
	Eps            float64
	MinSamples     int
	MaxVocab       int
	TopTerms       int
	SampleCount    int
	CandidateLimit int
}

// TrainingConfig represents the configuration for model training
type TrainingConfig struct {
	MaxVocab       int
	NumTrees       int
	TestFraction   float64
	MinEvalSamples int
	ModelDir       string
}

// OracleConfig represents the configuration for the naming oracle provider
type OracleConfig struct {
	Provider string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// StorageConfig represents the configuration for the email store backend
type StorageConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// MailConfig represents the configuration for mail ingestion
type MailConfig struct {
	SpoolDir  string
	TokensDir string
}

// APIConfig represents the configuration for the serving API
type APIConfig struct {
	ListenAddress    string
	MaxBatchIDs      int
	CacheTTL         time.Duration
	CacheCleanupFreq time.Duration
}

// GetEvolve returns the evolution loop configuration
func (c *Config) GetEvolve() EvolveConfig {
	return EvolveConfig{
		MarginThreshold:        c.GetFloat64("evolve.margin_threshold"),
		ConfidenceThreshold:    c.GetFloat64("evolve.confidence_threshold"),
		MinClusterSize:         c.GetInt("evolve.min_cluster_size"),
		MinNewLabelsForRetrain: c.GetInt("evolve.min_new_labels_for_retrain"),
		BatchSize:              c.GetInt("evolve.batch_size"),
		HomogeneityThreshold:   c.GetFloat64("evolve.homogeneity_threshold"),
		RegressionThreshold:    c.GetFloat64("evolve.regression_threshold"),
	}
}

// GetDiscovery returns the category discovery configuration
func (c *Config) GetDiscovery() DiscoveryConfig {
	return DiscoveryConfig{
		Eps:            c.GetFloat64("discovery.eps"),
		MinSamples:     c.GetInt("discovery.min_samples"),
		MaxVocab:       c.GetInt("discovery.max_vocab"),
		TopTerms:       c.GetInt("discovery.top_terms"),
		SampleCount:    c.GetInt("discovery.sample_count"),
		CandidateLimit: c.GetInt("discovery.candidate_limit"),
	}
}

// GetTraining returns the model training configuration
func (c *Config) GetTraining() TrainingConfig {
	return TrainingConfig{
		MaxVocab:       c.GetInt("training.max_vocab"),
		NumTrees:       c.GetInt("training.num_trees"),
		TestFraction:   c.GetFloat64("training.test_fraction"),
		MinEvalSamples: c.GetInt("training.min_eval_samples"),
		ModelDir:       c.GetString("training.model_dir"),
	}
}

// GetOracle returns the naming oracle configuration
func (c *Config) GetOracle() OracleConfig {
	return OracleConfig{
		Provider: c.GetString("oracle.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetStorage returns the email store configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:       c.GetString("storage.type"),
		SQLitePath: c.GetString("storage.sqlite_path"),
		MySQLDSN:   c.GetString("storage.mysql_dsn"),
	}
}

// GetMail returns the mail ingestion configuration
func (c *Config) GetMail() MailConfig {
	return MailConfig{
		SpoolDir:  c.GetString("mail.spool_dir"),
		TokensDir: c.GetString("mail.tokens_dir"),
	}
}

// GetAPI returns the serving API configuration
func (c *Config) GetAPI() APIConfig {
	return APIConfig{
		ListenAddress:    c.GetString("api.listen_address"),
		MaxBatchIDs:      c.GetInt("api.max_batch_ids"),
		CacheTTL:         c.v.GetDuration("api.cache_ttl"),
		CacheCleanupFreq: c.v.GetDuration("api.cache_cleanup_frequency"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}
