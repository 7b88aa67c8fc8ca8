package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the firewall.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	Gateway   GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	Detectors DetectorsConfig `yaml:"detectors" mapstructure:"detectors"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	TenantID  string          `yaml:"tenant_id" mapstructure:"tenant_id"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	RequestLogging  bool          `yaml:"request_logging" mapstructure:"request_logging"`
}

// GetAddress returns the server address in host:port format.
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig describes the upstream LLM echo service.
type BackendConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GatewayConfig holds request-gateway behaviour.
type GatewayConfig struct {
	AnalyzeEgress bool `yaml:"analyze_egress" mapstructure:"analyze_egress"`
}

// DetectorsConfig holds default models and backend endpoints per detector kind.
type DetectorsConfig struct {
	PromptInjection string          `yaml:"prompt_injection" mapstructure:"prompt_injection"`
	PII             string          `yaml:"pii" mapstructure:"pii"`
	Toxicity        string          `yaml:"toxicity" mapstructure:"toxicity"`
	RulesPath       string          `yaml:"rules_path" mapstructure:"rules_path"`
	Embedding       EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Inference       InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Analyzer        AnalyzerConfig  `yaml:"analyzer" mapstructure:"analyzer"`
	WarmupPrompt    string          `yaml:"warmup_prompt" mapstructure:"warmup_prompt"`
}

// InferenceConfig points at the text-classification service used by the
// label-based prompt-injection and toxicity detectors.
type InferenceConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AnalyzerConfig points at the PII entity analyzer service.
type AnalyzerConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig points at the HTTP embedding service used by the
// custom_onnx prompt-injection detector.
type EmbeddingConfig struct {
	URL        string        `yaml:"url" mapstructure:"url"`
	Model      string        `yaml:"model" mapstructure:"model"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// PolicyConfig holds policy-engine configuration.
type PolicyConfig struct {
	Evaluator string         `yaml:"evaluator" mapstructure:"evaluator"` // "table" or "external"
	RulesPath string         `yaml:"rules_path" mapstructure:"rules_path"`
	External  ExternalConfig `yaml:"external" mapstructure:"external"`
	FailOpen  bool           `yaml:"fail_open" mapstructure:"fail_open"`
}

// ExternalConfig describes the external decision service (OPA-compatible).
type ExternalConfig struct {
	EngineURL  string `yaml:"engine_url" mapstructure:"engine_url"`
	PolicyName string `yaml:"policy_name" mapstructure:"policy_name"`
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path"`
}

// MetricsConfig holds the rolling metrics store configuration.
type MetricsConfig struct {
	MaxEvents int `yaml:"max_events" mapstructure:"max_events"`
}

// BenchmarkConfig holds benchmark engine configuration.
type BenchmarkConfig struct {
	DBPath               string `yaml:"db_path" mapstructure:"db_path"`
	MaxConcurrentSamples int    `yaml:"max_concurrent_samples" mapstructure:"max_concurrent_samples"`
	BatchSize            int    `yaml:"batch_size" mapstructure:"batch_size"`
	DatasetDir           string `yaml:"dataset_dir" mapstructure:"dataset_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	LogDir     string `yaml:"log_dir" mapstructure:"log_dir"`
	FileOutput bool   `yaml:"file_output" mapstructure:"file_output"`
}

// Validate checks cross-field constraints once at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url must not be empty")
	}
	if c.Metrics.MaxEvents <= 0 {
		return fmt.Errorf("metrics max_events must be positive, got %d", c.Metrics.MaxEvents)
	}
	if c.Benchmark.MaxConcurrentSamples <= 0 {
		return fmt.Errorf("benchmark max_concurrent_samples must be positive, got %d", c.Benchmark.MaxConcurrentSamples)
	}
	if c.Benchmark.BatchSize <= 0 {
		return fmt.Errorf("benchmark batch_size must be positive, got %d", c.Benchmark.BatchSize)
	}
	switch c.Policy.Evaluator {
	case "table", "external":
	default:
		return fmt.Errorf("unknown policy evaluator: %s", c.Policy.Evaluator)
	}
	return nil
}
