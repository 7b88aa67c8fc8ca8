package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8080
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestLogging:  false,
		},
		Backend: BackendConfig{
			URL:     "http://backend:8000",
			Timeout: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			AnalyzeEgress: false,
		},
		Detectors: DetectorsConfig{
			PromptInjection: "custom_onnx",
			PII:             "presidio",
			Toxicity:        "detoxify",
			RulesPath:       "config/heuristic_rules.yaml",
			WarmupPrompt:    "hello, how are you today?",
			Embedding: EmbeddingConfig{
				URL:        "http://ollama:11434",
				Model:      "nomic-embed-text:v1.5",
				Timeout:    30 * time.Second,
				MaxRetries: 3,
			},
			Inference: InferenceConfig{
				URL:     "http://inference:8001",
				Timeout: 10 * time.Second,
			},
			Analyzer: AnalyzerConfig{
				URL:     "http://presidio:5002",
				Timeout: 10 * time.Second,
			},
		},
		Policy: PolicyConfig{
			Evaluator: "table",
			RulesPath: "config/policies.yaml",
			External: ExternalConfig{
				EngineURL:  "http://localhost:8181",
				PolicyName: "firewall/policy",
				PolicyPath: "config/policies.rego",
			},
			FailOpen: true,
		},
		Metrics: MetricsConfig{
			MaxEvents: 500,
		},
		Benchmark: BenchmarkConfig{
			DBPath:               "benchmarks.db",
			MaxConcurrentSamples: 10,
			BatchSize:            50,
			DatasetDir:           "data",
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogDir:     "logs",
			FileOutput: false,
		},
		TenantID: "default",
	}
}

// Load loads configuration from file and environment variables.
// Precedence: FIREWALL_* env > config file > defaults. The legacy
// BACKEND_URL, TENANT_ID and BENCHMARK_DB_PATH variables are honoured last
// so existing deployments keep working.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("FIREWALL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("FIREWALL_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	applyLegacyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyLegacyEnv(cfg *Config) {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("TENANT_ID"); v != "" {
		cfg.TenantID = v
	}
	if v := os.Getenv("BENCHMARK_DB_PATH"); v != "" {
		cfg.Benchmark.DBPath = v
	}
}
