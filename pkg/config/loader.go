package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// fileYAMLConfig mirrors reviewforge.yaml's top-level shape.
type fileYAMLConfig struct {
	Store      *StoreConfig       `yaml:"store"`
	Vault      *VaultConfig       `yaml:"vault"`
	HTTP       *HTTPConfig        `yaml:"http"`
	Runtime    *RuntimeConfig     `yaml:"runtime"`
	Ingestion  *IngestionDefaults `yaml:"ingestion"`
	Analysis   *AnalysisDefaults  `yaml:"analysis"`
	PromptsDir string             `yaml:"prompts_dir"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load reviewforge.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user-defined configuration onto built-in defaults
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"store_host", cfg.Store.Host,
		"store_database", cfg.Store.Database,
		"http_addr", cfg.HTTP.Addr,
		"analysis_provider", cfg.Analysis.Provider)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	fileCfg, err := loader.loadReviewforgeYAML()
	if err != nil {
		return nil, NewLoadError("reviewforge.yaml", err)
	}

	store := DefaultStoreConfig()
	if fileCfg.Store != nil {
		if err := mergo.Merge(&store, fileCfg.Store, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge store config: %w", err)
		}
	}

	vault := DefaultVaultConfig()
	if fileCfg.Vault != nil {
		if err := mergo.Merge(&vault, fileCfg.Vault, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge vault config: %w", err)
		}
	}

	httpCfg := DefaultHTTPConfig()
	if fileCfg.HTTP != nil {
		if err := mergo.Merge(&httpCfg, fileCfg.HTTP, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge http config: %w", err)
		}
	}

	runtime := DefaultRuntimeConfig()
	if fileCfg.Runtime != nil {
		if err := mergo.Merge(&runtime, fileCfg.Runtime, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge runtime config: %w", err)
		}
	}

	ingestion := DefaultIngestionDefaults()
	if fileCfg.Ingestion != nil {
		if err := mergo.Merge(&ingestion, fileCfg.Ingestion, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge ingestion defaults: %w", err)
		}
	}

	analysis := DefaultAnalysisDefaults()
	if fileCfg.Analysis != nil {
		if err := mergo.Merge(&analysis, fileCfg.Analysis, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge analysis defaults: %w", err)
		}
	}

	promptsDir := fileCfg.PromptsDir
	if promptsDir == "" {
		promptsDir = filepath.Join(configDir, "prompts")
	}

	return &Config{
		configDir:  configDir,
		Store:      store,
		Vault:      vault,
		HTTP:       httpCfg,
		Runtime:    runtime,
		Ingestion:  ingestion,
		Analysis:   analysis,
		PromptsDir: promptsDir,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Note: ExpandEnv cannot fail; unset variables expand to the empty string,
	// and any malformed content is left for the YAML parser to report.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadReviewforgeYAML() (*fileYAMLConfig, error) {
	var cfg fileYAMLConfig
	if err := l.loadYAML("reviewforge.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
