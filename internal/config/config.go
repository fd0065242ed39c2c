// Package config loads and validates the configuration snapshot consumed
// by the detection core: document categories, variable descriptors, module
// rules and selection priorities. The portal's admin layer owns this data;
// here it is read once per run, qualified, validated and frozen.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lexflow/internal/catalog"
	"lexflow/internal/namespace"
)

const (
	defaultConfidenceThreshold = 0.5
	defaultMaxConcurrentCalls  = 3
)

// File mirrors the YAML configuration document.
type File struct {
	Detection struct {
		ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
		MaxConcurrentCalls  int      `yaml:"max_concurrent_calls"`
	} `yaml:"detection"`
	AI struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"ai"`
	Categories []catalog.Category          `yaml:"categories"`
	Variables  []catalog.Variable          `yaml:"variables"`
	Priorities map[string]catalog.Priority `yaml:"priorities"`
}

// Load reads the YAML configuration, applying .env and environment
// overrides for the AI settings.
func Load(path string) (*File, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg File
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration YAML: %w", err)
	}

	// 2. Override with environment variables if present
	if apiKey := os.Getenv("LEXFLOW_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("LEXFLOW_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("LEXFLOW_AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}

	return &cfg, nil
}

// Build assembles the immutable snapshot for one run: category ids are
// defaulted, variable slugs and dependency references are qualified by
// namespace, and the full validator chain runs. Any stage failure blocks
// the run before evaluation begins.
func Build(cfg *File, modules []catalog.ModuleRule) (*catalog.Snapshot, []StageResult, error) {
	categories := make([]catalog.Category, len(cfg.Categories))
	copy(categories, cfg.Categories)
	for i := range categories {
		if categories[i].ID == "" {
			categories[i].ID = namespace.Slugify(categories[i].Name)
		}
	}

	qualified, err := namespace.QualifyAll(cfg.Variables, categories)
	if err != nil {
		return nil, nil, fmt.Errorf("namespace qualification failed: %w", err)
	}

	threshold := defaultConfidenceThreshold
	if cfg.Detection.ConfidenceThreshold != nil {
		threshold = *cfg.Detection.ConfidenceThreshold
	}
	concurrency := cfg.Detection.MaxConcurrentCalls
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrentCalls
	}

	snap := &catalog.Snapshot{
		Categories:          categories,
		Variables:           qualified,
		Modules:             modules,
		Priorities:          cfg.Priorities,
		ConfidenceThreshold: threshold,
		MaxConcurrentCalls:  concurrency,
	}

	results := DefaultChain().Run(snap)
	if err := FirstError(results); err != nil {
		return nil, results, err
	}
	return snap, results, nil
}
