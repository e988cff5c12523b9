package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/squadgen/sqg"
	"github.com/ZanzyTHEbar/squadgen/sqg/features"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Features  FeaturesConfig  `mapstructure:"features"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Input     string          `mapstructure:"input"`
	Output    string          `mapstructure:"output"`
	LogLevel  string          `mapstructure:"logLevel"`
}

// FeaturesConfig stores the sequence length budgets.
type FeaturesConfig struct {
	MaxSeqLength    int `mapstructure:"maxSeqLength"`
	DocStride       int `mapstructure:"docStride"`
	MaxQueryLength  int `mapstructure:"maxQueryLength"`
	MaxAnswerLength int `mapstructure:"maxAnswerLength"`
}

// TokenizerConfig selects the tokenizer implementation and its vocabulary.
type TokenizerConfig struct {
	Kind      string `mapstructure:"kind"`
	VocabPath string `mapstructure:"vocabPath"`
}

// PipelineConfig stores conversion-run behavior.
type PipelineConfig struct {
	Workers     int  `mapstructure:"workers"`
	Strict      bool `mapstructure:"strict"`
	LogFeatures int  `mapstructure:"logFeatures"`
	Progress    bool `mapstructure:"progress"`
}

// CacheConfig stores the feature cache location.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Set default values
	v.SetDefault("features.maxSeqLength", 384)
	v.SetDefault("features.docStride", 128)
	v.SetDefault("features.maxQueryLength", 64)
	v.SetDefault("features.maxAnswerLength", 30)

	v.SetDefault("tokenizer.kind", internal.DefaultTokenizerKind)
	v.SetDefault("tokenizer.vocabPath", internal.DefaultVocabPath)

	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.strict", false)
	v.SetDefault("pipeline.logFeatures", 20)
	v.SetDefault("pipeline.progress", true)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", internal.DefaultFeatureDBPath)

	v.SetDefault("logLevel", "info")

	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. features.maxSeqLength becomes FEATURES_MAXSEQLENGTH

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	if err := v.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}

// FeatureOptions maps the loaded configuration onto pipeline options.
func (c *Config) FeatureOptions() features.Options {
	return features.Options{
		MaxSeqLength:    c.Features.MaxSeqLength,
		DocStride:       c.Features.DocStride,
		MaxQueryLength:  c.Features.MaxQueryLength,
		MaxAnswerLength: c.Features.MaxAnswerLength,
		Workers:         c.Pipeline.Workers,
		Strict:          c.Pipeline.Strict,
		LogFeatures:     c.Pipeline.LogFeatures,
		Progress:        c.Pipeline.Progress,
	}
}
