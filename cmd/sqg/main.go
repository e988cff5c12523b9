package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/squadgen/sqg"
	"github.com/ZanzyTHEbar/squadgen/sqg/config"
	"github.com/ZanzyTHEbar/squadgen/sqg/db"
	"github.com/ZanzyTHEbar/squadgen/sqg/features"
	"github.com/ZanzyTHEbar/squadgen/sqg/tokenizer"
)

var (
	configPath = flag.String("config", "", "Path to the config file (searches standard locations when empty)")
	inputPath  = flag.String("input", "", "Path to the JSON training data (overrides config)")
	outputPath = flag.String("output", "", "Path for the JSONL feature output, '-' for stdout (overrides config)")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	logger := internal.GetLogger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	if *inputPath != "" {
		cfg.Input = *inputPath
	}
	if *outputPath != "" {
		cfg.Output = *outputPath
	}
	if cfg.Input == "" {
		fmt.Fprintln(os.Stderr, "no input file: pass -input or set input in the config")
		return 2
	}

	setupLogging(cfg.LogLevel)

	opts := cfg.FeatureOptions()
	if err := opts.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid pipeline configuration")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tok, err := tokenizer.New(cfg.Tokenizer.Kind, cfg.Tokenizer.VocabPath)
	if err != nil {
		logger.Error().Err(err).Str("kind", cfg.Tokenizer.Kind).Msg("Failed to construct tokenizer")
		return 1
	}

	var store db.IFeatureStore
	if cfg.Cache.Enabled {
		provider, err := db.NewFeatureDBProvider(cfg.Cache.Path)
		if err != nil {
			slog.Warn("Feature cache unavailable, converting without it", "error", err)
		} else {
			store = provider
			defer provider.Close()
		}
	}

	key := db.KeyFromOptions(cfg.Input, opts)
	if store != nil {
		feats, ok, err := store.LoadDataset(key)
		if err != nil {
			slog.Warn("Feature cache lookup failed", "error", err)
		} else if ok {
			slog.Info("Loaded features from cache", "cache_key", key.String(), "features", len(feats))
			return writeFeatures(cfg.Output, feats, logger)
		}
	}

	slog.Info("Creating features from dataset file at:", "path", cfg.Input)

	entries, err := readEntries(cfg.Input)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Input).Msg("Failed to read training data")
		return 1
	}

	converter, err := features.NewConverter(tok, assert.NewAssertHandler(), opts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build converter")
		return 2
	}

	result, err := converter.Convert(ctx, entries)
	if err != nil {
		logger.Error().Err(err).Msg("Conversion failed")
		return 1
	}

	if store != nil {
		if _, err := store.SaveDataset(key, result.Features); err != nil {
			slog.Warn("Failed to cache features", "cache_key", key.String(), "error", err)
		}
	}

	return writeFeatures(cfg.Output, result.Features, logger)
}

func readEntries(path string) ([]features.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return features.DecodeEntries(f)
}

// writeFeatures emits one JSON object per feature, in order, for the
// downstream trainer.
func writeFeatures(path string, feats []features.Feature, logger zerolog.Logger) int {
	out := os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("Failed to create output file")
			return 1
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for i, feat := range feats {
		if err := enc.Encode(feat); err != nil {
			logger.Error().Err(err).Int("feature", i).Msg("Failed to write feature")
			return 1
		}
	}
	if err := w.Flush(); err != nil {
		logger.Error().Err(err).Msg("Failed to flush output")
		return 1
	}
	return 0
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
