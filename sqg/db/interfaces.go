package db

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/squadgen/sqg/features"
)

// CacheKey identifies one converted dataset: the input file plus every length
// budget that shaped its features. Any change to either invalidates the cache.
type CacheKey struct {
	InputPath       string
	MaxSeqLength    int
	DocStride       int
	MaxAnswerLength int
	MaxQueryLength  int
}

// KeyFromOptions builds the cache key for an input file under the given
// pipeline options.
func KeyFromOptions(inputPath string, opts features.Options) CacheKey {
	return CacheKey{
		InputPath:       inputPath,
		MaxSeqLength:    opts.MaxSeqLength,
		DocStride:       opts.DocStride,
		MaxAnswerLength: opts.MaxAnswerLength,
		MaxQueryLength:  opts.MaxQueryLength,
	}
}

// String renders the key in the historical cache-file format:
// name_maxSeq_docStride_maxAnswer_maxQuery.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s_%d_%d_%d_%d",
		filepath.Base(k.InputPath), k.MaxSeqLength, k.DocStride, k.MaxAnswerLength, k.MaxQueryLength)
}

// Dataset describes one cached conversion run.
type Dataset struct {
	ID           uuid.UUID
	CacheKey     string
	InputPath    string
	FeatureCount int
	CreatedAt    time.Time
}

// IFeatureStore is the interface for feature cache operations (using I prefix
// to avoid naming conflict with implementations)
type IFeatureStore interface {
	SaveDataset(key CacheKey, feats []features.Feature) (uuid.UUID, error)
	LoadDataset(key CacheKey) ([]features.Feature, bool, error)
	DatasetExists(key CacheKey) (bool, error)
	DeleteDataset(key CacheKey) error
	ListDatasets() ([]Dataset, error)
	Close() error
}
