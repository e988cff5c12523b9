package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/squadgen/sqg/features"
)

// MockFeatureStore is an in-memory mock for FeatureDBProvider
type MockFeatureStore struct {
	mu       sync.Mutex
	datasets map[string]Dataset
	features map[string][]features.Feature
}

func NewMockFeatureStore() *MockFeatureStore {
	return &MockFeatureStore{
		datasets: make(map[string]Dataset),
		features: make(map[string][]features.Feature),
	}
}

func (m *MockFeatureStore) SaveDataset(key CacheKey, feats []features.Feature) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	m.datasets[key.String()] = Dataset{
		ID:           id,
		CacheKey:     key.String(),
		InputPath:    key.InputPath,
		FeatureCount: len(feats),
		CreatedAt:    time.Now(),
	}
	stored := make([]features.Feature, len(feats))
	copy(stored, feats)
	m.features[key.String()] = stored
	return id, nil
}

func (m *MockFeatureStore) LoadDataset(key CacheKey) ([]features.Feature, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	feats, exists := m.features[key.String()]
	if !exists {
		return nil, false, nil
	}
	out := make([]features.Feature, len(feats))
	copy(out, feats)
	return out, true, nil
}

func (m *MockFeatureStore) DatasetExists(key CacheKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.datasets[key.String()]
	return exists, nil
}

func (m *MockFeatureStore) DeleteDataset(key CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.datasets[key.String()]; !exists {
		return fmt.Errorf("no dataset cached under %s", key.String())
	}
	delete(m.datasets, key.String())
	delete(m.features, key.String())
	return nil
}

func (m *MockFeatureStore) ListDatasets() ([]Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	datasets := make([]Dataset, 0, len(m.datasets))
	for _, ds := range m.datasets {
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

func (m *MockFeatureStore) Close() error {
	return nil
}

// Compile-time check to ensure the mock implements the interface.
var _ IFeatureStore = (*MockFeatureStore)(nil)
