package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/ZanzyTHEbar/squadgen/sqg/features"
)

// FeatureDBProvider caches converted feature sets in a local libsql database,
// replacing ad-hoc cache files next to the training data.
type FeatureDBProvider struct {
	db *sql.DB
}

// NewFeatureDBProvider opens or initializes the feature cache at dbPath.
func NewFeatureDBProvider(dbPath string) (*FeatureDBProvider, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache directory: %w", err)
	}

	slog.Info("Feature cache path:", "path", dbPath)

	db, err := connect(dbPath)
	if err != nil {
		return nil, err
	}

	provider := &FeatureDBProvider{db: db}
	if err := provider.init(); err != nil {
		db.Close()
		return nil, err
	}
	return provider, nil
}

// connect opens a local libsql database file.
func connect(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("libsql", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database at %s: %w", dbPath, err)
	}
	return db, nil
}

// init sets up the cache tables.
func (p *FeatureDBProvider) init() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY UNIQUE,
		cache_key TEXT UNIQUE NOT NULL,
		input_path TEXT,
		max_seq_length INTEGER,
		doc_stride INTEGER,
		max_answer_length INTEGER,
		max_query_length INTEGER,
		feature_count INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create datasets table: %w", err)
	}

	_, err = p.db.Exec(`CREATE TABLE IF NOT EXISTS features (
		id TEXT PRIMARY KEY UNIQUE,
		dataset_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tokens BLOB,
		input_ids BLOB,
		input_mask BLOB,
		segment_ids BLOB,
		output_ids BLOB,
		FOREIGN KEY(dataset_id) REFERENCES datasets(id)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create features table: %w", err)
	}

	_, err = p.db.Exec(`CREATE INDEX IF NOT EXISTS idx_features_dataset_seq
		ON features(dataset_id, seq)`)
	if err != nil {
		return fmt.Errorf("failed to create features index: %w", err)
	}

	return nil
}

// SaveDataset stores a converted feature set under its cache key, replacing
// any previous dataset with the same key.
func (p *FeatureDBProvider) SaveDataset(key CacheKey, feats []features.Feature) (uuid.UUID, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be a no-op if transaction is committed

	if err := deleteByKey(tx, key); err != nil {
		return uuid.Nil, err
	}

	datasetID := uuid.New()
	_, err = tx.Exec(`INSERT INTO datasets
		(id, cache_key, input_path, max_seq_length, doc_stride, max_answer_length, max_query_length, feature_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		datasetID, key.String(), key.InputPath,
		key.MaxSeqLength, key.DocStride, key.MaxAnswerLength, key.MaxQueryLength,
		len(feats))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert dataset: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO features
		(id, dataset_id, seq, tokens, input_ids, input_mask, segment_ids, output_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer stmt.Close()

	for seq, feat := range feats {
		row, err := encodeFeature(feat)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to encode feature %d: %w", seq, err)
		}
		if _, err := stmt.Exec(uuid.New(), datasetID, seq,
			row.tokens, row.inputIDs, row.inputMask, row.segmentIDs, row.outputIDs); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert feature %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("Saved dataset", "id", datasetID, "cache_key", key.String(), "features", len(feats))

	return datasetID, nil
}

// LoadDataset returns the cached feature set for key, or ok=false on a miss.
func (p *FeatureDBProvider) LoadDataset(key CacheKey) ([]features.Feature, bool, error) {
	var (
		datasetID uuid.UUID
		count     int
	)
	err := p.db.QueryRow(`SELECT id, feature_count FROM datasets WHERE cache_key = ?`,
		key.String()).Scan(&datasetID, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up dataset: %w", err)
	}

	rows, err := p.db.Query(`SELECT tokens, input_ids, input_mask, segment_ids, output_ids
		FROM features WHERE dataset_id = ? ORDER BY seq`, datasetID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	feats := make([]features.Feature, 0, count)
	for rows.Next() {
		var row featureRow
		if err := rows.Scan(&row.tokens, &row.inputIDs, &row.inputMask, &row.segmentIDs, &row.outputIDs); err != nil {
			return nil, false, fmt.Errorf("failed to scan feature: %w", err)
		}
		feat, err := decodeFeature(row)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode feature %d: %w", len(feats), err)
		}
		feats = append(feats, feat)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate features: %w", err)
	}

	if len(feats) != count {
		return nil, false, fmt.Errorf("dataset %s is corrupt: expected %d features, found %d",
			key.String(), count, len(feats))
	}

	return feats, true, nil
}

// DatasetExists reports whether a dataset is cached under key.
func (p *FeatureDBProvider) DatasetExists(key CacheKey) (bool, error) {
	var id uuid.UUID
	err := p.db.QueryRow(`SELECT id FROM datasets WHERE cache_key = ?`, key.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check dataset: %w", err)
	}
	return true, nil
}

// DeleteDataset removes the dataset cached under key, if any.
func (p *FeatureDBProvider) DeleteDataset(key CacheKey) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteByKey(tx, key); err != nil {
		return err
	}

	return tx.Commit()
}

// ListDatasets returns every cached dataset, newest first.
func (p *FeatureDBProvider) ListDatasets() ([]Dataset, error) {
	rows, err := p.db.Query(`SELECT id, cache_key, input_path, feature_count, created_at
		FROM datasets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []Dataset
	for rows.Next() {
		var ds Dataset
		if err := rows.Scan(&ds.ID, &ds.CacheKey, &ds.InputPath, &ds.FeatureCount, &ds.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

// Close releases the underlying database handle.
func (p *FeatureDBProvider) Close() error {
	return p.db.Close()
}

var _ IFeatureStore = (*FeatureDBProvider)(nil)

func deleteByKey(tx *sql.Tx, key CacheKey) error {
	_, err := tx.Exec(`DELETE FROM features WHERE dataset_id IN
		(SELECT id FROM datasets WHERE cache_key = ?)`, key.String())
	if err != nil {
		return fmt.Errorf("failed to delete stale features: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM datasets WHERE cache_key = ?`, key.String()); err != nil {
		return fmt.Errorf("failed to delete stale dataset: %w", err)
	}
	return nil
}

// featureRow is the serialized form of one feature: JSON arrays per column so
// the cache stays inspectable with plain sqlite tooling.
type featureRow struct {
	tokens     []byte
	inputIDs   []byte
	inputMask  []byte
	segmentIDs []byte
	outputIDs  []byte
}

func encodeFeature(feat features.Feature) (featureRow, error) {
	var (
		row featureRow
		err error
	)
	if row.tokens, err = json.Marshal(feat.Tokens); err != nil {
		return row, err
	}
	if row.inputIDs, err = json.Marshal(feat.InputIDs); err != nil {
		return row, err
	}
	if row.inputMask, err = json.Marshal(feat.InputMask); err != nil {
		return row, err
	}
	if row.segmentIDs, err = json.Marshal(feat.SegmentIDs); err != nil {
		return row, err
	}
	row.outputIDs, err = json.Marshal(feat.OutputIDs)
	return row, err
}

func decodeFeature(row featureRow) (features.Feature, error) {
	var feat features.Feature
	if err := json.Unmarshal(row.tokens, &feat.Tokens); err != nil {
		return feat, err
	}
	if err := json.Unmarshal(row.inputIDs, &feat.InputIDs); err != nil {
		return feat, err
	}
	if err := json.Unmarshal(row.inputMask, &feat.InputMask); err != nil {
		return feat, err
	}
	if err := json.Unmarshal(row.segmentIDs, &feat.SegmentIDs); err != nil {
		return feat, err
	}
	if err := json.Unmarshal(row.outputIDs, &feat.OutputIDs); err != nil {
		return feat, err
	}
	return feat, nil
}
