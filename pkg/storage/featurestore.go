package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
)

const materializeBatch = 500

// OnlineFeatures is the hot copy of one patient's model features.
type OnlineFeatures struct {
	PatientID     string             `json:"patient_id"`
	SchemaVersion int                `json:"schema_version"`
	RunID         string             `json:"run_id"`
	Features      map[string]float64 `json:"features"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// FeatureStore keeps patient features in Redis for low-latency serving.
type FeatureStore struct {
	client   *redis.Client
	prefix   string
	cacheTTL time.Duration
}

func NewFeatureStore(client *redis.Client, prefix string, ttl time.Duration) *FeatureStore {
	return &FeatureStore{client: client, prefix: prefix, cacheTTL: ttl}
}

func (f *FeatureStore) key(patientID string) string {
	return f.prefix + patientID
}

// MaterializeHotFeatures writes one entry per patient in pipelined batches.
func (f *FeatureStore) MaterializeHotFeatures(ctx context.Context, runID string, schemaVersion int, rows map[string]map[string]float64) (int, error) {
	now := time.Now().UTC()
	pipe := f.client.Pipeline()
	written, pending := 0, 0

	flush := func() error {
		if pending == 0 {
			return nil
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("materialize features: %w", err)
		}
		written += pending
		pending = 0
		return nil
	}

	for patientID, values := range rows {
		data, err := encodeFeatures(OnlineFeatures{
			PatientID:     patientID,
			SchemaVersion: schemaVersion,
			RunID:         runID,
			Features:      values,
			UpdatedAt:     now,
		})
		if err != nil {
			return written, err
		}
		pipe.Set(ctx, f.key(patientID), data, f.cacheTTL)
		pending++
		if pending >= materializeBatch {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"run_id":   runID,
		"patients": written,
		"ttl":      f.cacheTTL.String(),
	}).Info("Materialized hot features to cache")
	return written, nil
}

// GetFeatures returns the cached features of a patient; found is false on a
// cache miss.
func (f *FeatureStore) GetFeatures(ctx context.Context, patientID string) (OnlineFeatures, bool, error) {
	data, err := f.client.Get(ctx, f.key(patientID)).Bytes()
	if err == redis.Nil {
		return OnlineFeatures{}, false, nil
	}
	if err != nil {
		return OnlineFeatures{}, false, fmt.Errorf("get features: %w", err)
	}
	out, err := decodeFeatures(data)
	if err != nil {
		return OnlineFeatures{}, false, err
	}
	return out, true, nil
}

// Invalidate drops every cached patient entry.
func (f *FeatureStore) Invalidate(ctx context.Context) (int, error) {
	deleted := 0
	iter := f.client.Scan(ctx, 0, f.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := f.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Log.WithError(err).WithField("key", iter.Val()).Warn("Failed to delete feature key")
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan feature keys: %w", err)
	}
	return deleted, nil
}

func encodeFeatures(f OnlineFeatures) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	return data, nil
}

func decodeFeatures(data []byte) (OnlineFeatures, error) {
	var f OnlineFeatures
	if err := json.Unmarshal(data, &f); err != nil {
		return OnlineFeatures{}, fmt.Errorf("decode features: %w", err)
	}
	return f, nil
}
