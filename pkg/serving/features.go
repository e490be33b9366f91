package serving

import (
	"context"
	"os"
	"sync"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
	"github.com/synaptica-ai/hospital-insights/pkg/observability/metrics"
	"github.com/synaptica-ai/hospital-insights/pkg/storage"
)

// PatientFeatures is what the risk endpoint needs about a stored patient.
type PatientFeatures struct {
	PatientID       string
	Age             int
	TotalVisits     int
	TotalAdmissions int
	Features        map[string]float64
}

// FeatureLookup resolves a patient's classification features; found is
// false for an unknown patient.
type FeatureLookup interface {
	Lookup(ctx context.Context, patientID string) (PatientFeatures, bool, error)
}

// OnlineStore is the read side of the redis feature store.
type OnlineStore interface {
	GetFeatures(ctx context.Context, patientID string) (storage.OnlineFeatures, bool, error)
}

// OfflineFeatures serves rows of the ml_features parquet table, reloading
// when the file changes.
type OfflineFeatures struct {
	path    string
	mu      sync.RWMutex
	modTime int64
	rows    map[string]features.PatientFeatures
}

func NewOfflineFeatures(path string) *OfflineFeatures {
	return &OfflineFeatures{path: path}
}

func (o *OfflineFeatures) Lookup(_ context.Context, patientID string) (PatientFeatures, bool, error) {
	rows, err := o.load()
	if err != nil {
		return PatientFeatures{}, false, err
	}
	row, ok := rows[patientID]
	if !ok {
		return PatientFeatures{}, false, nil
	}
	return PatientFeatures{
		PatientID:       row.PatientID,
		Age:             row.Age,
		TotalVisits:     row.TotalVisits,
		TotalAdmissions: row.TotalAdmissions,
		Features:        features.NamedFeatures(row),
	}, true, nil
}

// Reload forces the next lookup to re-read the table.
func (o *OfflineFeatures) Reload() {
	o.mu.Lock()
	o.rows = nil
	o.modTime = 0
	o.mu.Unlock()
}

func (o *OfflineFeatures) load() (map[string]features.PatientFeatures, error) {
	info, err := os.Stat(o.path)
	if err != nil {
		return nil, err
	}
	mod := info.ModTime().UnixNano()

	o.mu.RLock()
	rows, cached := o.rows, o.modTime
	o.mu.RUnlock()
	if rows != nil && cached == mod {
		return rows, nil
	}

	dataset, err := features.ReadMLDataset(o.path)
	if err != nil {
		return nil, err
	}
	rows = make(map[string]features.PatientFeatures, len(dataset))
	for _, r := range dataset {
		rows[r.PatientID] = r
	}
	o.mu.Lock()
	o.rows, o.modTime = rows, mod
	o.mu.Unlock()
	return rows, nil
}

// CachedLookup consults the online store first and falls back to the
// offline table on a miss or a cache error.
type CachedLookup struct {
	online  OnlineStore
	offline FeatureLookup
}

func NewCachedLookup(online OnlineStore, offline FeatureLookup) *CachedLookup {
	return &CachedLookup{online: online, offline: offline}
}

func (c *CachedLookup) Lookup(ctx context.Context, patientID string) (PatientFeatures, bool, error) {
	if c.online != nil {
		hot, found, err := c.online.GetFeatures(ctx, patientID)
		switch {
		case err != nil:
			logWarn(err, "online feature lookup failed")
		case found:
			metrics.ObserveCacheLookup(true)
			return PatientFeatures{
				PatientID:       hot.PatientID,
				Age:             int(hot.Features["age"]),
				TotalVisits:     int(hot.Features["total_visits"]),
				TotalAdmissions: int(hot.Features["total_admissions"]),
				Features:        hot.Features,
			}, true, nil
		}
		metrics.ObserveCacheLookup(false)
	}
	if c.offline == nil {
		return PatientFeatures{}, false, nil
	}
	return c.offline.Lookup(ctx, patientID)
}
