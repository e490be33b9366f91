package pipeline

import (
	"context"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
)

// Materializer pushes per-patient features to the online store.
// *storage.FeatureStore implements it.
type Materializer interface {
	Invalidate(ctx context.Context) (int, error)
	MaterializeHotFeatures(ctx context.Context, runID string, schemaVersion int, rows map[string]map[string]float64) (int, error)
}

// OnlineRows keys the classification features of every patient in the ML
// dataset, including patients without visits, so serving can score them.
func OnlineRows(dataset []features.PatientFeatures) map[string]map[string]float64 {
	rows := make(map[string]map[string]float64, len(dataset))
	for _, r := range dataset {
		rows[r.PatientID] = features.NamedFeatures(r)
	}
	return rows
}
