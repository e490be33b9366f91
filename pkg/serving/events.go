package serving

import (
	"context"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

// Reloader drops cached state derived from pipeline outputs.
type Reloader interface {
	Reload()
}

// RunEventHandler returns a kafka handler that refreshes serving caches
// whenever a pipeline run succeeds.
func RunEventHandler(reloaders ...Reloader) func(ctx context.Context, event models.Event) error {
	return func(ctx context.Context, event models.Event) error {
		if event.Type != models.EventPipelineCompleted {
			return nil
		}
		for _, r := range reloaders {
			if r != nil {
				r.Reload()
			}
		}
		logger.Log.WithFields(map[string]interface{}{
			"event_id": event.ID,
			"run_id":   event.Data["run_id"],
		}).Info("Serving caches reloaded after pipeline run")
		return nil
	}
}
