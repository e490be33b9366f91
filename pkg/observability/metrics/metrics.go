package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospital_pipeline_runs_total",
			Help: "Pipeline runs by final status",
		},
		[]string{"status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hospital_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"stage"},
	)

	TableRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hospital_warehouse_table_rows",
			Help: "Rows in each warehouse table after the last replace",
		},
		[]string{"table"},
	)

	QualityWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospital_data_quality_warnings_total",
			Help: "Values repaired during cleaning",
		},
		[]string{"entity"},
	)

	FeatureRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hospital_feature_set_rows",
			Help: "Rows in each feature set of the last run",
		},
		[]string{"set"},
	)

	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospital_predictions_total",
			Help: "Predictions served by model and status",
		},
		[]string{"model", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hospital_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospital_feature_cache_lookups_total",
			Help: "Online feature store lookups by result",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(PipelineRuns)
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(TableRows)
		prometheus.MustRegister(QualityWarnings)
		prometheus.MustRegister(FeatureRows)
		prometheus.MustRegister(Predictions)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(CacheLookups)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func ObserveRun(status string) {
	PipelineRuns.WithLabelValues(status).Inc()
}

func ObserveTableRows(counts map[string]int) {
	for table, n := range counts {
		TableRows.WithLabelValues(table).Set(float64(n))
	}
}

func ObserveWarnings(entity string, n int) {
	QualityWarnings.WithLabelValues(entity).Add(float64(n))
}

func ObserveFeatureRows(set string, n int) {
	FeatureRows.WithLabelValues(set).Set(float64(n))
}

func ObservePrediction(model, status string) {
	Predictions.WithLabelValues(model, status).Inc()
}

func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(result).Inc()
}
