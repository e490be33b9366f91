package serving

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
	"github.com/synaptica-ai/hospital-insights/pkg/observability/metrics"
	"github.com/synaptica-ai/hospital-insights/pkg/serving/predictor"
	"github.com/synaptica-ai/hospital-insights/pkg/training"
	"github.com/synaptica-ai/hospital-insights/pkg/warehouse"
)

const (
	defaultTrendLimit    = 12
	defaultHighRiskLimit = 10
	defaultPatientLimit  = 1000
	maxLimit             = 1000
)

// Analytics is the read-only warehouse surface. *warehouse.Querier
// implements it.
type Analytics interface {
	Summary(ctx context.Context) (warehouse.Summary, error)
	DepartmentStats(ctx context.Context) ([]warehouse.DepartmentStat, error)
	MonthlyTrends(ctx context.Context, limit int) ([]warehouse.MonthlyTrend, error)
	HighRiskPatients(ctx context.Context, limit int) ([]warehouse.HighRiskPatient, error)
	DepartmentWaitStats(ctx context.Context, department string) (warehouse.WaitStats, bool, error)
	OPDAnalytics(ctx context.Context) (warehouse.OPDAnalytics, error)
	InpatientAnalytics(ctx context.Context) (warehouse.InpatientAnalytics, error)
	BillingSummary(ctx context.Context) (warehouse.BillingSummary, error)
	PatientList(ctx context.Context, limit int) ([]warehouse.PatientRow, error)
}

// Models scores requests. *predictor.Predictor implements it.
type Models interface {
	PredictRisk(values map[string]float64) (predictor.RiskPrediction, error)
	PredictWaitTime(hour, weekday int, department string) (predictor.WaitPrediction, error)
}

type Deps struct {
	Analytics   Analytics
	Models      Models
	Features    FeatureLookup
	Recorder    PredictionRecorder
	ArtifactDir string
	MaxBody     int64
}

type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestMiddleware)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	router.HandleFunc("/department-stats", s.handleDepartmentStats).Methods(http.MethodGet)
	router.HandleFunc("/monthly-trends", s.handleMonthlyTrends).Methods(http.MethodGet)
	router.HandleFunc("/opd-analytics", s.handleOPDAnalytics).Methods(http.MethodGet)
	router.HandleFunc("/inpatient-analytics", s.handleInpatientAnalytics).Methods(http.MethodGet)
	router.HandleFunc("/billing-summary", s.handleBillingSummary).Methods(http.MethodGet)
	router.HandleFunc("/patients/high-risk", s.handleHighRisk).Methods(http.MethodGet)
	router.HandleFunc("/patients/list", s.handlePatientList).Methods(http.MethodGet)
	router.HandleFunc("/risk/{patient_id}", s.handlePatientRisk).Methods(http.MethodGet)
	router.HandleFunc("/predict-risk", s.handlePredictRisk).Methods(http.MethodPost)
	router.HandleFunc("/wait-time-forecast", s.handleWaitForecast).Methods(http.MethodGet)
	router.HandleFunc("/model-metrics", s.handleModelMetrics).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"warehouse_attached": s.deps.Analytics != nil,
		"models_attached":    s.deps.Models != nil,
		"generated_at":       time.Now().UTC(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	summary, err := s.deps.Analytics.Summary(r.Context())
	if err != nil {
		internalError(w, err, "failed to fetch summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDepartmentStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	stats, err := s.deps.Analytics.DepartmentStats(r.Context())
	if err != nil {
		internalError(w, err, "failed to fetch department stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"departments":  stats,
		"generated_at": time.Now().UTC(),
	})
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	limit, ok := intParam(w, r, "limit", defaultTrendLimit, 1, maxLimit)
	if !ok {
		return
	}
	trends, err := s.deps.Analytics.MonthlyTrends(r.Context(), limit)
	if err != nil {
		internalError(w, err, "failed to fetch trends")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trends":       trends,
		"generated_at": time.Now().UTC(),
	})
}

func (s *Server) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	limit, ok := intParam(w, r, "limit", defaultHighRiskLimit, 1, maxLimit)
	if !ok {
		return
	}
	patients, err := s.deps.Analytics.HighRiskPatients(r.Context(), limit)
	if err != nil {
		internalError(w, err, "failed to fetch high-risk patients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"high_risk_patients": patients,
		"count":              len(patients),
		"generated_at":       time.Now().UTC(),
	})
}

func (s *Server) handleOPDAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	opd, err := s.deps.Analytics.OPDAnalytics(r.Context())
	if err != nil {
		internalError(w, err, "failed to fetch OPD analytics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wait_times_by_department": opd.ByDepartment,
		"wait_times_by_hour":       opd.ByHour,
		"wait_times_by_day":        opd.ByDay,
		"generated_at":             time.Now().UTC(),
	})
}

func (s *Server) handleInpatientAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	inpatient, err := s.deps.Analytics.InpatientAnalytics(r.Context())
	if err != nil {
		internalError(w, err, "failed to fetch inpatient analytics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"los_by_ward":               inpatient.LOSByWard,
		"readmissions_by_diagnosis": inpatient.ReadmissionsByDiagnosis,
		"monthly_admission_trends":  inpatient.MonthlyAdmissionTrends,
		"generated_at":              time.Now().UTC(),
	})
}

func (s *Server) handleBillingSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	billing, err := s.deps.Analytics.BillingSummary(r.Context())
	if err != nil {
		internalError(w, err, "failed to fetch billing summary")
		return
	}
	byDepartment := make(map[string]float64, len(billing.RevenueByDepartment))
	for _, d := range billing.RevenueByDepartment {
		byDepartment[d.Department] = d.Revenue
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_revenue":             billing.TotalRevenue,
		"average_billing_per_visit": billing.AverageBillingPerVisit,
		"revenue_by_department":     byDepartment,
		"generated_at":              time.Now().UTC(),
	})
}

func (s *Server) handlePatientList(w http.ResponseWriter, r *http.Request) {
	if !s.requireAnalytics(w) {
		return
	}
	limit, ok := intParam(w, r, "limit", defaultPatientLimit, 1, maxLimit)
	if !ok {
		return
	}
	patients, err := s.deps.Analytics.PatientList(r.Context(), limit)
	if err != nil {
		internalError(w, err, "failed to fetch patients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patients":     patients,
		"count":        len(patients),
		"generated_at": time.Now().UTC(),
	})
}

func (s *Server) handlePatientRisk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Models == nil || s.deps.Features == nil {
		http.Error(w, "prediction service not available", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	patientID := mux.Vars(r)["patient_id"]

	patient, found, err := s.deps.Features.Lookup(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "patient features not available", http.StatusNotFound)
			return
		}
		internalError(w, err, "failed to load patient features")
		return
	}
	if !found {
		http.Error(w, "patient "+patientID+" not found", http.StatusNotFound)
		return
	}

	prediction, ok := s.predictRisk(w, patient.Features)
	if !ok {
		return
	}
	resp := map[string]interface{}{
		"patient_id":       patientID,
		"risk_probability": prediction.Probability,
		"risk_class":       prediction.RiskClass,
		"risk_level":       prediction.RiskLevel,
		"age":              patient.Age,
		"total_visits":     patient.TotalVisits,
		"total_admissions": patient.TotalAdmissions,
	}
	s.record(r, patientID, training.ModelClassifier, toInterfaceMap(patient.Features), resp, start)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredictRisk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Models == nil {
		http.Error(w, "prediction service not available", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	if s.deps.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxBody)
	}

	var req models.RiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid risk payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	prediction, ok := s.predictRisk(w, req.Features)
	if !ok {
		return
	}
	resp := models.RiskResponse{
		PatientID:       req.PatientID,
		RiskProbability: prediction.Probability,
		RiskClass:       prediction.RiskClass,
		RiskLevel:       prediction.RiskLevel,
	}
	s.record(r, req.PatientID, training.ModelClassifier, toInterfaceMap(req.Features), map[string]interface{}{
		"risk_probability": resp.RiskProbability,
		"risk_level":       resp.RiskLevel,
	}, start)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWaitForecast(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")
	if department == "" {
		department = "Emergency"
	}
	hour, ok := intParam(w, r, "hour", 10, 0, 23)
	if !ok {
		return
	}
	weekday, ok := intParam(w, r, "day_of_week", 0, 0, 6)
	if !ok {
		return
	}

	var stats warehouse.WaitStats
	var found bool
	if s.deps.Analytics != nil {
		var err error
		stats, found, err = s.deps.Analytics.DepartmentWaitStats(r.Context(), department)
		if err != nil {
			internalError(w, err, "failed to forecast wait time")
			return
		}
	}
	forecast := Forecast(stats, found, hour, weekday)

	resp := map[string]interface{}{
		"department":                    department,
		"predicted_wait_time_minutes":   forecast.PredictedMinutes,
		"predicted_wait_time_formatted": predictor.FormatWaitTime(forecast.PredictedMinutes),
		"source":                        "historical",
		"historical_avg":                forecast.HistoricalAvg,
		"historical_range":              forecast.HistoricalRange,
		"factors":                       forecast.Factors,
		"generated_at":                  time.Now().UTC(),
	}
	if s.deps.Models != nil {
		prediction, err := s.deps.Models.PredictWaitTime(hour, weekday, department)
		switch {
		case err == nil:
			metrics.ObservePrediction(training.ModelRegressor, "ok")
			resp["predicted_wait_time_minutes"] = round1(prediction.Minutes)
			resp["predicted_wait_time_formatted"] = prediction.Formatted
			resp["department_in_training_vocab"] = prediction.KnownDepartment
			resp["source"] = "model"
		case errors.Is(err, predictor.ErrModelUnavailable):
			metrics.ObservePrediction(training.ModelRegressor, "unavailable")
		default:
			metrics.ObservePrediction(training.ModelRegressor, "error")
			internalError(w, err, "failed to forecast wait time")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModelMetrics(w http.ResponseWriter, r *http.Request) {
	content, err := os.ReadFile(filepath.Join(s.deps.ArtifactDir, training.MetricsFile))
	if err != nil {
		http.Error(w, "model metrics not available", http.StatusServiceUnavailable)
		return
	}
	var result training.Result
	if err := json.Unmarshal(content, &result); err != nil {
		internalError(w, err, "failed to decode model metrics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":      result,
		"generated_at": time.Now().UTC(),
	})
}

func (s *Server) predictRisk(w http.ResponseWriter, values map[string]float64) (predictor.RiskPrediction, bool) {
	prediction, err := s.deps.Models.PredictRisk(values)
	switch {
	case err == nil:
		metrics.ObservePrediction(training.ModelClassifier, "ok")
		return prediction, true
	case errors.Is(err, predictor.ErrUnknownFeature):
		metrics.ObservePrediction(training.ModelClassifier, "rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, predictor.ErrModelUnavailable):
		metrics.ObservePrediction(training.ModelClassifier, "unavailable")
		http.Error(w, "classifier not available", http.StatusServiceUnavailable)
	default:
		metrics.ObservePrediction(training.ModelClassifier, "error")
		internalError(w, err, "failed to predict risk")
	}
	return predictor.RiskPrediction{}, false
}

func (s *Server) record(r *http.Request, patientID, model string, request, response map[string]interface{}, start time.Time) {
	latency := time.Since(start)
	logger.Log.WithFields(map[string]interface{}{
		"patient_id": patientID,
		"model":      model,
		"latency_ms": latency.Milliseconds(),
	}).Info("Prediction completed")

	if s.deps.Recorder == nil {
		return
	}
	err := s.deps.Recorder.RecordPrediction(r.Context(), PredictionLog{
		RequestID: requestID(r),
		PatientID: patientID,
		ModelName: model,
		Request:   request,
		Response:  response,
		LatencyMs: float64(latency.Microseconds()) / 1000.0,
	})
	if err != nil {
		logWarn(err, "failed to record prediction")
	}
}

func (s *Server) requireAnalytics(w http.ResponseWriter) bool {
	if s.deps.Analytics == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

const requestIDHeader = "X-Request-ID"

func requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(requestIDHeader) == "" {
			r.Header.Set(requestIDHeader, uuid.NewString())
		}
		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func toInterfaceMap(in map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func internalError(w http.ResponseWriter, err error, msg string) {
	logger.Log.WithError(err).Error(msg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func logWarn(err error, msg string) {
	logger.Log.WithError(err).Warn(msg)
}
