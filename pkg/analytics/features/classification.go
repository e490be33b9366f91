package features

import (
	"fmt"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
)

// ClassificationSchemaVersion changes whenever ClassificationFeatureNames
// changes. Saved models record it and refuse a mismatch.
const ClassificationSchemaVersion = 1

// ClassificationFeatureNames is the ordered feature vector of the readmission
// risk model. Scalers and weights are indexed by this order.
var ClassificationFeatureNames = []string{
	"age",
	"bmi",
	"chronic_condition_count",
	"total_visits",
	"total_admissions",
	"avg_wait_time",
	"visit_frequency",
	"admission_rate",
	"is_smoker",
	"has_chronic_condition",
	"high_bmi",
	"senior_citizen",
	"multiple_conditions",
	"frequent_visitor",
}

const (
	riskRateThreshold      = 0.3
	riskAdmissionThreshold = 2
)

type ClassificationRow struct {
	PatientID string
	Features  []float64
	Label     int
}

// ClassificationSet holds one row per patient with at least one admission.
type ClassificationSet struct {
	SchemaVersion int
	FeatureNames  []string
	Rows          []ClassificationRow
}

func (s ClassificationSet) Matrix() ([][]float64, []float64) {
	x := make([][]float64, len(s.Rows))
	y := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		x[i] = r.Features
		y[i] = float64(r.Label)
	}
	return x, y
}

// ClassificationVector returns the features of r in ClassificationFeatureNames order.
func ClassificationVector(r PatientFeatures) []float64 {
	return []float64{
		float64(r.Age),
		r.BMI,
		float64(r.ChronicConditionCount),
		float64(r.TotalVisits),
		float64(r.TotalAdmissions),
		r.AvgWaitTime,
		r.VisitFrequency,
		r.AdmissionRate,
		float64(r.IsSmoker),
		float64(r.HasChronicCondition),
		float64(r.HighBMI),
		float64(r.SeniorCitizen),
		float64(r.MultipleConditions),
		float64(r.FrequentVisitor),
	}
}

// RiskLabel is 1 when the admission rate or the admission count marks the
// patient as high readmission risk.
func RiskLabel(admissionRate float64, totalAdmissions int) int {
	return flag(admissionRate >= riskRateThreshold || totalAdmissions >= riskAdmissionThreshold)
}

// BuildClassificationSet keeps patients with a historical admission. Patients
// without one have no defined label and are left out. An empty result is
// returned together with an InsufficientDataError.
func BuildClassificationSet(rows []PatientFeatures) (ClassificationSet, error) {
	set := ClassificationSet{
		SchemaVersion: ClassificationSchemaVersion,
		FeatureNames:  append([]string(nil), ClassificationFeatureNames...),
		Rows:          []ClassificationRow{},
	}
	for _, r := range rows {
		if r.TotalAdmissions <= 0 {
			continue
		}
		set.Rows = append(set.Rows, ClassificationRow{
			PatientID: r.PatientID,
			Features:  ClassificationVector(r),
			Label:     RiskLabel(r.AdmissionRate, r.TotalAdmissions),
		})
	}
	if len(set.Rows) == 0 {
		return set, &errs.InsufficientDataError{
			Set:    "classification",
			Reason: fmt.Sprintf("no patient with an admission among %d rows", len(rows)),
		}
	}
	return set, nil
}

// NamedFeatures keys the classification vector of r by feature name.
func NamedFeatures(r PatientFeatures) map[string]float64 {
	vec := ClassificationVector(r)
	out := make(map[string]float64, len(vec))
	for i, name := range ClassificationFeatureNames {
		out[name] = vec[i]
	}
	return out
}
