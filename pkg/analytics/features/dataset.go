package features

import (
	"sort"
	"time"

	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

// PatientFeatures is one row of the ML dataset: patient attributes joined
// with the visit profile. Patients without visits carry filled defaults.
type PatientFeatures struct {
	PatientID             string
	Age                   int
	Gender                string
	BMI                   float64
	ChronicConditionCount int
	IsSmoker              int
	HasChronicCondition   int
	AgeGroup              string
	BMICategory           string
	HighBMI               int
	SeniorCitizen         int
	MultipleConditions    int

	HasVisits           bool
	TotalVisits         int
	TotalAdmissions     int
	AvgWaitTime         float64
	AvgSatisfaction     float64
	FirstVisit          *time.Time
	LastVisit           *time.Time
	DaysSinceFirstVisit int
	VisitFrequency      float64
	AdmissionRate       float64
	FrequentVisitor     int
}

// FillDefaults are the values used for patients absent from the visit
// profiles. Counts, rates and flags always fill with zero.
type FillDefaults struct {
	// AvgWaitTime is used when set; otherwise the median of the profile means.
	AvgWaitTime *float64
}

// BuildMLDataset left-joins profiles onto patients. Output follows patient
// input order.
func BuildMLDataset(patients []models.Patient, profiles map[string]PatientProfile, defaults FillDefaults) []PatientFeatures {
	waitDefault := medianWait(profiles)
	if defaults.AvgWaitTime != nil {
		waitDefault = *defaults.AvgWaitTime
	}

	rows := make([]PatientFeatures, len(patients))
	for i, p := range patients {
		row := PatientFeatures{
			PatientID:             p.PatientID,
			Age:                   p.Age,
			Gender:                p.Gender,
			BMI:                   p.BMI,
			ChronicConditionCount: p.ChronicConditionCount,
			IsSmoker:              p.IsSmoker,
			HasChronicCondition:   p.HasChronicCondition,
			AgeGroup:              AgeGroup(p.Age),
			BMICategory:           BMICategory(p.BMI),
			HighBMI:               flag(p.BMI >= HighBMIThreshold),
			SeniorCitizen:         flag(p.Age >= SeniorAgeThreshold),
			MultipleConditions:    flag(p.ChronicConditionCount >= MultipleConditionFloor),
			AvgWaitTime:           waitDefault,
		}

		if prof, ok := profiles[p.PatientID]; ok {
			first, last := prof.FirstVisit, prof.LastVisit
			row.HasVisits = true
			row.TotalVisits = prof.TotalVisits
			row.TotalAdmissions = prof.TotalAdmissions
			row.AvgWaitTime = prof.AvgWaitTime
			row.AvgSatisfaction = prof.AvgSatisfaction
			row.FirstVisit = &first
			row.LastVisit = &last
			row.DaysSinceFirstVisit = prof.DaysSinceFirstVisit
			row.VisitFrequency = prof.VisitFrequency
			row.AdmissionRate = prof.AdmissionRate
			row.FrequentVisitor = prof.FrequentVisitor
		}
		rows[i] = row
	}
	return rows
}

func medianWait(profiles map[string]PatientProfile) float64 {
	if len(profiles) == 0 {
		return 0
	}
	waits := make([]float64, 0, len(profiles))
	for _, p := range profiles {
		waits = append(waits, p.AvgWaitTime)
	}
	sort.Float64s(waits)
	mid := len(waits) / 2
	if len(waits)%2 == 1 {
		return waits[mid]
	}
	return (waits[mid-1] + waits[mid]) / 2
}
