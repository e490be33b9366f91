package models

import "time"

// Categorical buckets used when a raw value falls outside the known vocabulary.
const (
	Unknown       = "Unknown"
	GenderUnknown = "UNKNOWN"
)

// Patient is a cleaned patient record.
type Patient struct {
	PatientID             string    `json:"patient_id"`
	Age                   int       `json:"age"`
	Gender                string    `json:"gender"`
	BMI                   float64   `json:"bmi"`
	SmokingStatus         string    `json:"smoking_status"`
	ChronicConditions     []string  `json:"chronic_conditions"`
	ChronicConditionCount int       `json:"chronic_condition_count"`
	RegistrationDate      time.Time `json:"registration_date"`

	IsSmoker            int `json:"is_smoker"`
	HasChronicCondition int `json:"has_chronic_condition"`
}

// Visit is a cleaned visit fact. Ward, DiagnosisCode and LengthOfStayDays are
// only meaningful when IsAdmitted is 1.
type Visit struct {
	VisitID           string    `json:"visit_id"`
	PatientID         string    `json:"patient_id"`
	VisitDate         time.Time `json:"visit_date"`
	Department        string    `json:"department"`
	VisitType         string    `json:"visit_type"`
	TriageLevel       string    `json:"triage_level"`
	WaitTimeMinutes   float64   `json:"wait_time_minutes"`
	IsAdmitted        int       `json:"is_admitted"`
	Ward              *string   `json:"ward,omitempty"`
	DiagnosisCode     *string   `json:"diagnosis_code,omitempty"`
	LengthOfStayDays  *int      `json:"length_of_stay_days,omitempty"`
	Readmitted30dFlag int       `json:"readmitted_30d_flag"`
	SatisfactionScore int       `json:"satisfaction_score"`
	BillingAmount     float64   `json:"billing_amount"`
}

// Day truncates the visit timestamp to its calendar day in the visit's location.
func (v Visit) Day() time.Time {
	y, m, d := v.VisitDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Weekday returns Monday=0 .. Sunday=6.
func (v Visit) Weekday() int {
	return MondayIndex(v.VisitDate.Weekday())
}

func MondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// LengthOfStay returns zero for visits without a recorded stay.
func (v Visit) LengthOfStay() int {
	if v.LengthOfStayDays == nil {
		return 0
	}
	return *v.LengthOfStayDays
}
