package ingestion

import "github.com/synaptica-ai/hospital-insights/pkg/common/models"

// RawPatientRow mirrors the upstream patients.parquet layout. Every column is
// optional so that nulls survive until the cleaner decides how to repair them.
type RawPatientRow struct {
	PatientID             *string  `parquet:"patient_id,optional"`
	Age                   *int64   `parquet:"age,optional"`
	Gender                *string  `parquet:"gender,optional"`
	BMI                   *float64 `parquet:"bmi,optional"`
	SmokingStatus         *string  `parquet:"smoking_status,optional"`
	ChronicConditions     *string  `parquet:"chronic_conditions,optional"`
	ChronicConditionCount *int64   `parquet:"chronic_condition_count,optional"`
	RegistrationDate      *string  `parquet:"registration_date,optional"`
}

// RawVisitRow mirrors the upstream visits.parquet layout.
type RawVisitRow struct {
	VisitID           *string  `parquet:"visit_id,optional"`
	PatientID         *string  `parquet:"patient_id,optional"`
	VisitDate         *string  `parquet:"visit_date,optional"`
	Department        *string  `parquet:"department,optional"`
	VisitType         *string  `parquet:"visit_type,optional"`
	TriageLevel       *string  `parquet:"triage_level,optional"`
	WaitTimeMinutes   *float64 `parquet:"wait_time_minutes,optional"`
	IsAdmitted        *bool    `parquet:"is_admitted,optional"`
	Ward              *string  `parquet:"ward,optional"`
	DiagnosisCode     *string  `parquet:"diagnosis_code,optional"`
	LengthOfStayDays  *int64   `parquet:"length_of_stay_days,optional"`
	Readmitted30dFlag *int64   `parquet:"readmitted_30d_flag,optional"`
	SatisfactionScore *int64   `parquet:"satisfaction_score,optional"`
	BillingAmount     *float64 `parquet:"billing_amount,optional"`
}

func (r RawPatientRow) toRecord(present map[string]bool) models.RawRecord {
	rec := make(models.RawRecord, 8)
	put(rec, present, "patient_id", r.PatientID)
	put(rec, present, "age", r.Age)
	put(rec, present, "gender", r.Gender)
	put(rec, present, "bmi", r.BMI)
	put(rec, present, "smoking_status", r.SmokingStatus)
	put(rec, present, "chronic_conditions", r.ChronicConditions)
	put(rec, present, "chronic_condition_count", r.ChronicConditionCount)
	put(rec, present, "registration_date", r.RegistrationDate)
	return rec
}

func (r RawVisitRow) toRecord(present map[string]bool) models.RawRecord {
	rec := make(models.RawRecord, 14)
	put(rec, present, "visit_id", r.VisitID)
	put(rec, present, "patient_id", r.PatientID)
	put(rec, present, "visit_date", r.VisitDate)
	put(rec, present, "department", r.Department)
	put(rec, present, "visit_type", r.VisitType)
	put(rec, present, "triage_level", r.TriageLevel)
	put(rec, present, "wait_time_minutes", r.WaitTimeMinutes)
	put(rec, present, "is_admitted", r.IsAdmitted)
	put(rec, present, "ward", r.Ward)
	put(rec, present, "diagnosis_code", r.DiagnosisCode)
	put(rec, present, "length_of_stay_days", r.LengthOfStayDays)
	put(rec, present, "readmitted_30d_flag", r.Readmitted30dFlag)
	put(rec, present, "satisfaction_score", r.SatisfactionScore)
	put(rec, present, "billing_amount", r.BillingAmount)
	return rec
}

// put copies a nullable column into rec. Columns absent from the file are
// left out entirely so the cleaner can report them as a schema error.
func put[T any](rec models.RawRecord, present map[string]bool, column string, value *T) {
	if !present[column] {
		return
	}
	if value == nil {
		rec[column] = nil
		return
	}
	rec[column] = *value
}
