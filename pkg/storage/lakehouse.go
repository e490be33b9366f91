package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

const (
	PatientsCleanFile = "patients_clean.parquet"
	VisitsCleanFile   = "visits_clean.parquet"
)

type patientCleanRow struct {
	PatientID             string    `parquet:"patient_id"`
	Age                   int64     `parquet:"age"`
	Gender                string    `parquet:"gender"`
	BMI                   float64   `parquet:"bmi"`
	SmokingStatus         string    `parquet:"smoking_status"`
	ChronicConditions     []string  `parquet:"chronic_conditions,list"`
	ChronicConditionCount int64     `parquet:"chronic_condition_count"`
	RegistrationDate      time.Time `parquet:"registration_date,timestamp(millisecond)"`
	IsSmoker              int64     `parquet:"is_smoker"`
	HasChronicCondition   int64     `parquet:"has_chronic_condition"`
}

type visitCleanRow struct {
	VisitID           string    `parquet:"visit_id"`
	PatientID         string    `parquet:"patient_id"`
	VisitDate         time.Time `parquet:"visit_date,timestamp(millisecond)"`
	Department        string    `parquet:"department"`
	VisitType         string    `parquet:"visit_type"`
	TriageLevel       string    `parquet:"triage_level"`
	WaitTimeMinutes   float64   `parquet:"wait_time_minutes"`
	IsAdmitted        int64     `parquet:"is_admitted"`
	Ward              *string   `parquet:"ward,optional"`
	DiagnosisCode     *string   `parquet:"diagnosis_code,optional"`
	LengthOfStayDays  *int64    `parquet:"length_of_stay_days,optional"`
	Readmitted30dFlag int64     `parquet:"readmitted_30d_flag"`
	SatisfactionScore int64     `parquet:"satisfaction_score"`
	BillingAmount     float64   `parquet:"billing_amount"`
	VisitYear         int64     `parquet:"visit_year"`
	VisitMonth        int64     `parquet:"visit_month"`
	VisitDay          int64     `parquet:"visit_day"`
	VisitWeekday      int64     `parquet:"visit_weekday"`
	VisitHour         int64     `parquet:"visit_hour"`
}

// ProcessedStore keeps the cleaned dataset as parquet files so later stages
// can run without re-cleaning.
type ProcessedStore struct {
	dir string
}

func NewProcessedStore(dir string) *ProcessedStore {
	return &ProcessedStore{dir: dir}
}

func (p *ProcessedStore) Dir() string {
	return p.dir
}

func (p *ProcessedStore) StoreCleaned(patients []models.Patient, visits []models.Visit) error {
	prows := make([]patientCleanRow, len(patients))
	for i, pt := range patients {
		prows[i] = patientCleanRow{
			PatientID:             pt.PatientID,
			Age:                   int64(pt.Age),
			Gender:                pt.Gender,
			BMI:                   pt.BMI,
			SmokingStatus:         pt.SmokingStatus,
			ChronicConditions:     pt.ChronicConditions,
			ChronicConditionCount: int64(pt.ChronicConditionCount),
			RegistrationDate:      pt.RegistrationDate,
			IsSmoker:              int64(pt.IsSmoker),
			HasChronicCondition:   int64(pt.HasChronicCondition),
		}
	}
	if err := WriteParquet(filepath.Join(p.dir, PatientsCleanFile), prows); err != nil {
		return fmt.Errorf("store patients: %w", err)
	}

	vrows := make([]visitCleanRow, len(visits))
	for i, v := range visits {
		row := visitCleanRow{
			VisitID:           v.VisitID,
			PatientID:         v.PatientID,
			VisitDate:         v.VisitDate,
			Department:        v.Department,
			VisitType:         v.VisitType,
			TriageLevel:       v.TriageLevel,
			WaitTimeMinutes:   v.WaitTimeMinutes,
			IsAdmitted:        int64(v.IsAdmitted),
			Ward:              v.Ward,
			DiagnosisCode:     v.DiagnosisCode,
			Readmitted30dFlag: int64(v.Readmitted30dFlag),
			SatisfactionScore: int64(v.SatisfactionScore),
			BillingAmount:     v.BillingAmount,
			VisitYear:         int64(v.VisitDate.Year()),
			VisitMonth:        int64(v.VisitDate.Month()),
			VisitDay:          int64(v.VisitDate.Day()),
			VisitWeekday:      int64(v.Weekday()),
			VisitHour:         int64(v.VisitDate.Hour()),
		}
		if v.LengthOfStayDays != nil {
			los := int64(*v.LengthOfStayDays)
			row.LengthOfStayDays = &los
		}
		vrows[i] = row
	}
	if err := WriteParquet(filepath.Join(p.dir, VisitsCleanFile), vrows); err != nil {
		return fmt.Errorf("store visits: %w", err)
	}
	return nil
}

// LoadCleaned reads back a dataset written by StoreCleaned.
func (p *ProcessedStore) LoadCleaned() ([]models.Patient, []models.Visit, error) {
	prows, _, err := ReadParquet[patientCleanRow](filepath.Join(p.dir, PatientsCleanFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load patients: %w", err)
	}
	vrows, _, err := ReadParquet[visitCleanRow](filepath.Join(p.dir, VisitsCleanFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load visits: %w", err)
	}

	patients := make([]models.Patient, len(prows))
	for i, r := range prows {
		patients[i] = models.Patient{
			PatientID:             r.PatientID,
			Age:                   int(r.Age),
			Gender:                r.Gender,
			BMI:                   r.BMI,
			SmokingStatus:         r.SmokingStatus,
			ChronicConditions:     r.ChronicConditions,
			ChronicConditionCount: int(r.ChronicConditionCount),
			RegistrationDate:      r.RegistrationDate.UTC(),
			IsSmoker:              int(r.IsSmoker),
			HasChronicCondition:   int(r.HasChronicCondition),
		}
	}

	visits := make([]models.Visit, len(vrows))
	for i, r := range vrows {
		v := models.Visit{
			VisitID:           r.VisitID,
			PatientID:         r.PatientID,
			VisitDate:         r.VisitDate.UTC(),
			Department:        r.Department,
			VisitType:         r.VisitType,
			TriageLevel:       r.TriageLevel,
			WaitTimeMinutes:   r.WaitTimeMinutes,
			IsAdmitted:        int(r.IsAdmitted),
			Ward:              r.Ward,
			DiagnosisCode:     r.DiagnosisCode,
			Readmitted30dFlag: int(r.Readmitted30dFlag),
			SatisfactionScore: int(r.SatisfactionScore),
			BillingAmount:     r.BillingAmount,
		}
		if r.LengthOfStayDays != nil {
			los := int(*r.LengthOfStayDays)
			v.LengthOfStayDays = &los
		}
		visits[i] = v
	}
	return patients, visits, nil
}
