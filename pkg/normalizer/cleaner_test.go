package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

func rawPatient(id string, bmi interface{}) models.RawRecord {
	return models.RawRecord{
		"patient_id":              id,
		"age":                     "45",
		"gender":                  "m",
		"bmi":                     bmi,
		"smoking_status":          "yes",
		"chronic_conditions":      "Diabetes, Hypertension",
		"chronic_condition_count": int64(2),
		"registration_date":       "2023-04-01",
	}
}

func rawVisit(id, patient string, wait interface{}) models.RawRecord {
	return models.RawRecord{
		"visit_id":            id,
		"patient_id":          patient,
		"visit_date":          "2024-03-05 14:20:00",
		"department":          "general medicine",
		"visit_type":          "OPD",
		"triage_level":        "Level 4 - Semi-urgent",
		"wait_time_minutes":   wait,
		"is_admitted":         false,
		"ward":                nil,
		"diagnosis_code":      nil,
		"length_of_stay_days": int64(0),
		"readmitted_30d_flag": int64(0),
		"satisfaction_score":  int64(4),
		"billing_amount":      512.5,
	}
}

func TestCleanPatientsNormalizesAndDerives(t *testing.T) {
	c := NewCleaner(Options{})
	patients, report, err := c.CleanPatients([]models.RawRecord{rawPatient("P00001", 31.5)})
	require.NoError(t, err)
	require.Len(t, patients, 1)

	p := patients[0]
	assert.Equal(t, "M", p.Gender)
	assert.Equal(t, "Yes", p.SmokingStatus)
	assert.Equal(t, 1, p.IsSmoker)
	assert.Equal(t, []string{"Diabetes", "Hypertension"}, p.ChronicConditions)
	assert.Equal(t, 2, p.ChronicConditionCount)
	assert.Equal(t, 1, p.HasChronicCondition)
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), p.RegistrationDate)
	assert.Empty(t, report.Warnings)
}

func TestCleanPatientsImputesMedianBMI(t *testing.T) {
	raw := []models.RawRecord{
		rawPatient("P00001", 20.0),
		rawPatient("P00002", nil),
		rawPatient("P00003", 30.0),
		rawPatient("P00004", "25"),
		rawPatient("P00005", ""),
	}
	patients, report, err := NewCleaner(Options{}).CleanPatients(raw)
	require.NoError(t, err)
	require.Len(t, patients, 5)

	assert.Equal(t, 25.0, patients[1].BMI)
	assert.Equal(t, 25.0, patients[4].BMI)
	assert.Equal(t, 2, report.Imputed)
	for i, p := range patients {
		assert.Equal(t, raw[i]["patient_id"], p.PatientID, "order preserved")
	}
}

func TestCleanPatientsNoneConditions(t *testing.T) {
	rec := rawPatient("P00001", 22.0)
	rec["chronic_conditions"] = "None"
	rec["chronic_condition_count"] = int64(0)
	rec["smoking_status"] = "NO"

	patients, _, err := NewCleaner(Options{}).CleanPatients([]models.RawRecord{rec})
	require.NoError(t, err)
	assert.Empty(t, patients[0].ChronicConditions)
	assert.Equal(t, 0, patients[0].ChronicConditionCount)
	assert.Equal(t, 0, patients[0].HasChronicCondition)
	assert.Equal(t, 0, patients[0].IsSmoker)
}

func TestCleanPatientsBucketsUnknownCategories(t *testing.T) {
	rec := rawPatient("P00001", 22.0)
	rec["gender"] = "x"
	rec["smoking_status"] = "sometimes"

	patients, report, err := NewCleaner(Options{}).CleanPatients([]models.RawRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, models.GenderUnknown, patients[0].Gender)
	assert.Equal(t, models.Unknown, patients[0].SmokingStatus)
	assert.Equal(t, 2, report.Unknown)
	assert.Len(t, report.Warnings, 2)
}

func TestCleanPatientsRecountsConditions(t *testing.T) {
	rec := rawPatient("P00001", 22.0)
	rec["chronic_condition_count"] = int64(5)

	patients, report, err := NewCleaner(Options{}).CleanPatients([]models.RawRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 2, patients[0].ChronicConditionCount)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "chronic_condition_count", report.Warnings[0].Column)
}

func TestCleanPatientsMissingColumn(t *testing.T) {
	rec := rawPatient("P00001", 22.0)
	delete(rec, "registration_date")

	_, _, err := NewCleaner(Options{}).CleanPatients([]models.RawRecord{rec})
	require.Error(t, err)
	assert.True(t, errs.IsSchemaError(err))

	var se *errs.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "registration_date", se.Column)
	assert.Equal(t, -1, se.Row)
}

func TestCleanPatientsMistypedAge(t *testing.T) {
	rec := rawPatient("P00001", 22.0)
	rec["age"] = "forty"

	_, _, err := NewCleaner(Options{}).CleanPatients([]models.RawRecord{rec})
	var se *errs.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "age", se.Column)
	assert.Equal(t, 0, se.Row)
}

func TestCleanVisitsClampsWaitTime(t *testing.T) {
	raw := []models.RawRecord{
		rawVisit("V000001", "P00001", -12.0),
		rawVisit("V000002", "P00001", "33.5"),
	}
	visits, report, err := NewCleaner(Options{}).CleanVisits(raw)
	require.NoError(t, err)
	require.Len(t, visits, 2)

	for _, v := range visits {
		assert.GreaterOrEqual(t, v.WaitTimeMinutes, 0.0)
	}
	assert.Equal(t, 0.0, visits[0].WaitTimeMinutes)
	assert.Equal(t, 33.5, visits[1].WaitTimeMinutes)
	assert.Equal(t, 1, report.Clamped)
}

func TestCleanVisitsCanonicalForm(t *testing.T) {
	visits, _, err := NewCleaner(Options{}).CleanVisits([]models.RawRecord{rawVisit("V000001", "P00001", 10.0)})
	require.NoError(t, err)

	v := visits[0]
	assert.Equal(t, "General Medicine", v.Department)
	assert.Equal(t, "Opd", v.VisitType)
	assert.Equal(t, 0, v.IsAdmitted)
	assert.Nil(t, v.LengthOfStayDays)
	assert.Nil(t, v.Ward)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 20, 0, 0, time.UTC), v.VisitDate)
	assert.Equal(t, 1, v.Weekday())
	assert.Equal(t, 512.5, v.BillingAmount)
}

func TestCleanVisitsAdmittedKeepsStay(t *testing.T) {
	rec := rawVisit("V000001", "P00001", 10.0)
	rec["is_admitted"] = "True"
	rec["ward"] = "ICU"
	rec["length_of_stay_days"] = int64(3)
	rec["readmitted_30d_flag"] = int64(1)

	visits, report, err := NewCleaner(Options{}).CleanVisits([]models.RawRecord{rec})
	require.NoError(t, err)
	v := visits[0]
	assert.Equal(t, 1, v.IsAdmitted)
	require.NotNil(t, v.Ward)
	assert.Equal(t, "ICU", *v.Ward)
	assert.Equal(t, 3, v.LengthOfStay())
	assert.Equal(t, 1, v.Readmitted30dFlag)
	assert.Empty(t, report.Warnings)
}

func TestCleanVisitsDepartmentVocabulary(t *testing.T) {
	rec := rawVisit("V000001", "P00001", 10.0)
	rec["department"] = "astrology"

	c := NewCleaner(Options{Departments: []string{"Cardiology", "general medicine"}})
	visits, report, err := c.CleanVisits([]models.RawRecord{rec, rawVisit("V000002", "P00001", 5.0)})
	require.NoError(t, err)
	assert.Equal(t, models.Unknown, visits[0].Department)
	assert.Equal(t, "General Medicine", visits[1].Department)
	assert.Equal(t, 1, report.Unknown)
}

func TestCleanVisitsIsDeterministic(t *testing.T) {
	raw := []models.RawRecord{
		rawVisit("V000001", "P00001", -1.0),
		rawVisit("V000002", "P00002", 40.0),
	}
	c := NewCleaner(Options{})
	first, _, err := c.CleanVisits(raw)
	require.NoError(t, err)
	second, _, err := c.CleanVisits(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCleanEmptyInput(t *testing.T) {
	c := NewCleaner(Options{})
	patients, _, err := c.CleanPatients(nil)
	require.NoError(t, err)
	assert.Empty(t, patients)

	visits, _, err := c.CleanVisits(nil)
	require.NoError(t, err)
	assert.Empty(t, visits)
}

func TestCheckReferences(t *testing.T) {
	patients := []models.Patient{{PatientID: "P00001"}}
	visits := []models.Visit{{VisitID: "V000001", PatientID: "P00001"}, {VisitID: "V000002", PatientID: "P09999"}}

	err := CheckReferences(patients, visits)
	require.Error(t, err)
	assert.True(t, errs.IsIntegrityError(err))
	assert.Contains(t, err.Error(), "P09999")
}

func TestCleanVisitsMissingRequiredColumns(t *testing.T) {
	for _, col := range []string{"billing_amount", "triage_level"} {
		rec := rawVisit("V000001", "P00001", 10.0)
		delete(rec, col)

		_, _, err := NewCleaner(Options{}).CleanVisits([]models.RawRecord{rec})
		var se *errs.SchemaError
		require.ErrorAs(t, err, &se, col)
		assert.Equal(t, col, se.Column)
	}
}

func TestCleanVisitsRequiresReadmissionColumn(t *testing.T) {
	rec := rawVisit("V000001", "P00001", 10.0)
	delete(rec, "readmitted_30d_flag")

	_, _, err := NewCleaner(Options{}).CleanVisits([]models.RawRecord{rec})
	require.Error(t, err)
	assert.True(t, errs.IsSchemaError(err))

	rec["readmitted_30d"] = "Yes"
	visits, report, err := NewCleaner(Options{}).CleanVisits([]models.RawRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, visits[0].Readmitted30dFlag)
	assert.Empty(t, report.Warnings)
}

func TestCleanVisitsWarnsOnBadReadmission(t *testing.T) {
	rec := rawVisit("V000001", "P00001", 10.0)
	rec["readmitted_30d_flag"] = "sometimes"
	blank := rawVisit("V000002", "P00001", 10.0)
	blank["readmitted_30d_flag"] = nil

	visits, report, err := NewCleaner(Options{}).CleanVisits([]models.RawRecord{rec, blank})
	require.NoError(t, err)
	assert.Equal(t, 0, visits[0].Readmitted30dFlag)
	assert.Equal(t, 0, visits[1].Readmitted30dFlag)
	require.Len(t, report.Warnings, 2)
	assert.Equal(t, "readmitted_30d_flag", report.Warnings[0].Column)
	assert.Equal(t, 0, report.Warnings[0].Row)
	assert.Equal(t, 1, report.Warnings[1].Row)
}

func TestCleanVisitsWarnsOnNullBillingAndTriage(t *testing.T) {
	rec := rawVisit("V000001", "P00001", 10.0)
	rec["billing_amount"] = nil
	rec["triage_level"] = nil

	visits, report, err := NewCleaner(Options{}).CleanVisits([]models.RawRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, models.Unknown, visits[0].TriageLevel)
	assert.Equal(t, 0.0, visits[0].BillingAmount)

	var columns []string
	for _, w := range report.Warnings {
		columns = append(columns, w.Column)
	}
	assert.ElementsMatch(t, []string{"billing_amount", "triage_level"}, columns)
}
