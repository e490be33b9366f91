package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

func fixture() ([]models.Patient, []models.Visit) {
	reg := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	patients := []models.Patient{
		{PatientID: "P00002", Age: 70, Gender: "F", BMI: 31, SmokingStatus: "No", ChronicConditions: []string{"Asthma", "COPD"}, ChronicConditionCount: 2, RegistrationDate: reg},
		{PatientID: "P00001", Age: 34, Gender: "M", BMI: 24, SmokingStatus: "Yes", RegistrationDate: reg},
	}
	los := 3
	ward, code := "ICU", "I21"
	visits := []models.Visit{
		{VisitID: "V000003", PatientID: "P00002", VisitDate: time.Date(2024, 1, 10, 22, 15, 0, 0, time.UTC), Department: "Emergency", VisitType: "Emergency", WaitTimeMinutes: 15, IsAdmitted: 1, LengthOfStayDays: &los, Ward: &ward, DiagnosisCode: &code, Readmitted30dFlag: 1, SatisfactionScore: 3, BillingAmount: 5100},
		{VisitID: "V000001", PatientID: "P00001", VisitDate: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), Department: "Cardiology", VisitType: "Opd", WaitTimeMinutes: 40, SatisfactionScore: 5, BillingAmount: 480},
		{VisitID: "V000002", PatientID: "P00002", VisitDate: time.Date(2024, 1, 5, 11, 30, 0, 0, time.UTC), Department: "Cardiology", VisitType: "Scheduled", WaitTimeMinutes: 25, SatisfactionScore: 4, BillingAmount: 1600},
	}
	return patients, visits
}

func TestBuildStarSchema(t *testing.T) {
	patients, visits := fixture()
	w, err := Build(patients, visits)
	require.NoError(t, err)

	require.Len(t, w.Patients, 2)
	assert.Equal(t, "P00001", w.Patients[0].PatientID)
	assert.Equal(t, "None", w.Patients[0].ChronicConditions)
	assert.Equal(t, "Asthma, COPD", w.Patients[1].ChronicConditions)

	assert.Equal(t, []DimDepartment{{1, "Cardiology"}, {2, "Emergency"}}, w.Departments)

	require.Len(t, w.Dates, 10)
	for i, d := range w.Dates {
		assert.Equal(t, i+1, d.DateID)
	}
	first := w.Dates[0]
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.FullDate)
	assert.Equal(t, "Monday", first.DayName)
	assert.Equal(t, "January", first.MonthName)
	assert.Equal(t, 0, first.DayOfWeek)
	assert.Equal(t, 1, first.Quarter)
	assert.Equal(t, 1, w.Dates[5].IsWeekend)

	require.Len(t, w.Facts, 3)
	assert.Equal(t, "V000001", w.Facts[0].VisitID)
	assert.Equal(t, 1, w.Facts[0].DateID)
	assert.Equal(t, 1, w.Facts[0].DepartmentID)
	assert.Nil(t, w.Facts[0].LengthOfStayDays)
	assert.Equal(t, 10, w.Facts[2].DateID)
	assert.Equal(t, 2, w.Facts[2].DepartmentID)
	require.NotNil(t, w.Facts[2].LengthOfStayDays)
	assert.Equal(t, 3, *w.Facts[2].LengthOfStayDays)
	assert.Equal(t, 22, w.Facts[2].VisitHour)
	require.NotNil(t, w.Facts[2].Ward)
	assert.Equal(t, "ICU", *w.Facts[2].Ward)
	assert.Nil(t, w.Facts[0].DiagnosisCode)

	require.NoError(t, w.Validate())
}

func TestBuildDepartmentKeysIgnoreEncounterOrder(t *testing.T) {
	patients, visits := fixture()
	visits[0].Department, visits[1].Department = "Emergency", "Cardiology"
	reordered := []models.Visit{visits[2], visits[0], visits[1]}

	a, err := Build(patients, visits)
	require.NoError(t, err)
	b, err := Build(patients, reordered)
	require.NoError(t, err)
	assert.Equal(t, a.Departments, b.Departments)
	assert.Equal(t, 1, a.Departments[0].DepartmentID)
	assert.Equal(t, "Cardiology", a.Departments[0].DepartmentName)
}

func TestBuildIsIdempotent(t *testing.T) {
	patients, visits := fixture()
	a, err := Build(patients, visits)
	require.NoError(t, err)
	b, err := Build(patients, visits)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildRejectsUnknownPatient(t *testing.T) {
	patients, visits := fixture()
	visits[1].PatientID = "P09999"

	_, err := Build(patients, visits)
	require.Error(t, err)
	assert.True(t, errs.IsIntegrityError(err))
}

func TestBuildRejectsDuplicateKeys(t *testing.T) {
	patients, visits := fixture()
	_, err := Build(append(patients, patients[0]), visits)
	assert.True(t, errs.IsIntegrityError(err))

	_, err = Build(patients, append(visits, visits[0]))
	assert.True(t, errs.IsIntegrityError(err))
}

func TestBuildEmptyVisits(t *testing.T) {
	patients, _ := fixture()
	w, err := Build(patients, nil)
	require.NoError(t, err)
	assert.Len(t, w.Patients, 2)
	assert.Empty(t, w.Departments)
	assert.Empty(t, w.Dates)
	assert.Empty(t, w.Facts)
}

func TestIndexAndValidate(t *testing.T) {
	patients, visits := fixture()
	w, err := Build(patients, visits)
	require.NoError(t, err)

	idx := w.Index()
	assert.Len(t, idx.ByPatient["P00002"], 2)
	assert.Len(t, idx.ByDepartment[1], 2)
	assert.Len(t, idx.ByDate[10], 1)

	w.Facts[0].DepartmentID = 99
	err = w.Validate()
	require.Error(t, err)
	assert.True(t, errs.IsIntegrityError(err))
}
