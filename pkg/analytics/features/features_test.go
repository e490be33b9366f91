package features

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
	"github.com/synaptica-ai/hospital-insights/pkg/storage"
)

var day0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func visit(id, patient string, day int, admitted int, dept string, wait float64) models.Visit {
	return models.Visit{
		VisitID:           id,
		PatientID:         patient,
		VisitDate:         day0.AddDate(0, 0, day-1),
		Department:        dept,
		VisitType:         "Scheduled",
		WaitTimeMinutes:   wait,
		IsAdmitted:        admitted,
		SatisfactionScore: 4,
	}
}

func TestAggregateScenario(t *testing.T) {
	visits := []models.Visit{
		visit("V1", "P1", 1, 0, "Cardiology", 10),
		visit("V2", "P1", 5, 1, "Cardiology", 20),
		visit("V3", "P1", 10, 0, "Emergency", 30),
	}
	profiles := Aggregate(visits, 4)
	require.Len(t, profiles, 1)

	p := profiles["P1"]
	assert.Equal(t, 3, p.TotalVisits)
	assert.Equal(t, 1, p.TotalAdmissions)
	assert.InDelta(t, 0.333, p.AdmissionRate, 0.001)
	assert.Equal(t, 10, p.DaysSinceFirstVisit)
	assert.InDelta(t, 109.5, p.VisitFrequency, 1e-9)
	assert.Equal(t, 20.0, p.AvgWaitTime)
	assert.Equal(t, 4.0, p.AvgSatisfaction)
	assert.Equal(t, 0, p.FrequentVisitor)
}

func TestAggregateSingleSameDayVisit(t *testing.T) {
	profiles := Aggregate([]models.Visit{visit("V1", "P1", 3, 1, "Surgery", 5)}, 1)
	p := profiles["P1"]
	assert.Equal(t, 1, p.DaysSinceFirstVisit)
	assert.Equal(t, 365.0, p.VisitFrequency)
	assert.Equal(t, 1.0, p.AdmissionRate)
}

func TestAggregateIndependentOfWorkersAndOrder(t *testing.T) {
	var visits []models.Visit
	for i := 0; i < 60; i++ {
		patient := []string{"P1", "P2", "P3", "P4"}[i%4]
		visits = append(visits, visit("V", patient, i%17+1, i%3%2, "Neurology", float64(i)))
	}
	reversed := make([]models.Visit, len(visits))
	for i, v := range visits {
		reversed[len(visits)-1-i] = v
	}

	one := Aggregate(visits, 1)
	many := Aggregate(reversed, 8)
	require.Len(t, many, len(one))
	for id, p := range one {
		q := many[id]
		assert.Equal(t, p.TotalVisits, q.TotalVisits)
		assert.Equal(t, p.TotalAdmissions, q.TotalAdmissions)
		assert.InDelta(t, p.AvgWaitTime, q.AvgWaitTime, 1e-9)
		assert.True(t, p.FirstVisit.Equal(q.FirstVisit))
		assert.True(t, p.LastVisit.Equal(q.LastVisit))
		assert.GreaterOrEqual(t, p.AdmissionRate, 0.0)
		assert.LessOrEqual(t, p.AdmissionRate, 1.0)
		assert.GreaterOrEqual(t, p.VisitFrequency, 0.0)
	}
}

func TestBuildMLDatasetFillsAbsentPatients(t *testing.T) {
	patients := []models.Patient{
		{PatientID: "P1", Age: 70, BMI: 32, ChronicConditionCount: 2},
		{PatientID: "P2", Age: 30, BMI: 22},
		{PatientID: "P3", Age: 40, BMI: 24},
	}
	profiles := Aggregate([]models.Visit{
		visit("V1", "P1", 1, 1, "Cardiology", 10),
		visit("V2", "P3", 1, 0, "Cardiology", 40),
	}, 2)

	rows := BuildMLDataset(patients, profiles, FillDefaults{})
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].HighBMI)
	assert.Equal(t, 1, rows[0].SeniorCitizen)
	assert.Equal(t, 1, rows[0].MultipleConditions)
	assert.Equal(t, "Elderly", rows[0].AgeGroup)
	assert.Equal(t, "Obese", rows[0].BMICategory)

	absent := rows[1]
	assert.False(t, absent.HasVisits)
	assert.Equal(t, 0, absent.TotalVisits)
	assert.Equal(t, 0.0, absent.AdmissionRate)
	assert.Equal(t, 0.0, absent.VisitFrequency)
	assert.Equal(t, 25.0, absent.AvgWaitTime, "median of 10 and 40")
	assert.Nil(t, absent.FirstVisit)

	fixed := 12.0
	rows = BuildMLDataset(patients, profiles, FillDefaults{AvgWaitTime: &fixed})
	assert.Equal(t, 12.0, rows[1].AvgWaitTime)
}

func TestRiskLabel(t *testing.T) {
	assert.Equal(t, 1, RiskLabel(0.1, 2), "admission count clause")
	assert.Equal(t, 1, RiskLabel(0.5, 1), "rate clause")
	assert.Equal(t, 0, RiskLabel(0.1, 1))
}

func TestBuildClassificationSet(t *testing.T) {
	rows := []PatientFeatures{
		{PatientID: "A", TotalAdmissions: 2, TotalVisits: 20, AdmissionRate: 0.1},
		{PatientID: "B", TotalAdmissions: 1, TotalVisits: 2, AdmissionRate: 0.5},
		{PatientID: "C", TotalAdmissions: 1, TotalVisits: 10, AdmissionRate: 0.1},
		{PatientID: "D", TotalAdmissions: 0, TotalVisits: 4},
	}
	set, err := BuildClassificationSet(rows)
	require.NoError(t, err)
	require.Len(t, set.Rows, 3)

	labels := map[string]int{}
	for _, r := range set.Rows {
		labels[r.PatientID] = r.Label
		assert.Len(t, r.Features, len(ClassificationFeatureNames))
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 0}, labels)
	assert.Equal(t, ClassificationSchemaVersion, set.SchemaVersion)
}

func TestClassificationFeatureOrder(t *testing.T) {
	assert.Equal(t, []string{
		"age", "bmi", "chronic_condition_count", "total_visits", "total_admissions",
		"avg_wait_time", "visit_frequency", "admission_rate", "is_smoker",
		"has_chronic_condition", "high_bmi", "senior_citizen", "multiple_conditions",
		"frequent_visitor",
	}, ClassificationFeatureNames)

	vec := ClassificationVector(PatientFeatures{Age: 50, BMI: 27.5, FrequentVisitor: 1})
	assert.Equal(t, 50.0, vec[0])
	assert.Equal(t, 27.5, vec[1])
	assert.Equal(t, 1.0, vec[13])
}

func TestBuildClassificationSetInsufficientData(t *testing.T) {
	set, err := BuildClassificationSet([]PatientFeatures{{PatientID: "D"}})
	require.Error(t, err)
	assert.True(t, errs.IsInsufficientData(err))
	assert.NotNil(t, set.Rows)
	assert.Empty(t, set.Rows)
	assert.Len(t, set.FeatureNames, 14)
}

func TestBuildRegressionSet(t *testing.T) {
	saturday := models.Visit{
		VisitID:         "V2",
		VisitDate:       time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC),
		Department:      "Emergency",
		WaitTimeMinutes: 25,
	}
	visits := []models.Visit{visit("V1", "P1", 1, 0, "Cardiology", 10), saturday}

	set, err := BuildRegressionSet(visits, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hour", "day_of_week", "is_weekend", "is_emergency", "dept_Cardiology", "dept_Emergency"}, set.FeatureNames)
	require.Len(t, set.Rows, 2)

	assert.Equal(t, []float64{9, 0, 0, 0, 1, 0}, set.Rows[0].Features)
	assert.Equal(t, []float64{15, 5, 1, 1, 0, 1}, set.Rows[1].Features)
	assert.Equal(t, 25.0, set.Rows[1].Target)
}

func TestFrozenVocabularyZeroFillsUnseen(t *testing.T) {
	vocab := Vocabulary{"Cardiology", "Neurology"}
	set, err := BuildRegressionSet([]models.Visit{visit("V1", "P1", 1, 0, "Oncology", 10)}, vocab)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 0, 0, 0, 0, 0}, set.Rows[0].Features)

	_, known := vocab.Encode("Oncology")
	assert.False(t, known)
	onehot, known := vocab.Encode("Neurology")
	assert.True(t, known)
	assert.Equal(t, []float64{0, 1}, onehot)
}

func TestBuildRegressionSetEmpty(t *testing.T) {
	set, err := BuildRegressionSet(nil, nil)
	assert.True(t, errs.IsInsufficientData(err))
	assert.Empty(t, set.Rows)
	assert.Equal(t, RegressionBaseFeatureNames, set.FeatureNames)
}

func TestBuildAdmissionHistory(t *testing.T) {
	visits := []models.Visit{
		visit("V3", "P1", 200, 1, "Surgery", 1),
		visit("V1", "P1", 1, 1, "Surgery", 1),
		visit("V2", "P1", 31, 1, "Surgery", 1),
		visit("V4", "P2", 3, 0, "Surgery", 1),
	}
	rows := BuildAdmissionHistory(visits)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{rows[0].PriorAdmissions, rows[1].PriorAdmissions, rows[2].PriorAdmissions})
	assert.Equal(t, 30, rows[1].DaysSinceLastAdmission)
	assert.Equal(t, 1, rows[1].RecentAdmission)
	assert.Equal(t, 169, rows[2].DaysSinceLastAdmission)
	assert.Equal(t, 0, rows[2].RecentAdmission)
}

func TestBuildEmptyInput(t *testing.T) {
	out, err := Build(nil, nil, Options{Workers: 2})
	require.Error(t, err)
	assert.True(t, errs.IsInsufficientData(err))
	assert.Empty(t, out.Dataset)
	assert.Empty(t, out.Classification.Rows)
	assert.Empty(t, out.Regression.Rows)
}

func TestArtifactsRoundTrip(t *testing.T) {
	patients := []models.Patient{{PatientID: "P1", Age: 70, BMI: 31}}
	visits := []models.Visit{
		visit("V1", "P1", 1, 1, "Cardiology", 10),
		visit("V2", "P1", 4, 1, "Emergency", 30),
	}
	out, err := Build(patients, visits, Options{Workers: 1})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "features")
	paths, err := WriteArtifacts(context.Background(), dir, out)
	require.NoError(t, err)
	assert.FileExists(t, paths[MLDatasetFile])
	assert.FileExists(t, paths[AdmissionHistoryFile])

	cls, err := ReadClassificationArtifact(paths[ClassificationFile])
	require.NoError(t, err)
	require.Len(t, cls.Rows, 1)
	assert.Equal(t, out.Classification.Rows[0], cls.Rows[0])

	reg, err := ReadRegressionArtifact(dir)
	require.NoError(t, err)
	assert.Equal(t, out.Regression.FeatureNames, reg.FeatureNames)
	assert.Equal(t, out.Regression.Rows, reg.Rows)

	columns, _, err := storage.ReadParquetRecords(paths[RegressionFile])
	require.NoError(t, err)
	assert.Contains(t, columns, "dept_Cardiology")
	assert.Contains(t, columns, "dept_Emergency")
	assert.Contains(t, columns, "wait_time_minutes")

	dataset, err := ReadMLDataset(paths[MLDatasetFile])
	require.NoError(t, err)
	require.Len(t, dataset, 1)
	assert.Equal(t, "P1", dataset[0].PatientID)
	assert.Equal(t, 2, dataset[0].TotalVisits)
	assert.True(t, dataset[0].HasVisits)
	require.NotNil(t, dataset[0].FirstVisit)
	assert.True(t, out.Dataset[0].FirstVisit.Equal(*dataset[0].FirstVisit))
	assert.Equal(t, NamedFeatures(out.Dataset[0]), NamedFeatures(dataset[0]))
}

func TestArtifactsKeepSubSecondVisitTimes(t *testing.T) {
	patients := []models.Patient{{PatientID: "P1", Age: 40, BMI: 22}}
	first := visit("V1", "P1", 1, 0, "Cardiology", 10)
	first.VisitDate = first.VisitDate.Add(250 * time.Millisecond)
	last := visit("V2", "P1", 3, 0, "Cardiology", 12)
	last.VisitDate = last.VisitDate.Add(1500 * time.Microsecond)
	out, err := Build(patients, []models.Visit{first, last}, Options{Workers: 1})
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := WriteArtifacts(context.Background(), dir, out)
	require.NoError(t, err)

	dataset, err := ReadMLDataset(paths[MLDatasetFile])
	require.NoError(t, err)
	require.Len(t, dataset, 1)
	require.NotNil(t, dataset[0].FirstVisit)
	require.NotNil(t, dataset[0].LastVisit)
	assert.True(t, first.VisitDate.Equal(*dataset[0].FirstVisit), "got %s", dataset[0].FirstVisit)
	assert.True(t, last.VisitDate.Equal(*dataset[0].LastVisit), "got %s", dataset[0].LastVisit)
}

func TestReadRegressionArtifactRejectsForeignColumns(t *testing.T) {
	patients := []models.Patient{{PatientID: "P1", Age: 40, BMI: 22}}
	visits := []models.Visit{
		visit("V1", "P1", 1, 0, "Cardiology", 10),
		visit("V2", "P1", 2, 0, "Oncology", 20),
	}
	out, err := Build(patients, visits, Options{Workers: 1})
	require.NoError(t, err)
	dir := t.TempDir()
	_, err = WriteArtifacts(context.Background(), dir, out)
	require.NoError(t, err)

	schema := regressionSchema(Vocabulary{"Cardiology"})
	rows, err := regressionRows(schema, RegressionSet{
		Vocabulary: Vocabulary{"Cardiology"},
		Rows:       []RegressionRow{{VisitID: "V1", Features: []float64{9, 0, 0, 0, 1}, Target: 10}},
	})
	require.NoError(t, err)
	require.NoError(t, storage.WriteParquetRows(filepath.Join(dir, RegressionFile), schema, rows))

	_, err = ReadRegressionArtifact(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dept_Oncology")
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Child", AgeGroup(18))
	assert.Equal(t, "Young Adult", AgeGroup(19))
	assert.Equal(t, "Senior", AgeGroup(65))
	assert.Equal(t, "", AgeGroup(0))
	assert.Equal(t, "Normal", BMICategory(25))
	assert.Equal(t, "Underweight", BMICategory(18.5))
}
