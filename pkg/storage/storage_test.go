package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

type sampleRow struct {
	Name  string   `parquet:"name"`
	Score *float64 `parquet:"score,optional"`
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.parquet")
	score := 4.5
	rows := []sampleRow{{Name: "a", Score: &score}, {Name: "b"}}
	require.NoError(t, WriteParquet(path, rows))

	got, columns, err := ReadParquet[sampleRow](path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
	assert.True(t, columns["name"])
	assert.True(t, columns["score"])
	assert.False(t, columns["missing"])
}

func TestParquetEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteParquet[sampleRow](path, nil))

	got, columns, err := ReadParquet[sampleRow](path)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, columns["name"])
}

func TestParquetRowsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.parquet")
	schema := parquet.NewSchema("dynamic", parquet.Group{
		"id":         parquet.String(),
		"dept_ICU":   parquet.Leaf(parquet.DoubleType),
		"dept_Wards": parquet.Leaf(parquet.DoubleType),
	})
	values := []map[string]interface{}{
		{"id": "a", "dept_ICU": 1.0, "dept_Wards": 0.0},
		{"id": "b", "dept_ICU": 0.0, "dept_Wards": 1.0},
	}
	rows := make([]parquet.Row, len(values))
	for i, v := range values {
		for col, field := range schema.Fields() {
			rows[i] = append(rows[i], parquet.ValueOf(v[field.Name()]).Level(0, 0, col))
		}
	}
	require.NoError(t, WriteParquetRows(path, schema, rows))

	names, records, err := ReadParquetRecords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dept_ICU", "dept_Wards", "id"}, names)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[1]["id"].String())
	assert.Equal(t, 1.0, records[1]["dept_Wards"].Double())
	assert.Equal(t, 0.0, records[1]["dept_ICU"].Double())
}

func TestProcessedStoreRoundTrip(t *testing.T) {
	store := NewProcessedStore(t.TempDir())
	ward := "ICU"
	los := 2
	patients := []models.Patient{{
		PatientID:             "P00001",
		Age:                   61,
		Gender:                "F",
		BMI:                   28.4,
		SmokingStatus:         "No",
		ChronicConditions:     []string{"Diabetes"},
		ChronicConditionCount: 1,
		RegistrationDate:      time.Date(2022, 3, 4, 0, 0, 0, 0, time.UTC),
		HasChronicCondition:   1,
	}}
	visits := []models.Visit{{
		VisitID:           "V000001",
		PatientID:         "P00001",
		VisitDate:         time.Date(2024, 2, 2, 13, 45, 0, 0, time.UTC),
		Department:        "Cardiology",
		VisitType:         "Scheduled",
		TriageLevel:       "Level 3 - Urgent",
		WaitTimeMinutes:   31.5,
		IsAdmitted:        1,
		Ward:              &ward,
		LengthOfStayDays:  &los,
		SatisfactionScore: 4,
		BillingAmount:     3900.25,
	}}
	require.NoError(t, store.StoreCleaned(patients, visits))

	gotPatients, gotVisits, err := store.LoadCleaned()
	require.NoError(t, err)
	assert.Equal(t, patients, gotPatients)
	assert.Equal(t, visits, gotVisits)
}

func TestFeatureEncoding(t *testing.T) {
	in := OnlineFeatures{
		PatientID:     "P00001",
		SchemaVersion: 1,
		RunID:         "run-1",
		Features:      map[string]float64{"age": 61, "bmi": 28.4},
		UpdatedAt:     time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
	}
	data, err := encodeFeatures(in)
	require.NoError(t, err)
	out, err := decodeFeatures(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeFeatures([]byte("{"))
	assert.Error(t, err)
}

func TestFeatureKey(t *testing.T) {
	fs := NewFeatureStore(nil, "features:patient:", time.Hour)
	assert.Equal(t, "features:patient:P00001", fs.key("P00001"))
}
