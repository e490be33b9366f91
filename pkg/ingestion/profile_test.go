package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

func TestProfileNulls(t *testing.T) {
	records := []models.RawRecord{
		{"bmi": nil, "ward": nil, "age": "40"},
		{"bmi": nil, "ward": nil, "age": "41"},
		{"bmi": 22.0, "ward": nil, "age": nil},
		{"bmi": 24.0, "ward": "A", "age": "43"},
		{"bmi": 25.0, "ward": nil, "age": "44"},
	}

	counts, warnings := ProfileNulls("patients", records, "ward")
	assert.Equal(t, 2, counts["bmi"])
	assert.Equal(t, 4, counts["ward"])
	assert.Equal(t, 1, counts["age"])

	require.Len(t, warnings, 1)
	assert.Equal(t, "bmi", warnings[0].Column)
	assert.Equal(t, -1, warnings[0].Row)
}
