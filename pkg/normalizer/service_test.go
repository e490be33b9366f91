package normalizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

func TestServiceProcessProfilesNulls(t *testing.T) {
	svc := NewService(NewCleaner(Options{}), nil)
	patients := []models.RawRecord{rawPatient("P1", nil), rawPatient("P2", nil), rawPatient("P3", 24.0)}
	visits := []models.RawRecord{rawVisit("V1", "P1", 10.0), rawVisit("V2", "P3", 20.0)}

	ds, err := svc.Process(context.Background(), "run-1", patients, visits)
	require.NoError(t, err)
	require.Len(t, ds.Reports, 2)

	assert.Equal(t, 2, ds.Reports[0].Nulls["bmi"])
	var columnWarnings []string
	for _, w := range ds.Reports[0].Warnings {
		if w.Row == -1 {
			columnWarnings = append(columnWarnings, w.Column)
		}
	}
	// one for the null share, one for the median imputation
	assert.Equal(t, []string{"bmi", "bmi"}, columnWarnings)

	// ward is sparse by nature and never flagged
	assert.Equal(t, 2, ds.Reports[1].Nulls["ward"])
	for _, w := range ds.Reports[1].Warnings {
		assert.NotEqual(t, "ward", w.Column)
	}
	assert.NotEmpty(t, ds.Warnings())
}

func TestServiceProcessRejectsOrphanVisit(t *testing.T) {
	svc := NewService(NewCleaner(Options{}), nil)
	_, err := svc.Process(context.Background(), "run-1",
		[]models.RawRecord{rawPatient("P1", 22.0)},
		[]models.RawRecord{rawVisit("V1", "P9", 5.0)})
	require.Error(t, err)
	assert.True(t, errs.IsIntegrityError(err))
}
