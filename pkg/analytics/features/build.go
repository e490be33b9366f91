package features

import (
	"errors"

	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

type Options struct {
	Workers  int
	Defaults FillDefaults
	// Vocabulary freezes the department columns; nil derives them from visits.
	Vocabulary Vocabulary
}

// Build runs every projection over the cleaned dataset. When a feature set
// is empty the typed, empty set is still returned and the error wraps
// errs.ErrInsufficientData.
func Build(patients []models.Patient, visits []models.Visit, opts Options) (Artifacts, error) {
	profiles := Aggregate(visits, opts.Workers)
	dataset := BuildMLDataset(patients, profiles, opts.Defaults)

	classification, classErr := BuildClassificationSet(dataset)
	regression, regErr := BuildRegressionSet(visits, opts.Vocabulary)

	return Artifacts{
		Dataset:          dataset,
		Classification:   classification,
		Regression:       regression,
		AdmissionHistory: BuildAdmissionHistory(visits),
	}, errors.Join(classErr, regErr)
}
