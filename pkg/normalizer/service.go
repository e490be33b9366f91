package normalizer

import (
	"context"
	"fmt"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
	"github.com/synaptica-ai/hospital-insights/pkg/ingestion"
)

// Dataset is the cleaned canonical input to every downstream stage.
type Dataset struct {
	Patients []models.Patient
	Visits   []models.Visit
	Reports  []Report
}

// Warnings flattens the warnings of every report.
func (d *Dataset) Warnings() []errs.DataQualityWarning {
	var out []errs.DataQualityWarning
	for _, r := range d.Reports {
		out = append(out, r.Warnings...)
	}
	return out
}

type Service struct {
	cleaner *Cleaner
	repo    *Repository
}

// NewService wires a cleaner to an optional warning repository.
func NewService(cleaner *Cleaner, repo *Repository) *Service {
	return &Service{cleaner: cleaner, repo: repo}
}

// Process cleans both entities and checks that every visit references a
// known patient.
func (s *Service) Process(ctx context.Context, runID string, rawPatients, rawVisits []models.RawRecord) (*Dataset, error) {
	patients, patientReport, err := s.cleaner.CleanPatients(rawPatients)
	if err != nil {
		return nil, fmt.Errorf("clean patients: %w", err)
	}
	visits, visitReport, err := s.cleaner.CleanVisits(rawVisits)
	if err != nil {
		return nil, fmt.Errorf("clean visits: %w", err)
	}

	if err := CheckReferences(patients, visits); err != nil {
		return nil, err
	}

	// ward, diagnosis and length of stay are null for every non-admitted visit
	attachNulls(&patientReport, rawPatients)
	attachNulls(&visitReport, rawVisits, "ward", "diagnosis_code", "length_of_stay_days")

	ds := &Dataset{
		Patients: patients,
		Visits:   visits,
		Reports:  []Report{patientReport, visitReport},
	}

	if s.repo != nil {
		if err := s.repo.SaveWarnings(ctx, runID, ds.Warnings()); err != nil {
			logger.Log.WithError(err).WithField("run_id", runID).Error("Failed to persist data quality warnings")
		}
	}
	return ds, nil
}

func attachNulls(r *Report, raw []models.RawRecord, optional ...string) {
	counts, warnings := ingestion.ProfileNulls(r.Entity, raw, optional...)
	r.Nulls = counts
	for _, w := range warnings {
		logger.Log.WithFields(map[string]interface{}{
			"entity": w.Entity,
			"column": w.Column,
			"nulls":  counts[w.Column],
		}).Warn(w.Action)
	}
	r.Warnings = append(r.Warnings, warnings...)
}

// CheckReferences returns an IntegrityError for the first visit whose
// patient key is unknown.
func CheckReferences(patients []models.Patient, visits []models.Visit) error {
	known := make(map[string]struct{}, len(patients))
	for _, p := range patients {
		known[p.PatientID] = struct{}{}
	}
	for _, v := range visits {
		if _, ok := known[v.PatientID]; !ok {
			return &errs.IntegrityError{
				Table:     "visits",
				Key:       v.VisitID,
				Reference: "patient",
				Value:     v.PatientID,
			}
		}
	}
	return nil
}
