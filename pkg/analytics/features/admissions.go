package features

import (
	"sort"
	"time"

	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

const recentAdmissionDays = 90

// AdmissionHistoryRow describes one admission relative to the same patient's
// earlier admissions.
type AdmissionHistoryRow struct {
	VisitID                string
	PatientID              string
	VisitDate              time.Time
	PriorAdmissions        int
	DaysSinceLastAdmission int
	RecentAdmission        int
	Readmitted30dFlag      int
}

// BuildAdmissionHistory orders admitted visits by patient and date and
// derives prior-admission counts. The first admission of a patient has zero
// days since the last one.
func BuildAdmissionHistory(visits []models.Visit) []AdmissionHistoryRow {
	admitted := make([]models.Visit, 0)
	for _, v := range visits {
		if v.IsAdmitted == 1 {
			admitted = append(admitted, v)
		}
	}
	sort.SliceStable(admitted, func(i, j int) bool {
		a, b := admitted[i], admitted[j]
		if a.PatientID != b.PatientID {
			return a.PatientID < b.PatientID
		}
		if !a.VisitDate.Equal(b.VisitDate) {
			return a.VisitDate.Before(b.VisitDate)
		}
		return a.VisitID < b.VisitID
	})

	rows := make([]AdmissionHistoryRow, len(admitted))
	prior := 0
	for i, v := range admitted {
		if i == 0 || admitted[i-1].PatientID != v.PatientID {
			prior = 0
		}
		row := AdmissionHistoryRow{
			VisitID:           v.VisitID,
			PatientID:         v.PatientID,
			VisitDate:         v.VisitDate,
			PriorAdmissions:   prior,
			Readmitted30dFlag: v.Readmitted30dFlag,
		}
		if prior > 0 {
			row.DaysSinceLastAdmission = int(v.VisitDate.Sub(admitted[i-1].VisitDate) / (24 * time.Hour))
		}
		row.RecentAdmission = flag(row.DaysSinceLastAdmission <= recentAdmissionDays)
		rows[i] = row
		prior++
	}
	return rows
}
