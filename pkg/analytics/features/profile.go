package features

import (
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

const (
	daysPerYear          = 365
	frequentVisitorFloor = 5
)

// PatientProfile is the visit history of one patient.
type PatientProfile struct {
	PatientID           string    `json:"patient_id"`
	TotalVisits         int       `json:"total_visits"`
	AvgWaitTime         float64   `json:"avg_wait_time"`
	TotalAdmissions     int       `json:"total_admissions"`
	AvgSatisfaction     float64   `json:"avg_satisfaction"`
	FirstVisit          time.Time `json:"first_visit"`
	LastVisit           time.Time `json:"last_visit"`
	DaysSinceFirstVisit int       `json:"days_since_first_visit"`
	VisitFrequency      float64   `json:"visit_frequency"`
	AdmissionRate       float64   `json:"admission_rate"`
	FrequentVisitor     int       `json:"frequent_visitor"`
}

// Aggregate groups visits by patient and reduces each group independently.
// Groups are reduced on up to workers goroutines; each writes only its own
// slot, so the result does not depend on scheduling.
func Aggregate(visits []models.Visit, workers int) map[string]PatientProfile {
	groups := make(map[string][]int)
	for i, v := range visits {
		groups[v.PatientID] = append(groups[v.PatientID], i)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	profiles := make([]PatientProfile, len(keys))
	var g errgroup.Group
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, key := range keys {
		g.Go(func() error {
			profiles[i] = reduce(key, visits, groups[key])
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]PatientProfile, len(profiles))
	for _, p := range profiles {
		out[p.PatientID] = p
	}
	return out
}

func reduce(patientID string, visits []models.Visit, idx []int) PatientProfile {
	p := PatientProfile{PatientID: patientID, TotalVisits: len(idx)}

	var waitSum, satisfactionSum float64
	for n, i := range idx {
		v := visits[i]
		waitSum += v.WaitTimeMinutes
		satisfactionSum += float64(v.SatisfactionScore)
		p.TotalAdmissions += v.IsAdmitted
		if n == 0 || v.VisitDate.Before(p.FirstVisit) {
			p.FirstVisit = v.VisitDate
		}
		if n == 0 || v.VisitDate.After(p.LastVisit) {
			p.LastVisit = v.VisitDate
		}
	}

	count := float64(p.TotalVisits)
	p.AvgWaitTime = waitSum / count
	p.AvgSatisfaction = satisfactionSum / count
	p.DaysSinceFirstVisit = int(p.LastVisit.Sub(p.FirstVisit)/(24*time.Hour)) + 1
	p.VisitFrequency = count / float64(p.DaysSinceFirstVisit) * daysPerYear
	p.AdmissionRate = float64(p.TotalAdmissions) / count
	if p.TotalVisits >= frequentVisitorFloor {
		p.FrequentVisitor = 1
	}
	return p
}
