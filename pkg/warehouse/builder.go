package warehouse

import (
	"sort"
	"strings"
	"time"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

const dateKeyLayout = "2006-01-02"

// Build maps cleaned patients and visits onto the star schema. It is a pure
// function: identical input yields identical tables and surrogate keys.
func Build(patients []models.Patient, visits []models.Visit) (*Warehouse, error) {
	w := &Warehouse{}

	known := make(map[string]struct{}, len(patients))
	w.Patients = make([]DimPatient, 0, len(patients))
	for _, p := range patients {
		if _, dup := known[p.PatientID]; dup {
			return nil, &errs.IntegrityError{Table: TableDimPatient, Key: p.PatientID, Reason: "duplicate patient key"}
		}
		known[p.PatientID] = struct{}{}
		w.Patients = append(w.Patients, DimPatient{
			PatientID:             p.PatientID,
			Age:                   p.Age,
			Gender:                p.Gender,
			BMI:                   p.BMI,
			SmokingStatus:         p.SmokingStatus,
			ChronicConditions:     conditionText(p.ChronicConditions),
			ChronicConditionCount: p.ChronicConditionCount,
			RegistrationDate:      p.RegistrationDate,
		})
	}
	sort.Slice(w.Patients, func(i, j int) bool { return w.Patients[i].PatientID < w.Patients[j].PatientID })

	var departmentKeys map[string]int
	w.Departments, departmentKeys = buildDepartments(visits)

	var dateKeys map[string]int
	w.Dates, dateKeys = buildDates(visits)

	facts, err := buildFacts(visits, known, departmentKeys, dateKeys)
	if err != nil {
		return nil, err
	}
	w.Facts = facts
	return w, nil
}

func buildDepartments(visits []models.Visit) ([]DimDepartment, map[string]int) {
	seen := make(map[string]struct{})
	for _, v := range visits {
		seen[v.Department] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	dims := make([]DimDepartment, len(names))
	keys := make(map[string]int, len(names))
	for i, name := range names {
		dims[i] = DimDepartment{DepartmentID: i + 1, DepartmentName: name}
		keys[name] = i + 1
	}
	return dims, keys
}

// buildDates emits one row per calendar day in [min, max] visit day.
func buildDates(visits []models.Visit) ([]DimDate, map[string]int) {
	if len(visits) == 0 {
		return []DimDate{}, map[string]int{}
	}
	first, last := visits[0].Day(), visits[0].Day()
	for _, v := range visits[1:] {
		d := v.Day()
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	var dims []DimDate
	keys := make(map[string]int)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		id := len(dims) + 1
		dims = append(dims, calendarRow(id, d))
		keys[d.Format(dateKeyLayout)] = id
	}
	return dims, keys
}

func calendarRow(id int, d time.Time) DimDate {
	weekday := models.MondayIndex(d.Weekday())
	weekend := 0
	if weekday >= 5 {
		weekend = 1
	}
	return DimDate{
		DateID:    id,
		FullDate:  d,
		Year:      d.Year(),
		Month:     int(d.Month()),
		Day:       d.Day(),
		Quarter:   (int(d.Month())-1)/3 + 1,
		DayOfWeek: weekday,
		DayName:   d.Weekday().String(),
		MonthName: d.Month().String(),
		IsWeekend: weekend,
	}
}

func buildFacts(visits []models.Visit, patients map[string]struct{}, departments, dates map[string]int) ([]FactVisit, error) {
	seen := make(map[string]struct{}, len(visits))
	facts := make([]FactVisit, 0, len(visits))
	for _, v := range visits {
		if _, dup := seen[v.VisitID]; dup {
			return nil, &errs.IntegrityError{Table: TableFactVisits, Key: v.VisitID, Reason: "duplicate visit key"}
		}
		seen[v.VisitID] = struct{}{}

		if _, ok := patients[v.PatientID]; !ok {
			return nil, &errs.IntegrityError{Table: TableFactVisits, Key: v.VisitID, Reference: TableDimPatient, Value: v.PatientID}
		}
		departmentID, ok := departments[v.Department]
		if !ok {
			return nil, &errs.IntegrityError{Table: TableFactVisits, Key: v.VisitID, Reference: TableDimDepartment, Value: v.Department}
		}
		day := v.Day().Format(dateKeyLayout)
		dateID, ok := dates[day]
		if !ok {
			return nil, &errs.IntegrityError{Table: TableFactVisits, Key: v.VisitID, Reference: TableDimDate, Value: day}
		}

		facts = append(facts, FactVisit{
			VisitID:           v.VisitID,
			PatientID:         v.PatientID,
			DateID:            dateID,
			DepartmentID:      departmentID,
			VisitType:         v.VisitType,
			WaitTimeMinutes:   v.WaitTimeMinutes,
			IsAdmitted:        v.IsAdmitted,
			LengthOfStayDays:  stayDays(v),
			Readmitted30dFlag: v.Readmitted30dFlag,
			SatisfactionScore: v.SatisfactionScore,
			BillingAmount:     v.BillingAmount,
			VisitHour:         v.VisitDate.Hour(),
			Ward:              copyText(v.Ward),
			DiagnosisCode:     copyText(v.DiagnosisCode),
		})
	}
	sort.Slice(facts, func(i, j int) bool { return facts[i].VisitID < facts[j].VisitID })
	return facts, nil
}

// stayDays copies the length of stay so facts never alias cleaned visits.
func stayDays(v models.Visit) *int {
	if v.LengthOfStayDays == nil {
		return nil
	}
	days := *v.LengthOfStayDays
	return &days
}

func copyText(s *string) *string {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

func conditionText(labels []string) string {
	if len(labels) == 0 {
		return "None"
	}
	return strings.Join(labels, ", ")
}
