package normalizer

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

const (
	EntityPatients = "patients"
	EntityVisits   = "visits"
)

var (
	patientColumns = []string{"patient_id", "age", "gender", "bmi", "smoking_status", "chronic_conditions", "registration_date"}
	visitColumns   = []string{"visit_id", "patient_id", "visit_date", "department", "visit_type", "triage_level", "wait_time_minutes", "is_admitted", "satisfaction_score", "billing_amount"}
	// either the 0/1 flag or the Yes/No label satisfies the readmission column
	readmissionColumns = []string{"readmitted_30d_flag", "readmitted_30d"}

	genders        = map[string]struct{}{"M": {}, "F": {}, "OTHER": {}}
	smokingStates  = map[string]struct{}{"Yes": {}, "No": {}}
	visitTypes     = map[string]struct{}{"Emergency": {}, "Scheduled": {}, "Opd": {}}
	noneCondition  = "none"
	minAge, maxAge = 0, 120
)

type Options struct {
	// Departments closes the department vocabulary. Empty accepts any name.
	Departments []string
}

// Cleaner canonicalises raw patient and visit records. It holds no state
// between calls.
type Cleaner struct {
	departments map[string]struct{}
}

func NewCleaner(opts Options) *Cleaner {
	c := &Cleaner{}
	if len(opts.Departments) > 0 {
		title := cases.Title(language.Und)
		c.departments = make(map[string]struct{}, len(opts.Departments))
		for _, d := range opts.Departments {
			c.departments[title.String(strings.TrimSpace(d))] = struct{}{}
		}
	}
	return c
}

// CleanPatients returns one Patient per raw record, in input order.
func (c *Cleaner) CleanPatients(raw []models.RawRecord) ([]models.Patient, Report, error) {
	report := Report{Entity: EntityPatients, Rows: len(raw)}
	if err := requireColumns(EntityPatients, raw, patientColumns); err != nil {
		return nil, report, err
	}

	patients := make([]models.Patient, len(raw))
	var missingBMI []int
	var presentBMI []float64

	for i, rec := range raw {
		p := &patients[i]

		p.PatientID = getString(rec["patient_id"])
		if p.PatientID == "" {
			return nil, report, mistyped(EntityPatients, "patient_id", i, rec["patient_id"], errNull)
		}

		age, err := toInt(rec["age"])
		if err != nil {
			return nil, report, mistyped(EntityPatients, "age", i, rec["age"], err)
		}
		if age < minAge || age > maxAge {
			report.warn("age", i, age, "age out of range, clamped")
			report.Clamped++
			age = clampInt(age, minAge, maxAge)
		}
		p.Age = age

		p.Gender = strings.ToUpper(getString(rec["gender"]))
		if _, ok := genders[p.Gender]; !ok {
			report.warn("gender", i, rec["gender"], "unknown gender bucketed")
			report.Unknown++
			p.Gender = models.GenderUnknown
		}

		bmi, err := toFloat(rec["bmi"])
		switch {
		case errors.Is(err, errNull):
			missingBMI = append(missingBMI, i)
		case err != nil:
			return nil, report, mistyped(EntityPatients, "bmi", i, rec["bmi"], err)
		default:
			p.BMI = bmi
			presentBMI = append(presentBMI, bmi)
		}

		p.SmokingStatus = smokingStatus(rec["smoking_status"])
		if _, ok := smokingStates[p.SmokingStatus]; !ok {
			report.warn("smoking_status", i, rec["smoking_status"], "unknown smoking status bucketed")
			report.Unknown++
			p.SmokingStatus = models.Unknown
		}

		p.ChronicConditions = conditions(rec["chronic_conditions"])
		p.ChronicConditionCount = len(p.ChronicConditions)
		if rawCount, ok := rec["chronic_condition_count"]; ok && rawCount != nil {
			if n, err := toInt(rawCount); err != nil || n != p.ChronicConditionCount {
				report.warn("chronic_condition_count", i, rawCount, "condition count recomputed from labels")
			}
		}

		p.RegistrationDate, err = toTime(rec["registration_date"])
		if err != nil {
			return nil, report, mistyped(EntityPatients, "registration_date", i, rec["registration_date"], err)
		}

		if p.SmokingStatus == "Yes" {
			p.IsSmoker = 1
		}
		if p.ChronicConditionCount > 0 {
			p.HasChronicCondition = 1
		}
	}

	if len(missingBMI) > 0 {
		fill := median(presentBMI)
		for _, i := range missingBMI {
			patients[i].BMI = fill
		}
		report.Imputed += len(missingBMI)
		report.warn("bmi", -1, fill, "missing bmi imputed with median")
	}

	return patients, report, nil
}

// CleanVisits returns one Visit per raw record, in input order.
func (c *Cleaner) CleanVisits(raw []models.RawRecord) ([]models.Visit, Report, error) {
	report := Report{Entity: EntityVisits, Rows: len(raw)}
	if err := requireColumns(EntityVisits, raw, visitColumns); err != nil {
		return nil, report, err
	}
	if err := requireAnyColumn(EntityVisits, raw, readmissionColumns); err != nil {
		return nil, report, err
	}

	title := cases.Title(language.Und)
	visits := make([]models.Visit, len(raw))

	for i, rec := range raw {
		v := &visits[i]
		var err error

		v.VisitID = getString(rec["visit_id"])
		if v.VisitID == "" {
			return nil, report, mistyped(EntityVisits, "visit_id", i, rec["visit_id"], errNull)
		}
		v.PatientID = getString(rec["patient_id"])
		if v.PatientID == "" {
			return nil, report, mistyped(EntityVisits, "patient_id", i, rec["patient_id"], errNull)
		}

		v.VisitDate, err = toTime(rec["visit_date"])
		if err != nil {
			return nil, report, mistyped(EntityVisits, "visit_date", i, rec["visit_date"], err)
		}

		v.Department = title.String(getString(rec["department"]))
		if !c.knownDepartment(v.Department) {
			report.warn("department", i, rec["department"], "unknown department bucketed")
			report.Unknown++
			v.Department = models.Unknown
		}

		v.VisitType = title.String(getString(rec["visit_type"]))
		if _, ok := visitTypes[v.VisitType]; !ok {
			report.warn("visit_type", i, rec["visit_type"], "unknown visit type bucketed")
			report.Unknown++
			v.VisitType = models.Unknown
		}

		v.TriageLevel = getString(rec["triage_level"])
		if v.TriageLevel == "" {
			report.warn("triage_level", i, rec["triage_level"], "missing triage level bucketed")
			report.Unknown++
			v.TriageLevel = models.Unknown
		}

		v.WaitTimeMinutes, err = toFloat(rec["wait_time_minutes"])
		if err != nil {
			return nil, report, mistyped(EntityVisits, "wait_time_minutes", i, rec["wait_time_minutes"], err)
		}
		if v.WaitTimeMinutes < 0 {
			report.warn("wait_time_minutes", i, v.WaitTimeMinutes, "negative wait time clamped to zero")
			report.Clamped++
			v.WaitTimeMinutes = 0
		}

		admitted, err := toBool(rec["is_admitted"])
		if err != nil {
			return nil, report, mistyped(EntityVisits, "is_admitted", i, rec["is_admitted"], err)
		}
		if admitted {
			v.IsAdmitted = 1
		}

		if err := c.stayDetails(v, rec, i, &report); err != nil {
			return nil, report, err
		}

		v.Readmitted30dFlag = readmitted(rec, i, &report)

		score, err := toInt(rec["satisfaction_score"])
		if err != nil {
			return nil, report, mistyped(EntityVisits, "satisfaction_score", i, rec["satisfaction_score"], err)
		}
		if score < 1 || score > 5 {
			report.warn("satisfaction_score", i, score, "satisfaction score out of range, clamped")
			report.Clamped++
			score = clampInt(score, 1, 5)
		}
		v.SatisfactionScore = score

		if billing, err := toFloat(rec["billing_amount"]); err == nil {
			v.BillingAmount = billing
			if billing < 0 {
				report.warn("billing_amount", i, billing, "negative billing amount kept as recorded")
			}
		} else if errors.Is(err, errNull) {
			report.warn("billing_amount", i, nil, "missing billing amount read as 0")
		} else {
			return nil, report, mistyped(EntityVisits, "billing_amount", i, rec["billing_amount"], err)
		}
	}

	return visits, report, nil
}

// stayDetails fills ward, diagnosis and length of stay. A zero stay on a
// non-admitted visit is the producer's way of writing "no stay" and becomes
// nil; any other detail on a non-admitted visit is kept and reported.
func (c *Cleaner) stayDetails(v *models.Visit, rec models.RawRecord, row int, report *Report) error {
	if ward := getString(rec["ward"]); ward != "" {
		v.Ward = &ward
	}
	if code := getString(rec["diagnosis_code"]); code != "" {
		v.DiagnosisCode = &code
	}

	los, err := toInt(rec["length_of_stay_days"])
	switch {
	case errors.Is(err, errNull):
	case err != nil:
		return mistyped(EntityVisits, "length_of_stay_days", row, rec["length_of_stay_days"], err)
	case los < 0:
		report.warn("length_of_stay_days", row, los, "negative length of stay clamped to zero")
		report.Clamped++
		los = 0
		fallthrough
	default:
		if v.IsAdmitted == 1 || los > 0 {
			v.LengthOfStayDays = &los
		}
	}

	if v.IsAdmitted == 0 && (v.Ward != nil || v.LengthOfStayDays != nil) {
		report.warn("is_admitted", row, v.IsAdmitted, "stay details present on a non-admitted visit")
	}
	return nil
}

func (c *Cleaner) knownDepartment(name string) bool {
	if name == "" {
		return false
	}
	if c.departments == nil {
		return true
	}
	_, ok := c.departments[name]
	return ok
}

func requireColumns(entity string, raw []models.RawRecord, columns []string) error {
	if len(raw) == 0 {
		return nil
	}
	for _, col := range columns {
		found := false
		for _, rec := range raw {
			if _, ok := rec[col]; ok {
				found = true
				break
			}
		}
		if !found {
			return errs.MissingColumn(entity, col)
		}
	}
	return nil
}

// requireAnyColumn accepts the input when at least one of columns is present.
func requireAnyColumn(entity string, raw []models.RawRecord, columns []string) error {
	if len(raw) == 0 {
		return nil
	}
	for _, rec := range raw {
		for _, col := range columns {
			if _, ok := rec[col]; ok {
				return nil
			}
		}
	}
	return errs.MissingColumn(entity, strings.Join(columns, "|"))
}

func smokingStatus(v interface{}) string {
	if b, ok := v.(bool); ok {
		if b {
			return "Yes"
		}
		return "No"
	}
	return capitalize(getString(v))
}

func conditions(v interface{}) []string {
	labels := toLabels(v)
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !strings.EqualFold(l, noneCondition) {
			out = append(out, l)
		}
	}
	return out
}

// readmitted prefers the 0/1 flag and falls back to the Yes/No label. A
// value neither column can express is reported and read as not readmitted.
func readmitted(rec models.RawRecord, row int, report *Report) int {
	nullColumn := ""
	for _, col := range readmissionColumns {
		value, ok := rec[col]
		if !ok {
			continue
		}
		flag, err := toBool(value)
		switch {
		case err == nil && flag:
			return 1
		case err == nil:
			return 0
		case errors.Is(err, errNull):
			nullColumn = col
		default:
			report.warn(col, row, value, "unparseable readmission flag read as 0")
			return 0
		}
	}
	if nullColumn != "" {
		report.warn(nullColumn, row, nil, "missing readmission flag read as 0")
	}
	return 0
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
