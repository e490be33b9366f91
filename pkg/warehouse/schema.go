package warehouse

import "time"

const (
	TableDimPatient    = "dim_patient"
	TableDimDepartment = "dim_department"
	TableDimDate       = "dim_date"
	TableFactVisits    = "fact_visits"
)

type DimPatient struct {
	PatientID             string
	Age                   int
	Gender                string
	BMI                   float64
	SmokingStatus         string
	ChronicConditions     string
	ChronicConditionCount int
	RegistrationDate      time.Time
}

type DimDepartment struct {
	DepartmentID   int
	DepartmentName string
}

type DimDate struct {
	DateID    int
	FullDate  time.Time
	Year      int
	Month     int
	Day       int
	Quarter   int
	DayOfWeek int
	DayName   string
	MonthName string
	IsWeekend int
}

type FactVisit struct {
	VisitID           string
	PatientID         string
	DateID            int
	DepartmentID      int
	VisitType         string
	WaitTimeMinutes   float64
	IsAdmitted        int
	LengthOfStayDays  *int // nil when the visit has no stay
	Readmitted30dFlag int
	SatisfactionScore int
	BillingAmount     float64
	VisitHour         int
	Ward              *string
	DiagnosisCode     *string
}

// Warehouse is a complete star schema. Every build produces a new value;
// stores replace all four tables with it at once.
type Warehouse struct {
	Patients    []DimPatient
	Departments []DimDepartment
	Dates       []DimDate
	Facts       []FactVisit
}

// RowCounts reports the size of each table.
func (w *Warehouse) RowCounts() map[string]int {
	return map[string]int{
		TableDimPatient:    len(w.Patients),
		TableDimDepartment: len(w.Departments),
		TableDimDate:       len(w.Dates),
		TableFactVisits:    len(w.Facts),
	}
}

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindReal
	kindDate
)

type column struct {
	name     string
	kind     columnKind
	nullable bool
}

type tableDef struct {
	name    string
	key     string
	columns []column
	indexes []string
}

var tables = []tableDef{
	{
		name: TableDimPatient,
		key:  "patient_id",
		columns: []column{
			{"patient_id", kindText, false},
			{"age", kindInt, false},
			{"gender", kindText, false},
			{"bmi", kindReal, false},
			{"smoking_status", kindText, false},
			{"chronic_conditions", kindText, false},
			{"chronic_condition_count", kindInt, false},
			{"registration_date", kindDate, false},
		},
	},
	{
		name: TableDimDepartment,
		key:  "department_id",
		columns: []column{
			{"department_id", kindInt, false},
			{"department_name", kindText, false},
		},
	},
	{
		name: TableDimDate,
		key:  "date_id",
		columns: []column{
			{"date_id", kindInt, false},
			{"full_date", kindDate, false},
			{"year", kindInt, false},
			{"month", kindInt, false},
			{"day", kindInt, false},
			{"quarter", kindInt, false},
			{"day_of_week", kindInt, false},
			{"day_name", kindText, false},
			{"month_name", kindText, false},
			{"is_weekend", kindInt, false},
		},
	},
	{
		name: TableFactVisits,
		key:  "visit_id",
		columns: []column{
			{"visit_id", kindText, false},
			{"patient_id", kindText, false},
			{"date_id", kindInt, false},
			{"department_id", kindInt, false},
			{"visit_type", kindText, false},
			{"wait_time_minutes", kindReal, false},
			{"is_admitted", kindInt, false},
			{"length_of_stay_days", kindInt, true},
			{"readmitted_30d_flag", kindInt, false},
			{"satisfaction_score", kindInt, false},
			{"billing_amount", kindReal, false},
			{"visit_hour", kindInt, false},
			{"ward", kindText, true},
			{"diagnosis_code", kindText, true},
		},
		indexes: []string{"patient_id", "date_id", "department_id"},
	},
}

func (t tableDef) columnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// rows returns the table's values in column order.
func (w *Warehouse) rows(table string) [][]interface{} {
	var out [][]interface{}
	switch table {
	case TableDimPatient:
		out = make([][]interface{}, len(w.Patients))
		for i, p := range w.Patients {
			out[i] = []interface{}{p.PatientID, p.Age, p.Gender, p.BMI, p.SmokingStatus, p.ChronicConditions, p.ChronicConditionCount, p.RegistrationDate}
		}
	case TableDimDepartment:
		out = make([][]interface{}, len(w.Departments))
		for i, d := range w.Departments {
			out[i] = []interface{}{d.DepartmentID, d.DepartmentName}
		}
	case TableDimDate:
		out = make([][]interface{}, len(w.Dates))
		for i, d := range w.Dates {
			out[i] = []interface{}{d.DateID, d.FullDate, d.Year, d.Month, d.Day, d.Quarter, d.DayOfWeek, d.DayName, d.MonthName, d.IsWeekend}
		}
	case TableFactVisits:
		out = make([][]interface{}, len(w.Facts))
		for i, f := range w.Facts {
			out[i] = []interface{}{f.VisitID, f.PatientID, f.DateID, f.DepartmentID, f.VisitType, f.WaitTimeMinutes, f.IsAdmitted, f.LengthOfStayDays, f.Readmitted30dFlag, f.SatisfactionScore, f.BillingAmount,
				f.VisitHour, f.Ward, f.DiagnosisCode}
		}
	}
	return out
}
