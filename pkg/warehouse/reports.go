package warehouse

import (
	"context"
	"fmt"
	"math"
	"strings"
)

type DepartmentWait struct {
	Department  string  `json:"department"`
	AvgWaitTime float64 `json:"avg_wait_time"`
	VisitCount  int64   `json:"visit_count"`
}

type HourlyWait struct {
	Hour        int     `json:"hour_of_day"`
	AvgWaitTime float64 `json:"avg_wait_time"`
	VisitCount  int64   `json:"visit_count"`
}

type DailyWait struct {
	DayOfWeek   int     `json:"day_of_week"`
	DayName     string  `json:"day_name"`
	AvgWaitTime float64 `json:"avg_wait_time"`
	VisitCount  int64   `json:"visit_count"`
}

// OPDAnalytics covers outpatient visits only, that is visits that did not
// end in an admission.
type OPDAnalytics struct {
	ByDepartment []DepartmentWait `json:"wait_times_by_department"`
	ByHour       []HourlyWait     `json:"wait_times_by_hour"`
	ByDay        []DailyWait      `json:"wait_times_by_day"`
}

type WardStay struct {
	Ward           string  `json:"ward"`
	AvgLOS         float64 `json:"avg_los"`
	AdmissionCount int64   `json:"admission_count"`
}

type DiagnosisReadmissions struct {
	DiagnosisCode   string  `json:"diagnosis_code"`
	Readmissions    int64   `json:"readmissions"`
	TotalAdmissions int64   `json:"total_admissions"`
	ReadmissionRate float64 `json:"readmission_rate"`
}

type MonthlyAdmissions struct {
	Month          string `json:"month"`
	AdmissionCount int64  `json:"admission_count"`
}

type InpatientAnalytics struct {
	LOSByWard               []WardStay              `json:"los_by_ward"`
	ReadmissionsByDiagnosis []DiagnosisReadmissions `json:"readmissions_by_diagnosis"`
	MonthlyAdmissionTrends  []MonthlyAdmissions     `json:"monthly_admission_trends"`
}

type DepartmentRevenue struct {
	Department string  `json:"department"`
	Revenue    float64 `json:"revenue"`
}

type BillingSummary struct {
	TotalRevenue           float64             `json:"total_revenue"`
	AverageBillingPerVisit float64             `json:"average_billing_per_visit"`
	RevenueByDepartment    []DepartmentRevenue `json:"revenue_by_department"`
}

type PatientRow struct {
	PatientID             string  `json:"patient_id"`
	Age                   int     `json:"age"`
	Gender                string  `json:"gender"`
	BMI                   float64 `json:"bmi"`
	SmokingStatus         string  `json:"smoking_status"`
	ChronicConditions     string  `json:"chronic_conditions"`
	ChronicConditionCount int     `json:"chronic_condition_count"`
	HasDiabetes           bool    `json:"has_diabetes"`
	HasHypertension       bool    `json:"has_hypertension"`
	HasAsthma             bool    `json:"has_asthma"`
	HasHeartDisease       bool    `json:"has_heart_disease"`
	TotalVisits           int64   `json:"total_visits"`
	TotalAdmissions       int64   `json:"total_admissions"`
	AvgLOS                float64 `json:"avg_los"`
}

func (q *Querier) OPDAnalytics(ctx context.Context) (OPDAnalytics, error) {
	out := OPDAnalytics{ByDepartment: []DepartmentWait{}, ByHour: []HourlyWait{}, ByDay: []DailyWait{}}

	rows, err := q.db.QueryContext(ctx, `
		SELECT
			dd.department_name,
			CAST(AVG(fv.wait_time_minutes) AS DOUBLE PRECISION) AS avg_wait,
			COUNT(*)
		FROM fact_visits fv
		JOIN dim_department dd ON fv.department_id = dd.department_id
		WHERE fv.is_admitted = 0
		GROUP BY dd.department_name
		ORDER BY avg_wait DESC, dd.department_name`)
	if err != nil {
		return out, fmt.Errorf("query opd departments: %w", err)
	}
	for rows.Next() {
		var d DepartmentWait
		if err := rows.Scan(&d.Department, &d.AvgWaitTime, &d.VisitCount); err != nil {
			rows.Close()
			return out, err
		}
		out.ByDepartment = append(out.ByDepartment, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = q.db.QueryContext(ctx, `
		SELECT
			fv.visit_hour,
			CAST(AVG(fv.wait_time_minutes) AS DOUBLE PRECISION),
			COUNT(*)
		FROM fact_visits fv
		WHERE fv.is_admitted = 0
		GROUP BY fv.visit_hour
		ORDER BY fv.visit_hour`)
	if err != nil {
		return out, fmt.Errorf("query opd hours: %w", err)
	}
	for rows.Next() {
		var h HourlyWait
		if err := rows.Scan(&h.Hour, &h.AvgWaitTime, &h.VisitCount); err != nil {
			rows.Close()
			return out, err
		}
		out.ByHour = append(out.ByHour, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = q.db.QueryContext(ctx, `
		SELECT
			d.day_of_week,
			d.day_name,
			CAST(AVG(fv.wait_time_minutes) AS DOUBLE PRECISION),
			COUNT(*)
		FROM fact_visits fv
		JOIN dim_date d ON fv.date_id = d.date_id
		WHERE fv.is_admitted = 0
		GROUP BY d.day_of_week, d.day_name
		ORDER BY d.day_of_week`)
	if err != nil {
		return out, fmt.Errorf("query opd weekdays: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyWait
		if err := rows.Scan(&d.DayOfWeek, &d.DayName, &d.AvgWaitTime, &d.VisitCount); err != nil {
			return out, err
		}
		out.ByDay = append(out.ByDay, d)
	}
	return out, rows.Err()
}

// InpatientAnalytics covers admitted visits. Wards and diagnoses that were
// never recorded are left out of their groupings.
func (q *Querier) InpatientAnalytics(ctx context.Context) (InpatientAnalytics, error) {
	out := InpatientAnalytics{
		LOSByWard:               []WardStay{},
		ReadmissionsByDiagnosis: []DiagnosisReadmissions{},
		MonthlyAdmissionTrends:  []MonthlyAdmissions{},
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT
			fv.ward,
			CAST(COALESCE(AVG(fv.length_of_stay_days), 0) AS DOUBLE PRECISION),
			COUNT(*)
		FROM fact_visits fv
		WHERE fv.is_admitted = 1 AND fv.ward IS NOT NULL
		GROUP BY fv.ward
		ORDER BY fv.ward`)
	if err != nil {
		return out, fmt.Errorf("query ward stays: %w", err)
	}
	for rows.Next() {
		var w WardStay
		if err := rows.Scan(&w.Ward, &w.AvgLOS, &w.AdmissionCount); err != nil {
			rows.Close()
			return out, err
		}
		out.LOSByWard = append(out.LOSByWard, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = q.db.QueryContext(ctx, `
		SELECT
			fv.diagnosis_code,
			SUM(fv.readmitted_30d_flag),
			COUNT(*)
		FROM fact_visits fv
		WHERE fv.is_admitted = 1 AND fv.diagnosis_code IS NOT NULL
		GROUP BY fv.diagnosis_code
		ORDER BY fv.diagnosis_code`)
	if err != nil {
		return out, fmt.Errorf("query readmissions: %w", err)
	}
	for rows.Next() {
		var d DiagnosisReadmissions
		if err := rows.Scan(&d.DiagnosisCode, &d.Readmissions, &d.TotalAdmissions); err != nil {
			rows.Close()
			return out, err
		}
		d.ReadmissionRate = round(float64(d.Readmissions)/float64(d.TotalAdmissions)*100, 2)
		out.ReadmissionsByDiagnosis = append(out.ReadmissionsByDiagnosis, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = q.db.QueryContext(ctx, `
		SELECT d.year, d.month, COUNT(*)
		FROM fact_visits fv
		JOIN dim_date d ON fv.date_id = d.date_id
		WHERE fv.is_admitted = 1
		GROUP BY d.year, d.month
		ORDER BY d.year, d.month`)
	if err != nil {
		return out, fmt.Errorf("query monthly admissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var year, month int
		var m MonthlyAdmissions
		if err := rows.Scan(&year, &month, &m.AdmissionCount); err != nil {
			return out, err
		}
		m.Month = fmt.Sprintf("%04d-%02d", year, month)
		out.MonthlyAdmissionTrends = append(out.MonthlyAdmissionTrends, m)
	}
	return out, rows.Err()
}

func (q *Querier) BillingSummary(ctx context.Context) (BillingSummary, error) {
	out := BillingSummary{RevenueByDepartment: []DepartmentRevenue{}}
	err := q.db.QueryRowContext(ctx, `
		SELECT
			CAST(COALESCE(SUM(billing_amount), 0) AS DOUBLE PRECISION),
			CAST(COALESCE(AVG(billing_amount), 0) AS DOUBLE PRECISION)
		FROM fact_visits`,
	).Scan(&out.TotalRevenue, &out.AverageBillingPerVisit)
	if err != nil {
		return out, fmt.Errorf("query billing totals: %w", err)
	}
	out.TotalRevenue = round(out.TotalRevenue, 2)
	out.AverageBillingPerVisit = round(out.AverageBillingPerVisit, 2)

	rows, err := q.db.QueryContext(ctx, `
		SELECT
			dd.department_name,
			CAST(SUM(fv.billing_amount) AS DOUBLE PRECISION) AS revenue
		FROM fact_visits fv
		JOIN dim_department dd ON fv.department_id = dd.department_id
		GROUP BY dd.department_name
		ORDER BY revenue DESC, dd.department_name`)
	if err != nil {
		return out, fmt.Errorf("query department revenue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DepartmentRevenue
		if err := rows.Scan(&d.Department, &d.Revenue); err != nil {
			return out, err
		}
		d.Revenue = round(d.Revenue, 2)
		out.RevenueByDepartment = append(out.RevenueByDepartment, d)
	}
	return out, rows.Err()
}

// PatientList returns patients in key order with their visit history folded
// in. Patients without visits report zero visits and a zero average stay.
func (q *Querier) PatientList(ctx context.Context, limit int) ([]PatientRow, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(`
		SELECT
			dp.patient_id,
			dp.age,
			dp.gender,
			dp.bmi,
			dp.smoking_status,
			dp.chronic_conditions,
			dp.chronic_condition_count,
			COUNT(fv.visit_id),
			COALESCE(SUM(fv.is_admitted), 0),
			CAST(COALESCE(AVG(fv.length_of_stay_days), 0) AS DOUBLE PRECISION)
		FROM dim_patient dp
		LEFT JOIN fact_visits fv ON dp.patient_id = fv.patient_id
		GROUP BY dp.patient_id, dp.age, dp.gender, dp.bmi, dp.smoking_status,
			dp.chronic_conditions, dp.chronic_condition_count
		ORDER BY dp.patient_id
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query patient list: %w", err)
	}
	defer rows.Close()

	out := []PatientRow{}
	for rows.Next() {
		var p PatientRow
		if err := rows.Scan(&p.PatientID, &p.Age, &p.Gender, &p.BMI, &p.SmokingStatus, &p.ChronicConditions,
			&p.ChronicConditionCount, &p.TotalVisits, &p.TotalAdmissions, &p.AvgLOS); err != nil {
			return nil, err
		}
		p.HasDiabetes = strings.Contains(p.ChronicConditions, "Diabetes")
		p.HasHypertension = strings.Contains(p.ChronicConditions, "Hypertension")
		p.HasAsthma = strings.Contains(p.ChronicConditions, "Asthma")
		p.HasHeartDisease = strings.Contains(p.ChronicConditions, "Heart Disease")
		p.AvgLOS = round(p.AvgLOS, 1)
		out = append(out, p)
	}
	return out, rows.Err()
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
