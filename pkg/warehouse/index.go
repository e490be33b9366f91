package warehouse

import (
	"strconv"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
)

// FactIndex maps each fact foreign key value to the positions of its rows.
type FactIndex struct {
	ByPatient    map[string][]int
	ByDate       map[int][]int
	ByDepartment map[int][]int
}

func (w *Warehouse) Index() FactIndex {
	idx := FactIndex{
		ByPatient:    make(map[string][]int),
		ByDate:       make(map[int][]int),
		ByDepartment: make(map[int][]int),
	}
	for i, f := range w.Facts {
		idx.ByPatient[f.PatientID] = append(idx.ByPatient[f.PatientID], i)
		idx.ByDate[f.DateID] = append(idx.ByDate[f.DateID], i)
		idx.ByDepartment[f.DepartmentID] = append(idx.ByDepartment[f.DepartmentID], i)
	}
	return idx
}

// Validate checks that every fact key resolves to a dimension row and that
// dim_date keys run 1..N without gaps.
func (w *Warehouse) Validate() error {
	patients := make(map[string]struct{}, len(w.Patients))
	for _, p := range w.Patients {
		patients[p.PatientID] = struct{}{}
	}
	departments := make(map[int]struct{}, len(w.Departments))
	for _, d := range w.Departments {
		departments[d.DepartmentID] = struct{}{}
	}
	for i, d := range w.Dates {
		if d.DateID != i+1 {
			return &errs.IntegrityError{Table: TableDimDate, Key: d.FullDate.Format(dateKeyLayout), Reason: "date keys are not contiguous"}
		}
	}

	idx := w.Index()
	for id, rows := range idx.ByPatient {
		if _, ok := patients[id]; !ok {
			return &errs.IntegrityError{Table: TableFactVisits, Key: w.Facts[rows[0]].VisitID, Reference: TableDimPatient, Value: id}
		}
	}
	for id, rows := range idx.ByDepartment {
		if _, ok := departments[id]; !ok {
			return &errs.IntegrityError{Table: TableFactVisits, Key: w.Facts[rows[0]].VisitID, Reference: TableDimDepartment, Value: strconv.Itoa(id)}
		}
	}
	for id, rows := range idx.ByDate {
		if id < 1 || id > len(w.Dates) {
			return &errs.IntegrityError{Table: TableFactVisits, Key: w.Facts[rows[0]].VisitID, Reference: TableDimDate, Value: strconv.Itoa(id)}
		}
	}
	return nil
}
