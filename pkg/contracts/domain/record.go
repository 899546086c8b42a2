package domain

import "time"

// Canonical column names produced by the normalizer. Unmapped source
// columns survive as extension fields keyed by their trimmed header.
const (
	ColRegistryID    = "registry_id"
	ColAge           = "age"
	ColGender        = "gender"
	ColAdmissionDate = "admission_date"
	ColDischargeDate = "discharge_date"
	ColDiagnosis     = "diagnosis"
	ColDiagnosisDate = "diagnosis_date"
	ColDepartment    = "department"
)

// PatientRecord is one normalized row of the patient table.
// RegistryID is the join key and is always non-empty and trimmed;
// every other field is optional (nil or empty means null).
type PatientRecord struct {
	RegistryID    string            `json:"registry_id"`
	Age           *int              `json:"age,omitempty"`
	Gender        string            `json:"gender,omitempty"`
	AdmissionDate *time.Time        `json:"admission_date,omitempty"`
	DischargeDate *time.Time        `json:"discharge_date,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// DiagnosisRecord is one normalized row of the diagnosis table.
// RegistryID references a patient; multiple diagnoses per patient
// are normal and expected.
type DiagnosisRecord struct {
	RegistryID    string            `json:"registry_id"`
	Diagnosis     string            `json:"diagnosis,omitempty"`
	DiagnosisDate *time.Time        `json:"diagnosis_date,omitempty"`
	Department    string            `json:"department,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// PatientTable holds normalized patient records plus the extension
// column names in first-seen order, so exports stay column stable.
type PatientTable struct {
	Records      []PatientRecord `json:"records"`
	ExtraColumns []string        `json:"extra_columns,omitempty"`
}

// DiagnosisTable holds normalized diagnosis records plus the extension
// column names in first-seen order.
type DiagnosisTable struct {
	Records      []DiagnosisRecord `json:"records"`
	ExtraColumns []string          `json:"extra_columns,omitempty"`
}

// MergedRow is one row of the unified analytic table: a patient joined
// with one of its diagnoses. Diagnosis is nil when the patient had no
// matching diagnosis row; HasDiagnosis records that provenance.
type MergedRow struct {
	Patient      PatientRecord    `json:"patient"`
	Diagnosis    *DiagnosisRecord `json:"diagnosis,omitempty"`
	HasDiagnosis bool             `json:"has_diagnosis"`
}

// MergedTable is the left outer join of diagnoses onto patients keyed
// on registry_id. Every row's registry_id exists in the patient table;
// a patient with k diagnoses yields k rows.
type MergedTable struct {
	Rows                  []MergedRow `json:"rows"`
	PatientExtraColumns   []string    `json:"patient_extra_columns,omitempty"`
	DiagnosisExtraColumns []string    `json:"diagnosis_extra_columns,omitempty"`
}
