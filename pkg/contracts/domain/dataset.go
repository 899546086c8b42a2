package domain

// StageReports holds the per-stage validation reports of one ingestion.
type StageReports struct {
	Classification *ValidationReport `json:"classification,omitempty"`
	Patients       *ValidationReport `json:"patients,omitempty"`
	Diagnoses      *ValidationReport `json:"diagnoses,omitempty"`
	Merge          *ValidationReport `json:"merge,omitempty"`
}

// Dataset is the full result of one workbook ingestion: the normalized
// tables, the merged analytic table, the validation reports, and the
// summary over the unfiltered merged table. It is an immutable snapshot
// replaced wholesale on re-upload, never patched.
type Dataset struct {
	Patients  *PatientTable   `json:"patients,omitempty"`
	Diagnoses *DiagnosisTable `json:"diagnoses,omitempty"`
	Merged    *MergedTable    `json:"merged,omitempty"`
	Summary   *SummaryStats   `json:"summary,omitempty"`

	Stages       StageReports      `json:"stages"`
	Consolidated *ValidationReport `json:"consolidated"`

	// Blocked is true when a structural error exists, or when an
	// integrity error exists under the reject duplicate policy. A
	// blocked dataset's merged table must not be presented to users.
	Blocked bool `json:"blocked"`
}
