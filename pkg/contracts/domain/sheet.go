package domain

// SheetRole identifies what kind of table a workbook sheet holds.
type SheetRole string

const (
	RolePatient   SheetRole = "patient"
	RoleDiagnosis SheetRole = "diagnosis"
	RoleUnknown   SheetRole = "unknown"
)

// RawSheet is one sheet of an uploaded workbook before any processing.
// The first row is treated as header candidates.
type RawSheet struct {
	Name string
	Rows [][]string
}

// ClassifiedSheet is a raw sheet with its heuristically assigned role.
// The role is best effort, never authoritative; downstream stages must
// tolerate RoleUnknown.
type ClassifiedSheet struct {
	Name       string     `json:"name"`
	Role       SheetRole  `json:"role"`
	Confidence int        `json:"confidence"`
	Rows       [][]string `json:"-"`
}
