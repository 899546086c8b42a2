package domain

import "time"

// BucketCount is one bin of the age distribution.
type BucketCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CategoryCount is one entry of a frequency table, ordered by count
// descending with label ascending as the tie break so repeated
// summarize calls produce identical output.
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DateRange is the min/max of the observed record dates.
type DateRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// SummaryStats is derived on demand from a merged table or a filtered
// subset of it. It is never persisted independently.
type SummaryStats struct {
	TotalRows        int             `json:"total_rows"`
	TotalPatients    int             `json:"total_patients"`
	MatchedDiagnoses int             `json:"matched_diagnoses"`
	AgeBuckets       []BucketCount   `json:"age_buckets"`
	GenderCounts     []CategoryCount `json:"gender_counts"`
	TopDiagnoses     []CategoryCount `json:"top_diagnoses"`
	DepartmentCounts []CategoryCount `json:"department_counts"`
	DateRange        *DateRange      `json:"date_range,omitempty"`
}

// Filter selects merged rows before aggregation. Zero values mean no
// constraint. Filters never mutate the underlying table.
type Filter struct {
	DateFrom    *time.Time `json:"date_from,omitempty"`
	DateTo      *time.Time `json:"date_to,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	AgeMin      *int       `json:"age_min,omitempty"`
	AgeMax      *int       `json:"age_max,omitempty"`
	Departments []string   `json:"departments,omitempty"`
}

// IsZero reports whether the filter imposes no constraints.
func (f *Filter) IsZero() bool {
	if f == nil {
		return true
	}
	return f.DateFrom == nil && f.DateTo == nil && f.Gender == "" &&
		f.AgeMin == nil && f.AgeMax == nil && len(f.Departments) == 0
}
