package dataprocessing

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"wardpulse/internal/config"
	"wardpulse/pkg/contracts/domain"
)

// Summarizer computes aggregate statistics over the merged table or a
// filtered subset of it. Every computation is a pure reduction:
// summarizing the same table with the same filter twice yields
// identical output, and the underlying table is never mutated.
type Summarizer struct {
	logger      *slog.Logger
	bucketEdges []int
	topN        int
}

// NewSummarizer creates a summarizer using the configured age bucket
// edges and top-N size.
func NewSummarizer(logger *slog.Logger, cfg config.PipelineConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		logger:      logger.With(slog.String("component", "summarizer")),
		bucketEdges: cfg.AgeBucketEdges,
		topN:        cfg.TopDiagnoses,
	}
}

// Summarize computes summary statistics over the rows selected by the
// filter. A nil filter selects everything.
func (s *Summarizer) Summarize(table *domain.MergedTable, filter *domain.Filter) *domain.SummaryStats {
	stats := &domain.SummaryStats{
		AgeBuckets: emptyBuckets(s.bucketEdges),
	}
	if table == nil {
		return stats
	}

	bucketIndex := make(map[string]int, len(stats.AgeBuckets))
	for i, b := range stats.AgeBuckets {
		bucketIndex[b.Label] = i
	}

	genderCounts := make(map[string]int)
	diagnosisCounts := make(map[string]int)
	departmentCounts := make(map[string]int)
	seenPatients := make(map[string]bool)
	var earliest, latest *time.Time

	for i := range table.Rows {
		row := &table.Rows[i]
		if !matchesFilter(row, filter) {
			continue
		}

		stats.TotalRows++
		if row.HasDiagnosis {
			stats.MatchedDiagnoses++
		}

		// Patient-level metrics count each patient once, on first
		// occurrence, regardless of the diagnosis fan-out.
		if !seenPatients[row.Patient.RegistryID] {
			seenPatients[row.Patient.RegistryID] = true
			stats.TotalPatients++

			stats.AgeBuckets[bucketIndex[s.bucketLabel(row.Patient.Age)]].Count++
			if row.Patient.Gender != "" {
				genderCounts[row.Patient.Gender]++
			}
		}

		if row.Diagnosis != nil {
			if row.Diagnosis.Diagnosis != "" {
				diagnosisCounts[row.Diagnosis.Diagnosis]++
			}
			if row.Diagnosis.Department != "" {
				departmentCounts[row.Diagnosis.Department]++
			}
		}

		if d := rowDate(row); d != nil {
			if earliest == nil || d.Before(*earliest) {
				earliest = d
			}
			if latest == nil || d.After(*latest) {
				latest = d
			}
		}
	}

	stats.GenderCounts = sortedCounts(genderCounts, 0)
	stats.TopDiagnoses = sortedCounts(diagnosisCounts, s.topN)
	stats.DepartmentCounts = sortedCounts(departmentCounts, 0)

	if earliest != nil && latest != nil {
		stats.DateRange = &domain.DateRange{Earliest: *earliest, Latest: *latest}
	}

	s.logger.Debug("summary computed",
		slog.Int("rows", stats.TotalRows),
		slog.Int("patients", stats.TotalPatients))

	return stats
}

// matchesFilter applies the filter predicates to one merged row.
func matchesFilter(row *domain.MergedRow, f *domain.Filter) bool {
	if f.IsZero() {
		return true
	}

	if f.Gender != "" && row.Patient.Gender != f.Gender {
		return false
	}
	if f.AgeMin != nil && (row.Patient.Age == nil || *row.Patient.Age < *f.AgeMin) {
		return false
	}
	if f.AgeMax != nil && (row.Patient.Age == nil || *row.Patient.Age > *f.AgeMax) {
		return false
	}
	if len(f.Departments) > 0 {
		if row.Diagnosis == nil || !containsString(f.Departments, row.Diagnosis.Department) {
			return false
		}
	}
	if f.DateFrom != nil || f.DateTo != nil {
		d := rowDate(row)
		if d == nil {
			return false
		}
		if f.DateFrom != nil && d.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && d.After(*f.DateTo) {
			return false
		}
	}
	return true
}

// rowDate is the date a merged row is filtered and ranged on: the
// diagnosis date when present, the admission date otherwise.
func rowDate(row *domain.MergedRow) *time.Time {
	if row.Diagnosis != nil && row.Diagnosis.DiagnosisDate != nil {
		return row.Diagnosis.DiagnosisDate
	}
	return row.Patient.AdmissionDate
}

// bucketLabel places an age in its distribution bin. Null ages land in
// the trailing Unknown bin.
func (s *Summarizer) bucketLabel(age *int) string {
	if age == nil {
		return "Unknown"
	}
	lower := 0
	for _, edge := range s.bucketEdges {
		if *age <= edge {
			return fmt.Sprintf("%d-%d", lower, edge)
		}
		lower = edge + 1
	}
	return fmt.Sprintf("%d+", lower)
}

// emptyBuckets builds the ordered, zeroed age distribution bins from
// the configured edges, including the open-ended and Unknown bins.
func emptyBuckets(edges []int) []domain.BucketCount {
	buckets := make([]domain.BucketCount, 0, len(edges)+2)
	lower := 0
	for _, edge := range edges {
		buckets = append(buckets, domain.BucketCount{Label: fmt.Sprintf("%d-%d", lower, edge)})
		lower = edge + 1
	}
	buckets = append(buckets, domain.BucketCount{Label: fmt.Sprintf("%d+", lower)})
	buckets = append(buckets, domain.BucketCount{Label: "Unknown"})
	return buckets
}

// sortedCounts turns a frequency map into a deterministic slice:
// count descending, label ascending on ties, truncated to limit when
// limit is positive.
func sortedCounts(counts map[string]int, limit int) []domain.CategoryCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]domain.CategoryCount, 0, len(counts))
	for label, count := range counts {
		out = append(out, domain.CategoryCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
