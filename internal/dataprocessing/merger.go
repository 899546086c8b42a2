package dataprocessing

import (
	"log/slog"

	apperrors "wardpulse/internal/errors"
	"wardpulse/pkg/contracts/domain"
)

// Merger performs the left outer join of diagnoses onto patients keyed
// on registry_id, case-sensitive exact match after trim.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a merger.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		logger: logger.With(slog.String("component", "merger")),
	}
}

// Merge joins the normalized tables. The patient table anchors the
// join: a patient with k diagnoses yields k rows duplicating patient
// fields, a patient with none appears once with null diagnosis fields.
// Diagnosis rows referencing unknown patients are excluded but counted
// as an integrity error. Zero usable patient rows fail the whole merge
// with a structural error, regardless of the diagnosis table.
func (m *Merger) Merge(patients *domain.PatientTable, diagnoses *domain.DiagnosisTable) (*domain.MergedTable, *domain.ValidationReport, error) {
	report := domain.NewValidationReport("merge")

	if patients == nil || len(patients.Records) == 0 {
		report.AddError(domain.KindStructural, "patient table has no usable rows, nothing to anchor the merge")
		return nil, report, apperrors.NewStructuralError("patient table has no usable rows", nil)
	}

	// Index diagnoses by registry id, preserving file order within
	// each id so the fan-out is reproducible.
	byID := make(map[string][]int)
	if diagnoses != nil {
		for i, rec := range diagnoses.Records {
			byID[rec.RegistryID] = append(byID[rec.RegistryID], i)
		}
	}

	knownIDs := make(map[string]bool, len(patients.Records))
	for _, p := range patients.Records {
		knownIDs[p.RegistryID] = true
	}

	merged := &domain.MergedTable{
		PatientExtraColumns: patients.ExtraColumns,
	}
	if diagnoses != nil {
		merged.DiagnosisExtraColumns = diagnoses.ExtraColumns
	}

	for _, p := range patients.Records {
		indexes := byID[p.RegistryID]
		if len(indexes) == 0 {
			merged.Rows = append(merged.Rows, domain.MergedRow{Patient: p})
			continue
		}
		for _, idx := range indexes {
			d := diagnoses.Records[idx]
			merged.Rows = append(merged.Rows, domain.MergedRow{
				Patient:      p,
				Diagnosis:    &d,
				HasDiagnosis: true,
			})
		}
	}

	orphans := 0
	total := 0
	if diagnoses != nil {
		total = len(diagnoses.Records)
		for _, rec := range diagnoses.Records {
			if !knownIDs[rec.RegistryID] {
				orphans++
			}
		}
	}

	if orphans > 0 {
		report.AddError(domain.KindIntegrity, "%d diagnosis rows reference unknown patients", orphans)
	}
	report.AddInfo("merge completed: %d/%d diagnosis rows matched with patient data", total-orphans, total)

	m.logger.Info("tables merged",
		slog.Int("patients", len(patients.Records)),
		slog.Int("diagnoses", total),
		slog.Int("merged_rows", len(merged.Rows)),
		slog.Int("orphan_diagnoses", orphans))

	return merged, report, nil
}
