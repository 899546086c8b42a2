package dataprocessing

import (
	"context"
	"io"
	"log/slog"

	"wardpulse/internal/config"
	"wardpulse/pkg/contracts/domain"
)

// Processor runs the full ingestion pipeline: read workbook, classify
// sheets, normalize the patient and diagnosis tables, merge them, and
// summarize the result. It holds no mutable state; concurrent use
// across sessions only requires the caller not to share one in-flight
// dataset.
type Processor struct {
	logger     *slog.Logger
	cfg        config.PipelineConfig
	classifier *Classifier
	normalizer *Normalizer
	merger     *Merger
	summarizer *Summarizer
}

// NewProcessor creates a processor wired with the given pipeline
// configuration.
func NewProcessor(logger *slog.Logger, cfg config.PipelineConfig) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger.With(slog.String("component", "processor")),
		cfg:        cfg,
		classifier: NewClassifier(logger, cfg),
		normalizer: NewNormalizer(logger, cfg),
		merger:     NewMerger(logger),
		summarizer: NewSummarizer(logger, cfg),
	}
}

// ProcessWorkbook ingests one workbook. A structural error
// short-circuits the remaining stages and is returned together with a
// dataset carrying the consolidated report accumulated so far; all
// other severities accumulate across the full pipeline so the caller
// sees one consolidated report per ingestion.
func (p *Processor) ProcessWorkbook(ctx context.Context, r io.Reader) (*domain.Dataset, error) {
	dataset := &domain.Dataset{
		Consolidated: domain.NewValidationReport("consolidated"),
	}

	sheets, err := ReadWorkbook(r)
	if err != nil {
		dataset.Consolidated.AddError(domain.KindStructural, "%s", err.Error())
		dataset.Blocked = true
		return dataset, err
	}

	classified, classReport, err := p.classifier.Classify(sheets)
	dataset.Stages.Classification = classReport
	dataset.Consolidated.Merge(classReport)
	if err != nil {
		dataset.Blocked = true
		return dataset, err
	}

	patientSheet, diagnosisSheet := pickSheets(classified)

	patients, patientReport, err := p.normalizer.NormalizePatients(patientSheet)
	dataset.Stages.Patients = patientReport
	dataset.Consolidated.Merge(patientReport)
	if err != nil {
		dataset.Blocked = true
		return dataset, err
	}
	dataset.Patients = patients

	diagnoses, diagnosisReport, err := p.normalizer.NormalizeDiagnoses(diagnosisSheet)
	dataset.Stages.Diagnoses = diagnosisReport
	dataset.Consolidated.Merge(diagnosisReport)
	if err != nil {
		dataset.Blocked = true
		return dataset, err
	}
	dataset.Diagnoses = diagnoses

	merged, mergeReport, err := p.merger.Merge(patients, diagnoses)
	dataset.Stages.Merge = mergeReport
	dataset.Consolidated.Merge(mergeReport)
	if err != nil {
		dataset.Blocked = true
		return dataset, err
	}
	dataset.Merged = merged

	dataset.Summary = p.summarizer.Summarize(merged, nil)

	// Strict-mode rule: a structural error always blocks; integrity
	// errors block only under the reject duplicate policy.
	if dataset.Consolidated.HasKind(domain.KindStructural) {
		dataset.Blocked = true
	} else if p.cfg.DuplicatePolicy == config.DuplicateReject {
		for _, f := range dataset.Consolidated.Findings {
			if f.Kind == domain.KindIntegrity && f.Severity == domain.SeverityError {
				dataset.Blocked = true
				break
			}
		}
	}

	p.logger.InfoContext(ctx, "workbook processed",
		slog.Int("patients", len(patients.Records)),
		slog.Int("diagnoses", len(diagnoses.Records)),
		slog.Int("merged_rows", len(merged.Rows)),
		slog.Bool("blocked", dataset.Blocked))

	return dataset, nil
}

// pickSheets selects the sheet carrying each role. Classify guarantees
// exactly one sheet per role when it returns without error.
func pickSheets(classified []domain.ClassifiedSheet) (patient, diagnosis domain.ClassifiedSheet) {
	for _, sheet := range classified {
		switch sheet.Role {
		case domain.RolePatient:
			patient = sheet
		case domain.RoleDiagnosis:
			diagnosis = sheet
		}
	}
	return patient, diagnosis
}
