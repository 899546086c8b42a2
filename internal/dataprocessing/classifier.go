package dataprocessing

import (
	"log/slog"
	"strings"

	"wardpulse/internal/config"
	apperrors "wardpulse/internal/errors"
	"wardpulse/pkg/contracts/domain"
)

// Weight of a keyword hit in the sheet name versus a hit in a header
// cell. Names are far stronger signals than headers.
const (
	nameMatchWeight   = 2
	headerMatchWeight = 1
)

// Classifier assigns a role to each workbook sheet using keyword
// scoring over sheet names and header cells.
type Classifier struct {
	logger            *slog.Logger
	patientKeywords   []string
	diagnosisKeywords []string
}

// NewClassifier creates a sheet classifier using the configured
// keyword lists.
func NewClassifier(logger *slog.Logger, cfg config.PipelineConfig) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger:            logger.With(slog.String("component", "classifier")),
		patientKeywords:   cfg.PatientKeywords,
		diagnosisKeywords: cfg.DiagnosisKeywords,
	}
}

// Classify assigns a role to every sheet. The first sheet scoring for
// a role wins it; later sheets scoring for an already-taken role are
// demoted to unknown with a warning. If no sheet classifies as patient
// or diagnosis after the full pass, a structural error is returned
// together with the report.
func (c *Classifier) Classify(sheets []domain.RawSheet) ([]domain.ClassifiedSheet, *domain.ValidationReport, error) {
	report := domain.NewValidationReport("classification")

	taken := make(map[domain.SheetRole]string)
	classified := make([]domain.ClassifiedSheet, 0, len(sheets))
	ignored := 0

	for _, sheet := range sheets {
		role, score := c.scoreSheet(sheet)

		if role != domain.RoleUnknown {
			if holder, exists := taken[role]; exists {
				report.AddWarning(domain.KindQuality,
					"sheet %q also classified as %s; keeping %q, ignoring the later sheet", sheet.Name, role, holder)
				role = domain.RoleUnknown
				score = 0
			} else {
				taken[role] = sheet.Name
			}
		}

		if role == domain.RoleUnknown {
			ignored++
		}

		c.logger.Debug("sheet classified",
			slog.String("sheet_name", sheet.Name),
			slog.String("role", string(role)),
			slog.Int("confidence", score))

		classified = append(classified, domain.ClassifiedSheet{
			Name:       sheet.Name,
			Role:       role,
			Confidence: score,
			Rows:       sheet.Rows,
		})
	}

	if ignored > 0 {
		report.AddInfo("%d sheets ignored as unrecognized", ignored)
	}

	var missing []string
	if _, ok := taken[domain.RolePatient]; !ok {
		report.AddError(domain.KindStructural, "no sheet classified as patient data")
		missing = append(missing, "patient")
	}
	if _, ok := taken[domain.RoleDiagnosis]; !ok {
		report.AddError(domain.KindStructural, "no sheet classified as diagnosis data")
		missing = append(missing, "diagnosis")
	}
	if len(missing) > 0 {
		return classified, report, apperrors.NewStructuralError(
			"required sheets not found: "+strings.Join(missing, ", "), nil)
	}

	return classified, report, nil
}

// scoreSheet is a pure scoring function. The sheet name is scored
// first; header cells only break the tie when the name is ambiguous.
// Ties and zero matches yield unknown.
func (c *Classifier) scoreSheet(sheet domain.RawSheet) (domain.SheetRole, int) {
	patientScore := keywordScore(sheet.Name, c.patientKeywords) * nameMatchWeight
	diagnosisScore := keywordScore(sheet.Name, c.diagnosisKeywords) * nameMatchWeight

	if patientScore == diagnosisScore && len(sheet.Rows) > 0 {
		header := strings.Join(sheet.Rows[0], " ")
		patientScore += keywordScore(header, c.patientKeywords) * headerMatchWeight
		diagnosisScore += keywordScore(header, c.diagnosisKeywords) * headerMatchWeight
	}

	switch {
	case patientScore > diagnosisScore:
		return domain.RolePatient, patientScore
	case diagnosisScore > patientScore:
		return domain.RoleDiagnosis, diagnosisScore
	default:
		return domain.RoleUnknown, 0
	}
}

// keywordScore counts case-insensitive keyword occurrences in text.
// The first keyword of each list is the role's primary keyword and
// scores double, so a sheet called "Diagnosis Details" lands on
// diagnosis even though "details" sits in the patient list.
func keywordScore(text string, keywords []string) int {
	lower := strings.ToLower(text)
	score := 0
	for i, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			if i == 0 {
				score += 2
			} else {
				score++
			}
		}
	}
	return score
}
