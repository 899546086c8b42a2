package dataprocessing

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"wardpulse/internal/config"
	apperrors "wardpulse/internal/errors"
	"wardpulse/pkg/contracts/domain"
)

// Literal cell values treated as null after case folding. Spreadsheet
// exports routinely carry "nan" and friends as text.
var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"null": true,
	"na":   true,
	"n/a":  true,
	"-":    true,
}

// Normalizer turns a classified sheet into a typed table: headers are
// mapped to canonical names via the synonym table, values coerced to
// their semantic types, and rows without a usable registry id dropped.
type Normalizer struct {
	logger *slog.Logger
	cfg    config.PipelineConfig
}

// NewNormalizer creates a normalizer with the given pipeline
// configuration.
func NewNormalizer(logger *slog.Logger, cfg config.PipelineConfig) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		logger: logger.With(slog.String("component", "normalizer")),
		cfg:    cfg,
	}
}

// columnLayout maps a sheet's header row onto canonical field indexes
// plus the verbatim extension columns.
type columnLayout struct {
	canonical map[string]int
	extra     []extraColumn
}

type extraColumn struct {
	name  string
	index int
}

// NormalizePatients normalizes a patient sheet. A missing registry id
// column or an empty sheet is a structural error.
func (n *Normalizer) NormalizePatients(sheet domain.ClassifiedSheet) (*domain.PatientTable, *domain.ValidationReport, error) {
	report := domain.NewValidationReport("patients")

	layout, err := n.prepareSheet(sheet, report)
	if err != nil {
		return nil, report, err
	}

	table := &domain.PatientTable{ExtraColumns: extraNames(layout.extra)}
	dropped := 0

	for i, row := range sheet.Rows[1:] {
		rowNum := i + 2 // 1-based, counting the header
		if rowIsEmpty(row) {
			continue
		}

		id := normalizeText(cellAt(row, layout.canonical[domain.ColRegistryID]))
		if IdentifierNonEmpty(id).Outcome == Fail {
			dropped++
			continue
		}

		rec := domain.PatientRecord{RegistryID: id}

		if idx, ok := layout.canonical[domain.ColAge]; ok {
			rec.Age = n.parseAge(cellAt(row, idx), rowNum, report)
		}
		if idx, ok := layout.canonical[domain.ColGender]; ok {
			rec.Gender = n.normalizeGender(cellAt(row, idx))
		}
		if idx, ok := layout.canonical[domain.ColAdmissionDate]; ok {
			rec.AdmissionDate = n.parseDate(cellAt(row, idx), domain.ColAdmissionDate, rowNum, report)
		}
		if idx, ok := layout.canonical[domain.ColDischargeDate]; ok {
			rec.DischargeDate = n.parseDate(cellAt(row, idx), domain.ColDischargeDate, rowNum, report)
		}

		if res := DateOrderConsistent(domain.ColAdmissionDate, domain.ColDischargeDate, rec.AdmissionDate, rec.DischargeDate); res.Outcome == Warn {
			report.AddWarning(domain.KindQuality, "row %d: %s", rowNum, res.Message)
		}

		rec.Extra = collectExtras(row, layout.extra)
		table.Records = append(table.Records, rec)
	}

	if dropped > 0 {
		report.AddError(domain.KindQuality, "%d rows dropped for missing identifier", dropped)
	}

	n.flagDuplicates(table.Records, report)

	report.AddInfo("%d patient rows normalized from sheet %q", len(table.Records), sheet.Name)

	n.logger.Info("patient sheet normalized",
		slog.String("sheet_name", sheet.Name),
		slog.Int("rows", len(table.Records)),
		slog.Int("dropped", dropped))

	return table, report, nil
}

// NormalizeDiagnoses normalizes a diagnosis sheet. Duplicate registry
// ids are normal here (a patient may have many diagnoses) and are
// never flagged.
func (n *Normalizer) NormalizeDiagnoses(sheet domain.ClassifiedSheet) (*domain.DiagnosisTable, *domain.ValidationReport, error) {
	report := domain.NewValidationReport("diagnoses")

	layout, err := n.prepareSheet(sheet, report)
	if err != nil {
		return nil, report, err
	}

	table := &domain.DiagnosisTable{ExtraColumns: extraNames(layout.extra)}
	dropped := 0

	for i, row := range sheet.Rows[1:] {
		rowNum := i + 2
		if rowIsEmpty(row) {
			continue
		}

		id := normalizeText(cellAt(row, layout.canonical[domain.ColRegistryID]))
		if IdentifierNonEmpty(id).Outcome == Fail {
			dropped++
			continue
		}

		rec := domain.DiagnosisRecord{RegistryID: id}

		if idx, ok := layout.canonical[domain.ColDiagnosis]; ok {
			// Diagnosis labels are upper-cased so frequency counts
			// collapse case variants of the same condition.
			rec.Diagnosis = strings.ToUpper(normalizeText(cellAt(row, idx)))
		}
		if idx, ok := layout.canonical[domain.ColDiagnosisDate]; ok {
			rec.DiagnosisDate = n.parseDate(cellAt(row, idx), domain.ColDiagnosisDate, rowNum, report)
		}
		if idx, ok := layout.canonical[domain.ColDepartment]; ok {
			rec.Department = normalizeText(cellAt(row, idx))
		}

		rec.Extra = collectExtras(row, layout.extra)
		table.Records = append(table.Records, rec)
	}

	if dropped > 0 {
		report.AddError(domain.KindQuality, "%d rows dropped for missing identifier", dropped)
	}

	report.AddInfo("%d diagnosis rows normalized from sheet %q", len(table.Records), sheet.Name)

	n.logger.Info("diagnosis sheet normalized",
		slog.String("sheet_name", sheet.Name),
		slog.Int("rows", len(table.Records)),
		slog.Int("dropped", dropped))

	return table, report, nil
}

// prepareSheet validates the sheet shape and builds the column layout.
func (n *Normalizer) prepareSheet(sheet domain.ClassifiedSheet, report *domain.ValidationReport) (columnLayout, error) {
	if len(sheet.Rows) < 2 {
		report.AddError(domain.KindStructural, "sheet %q has no data rows", sheet.Name)
		return columnLayout{}, apperrors.NewStructuralError("sheet "+sheet.Name+" has no data rows", nil)
	}

	layout := n.buildLayout(sheet.Rows[0], report)

	if res := RequiredColumnsPresent(canonicalNames(layout), []string{domain.ColRegistryID}); res.Outcome == Fail {
		report.AddError(domain.KindStructural, "sheet %q: %s", sheet.Name, res.Message)
		return columnLayout{}, apperrors.NewStructuralError("sheet "+sheet.Name+": "+res.Message, nil)
	}

	return layout, nil
}

// buildLayout maps header cells onto canonical field names via the
// synonym table. Unmapped headers are kept verbatim as extension
// columns; a second header mapping to an already-claimed canonical
// name is demoted to an extension column with a warning.
func (n *Normalizer) buildLayout(header []string, report *domain.ValidationReport) columnLayout {
	layout := columnLayout{canonical: make(map[string]int)}

	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		canonical, ok := n.cfg.ColumnSynonyms[strings.ToLower(name)]
		if ok {
			if _, claimed := layout.canonical[canonical]; claimed {
				report.AddWarning(domain.KindQuality,
					"column %q also maps to %s; keeping the first match", name, canonical)
				layout.extra = append(layout.extra, extraColumn{name: name, index: i})
				continue
			}
			layout.canonical[canonical] = i
			continue
		}

		layout.extra = append(layout.extra, extraColumn{name: name, index: i})
	}

	return layout
}

// parseAge coerces an age cell to a non-negative integer. Non-numeric
// and out-of-range values become null with a warning, never an error.
func (n *Normalizer) parseAge(raw string, rowNum int, report *domain.ValidationReport) *int {
	s := normalizeText(raw)
	if s == "" {
		return nil
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		report.AddWarning(domain.KindQuality, "row %d: age %q is not numeric, set to null", rowNum, raw)
		return nil
	}

	if res := ValueInRange(domain.ColAge, v, 0, float64(n.cfg.AgeMax)); res.Outcome == Warn {
		report.AddWarning(domain.KindQuality, "row %d: %s, set to null", rowNum, res.Message)
		return nil
	}

	age := int(v)
	return &age
}

// parseDate tries the configured layouts in order; the first success
// wins and unparseable values become null with a warning.
func (n *Normalizer) parseDate(raw, field string, rowNum int, report *domain.ValidationReport) *time.Time {
	s := normalizeText(raw)
	if s == "" {
		return nil
	}

	for _, layout := range n.cfg.DateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	report.AddWarning(domain.KindQuality, "row %d: %s %q is not a recognized date, set to null", rowNum, field, raw)
	return nil
}

// normalizeGender maps source values (including numeric codes) onto
// canonical labels; unmapped values are kept upper-cased.
func (n *Normalizer) normalizeGender(raw string) string {
	s := strings.ToUpper(normalizeText(raw))
	if s == "" {
		return ""
	}
	if mapped, ok := n.cfg.GenderSynonyms[s]; ok {
		return mapped
	}
	return s
}

// flagDuplicates reports duplicated patient registry ids once per id
// with the occurrence count. Rows are kept either way; the reject
// policy upgrades the finding to an integrity error.
func (n *Normalizer) flagDuplicates(records []domain.PatientRecord, report *domain.ValidationReport) {
	counts := make(map[string]int, len(records))
	var order []string
	for _, rec := range records {
		if counts[rec.RegistryID] == 0 {
			order = append(order, rec.RegistryID)
		}
		counts[rec.RegistryID]++
	}

	for _, id := range order {
		if counts[id] < 2 {
			continue
		}
		if n.cfg.DuplicatePolicy == config.DuplicateReject {
			report.AddError(domain.KindIntegrity,
				"duplicate registry_id %q appears %d times in the patient table", id, counts[id])
		} else {
			report.AddWarning(domain.KindQuality,
				"duplicate registry_id %q appears %d times in the patient table", id, counts[id])
		}
	}
}

// normalizeText trims a cell and folds literal null tokens to empty.
func normalizeText(s string) string {
	trimmed := strings.TrimSpace(s)
	if nullTokens[strings.ToLower(trimmed)] {
		return ""
	}
	return trimmed
}

// cellAt returns the cell at idx, tolerating ragged rows.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func collectExtras(row []string, extras []extraColumn) map[string]string {
	var out map[string]string
	for _, col := range extras {
		v := normalizeText(cellAt(row, col.index))
		if v == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[col.name] = v
	}
	return out
}

func extraNames(extras []extraColumn) []string {
	if len(extras) == 0 {
		return nil
	}
	names := make([]string, len(extras))
	for i, col := range extras {
		names[i] = col.name
	}
	return names
}

func canonicalNames(layout columnLayout) []string {
	names := make([]string, 0, len(layout.canonical))
	for name := range layout.canonical {
		names = append(names, name)
	}
	return names
}
