package domain

import "fmt"

// Severity ranks a finding. Errors block the merge, warnings and info
// are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// FindingKind classifies what a finding is about, independent of how
// severe it is.
type FindingKind string

const (
	// KindStructural marks a missing required sheet or column. It blocks
	// ingestion entirely.
	KindStructural FindingKind = "structural"
	// KindIntegrity marks orphaned foreign keys or disallowed duplicate
	// identifiers. It blocks the merge under the reject policy but is
	// individually enumerable.
	KindIntegrity FindingKind = "integrity"
	// KindQuality marks unparseable or out-of-range values coerced to
	// null. It never blocks.
	KindQuality FindingKind = "quality"
	// KindNotice marks non-problematic observations.
	KindNotice FindingKind = "notice"
)

// Finding is one entry of a validation report.
type Finding struct {
	Severity Severity    `json:"severity"`
	Kind     FindingKind `json:"kind"`
	Message  string      `json:"message"`
}

// ValidationReport accumulates findings for one pipeline stage. Stages
// return their report alongside their output instead of raising past
// the stage boundary; the pipeline merges stage reports into one
// consolidated report per ingestion. A report must not be mutated once
// its producing stage has returned it.
type ValidationReport struct {
	Stage    string    `json:"stage"`
	Findings []Finding `json:"findings"`
}

// NewValidationReport creates an empty report for the named stage.
func NewValidationReport(stage string) *ValidationReport {
	return &ValidationReport{Stage: stage}
}

// AddError records an error-severity finding.
func (r *ValidationReport) AddError(kind FindingKind, format string, args ...any) {
	r.add(SeverityError, kind, format, args...)
}

// AddWarning records a warning-severity finding.
func (r *ValidationReport) AddWarning(kind FindingKind, format string, args ...any) {
	r.add(SeverityWarning, kind, format, args...)
}

// AddInfo records an info-severity finding.
func (r *ValidationReport) AddInfo(format string, args ...any) {
	r.add(SeverityInfo, KindNotice, format, args...)
}

func (r *ValidationReport) add(sev Severity, kind FindingKind, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Severity: sev,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Merge appends another report's findings, preserving order.
func (r *ValidationReport) Merge(other *ValidationReport) {
	if other == nil {
		return
	}
	r.Findings = append(r.Findings, other.Findings...)
}

// Errors returns the messages of all error-severity findings in order.
func (r *ValidationReport) Errors() []string { return r.messages(SeverityError) }

// Warnings returns the messages of all warning-severity findings in order.
func (r *ValidationReport) Warnings() []string { return r.messages(SeverityWarning) }

// Infos returns the messages of all info-severity findings in order.
func (r *ValidationReport) Infos() []string { return r.messages(SeverityInfo) }

func (r *ValidationReport) messages(sev Severity) []string {
	var out []string
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f.Message)
		}
	}
	return out
}

// HasErrors reports whether any error-severity finding exists.
func (r *ValidationReport) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasKind reports whether any finding of the given kind exists.
func (r *ValidationReport) HasKind(kind FindingKind) bool {
	for _, f := range r.Findings {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// CountKind counts findings of the given kind.
func (r *ValidationReport) CountKind(kind FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
