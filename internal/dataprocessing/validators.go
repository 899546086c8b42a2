package dataprocessing

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the tri-state result of a validator. Validators never
// raise; callers fold outcomes into the validation report, which keeps
// error severity a deliberate policy rather than ad hoc control flow.
type Outcome int

const (
	Pass Outcome = iota
	Warn
	Fail
)

// CheckResult couples an outcome with a human-readable message. The
// message is empty on pass.
type CheckResult struct {
	Outcome Outcome
	Message string
}

func pass() CheckResult {
	return CheckResult{Outcome: Pass}
}

func warn(format string, args ...any) CheckResult {
	return CheckResult{Outcome: Warn, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) CheckResult {
	return CheckResult{Outcome: Fail, Message: fmt.Sprintf(format, args...)}
}

// RequiredColumnsPresent fails when any required column is absent.
func RequiredColumnsPresent(have []string, required []string) CheckResult {
	present := make(map[string]bool, len(have))
	for _, col := range have {
		present[col] = true
	}

	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return fail("missing required columns: %s", strings.Join(missing, ", "))
	}
	return pass()
}

// IdentifierNonEmpty fails when the identifier is empty after trim.
func IdentifierNonEmpty(id string) CheckResult {
	if strings.TrimSpace(id) == "" {
		return fail("identifier is empty")
	}
	return pass()
}

// ValueInRange warns when a value falls outside [min, max]. Out of
// range is a data-quality concern, not a blocker.
func ValueInRange(field string, value, min, max float64) CheckResult {
	if value < min || value > max {
		return warn("%s value %g outside range [%g, %g]", field, value, min, max)
	}
	return pass()
}

// DateOrderConsistent warns when the end date precedes the start date.
// Nil dates always pass; order only matters when both are known.
func DateOrderConsistent(startField, endField string, start, end *time.Time) CheckResult {
	if start == nil || end == nil {
		return pass()
	}
	if end.Before(*start) {
		return warn("%s %s precedes %s %s",
			endField, end.Format("2006-01-02"), startField, start.Format("2006-01-02"))
	}
	return pass()
}
