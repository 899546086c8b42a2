package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationReport(t *testing.T) {
	r := NewValidationReport("patients")
	r.AddError(KindStructural, "sheet %q has no data rows", "Patients")
	r.AddWarning(KindQuality, "row %d: age set to null", 4)
	r.AddInfo("%d rows normalized", 10)

	assert.True(t, r.HasErrors())
	assert.True(t, r.HasKind(KindStructural))
	assert.True(t, r.HasKind(KindQuality))
	assert.False(t, r.HasKind(KindIntegrity))

	assert.Equal(t, []string{`sheet "Patients" has no data rows`}, r.Errors())
	assert.Equal(t, []string{"row 4: age set to null"}, r.Warnings())
	assert.Equal(t, []string{"10 rows normalized"}, r.Infos())
	assert.Equal(t, 1, r.CountKind(KindQuality))
}

func TestValidationReport_Merge(t *testing.T) {
	a := NewValidationReport("patients")
	a.AddWarning(KindQuality, "first")

	b := NewValidationReport("merge")
	b.AddError(KindIntegrity, "second")

	consolidated := NewValidationReport("consolidated")
	consolidated.Merge(a)
	consolidated.Merge(b)
	consolidated.Merge(nil)

	require.Len(t, consolidated.Findings, 2)
	assert.Equal(t, "first", consolidated.Findings[0].Message)
	assert.Equal(t, "second", consolidated.Findings[1].Message)
	assert.True(t, consolidated.HasErrors())
}

func TestFilter_IsZero(t *testing.T) {
	var nilFilter *Filter
	assert.True(t, nilFilter.IsZero())
	assert.True(t, (&Filter{}).IsZero())

	assert.False(t, (&Filter{Gender: "FEMALE"}).IsZero())
	age := 18
	assert.False(t, (&Filter{AgeMin: &age}).IsZero())
	assert.False(t, (&Filter{Departments: []string{"ER"}}).IsZero())
}
