package dataprocessing

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wardpulse/internal/config"
	apperrors "wardpulse/internal/errors"
	"wardpulse/pkg/contracts/domain"
)

// buildWorkbook writes an in-memory xlsx with the given sheets.
func buildWorkbook(t *testing.T, sheets map[string][][]string) io.Reader {
	t.Helper()

	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func registryWorkbook(t *testing.T) io.Reader {
	return buildWorkbook(t, map[string][][]string{
		"Patient Details": {
			{"Registry ID", "Age", "Gender", "Admission Date", "Discharge Date"},
			{"P001", "42", "M", "2024-01-05", "2024-01-09"},
			{"P002", "17", "2", "2024-02-01", ""},
			{"P003", "abc", "F", "2024-03-10", ""},
		},
		"Diagnosis Details": {
			{"Registry ID", "Diagnosis", "Diagnosis Date", "Department"},
			{"P001", "Flu", "2024-01-12", "ER"},
			{"P001", "Asthma", "2024-02-20", "Pulmonology"},
			{"P002", "flu", "2024-02-02", "ER"},
			{"P999", "Ghost", "2024-02-03", "ER"},
		},
	})
}

func TestProcessor_ProcessWorkbook(t *testing.T) {
	p := NewProcessor(slog.Default(), config.DefaultPipeline())

	dataset, err := p.ProcessWorkbook(context.Background(), registryWorkbook(t))
	require.NoError(t, err)
	require.NotNil(t, dataset)

	assert.Len(t, dataset.Patients.Records, 3)
	assert.Len(t, dataset.Diagnoses.Records, 4)

	// P001 fans out to 2 rows, P002 matches 1, P003 appears bare; the
	// P999 orphan is excluded.
	require.NotNil(t, dataset.Merged)
	assert.Len(t, dataset.Merged.Rows, 4)

	// Orphan is an integrity error, but under the keep policy the
	// dataset is not blocked.
	assert.True(t, dataset.Consolidated.HasKind(domain.KindIntegrity))
	assert.False(t, dataset.Blocked)

	// The non-numeric age surfaced as a quality warning, not an error.
	var ageWarning bool
	for _, w := range dataset.Consolidated.Warnings() {
		if strings.Contains(w, `age "abc" is not numeric`) {
			ageWarning = true
		}
	}
	assert.True(t, ageWarning)

	require.NotNil(t, dataset.Summary)
	assert.Equal(t, 3, dataset.Summary.TotalPatients)
	assert.Equal(t, 3, dataset.Summary.MatchedDiagnoses)

	// Stage reports are kept individually and merged in order.
	require.NotNil(t, dataset.Stages.Classification)
	require.NotNil(t, dataset.Stages.Patients)
	require.NotNil(t, dataset.Stages.Diagnoses)
	require.NotNil(t, dataset.Stages.Merge)
	total := len(dataset.Stages.Classification.Findings) +
		len(dataset.Stages.Patients.Findings) +
		len(dataset.Stages.Diagnoses.Findings) +
		len(dataset.Stages.Merge.Findings)
	assert.Len(t, dataset.Consolidated.Findings, total)
}

func TestProcessor_MissingDiagnosisSheetBlocks(t *testing.T) {
	p := NewProcessor(slog.Default(), config.DefaultPipeline())

	wb := buildWorkbook(t, map[string][][]string{
		"Patient Details": {
			{"Registry ID", "Age"},
			{"P001", "42"},
		},
	})

	dataset, err := p.ProcessWorkbook(context.Background(), wb)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStructural))

	require.NotNil(t, dataset, "the dataset still carries the report for inspection")
	assert.True(t, dataset.Blocked)
	assert.True(t, dataset.Consolidated.HasKind(domain.KindStructural))
	assert.Nil(t, dataset.Merged)
}

func TestProcessor_GarbageInputBlocks(t *testing.T) {
	p := NewProcessor(slog.Default(), config.DefaultPipeline())

	dataset, err := p.ProcessWorkbook(context.Background(), strings.NewReader("this is not a workbook"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.True(t, dataset.Blocked)
}

func TestProcessor_RejectPolicyBlocksOnIntegrity(t *testing.T) {
	wb := func() io.Reader {
		return buildWorkbook(t, map[string][][]string{
			"Patient Details": {
				{"Registry ID", "Age"},
				{"P001", "42"},
				{"P001", "42"},
			},
			"Diagnosis Details": {
				{"Registry ID", "Diagnosis"},
				{"P001", "Flu"},
			},
		})
	}

	t.Run("keep policy warns only", func(t *testing.T) {
		p := NewProcessor(slog.Default(), config.DefaultPipeline())
		dataset, err := p.ProcessWorkbook(context.Background(), wb())
		require.NoError(t, err)
		assert.False(t, dataset.Blocked)
	})

	t.Run("reject policy blocks", func(t *testing.T) {
		cfg := config.DefaultPipeline()
		cfg.DuplicatePolicy = config.DuplicateReject
		p := NewProcessor(slog.Default(), cfg)

		dataset, err := p.ProcessWorkbook(context.Background(), wb())
		require.NoError(t, err, "integrity errors block the dataset, not the pipeline run")
		assert.True(t, dataset.Blocked)
		assert.NotNil(t, dataset.Merged, "merge output stays inspectable")
	})
}

func TestReadWorkbook(t *testing.T) {
	sheets, err := ReadWorkbook(registryWorkbook(t))
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	names := []string{sheets[0].Name, sheets[1].Name}
	assert.Contains(t, names, "Patient Details")
	assert.Contains(t, names, "Diagnosis Details")

	for _, sheet := range sheets {
		assert.NotEmpty(t, sheet.Rows)
	}
}

func TestReadWorkbook_Garbage(t *testing.T) {
	_, err := ReadWorkbook(bytes.NewReader([]byte{0x00, 0x01, 0x02}))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}
